package server

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"plinko/internal/game"
	"plinko/internal/leaderboard"
	"plinko/internal/money"
	"plinko/internal/plinko"
)

type playRequest struct {
	Difficulty plinko.Difficulty `json:"difficulty"`
	RiskLevel  plinko.Risk       `json:"risk_level"`
	Amount     money.Amount      `json:"amount"`
	Denom      string            `json:"denom"`
}

type fundsRequest struct {
	Amount money.Amount `json:"amount"`
	Denom  string       `json:"denom"`
}

func principal(c *fiber.Ctx) (string, error) {
	caller := c.Get(PrincipalHeader)
	if caller == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "missing "+PrincipalHeader+" header")
	}
	return caller, nil
}

// execute runs req for caller and writes the result. The engine stamps the
// block when the call reaches its loop.
func (s *FiberServer) execute(c *fiber.Ctx, caller string, funds []game.Coin, req game.Request) error {
	res, err := s.deps.Engine.Execute(c.UserContext(), game.Call{
		Caller:  caller,
		Funds:   funds,
		Request: req,
	})
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *FiberServer) funds(amount money.Amount, denom string) []game.Coin {
	if amount.IsZero() {
		return nil
	}
	if denom == "" {
		denom = s.deps.Denom
	}
	return []game.Coin{{Denom: denom, Amount: amount}}
}

func (s *FiberServer) mutate(c *fiber.Ctx, funds []game.Coin, req game.Request) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	return s.execute(c, caller, funds, req)
}

func (s *FiberServer) query(c *fiber.Ctx, req game.Request) error {
	return s.execute(c, c.Get(PrincipalHeader), nil, req)
}

func (s *FiberServer) instantiateHandler(c *fiber.Ctx) error {
	var req game.Instantiate
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return s.mutate(c, nil, req)
}

func (s *FiberServer) playHandler(c *fiber.Ctx) error {
	var body playRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return s.mutate(c, s.funds(body.Amount, body.Denom), game.Play{
		Difficulty: body.Difficulty,
		RiskLevel:  body.RiskLevel,
	})
}

func (s *FiberServer) withdrawHouseHandler(c *fiber.Ctx) error {
	var body fundsRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return s.mutate(c, nil, game.WithdrawHouse{Amount: body.Amount})
}

func (s *FiberServer) fundHouseHandler(c *fiber.Ctx) error {
	var body fundsRequest
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return s.mutate(c, s.funds(body.Amount, body.Denom), game.FundHouse{})
}

// syncBalanceHandler reads the house account's balance from the token layer
// and hands it to the engine.
func (s *FiberServer) syncBalanceHandler(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	if s.deps.Balances == nil || s.deps.HouseAccount == "" {
		return fiber.NewError(fiber.StatusNotImplemented, "balance reporting is not configured")
	}
	reported, err := s.deps.Balances.Balance(c.UserContext(), s.deps.HouseAccount, s.deps.Denom)
	if err != nil {
		return err
	}
	return s.execute(c, caller, nil, game.SyncBalance{ReportedBalance: reported})
}

func (s *FiberServer) claimPrizeHandler(c *fiber.Ctx) error {
	day, err := dayParam(c)
	if err != nil {
		return err
	}
	return s.mutate(c, nil, game.ClaimDailyPrize{Day: day})
}

func (s *FiberServer) updatePrizeConfigHandler(c *fiber.Ctx) error {
	var req game.UpdatePrizeConfig
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return s.mutate(c, nil, req)
}

func (s *FiberServer) configHandler(c *fiber.Ctx) error {
	return s.query(c, game.QueryConfig{})
}

func (s *FiberServer) statsHandler(c *fiber.Ctx) error {
	return s.query(c, game.QueryStats{})
}

func (s *FiberServer) dailyStatsHandler(c *fiber.Ctx) error {
	return s.query(c, game.QueryDailyStats{})
}

func (s *FiberServer) historyHandler(c *fiber.Ctx) error {
	return s.query(c, game.QueryHistory{Player: c.Params("player"), Limit: limitQuery(c)})
}

func (s *FiberServer) userStatsHandler(c *fiber.Ctx) error {
	return s.query(c, game.QueryUserStats{Player: c.Params("player")})
}

func (s *FiberServer) globalLeaderboardHandler(c *fiber.Ctx) error {
	t, err := leaderboard.ParseType(c.Params("type"))
	if err != nil {
		return err
	}
	return s.query(c, game.QueryGlobalLeaderboard{Type: t, Limit: limitQuery(c)})
}

func (s *FiberServer) dailyLeaderboardHandler(c *fiber.Ctx) error {
	t, err := leaderboard.ParseType(c.Params("type"))
	if err != nil {
		return err
	}
	return s.query(c, game.QueryDailyLeaderboard{Type: t, Limit: limitQuery(c)})
}

func (s *FiberServer) winnablePrizeHandler(c *fiber.Ctx) error {
	day, err := dayParam(c)
	if err != nil {
		return err
	}
	return s.query(c, game.QueryWinnablePrize{Player: c.Params("player"), Day: day})
}

// verifyHandler replays a path from its public inputs:
// height, time (RFC 3339), player, nonce, difficulty and the claimed path.
func (s *FiberServer) verifyHandler(c *fiber.Ctx) error {
	height, err := strconv.ParseUint(c.Query("height"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid height")
	}
	nonce, err := strconv.ParseUint(c.Query("nonce", "0"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid nonce")
	}
	at, err := time.Parse(time.RFC3339Nano, c.Query("time"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid time")
	}
	rows, err := plinko.Difficulty(c.Query("difficulty")).Rows()
	if err != nil {
		return err
	}
	claimed, err := plinko.ParsePath(c.Query("path"))
	if err != nil {
		return err
	}

	in := plinko.SeedInput{Height: height, Time: at, Player: c.Query("player"), Nonce: nonce}
	actual := plinko.GeneratePath(in, rows)
	return c.JSON(fiber.Map{
		"valid":  plinko.Verify(in, claimed) && len(claimed) == rows,
		"path":   actual.String(),
		"bucket": actual.Bucket(),
	})
}

func dayParam(c *fiber.Ctx) (uint64, error) {
	day, err := strconv.ParseUint(c.Params("day"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid day")
	}
	return day, nil
}

func limitQuery(c *fiber.Ctx) uint32 {
	limit, err := strconv.ParseUint(c.Query("limit"), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(limit)
}
