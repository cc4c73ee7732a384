package game

import (
	"errors"
	"fmt"
	"strconv"

	"plinko/internal/events"
	"plinko/internal/leaderboard"
	"plinko/internal/ledger"
	"plinko/internal/prizepool"
)

func instantiate(c *callCtx, req Instantiate) (Config, error) {
	if _, err := c.st.config(); err == nil {
		return Config{}, ErrAlreadyInitialized
	} else if !errors.Is(err, ErrNotInitialized) {
		return Config{}, err
	}
	if c.call.Caller == "" {
		return Config{}, ErrInvalidPlayer
	}
	if req.TokenDenom == "" {
		return Config{}, fmt.Errorf("%w: token denom is required", ErrInvalidConfig)
	}
	if req.PrizePoolPercentage > 100 {
		return Config{}, ErrInvalidPercentage
	}

	cfg := Config{
		TokenDenom:           req.TokenDenom,
		Admin:                c.call.Caller,
		Funder:               req.Funder,
		PrizePoolPercentage:  req.PrizePoolPercentage,
		ClaimPeriodSeconds:   req.ClaimPeriodSeconds,
		PrizeLeaderboardType: req.PrizeLeaderboardType,
	}
	if cfg.Funder == "" {
		cfg.Funder = c.call.Caller
	}
	if cfg.PrizeLeaderboardType == "" {
		cfg.PrizeLeaderboardType = leaderboard.BestWins
	}
	if _, err := leaderboard.ParseType(string(cfg.PrizeLeaderboardType)); err != nil {
		return Config{}, err
	}

	writes := []struct {
		key string
		v   any
	}{
		{keyConfig, cfg},
		{keyStats, ledger.Stats{}},
		{keyDailyStats, ledger.DailyStats{}},
		{keyDailyLeaderboard, leaderboard.NewDaily(c.now)},
		{keyGlobalBestWins, leaderboard.Board{}},
		{keyGlobalTotalWagered, leaderboard.Board{}},
	}
	for _, w := range writes {
		if err := c.st.save(w.key, w.v); err != nil {
			return Config{}, err
		}
	}

	c.out.Emit(c.event("instantiate").
		With("admin", cfg.Admin).
		With("funder", cfg.Funder).
		With("token_denom", cfg.TokenDenom))
	return cfg, nil
}

func updatePrizeConfig(c *callCtx, cfg Config, req UpdatePrizeConfig) (Config, error) {
	if c.call.Caller != cfg.Admin {
		return Config{}, ErrUnauthorized
	}

	ev := c.event("update_prize_config")
	if req.PrizePoolPercentage != nil {
		if *req.PrizePoolPercentage > 100 {
			return Config{}, ErrInvalidPercentage
		}
		cfg.PrizePoolPercentage = *req.PrizePoolPercentage
		ev = ev.With("prize_pool_percentage", strconv.Itoa(int(cfg.PrizePoolPercentage)))
	}
	if req.ClaimPeriodSeconds != nil {
		cfg.ClaimPeriodSeconds = *req.ClaimPeriodSeconds
		ev = ev.With("claim_period_seconds", strconv.FormatUint(cfg.ClaimPeriodSeconds, 10))
	}
	if req.PrizeLeaderboardType != nil {
		t, err := leaderboard.ParseType(string(*req.PrizeLeaderboardType))
		if err != nil {
			return Config{}, err
		}
		cfg.PrizeLeaderboardType = t
		ev = ev.With("prize_leaderboard_type", string(t))
	}

	if err := c.st.save(keyConfig, cfg); err != nil {
		return Config{}, err
	}
	c.out.Emit(ev)
	return cfg, nil
}

// claimDailyPrize pays the caller's share of day's pool out of the house.
func claimDailyPrize(c *callCtx, cfg Config, req ClaimDailyPrize) (ClaimResponse, error) {
	player := c.call.Caller
	if player == "" {
		return ClaimResponse{}, ErrInvalidPlayer
	}
	claimed, err := c.st.claimed(player, req.Day)
	if err != nil {
		return ClaimResponse{}, err
	}
	pool, err := c.st.prizePool(req.Day)
	if err != nil {
		return ClaimResponse{}, err
	}
	amount, err := prizepool.Claim(pool, player, claimed, c.now)
	if err != nil {
		return ClaimResponse{}, err
	}

	stats, err := c.st.stats()
	if err != nil {
		return ClaimResponse{}, err
	}
	house, err := stats.HouseBalance.Sub(amount)
	if err != nil {
		return ClaimResponse{}, ledger.ErrInsufficientHouseBalance
	}
	stats.HouseBalance = house

	if err := c.st.save(keyStats, stats); err != nil {
		return ClaimResponse{}, err
	}
	if err := c.st.save(claimedKey(player, req.Day), true); err != nil {
		return ClaimResponse{}, err
	}

	c.out.Pay(events.Transfer{Recipient: player, Denom: cfg.TokenDenom, Amount: amount})
	c.out.Emit(c.event("claim_daily_prize").
		With("player", player).
		With("amount", amount.String()).
		With("day_claimed", strconv.FormatUint(req.Day, 10)))
	return ClaimResponse{Player: player, Day: req.Day, Amount: amount}, nil
}
