package game

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plinko/internal/events"
	"plinko/internal/leaderboard"
	"plinko/internal/ledger"
	"plinko/internal/money"
	"plinko/internal/plinko"
	"plinko/internal/prizepool"
	"plinko/internal/store"
)

const (
	denom  = "uplinko"
	admin  = "admin"
	funder = "funder"
	alice  = "alice"
	bob    = "bob"
)

// day0 is midday of an arbitrary UTC day.
var day0 = time.Unix(20000*leaderboard.SecondsPerDay+43200, 0).UTC()

type recorder struct {
	mu        sync.Mutex
	events    []events.Event
	transfers []events.Transfer
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Deliver(_ context.Context, ts []events.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, ts...)
	return nil
}

type harness struct {
	t      *testing.T
	engine *Engine
	store  *store.Memory
	rec    *recorder
	height uint64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, store: store.NewMemory(), rec: &recorder{}, height: 100}
	h.engine = NewEngine(h.store, WithPublisher(h.rec), WithTransferSink(h.rec))
	h.engine.Start()
	t.Cleanup(h.engine.Stop)
	return h
}

func (h *harness) exec(caller string, block Block, funds []Coin, req Request) (*Result, error) {
	return h.engine.Execute(context.Background(), Call{Block: block, Caller: caller, Funds: funds, Request: req})
}

// next returns a fresh block at t.
func (h *harness) next(t time.Time) Block {
	h.height++
	return Block{Height: h.height, Time: t}
}

func (h *harness) instantiate(req Instantiate) Config {
	h.t.Helper()
	if req.TokenDenom == "" {
		req.TokenDenom = denom
	}
	if req.Funder == "" {
		req.Funder = funder
	}
	res, err := h.exec(admin, h.next(day0), nil, req)
	require.NoError(h.t, err)
	return res.Data.(Config)
}

func (h *harness) fund(amount uint64, at time.Time) {
	h.t.Helper()
	_, err := h.exec(funder, h.next(at), coins(amount), FundHouse{})
	require.NoError(h.t, err)
}

func (h *harness) stats() ledger.Stats {
	h.t.Helper()
	res, err := h.exec(alice, h.next(day0), nil, QueryStats{})
	require.NoError(h.t, err)
	return res.Data.(ledger.Stats)
}

func coins(amount uint64) []Coin {
	return []Coin{{Denom: denom, Amount: money.New(amount)}}
}

// findBlock searches heights from h.height upward for a block at t whose
// first bounce path for player lands in a bucket accepted by want.
func (h *harness) findBlock(player string, nonce uint64, d plinko.Difficulty, at time.Time, want func(bucket int) bool) Block {
	h.t.Helper()
	rows, err := d.Rows()
	require.NoError(h.t, err)
	for i := 0; i < 10000; i++ {
		h.height++
		in := plinko.SeedInput{Height: h.height, Time: at, Player: player, Nonce: nonce}
		if want(plinko.GeneratePath(in, rows).Bucket()) {
			return Block{Height: h.height, Time: at}
		}
	}
	h.t.Fatalf("no block found for %s", player)
	return Block{}
}

func TestEngine_NotInitialized(t *testing.T) {
	h := newHarness(t)

	_, err := h.exec(alice, h.next(day0), coins(100), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskLow})
	require.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, KindLifecycle, KindOf(err))

	_, err = h.exec(alice, h.next(day0), nil, QueryConfig{})
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestEngine_Instantiate(t *testing.T) {
	t.Run("caller becomes admin with defaults", func(t *testing.T) {
		h := newHarness(t)
		res, err := h.exec(admin, h.next(day0), nil, Instantiate{TokenDenom: denom, PrizePoolPercentage: 10})
		require.NoError(t, err)

		cfg := res.Data.(Config)
		assert.Equal(t, admin, cfg.Admin)
		assert.Equal(t, admin, cfg.Funder)
		assert.Equal(t, leaderboard.BestWins, cfg.PrizeLeaderboardType)

		stats := h.stats()
		assert.Equal(t, uint64(0), stats.TotalGames)
		assert.True(t, stats.HouseBalance.IsZero())
	})

	t.Run("second call fails", func(t *testing.T) {
		h := newHarness(t)
		h.instantiate(Instantiate{})
		_, err := h.exec(admin, h.next(day0), nil, Instantiate{TokenDenom: denom})
		require.ErrorIs(t, err, ErrAlreadyInitialized)
	})

	t.Run("percentage above 100 is rejected", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.exec(admin, h.next(day0), nil, Instantiate{TokenDenom: denom, PrizePoolPercentage: 101})
		require.ErrorIs(t, err, ErrInvalidPercentage)
		assert.Equal(t, KindValidation, KindOf(err))
		assert.Equal(t, 0, h.store.Len())
	})

	t.Run("unknown leaderboard type is rejected", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.exec(admin, h.next(day0), nil, Instantiate{TokenDenom: denom, PrizeLeaderboardType: "fastest"})
		require.ErrorIs(t, err, leaderboard.ErrInvalidType)
	})
}

func TestEngine_BasicPlay(t *testing.T) {
	h := newHarness(t)
	h.instantiate(Instantiate{})
	h.fund(1000, day0)

	block := h.next(day0)
	res, err := h.exec(alice, block, coins(100), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskLow})
	require.NoError(t, err)

	path := plinko.GeneratePath(plinko.SeedInput{Height: block.Height, Time: block.Time, Player: alice, Nonce: 0}, 8)
	ratio, err := plinko.Multiplier(plinko.DifficultyEasy, plinko.RiskLow, path.Bucket())
	require.NoError(t, err)
	win, err := ratio.Payout(money.New(100))
	require.NoError(t, err)

	out := res.Data.(PlayResponse)
	assert.Equal(t, path.String(), out.Path)
	assert.Equal(t, path.Bucket(), out.Bucket)
	assert.Equal(t, win.String(), out.WinAmount.String())
	assert.Equal(t, ratio.Label(), out.Multiplier)
	assert.Equal(t, uint64(0), out.Nonce)

	stats := h.stats()
	assert.Equal(t, uint64(1), stats.TotalGames)
	assert.Equal(t, "100", stats.TotalWagered.String())
	expected, err := money.New(1100).Sub(win)
	require.NoError(t, err)
	assert.Equal(t, expected.String(), stats.HouseBalance.String())

	require.Len(t, res.Transfers, 1)
	assert.Equal(t, alice, res.Transfers[0].Recipient)
	assert.Equal(t, denom, res.Transfers[0].Denom)
	assert.Equal(t, win.String(), res.Transfers[0].Amount.String())
	h.rec.mu.Lock()
	assert.Len(t, h.rec.transfers, 1)
	h.rec.mu.Unlock()

	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, "play", ev.Action)
	for key, want := range map[string]string{
		"action":     "play",
		"player":     alice,
		"bet_amount": "100",
		"win_amount": win.String(),
		"path":       path.String(),
		"nonce":      "0",
	} {
		got, ok := ev.Attr(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
}

func TestEngine_ZeroWinIsNotPaid(t *testing.T) {
	h := newHarness(t)
	h.instantiate(Instantiate{})
	h.fund(1000, day0)

	// Bucket 4 of easy/high pays 0.2x, which floors a bet of 1 to nothing.
	block := h.findBlock(alice, 0, plinko.DifficultyEasy, day0, func(b int) bool { return b == 4 })
	res, err := h.exec(alice, block, coins(1), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskHigh})
	require.NoError(t, err)
	assert.True(t, res.Data.(PlayResponse).WinAmount.IsZero())
	assert.Empty(t, res.Transfers)
	assert.Equal(t, "1001", h.stats().HouseBalance.String())
}

func TestEngine_PlayNonceAdvances(t *testing.T) {
	h := newHarness(t)
	h.instantiate(Instantiate{})
	h.fund(100000, day0)

	for i := uint64(0); i < 3; i++ {
		res, err := h.exec(alice, h.next(day0), coins(10), Play{Difficulty: plinko.DifficultyMedium, RiskLevel: plinko.RiskMedium})
		require.NoError(t, err)
		assert.Equal(t, i, res.Data.(PlayResponse).Nonce)
	}

	res, err := h.exec(bob, h.next(day0), nil, QueryUserStats{Player: alice})
	require.NoError(t, err)
	user := res.Data.(UserStatsResponse)
	assert.Equal(t, uint64(3), user.TotalGames)
	assert.Equal(t, "30", user.TotalWagered.String())
}

func TestEngine_PlayValidation(t *testing.T) {
	h := newHarness(t)
	h.instantiate(Instantiate{})
	h.fund(1000, day0)
	valid := Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskLow}

	tests := []struct {
		name  string
		funds []Coin
		req   Play
		want  error
	}{
		{"no funds", nil, valid, ledger.ErrInvalidBet},
		{"zero bet", coins(0), valid, ledger.ErrInvalidBet},
		{"wrong denom", []Coin{{Denom: "uatom", Amount: money.New(5)}}, valid, ErrInvalidFunds},
		{"bad difficulty", coins(10), Play{Difficulty: "extreme", RiskLevel: plinko.RiskLow}, plinko.ErrInvalidDifficulty},
		{"bad risk", coins(10), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: "yolo"}, plinko.ErrInvalidRisk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.exec(alice, h.next(day0), tt.funds, tt.req)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}

	assert.Equal(t, uint64(0), h.stats().TotalGames)
}

func TestEngine_PlayRejectedWhenHouseCannotPay(t *testing.T) {
	h := newHarness(t)
	h.instantiate(Instantiate{})

	// easy/high edge buckets pay 29x, which an empty house plus the bet cannot cover.
	block := h.findBlock(alice, 0, plinko.DifficultyEasy, day0, func(b int) bool { return b == 0 || b == 8 })
	before := h.store.Len()

	_, err := h.exec(alice, block, coins(100), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskHigh})
	require.ErrorIs(t, err, ledger.ErrInsufficientHouseBalance)
	assert.Equal(t, KindSolvency, KindOf(err))
	assert.Equal(t, before, h.store.Len())

	stats := h.stats()
	assert.Equal(t, uint64(0), stats.TotalGames)
	assert.True(t, stats.HouseBalance.IsZero())
}

func TestEngine_Unauthorized(t *testing.T) {
	h := newHarness(t)
	h.instantiate(Instantiate{})
	h.fund(1000, day0)
	pct := uint8(5)

	tests := []struct {
		name  string
		funds []Coin
		req   Request
	}{
		{"withdraw", nil, WithdrawHouse{Amount: money.New(1)}},
		{"fund", coins(10), FundHouse{}},
		{"sync", nil, SyncBalance{ReportedBalance: money.New(5000)}},
		{"update prize config", nil, UpdatePrizeConfig{PrizePoolPercentage: &pct}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.exec(alice, h.next(day0), tt.funds, tt.req)
			require.ErrorIs(t, err, ErrUnauthorized)
			assert.Equal(t, KindAuthorization, KindOf(err))
		})
	}
	assert.Equal(t, "1000", h.stats().HouseBalance.String())
}

func TestEngine_HouseOperations(t *testing.T) {
	h := newHarness(t)
	h.instantiate(Instantiate{})

	t.Run("fund without funds", func(t *testing.T) {
		_, err := h.exec(funder, h.next(day0), nil, FundHouse{})
		require.ErrorIs(t, err, ledger.ErrNoFunds)
	})

	h.fund(1000, day0)

	t.Run("withdraw pays the admin", func(t *testing.T) {
		res, err := h.exec(admin, h.next(day0), nil, WithdrawHouse{Amount: money.New(400)})
		require.NoError(t, err)
		require.Len(t, res.Transfers, 1)
		assert.Equal(t, admin, res.Transfers[0].Recipient)
		assert.Equal(t, denom, res.Transfers[0].Denom)
		assert.Equal(t, "400", res.Transfers[0].Amount.String())
		assert.Equal(t, "600", h.stats().HouseBalance.String())

		h.rec.mu.Lock()
		defer h.rec.mu.Unlock()
		require.Len(t, h.rec.transfers, 1)
	})

	t.Run("withdraw more than the house holds", func(t *testing.T) {
		_, err := h.exec(admin, h.next(day0), nil, WithdrawHouse{Amount: money.New(601)})
		require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
		assert.Equal(t, "600", h.stats().HouseBalance.String())
	})

	t.Run("sync raises the balance", func(t *testing.T) {
		res, err := h.exec(admin, h.next(day0), nil, SyncBalance{ReportedBalance: money.New(750)})
		require.NoError(t, err)
		out := res.Data.(SyncResponse)
		assert.Equal(t, "150", out.FundsRecovered.String())
		assert.Equal(t, "750", out.NewHouseBalance.String())

		got, _ := res.Events[0].Attr("new_house_balance")
		assert.Equal(t, "750", got)
	})

	t.Run("sync never lowers the balance", func(t *testing.T) {
		res, err := h.exec(admin, h.next(day0), nil, SyncBalance{ReportedBalance: money.New(10)})
		require.NoError(t, err)
		got, _ := res.Events[0].Attr("funds_recovered")
		assert.Equal(t, "0", got)
		assert.Equal(t, "750", h.stats().HouseBalance.String())
	})
}

func TestEngine_UpdatePrizeConfig(t *testing.T) {
	h := newHarness(t)
	h.instantiate(Instantiate{PrizePoolPercentage: 10, ClaimPeriodSeconds: 60})

	pct := uint8(25)
	wagered := leaderboard.TotalWagered
	res, err := h.exec(admin, h.next(day0), nil, UpdatePrizeConfig{PrizePoolPercentage: &pct, PrizeLeaderboardType: &wagered})
	require.NoError(t, err)

	cfg := res.Data.(Config)
	assert.Equal(t, uint8(25), cfg.PrizePoolPercentage)
	assert.Equal(t, uint64(60), cfg.ClaimPeriodSeconds)
	assert.Equal(t, leaderboard.TotalWagered, cfg.PrizeLeaderboardType)

	_, ok := res.Events[0].Attr("claim_period_seconds")
	assert.False(t, ok)

	tooMuch := uint8(101)
	_, err = h.exec(admin, h.next(day0), nil, UpdatePrizeConfig{PrizePoolPercentage: &tooMuch})
	require.ErrorIs(t, err, ErrInvalidPercentage)
}

func TestEngine_HistoryNewestFirst(t *testing.T) {
	h := newHarness(t)
	h.instantiate(Instantiate{})
	h.fund(100000, day0)

	for i := 0; i < 3; i++ {
		at := day0.Add(time.Duration(i) * time.Minute)
		_, err := h.exec(alice, h.next(at), coins(10), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskLow})
		require.NoError(t, err)
	}

	res, err := h.exec(bob, h.next(day0), nil, QueryHistory{Player: alice, Limit: 2})
	require.NoError(t, err)
	games := res.Data.(HistoryResponse).Games
	require.Len(t, games, 2)
	assert.Equal(t, leaderboard.Seconds(day0.Add(2*time.Minute)), games[0].Timestamp)
	assert.Equal(t, leaderboard.Seconds(day0.Add(time.Minute)), games[1].Timestamp)
	assert.Len(t, games[0].Path, 8)

	res, err = h.exec(bob, h.next(day0), nil, QueryHistory{Player: bob})
	require.NoError(t, err)
	assert.Empty(t, res.Data.(HistoryResponse).Games)
}

func TestEngine_QueriesDoNotWrite(t *testing.T) {
	h := newHarness(t)
	h.instantiate(Instantiate{})
	before := h.store.Len()

	tomorrow := day0.Add(24 * time.Hour)
	for _, req := range []Request{
		QueryConfig{},
		QueryStats{},
		QueryDailyStats{},
		QueryHistory{Player: alice},
		QueryUserStats{Player: alice},
		QueryGlobalLeaderboard{Type: leaderboard.BestWins},
		QueryDailyLeaderboard{Type: leaderboard.TotalWagered},
		QueryWinnablePrize{Player: alice, Day: 1},
	} {
		res, err := h.exec(alice, h.next(tomorrow), nil, req)
		require.NoError(t, err, req.Name())
		assert.Empty(t, res.Events, req.Name())
	}
	assert.Equal(t, before, h.store.Len())
}

func TestEngine_UserStatsDefaults(t *testing.T) {
	h := newHarness(t)
	h.instantiate(Instantiate{})

	res, err := h.exec(alice, h.next(day0), nil, QueryUserStats{Player: "nobody"})
	require.NoError(t, err)
	user := res.Data.(UserStatsResponse)
	assert.Equal(t, "nobody", user.Player)
	assert.Equal(t, plinko.DefaultLabel, user.BestWinMultiplier)
	assert.Equal(t, uint64(0), user.TotalGames)
}

func TestEngine_LeaderboardsTrackWinners(t *testing.T) {
	h := newHarness(t)
	h.instantiate(Instantiate{})
	h.fund(100000, day0)

	// easy/low buckets 0-2 and 6-8 pay more than the stake.
	block := h.findBlock(alice, 0, plinko.DifficultyEasy, day0, func(b int) bool { return b <= 2 || b >= 6 })
	res, err := h.exec(alice, block, coins(100), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskLow})
	require.NoError(t, err)
	played := res.Data.(PlayResponse)
	require.False(t, played.Pnl.IsZero())

	// Buckets 3-5 pay at most the stake, so bob's best pnl stays zero.
	block = h.findBlock(bob, 0, plinko.DifficultyEasy, day0, func(b int) bool { return b >= 3 && b <= 5 })
	_, err = h.exec(bob, block, coins(50), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskLow})
	require.NoError(t, err)

	for _, req := range []Request{
		QueryGlobalLeaderboard{Type: leaderboard.BestWins},
		QueryDailyLeaderboard{Type: leaderboard.BestWins},
	} {
		res, err = h.exec(bob, h.next(day0), nil, req)
		require.NoError(t, err)
		board := res.Data.(LeaderboardResponse).Entries
		require.Len(t, board, 2, req.Name())
		assert.Equal(t, alice, board[0].Player)
		assert.Equal(t, played.Pnl.String(), board[0].Value.String())
		require.NotNil(t, board[0].Multiplier)
		assert.Equal(t, played.Multiplier, *board[0].Multiplier)

		assert.Equal(t, bob, board[1].Player)
		assert.True(t, board[1].Value.IsZero())
		require.NotNil(t, board[1].Multiplier)
		assert.Equal(t, plinko.DefaultLabel, *board[1].Multiplier)
	}

	res, err = h.exec(bob, h.next(day0), nil, QueryDailyLeaderboard{Type: leaderboard.TotalWagered})
	require.NoError(t, err)
	board := res.Data.(LeaderboardResponse).Entries
	require.Len(t, board, 2)
	assert.Equal(t, alice, board[0].Player)
	assert.Equal(t, "100", board[0].Value.String())
	assert.Nil(t, board[0].Multiplier)

	t.Run("daily boards read empty after the boundary", func(t *testing.T) {
		tomorrow := day0.Add(24 * time.Hour)
		res, err := h.exec(bob, h.next(tomorrow), nil, QueryDailyLeaderboard{Type: leaderboard.BestWins})
		require.NoError(t, err)
		assert.Empty(t, res.Data.(LeaderboardResponse).Entries)

		res, err = h.exec(bob, h.next(tomorrow), nil, QueryDailyStats{})
		require.NoError(t, err)
		assert.True(t, res.Data.(DailyStatsResponse).TotalWagered.IsZero())
		assert.Equal(t, leaderboard.DayIndex(leaderboard.Seconds(tomorrow)), res.Data.(DailyStatsResponse).Day)

		res, err = h.exec(bob, h.next(tomorrow), nil, QueryGlobalLeaderboard{Type: leaderboard.BestWins})
		require.NoError(t, err)
		assert.Len(t, res.Data.(LeaderboardResponse).Entries, 2)
	})
}

func TestEngine_DailyPrizeLifecycle(t *testing.T) {
	h := newHarness(t)
	h.instantiate(Instantiate{
		PrizePoolPercentage:  10,
		ClaimPeriodSeconds:   3600,
		PrizeLeaderboardType: leaderboard.TotalWagered,
	})
	h.fund(10000, day0)

	// Bucket 4 of easy/low pays 0.5x: alice loses 500 of 1000.
	block := h.findBlock(alice, 0, plinko.DifficultyEasy, day0, func(b int) bool { return b == 4 })
	_, err := h.exec(alice, block, coins(1000), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskLow})
	require.NoError(t, err)

	day := leaderboard.DayIndex(leaderboard.Seconds(day0))
	tomorrow := day0.Add(24 * time.Hour)

	_, err = h.exec(alice, h.next(day0), nil, ClaimDailyPrize{Day: day})
	require.ErrorIs(t, err, prizepool.ErrNoPrize, "no pool before the rollover")

	res, err := h.exec(bob, h.next(tomorrow), coins(10), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskLow})
	require.NoError(t, err)
	require.Len(t, res.Events, 2)
	assert.Equal(t, "daily_rollover", res.Events[0].Action)
	prize, _ := res.Events[0].Attr("prize_amount")
	assert.Equal(t, "50", prize)

	res, err = h.exec(alice, h.next(tomorrow), nil, QueryWinnablePrize{Player: alice, Day: day})
	require.NoError(t, err)
	preview := res.Data.(prizepool.Winnable)
	assert.True(t, preview.IsWinner)
	assert.Equal(t, uint8(1), preview.Rank)
	assert.Equal(t, "25", preview.PrizeAmount.String())
	assert.False(t, preview.HasClaimed)

	houseBefore := h.stats().HouseBalance

	res, err = h.exec(alice, h.next(tomorrow), nil, ClaimDailyPrize{Day: day})
	require.NoError(t, err)
	claim := res.Data.(ClaimResponse)
	assert.Equal(t, "25", claim.Amount.String())
	require.Len(t, res.Transfers, 1)
	assert.Equal(t, alice, res.Transfers[0].Recipient)
	dayClaimed, _ := res.Events[0].Attr("day_claimed")
	assert.Equal(t, "20000", dayClaimed)

	want, err := houseBefore.Sub(money.New(25))
	require.NoError(t, err)
	assert.Equal(t, want.String(), h.stats().HouseBalance.String())

	_, err = h.exec(alice, h.next(tomorrow), nil, ClaimDailyPrize{Day: day})
	require.ErrorIs(t, err, prizepool.ErrAlreadyClaimed)

	_, err = h.exec(bob, h.next(tomorrow), nil, ClaimDailyPrize{Day: day})
	require.ErrorIs(t, err, prizepool.ErrNotAWinner)

	_, err = h.exec(alice, h.next(tomorrow), nil, ClaimDailyPrize{Day: day + 1})
	require.ErrorIs(t, err, prizepool.ErrNoPrize)

	res, err = h.exec(alice, h.next(tomorrow), nil, QueryWinnablePrize{Player: alice, Day: day})
	require.NoError(t, err)
	assert.True(t, res.Data.(prizepool.Winnable).HasClaimed)
}

func TestEngine_LosingDayStillPaysBestWins(t *testing.T) {
	h := newHarness(t)
	h.instantiate(Instantiate{PrizePoolPercentage: 50, ClaimPeriodSeconds: 3600})
	h.fund(10000, day0)

	// alice is the only player and gets back half her stake.
	block := h.findBlock(alice, 0, plinko.DifficultyEasy, day0, func(b int) bool { return b == 4 })
	_, err := h.exec(alice, block, coins(1000), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskLow})
	require.NoError(t, err)

	tomorrow := day0.Add(24 * time.Hour)
	res, err := h.exec(bob, h.next(tomorrow), coins(10), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskLow})
	require.NoError(t, err)
	winners, ok := res.Events[0].Attr("winners")
	require.True(t, ok)
	assert.Equal(t, "1", winners)

	day := leaderboard.DayIndex(leaderboard.Seconds(day0))
	res, err = h.exec(alice, h.next(tomorrow), nil, QueryWinnablePrize{Player: alice, Day: day})
	require.NoError(t, err)
	preview := res.Data.(prizepool.Winnable)
	assert.True(t, preview.IsWinner)
	assert.Equal(t, uint8(1), preview.Rank)
	assert.Equal(t, "125", preview.PrizeAmount.String())

	res, err = h.exec(alice, h.next(tomorrow), nil, ClaimDailyPrize{Day: day})
	require.NoError(t, err)
	assert.Equal(t, "125", res.Data.(ClaimResponse).Amount.String())
}

func TestEngine_ClaimNeedsHouseFunds(t *testing.T) {
	h := newHarness(t)
	h.instantiate(Instantiate{
		PrizePoolPercentage:  10,
		ClaimPeriodSeconds:   3600,
		PrizeLeaderboardType: leaderboard.TotalWagered,
	})
	h.fund(10000, day0)

	block := h.findBlock(alice, 0, plinko.DifficultyEasy, day0, func(b int) bool { return b == 4 })
	_, err := h.exec(alice, block, coins(1000), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskLow})
	require.NoError(t, err)

	tomorrow := day0.Add(24 * time.Hour)
	_, err = h.exec(bob, h.next(tomorrow), coins(10), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskLow})
	require.NoError(t, err)

	_, err = h.exec(admin, h.next(tomorrow), nil, WithdrawHouse{Amount: h.stats().HouseBalance})
	require.NoError(t, err)
	require.True(t, h.stats().HouseBalance.IsZero())

	day := leaderboard.DayIndex(leaderboard.Seconds(day0))
	res, err := h.exec(alice, h.next(tomorrow), nil, ClaimDailyPrize{Day: day})
	require.ErrorIs(t, err, ledger.ErrInsufficientHouseBalance)
	assert.Equal(t, KindSolvency, KindOf(err))
	assert.Nil(t, res)

	res, err = h.exec(alice, h.next(tomorrow), nil, QueryWinnablePrize{Player: alice, Day: day})
	require.NoError(t, err)
	assert.False(t, res.Data.(prizepool.Winnable).HasClaimed)

	h.fund(100, tomorrow)
	res, err = h.exec(alice, h.next(tomorrow), nil, ClaimDailyPrize{Day: day})
	require.NoError(t, err)
	assert.Equal(t, "25", res.Data.(ClaimResponse).Amount.String())
	assert.Equal(t, "75", h.stats().HouseBalance.String())
}

func TestEngine_PrizeClaimExpires(t *testing.T) {
	h := newHarness(t)
	h.instantiate(Instantiate{
		PrizePoolPercentage:  50,
		ClaimPeriodSeconds:   60,
		PrizeLeaderboardType: leaderboard.TotalWagered,
	})
	h.fund(10000, day0)

	block := h.findBlock(alice, 0, plinko.DifficultyEasy, day0, func(b int) bool { return b == 4 })
	_, err := h.exec(alice, block, coins(1000), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskLow})
	require.NoError(t, err)

	tomorrow := day0.Add(24 * time.Hour)
	_, err = h.exec(bob, h.next(tomorrow), coins(10), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskLow})
	require.NoError(t, err)

	day := leaderboard.DayIndex(leaderboard.Seconds(day0))
	_, err = h.exec(alice, h.next(tomorrow.Add(61*time.Second)), nil, ClaimDailyPrize{Day: day})
	require.ErrorIs(t, err, prizepool.ErrClaimExpired)
	assert.Equal(t, KindLifecycle, KindOf(err))
}

func TestEngine_Lifecycle(t *testing.T) {
	t.Run("stopped engine rejects calls", func(t *testing.T) {
		e := NewEngine(store.NewMemory())
		e.Start()
		e.Stop()
		_, err := e.Execute(context.Background(), Call{Request: QueryConfig{}})
		require.ErrorIs(t, err, ErrStopped)
	})

	t.Run("full queue", func(t *testing.T) {
		e := NewEngine(store.NewMemory(), WithQueueSize(1), WithCallTimeout(10*time.Millisecond))
		_, err := e.Execute(context.Background(), Call{Request: QueryConfig{}})
		require.ErrorIs(t, err, ErrTimeout)
		_, err = e.Execute(context.Background(), Call{Request: QueryConfig{}})
		require.ErrorIs(t, err, ErrQueueFull)
	})

	t.Run("nil request", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.engine.Execute(context.Background(), Call{})
		require.ErrorIs(t, err, ErrUnknownRequest)
	})
}

func TestEngine_StampsBlocks(t *testing.T) {
	clock := NewClock(41, func() time.Time { return day0 })
	e := NewEngine(store.NewMemory(), WithClock(clock))
	e.Start()
	t.Cleanup(e.Stop)

	res, err := e.Execute(context.Background(), Call{Caller: admin, Request: Instantiate{TokenDenom: denom}})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), res.Block.Height)
	assert.Equal(t, day0, res.Block.Time)
	assert.Equal(t, uint64(42), res.Events[0].Height)

	explicit := Block{Height: 7, Time: day0}
	res, err = e.Execute(context.Background(), Call{Block: explicit, Caller: alice, Request: QueryStats{}})
	require.NoError(t, err)
	assert.Equal(t, explicit, res.Block)
	assert.Equal(t, uint64(42), clock.Height())
}

func TestEngine_RejectsCallsFromBeforeTheCurrentDay(t *testing.T) {
	h := newHarness(t)
	h.instantiate(Instantiate{})
	h.fund(10000, day0)

	tomorrow := day0.Add(24 * time.Hour)
	_, err := h.exec(bob, h.next(tomorrow), coins(10), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskLow})
	require.NoError(t, err)

	late := day0.Add(11*time.Hour + 59*time.Minute)
	_, err = h.exec(alice, h.next(late), coins(10), Play{Difficulty: plinko.DifficultyEasy, RiskLevel: plinko.RiskLow})
	require.ErrorIs(t, err, ErrStaleBlock)
	assert.Equal(t, KindLifecycle, KindOf(err))

	_, err = h.exec(funder, h.next(late), coins(10), FundHouse{})
	require.ErrorIs(t, err, ErrStaleBlock)

	res, err := h.exec(alice, h.next(tomorrow), nil, QueryDailyStats{})
	require.NoError(t, err)
	daily := res.Data.(DailyStatsResponse)
	assert.Equal(t, "10", daily.TotalWagered.String())
	assert.Equal(t, uint64(1), h.stats().TotalGames)
}

// stallingStore wraps Memory. With stallApply set, commits block until the
// caller's ctx ends. With holdGet set, the next read parks until release is
// closed.
type stallingStore struct {
	*store.Memory
	stallApply atomic.Bool
	holdGet    atomic.Bool
	held       chan struct{}
	release    chan struct{}
}

func (s *stallingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.holdGet.CompareAndSwap(true, false) {
		close(s.held)
		<-s.release
	}
	return s.Memory.Get(ctx, key)
}

func (s *stallingStore) Apply(ctx context.Context, batch []store.Write) error {
	if s.stallApply.Load() {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.Memory.Apply(ctx, batch)
}

func TestEngine_ExpiredCallsRecordNothing(t *testing.T) {
	ctx := context.Background()
	at := Block{Height: 1, Time: day0}

	setup := func(t *testing.T) (*Engine, *stallingStore) {
		t.Helper()
		s := &stallingStore{Memory: store.NewMemory(), held: make(chan struct{}), release: make(chan struct{})}
		e := NewEngine(s, WithCallTimeout(50*time.Millisecond))
		e.Start()
		t.Cleanup(e.Stop)
		_, err := e.Execute(ctx, Call{Block: at, Caller: admin, Request: Instantiate{TokenDenom: denom, Funder: funder}})
		require.NoError(t, err)
		return e, s
	}
	house := func(t *testing.T, e *Engine) string {
		t.Helper()
		res, err := e.Execute(ctx, Call{Block: at, Caller: alice, Request: QueryStats{}})
		require.NoError(t, err)
		return res.Data.(ledger.Stats).HouseBalance.String()
	}

	t.Run("commit outlives the deadline", func(t *testing.T) {
		e, s := setup(t)
		s.stallApply.Store(true)
		_, err := e.Execute(ctx, Call{Block: at, Caller: funder, Funds: coins(500), Request: FundHouse{}})
		require.ErrorIs(t, err, ErrTimeout)

		s.stallApply.Store(false)
		assert.Equal(t, "0", house(t, e))
	})

	t.Run("queued call expires behind a slow one", func(t *testing.T) {
		e, s := setup(t)
		s.holdGet.Store(true)
		slow := make(chan error, 1)
		go func() {
			_, err := e.Execute(ctx, Call{Block: at, Caller: alice, Request: QueryStats{}})
			slow <- err
		}()
		<-s.held

		_, err := e.Execute(ctx, Call{Block: at, Caller: funder, Funds: coins(500), Request: FundHouse{}})
		require.ErrorIs(t, err, ErrTimeout)

		close(s.release)
		require.NoError(t, <-slow)
		assert.Equal(t, "0", house(t, e))
	})

	t.Run("cancelled caller", func(t *testing.T) {
		e, s := setup(t)
		s.stallApply.Store(true)
		cctx, cancel := context.WithCancel(ctx)
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		_, err := e.Execute(cctx, Call{Block: at, Caller: funder, Funds: coins(500), Request: FundHouse{}})
		require.ErrorIs(t, err, context.Canceled)

		s.stallApply.Store(false)
		assert.Equal(t, "0", house(t, e))
	})
}
