package game

import (
	"fmt"
	"strconv"

	"plinko/internal/events"
	"plinko/internal/leaderboard"
	"plinko/internal/ledger"
	"plinko/internal/money"
	"plinko/internal/plinko"
	"plinko/internal/prizepool"
)

// paid returns the amount of denom attached to the call. Any other
// denomination is rejected.
func paid(funds []Coin, denom string) (money.Amount, error) {
	total := money.Zero()
	for _, coin := range funds {
		if coin.Denom != denom {
			return money.Zero(), fmt.Errorf("%w: unexpected denom %q", ErrInvalidFunds, coin.Denom)
		}
		sum, err := total.Add(coin.Amount)
		if err != nil {
			return money.Zero(), err
		}
		total = sum
	}
	return total, nil
}

// rollover closes the previous day when now has crossed its boundary:
// it settles the prize pool, then empties the daily stats and boards.
func rollover(c *callCtx, cfg Config) (leaderboard.Daily, error) {
	daily, err := c.st.daily()
	if err != nil {
		return leaderboard.Daily{}, err
	}
	if !leaderboard.ShouldReset(daily.LastReset, c.now) {
		return daily, nil
	}

	stats, err := c.st.dailyStats()
	if err != nil {
		return leaderboard.Daily{}, err
	}
	settlement, err := prizepool.Settle(
		stats,
		daily.Board(cfg.PrizeLeaderboardType),
		cfg.PrizePoolPercentage,
		daily.LastReset,
		c.now,
		cfg.ClaimPeriodSeconds,
	)
	if err != nil {
		return leaderboard.Daily{}, err
	}

	ev := c.event("daily_rollover").
		With("day", strconv.FormatUint(settlement.Day, 10)).
		With("house_profit", settlement.Profit.String()).
		With("prize_amount", settlement.PrizeAmount.String())
	if settlement.Pool != nil {
		if err := c.st.save(prizePoolKey(settlement.Day), settlement.Pool); err != nil {
			return leaderboard.Daily{}, err
		}
		ev = ev.With("winners", strconv.Itoa(len(settlement.Pool.Winners))).
			With("claim_deadline", strconv.FormatUint(settlement.Pool.ClaimDeadline, 10))
	}
	c.out.Emit(ev)

	daily.Reset(c.now)
	if err := c.st.save(keyDailyLeaderboard, daily); err != nil {
		return leaderboard.Daily{}, err
	}
	if err := c.st.save(keyDailyStats, ledger.DailyStats{}); err != nil {
		return leaderboard.Daily{}, err
	}
	return daily, nil
}

func play(c *callCtx, cfg Config, req Play) (PlayResponse, error) {
	player := c.call.Caller
	if player == "" {
		return PlayResponse{}, ErrInvalidPlayer
	}
	if !req.RiskLevel.Valid() {
		return PlayResponse{}, fmt.Errorf("%w: %q", plinko.ErrInvalidRisk, req.RiskLevel)
	}
	rows, err := req.Difficulty.Rows()
	if err != nil {
		return PlayResponse{}, err
	}
	bet, err := paid(c.call.Funds, cfg.TokenDenom)
	if err != nil {
		return PlayResponse{}, err
	}
	if bet.IsZero() {
		return PlayResponse{}, ledger.ErrInvalidBet
	}

	daily, err := rollover(c, cfg)
	if err != nil {
		return PlayResponse{}, err
	}

	nonce, err := c.st.gameCount(player)
	if err != nil {
		return PlayResponse{}, err
	}
	path := plinko.GeneratePath(plinko.SeedInput{
		Height: c.call.Block.Height,
		Time:   c.call.Block.Time,
		Player: player,
		Nonce:  nonce,
	}, rows)
	bucket := path.Bucket()

	ratio, err := plinko.Multiplier(req.Difficulty, req.RiskLevel, bucket)
	if err != nil {
		return PlayResponse{}, err
	}
	win, err := ratio.Payout(bet)
	if err != nil {
		return PlayResponse{}, err
	}
	pnl := win.SaturatingSub(bet)
	label := ratio.Label()

	stats, err := c.st.stats()
	if err != nil {
		return PlayResponse{}, err
	}
	if err := stats.RecordPlay(bet, win); err != nil {
		return PlayResponse{}, err
	}
	dailyStats, err := c.st.dailyStats()
	if err != nil {
		return PlayResponse{}, err
	}
	if err := dailyStats.Record(bet, win); err != nil {
		return PlayResponse{}, err
	}

	user, err := c.st.userStats(player)
	if err != nil {
		return PlayResponse{}, err
	}
	if err := user.Record(bet, win, pnl, label); err != nil {
		return PlayResponse{}, err
	}
	today, err := c.st.dailyPlayerStats(player, daily.Day())
	if err != nil {
		return PlayResponse{}, err
	}
	if err := today.Record(bet, pnl, label); err != nil {
		return PlayResponse{}, err
	}

	globalBest, err := c.st.globalBoard(leaderboard.BestWins)
	if err != nil {
		return PlayResponse{}, err
	}
	globalWagered, err := c.st.globalBoard(leaderboard.TotalWagered)
	if err != nil {
		return PlayResponse{}, err
	}
	// A player who has only lost ranks with a best pnl of zero.
	globalBest = globalBest.Upsert(player, user.BestWinPnl, labelPtr(user.BestWinMultiplier))
	globalWagered = globalWagered.Upsert(player, user.TotalWagered, nil)
	daily.BestWins = daily.BestWins.Upsert(player, today.BestWinPnl, labelPtr(today.BestWinMultiplier))
	daily.Wagered = daily.Wagered.Upsert(player, today.TotalWagered, nil)

	record := GameRecord{
		Player:     player,
		Difficulty: req.Difficulty,
		RiskLevel:  req.RiskLevel,
		BetAmount:  bet,
		Multiplier: label,
		WinAmount:  win,
		Pnl:        pnl,
		Timestamp:  c.now,
		Path:       path.Bools(),
	}

	writes := []struct {
		key string
		v   any
	}{
		{keyStats, stats},
		{keyDailyStats, dailyStats},
		{userStatsKey(player), user},
		{dailyPlayerStatsKey(player), today},
		{keyGlobalBestWins, globalBest},
		{keyGlobalTotalWagered, globalWagered},
		{keyDailyLeaderboard, daily},
		{gameHistoryKey(player, nonce), record},
		{gameCountKey(player), nonce + 1},
	}
	for _, w := range writes {
		if err := c.st.save(w.key, w.v); err != nil {
			return PlayResponse{}, err
		}
	}

	if !win.IsZero() {
		c.out.Pay(events.Transfer{Recipient: player, Denom: cfg.TokenDenom, Amount: win})
	}
	c.out.Emit(c.event("play").
		With("player", player).
		With("bet_amount", bet.String()).
		With("win_amount", win.String()).
		With("pnl", pnl.String()).
		With("multiplier", label).
		With("bucket", strconv.Itoa(bucket)).
		With("path", path.String()).
		With("nonce", strconv.FormatUint(nonce, 10)))

	return PlayResponse{
		Player:     player,
		Difficulty: req.Difficulty,
		RiskLevel:  req.RiskLevel,
		BetAmount:  bet,
		WinAmount:  win,
		Pnl:        pnl,
		Multiplier: label,
		Bucket:     bucket,
		Path:       path.String(),
		Nonce:      nonce,
	}, nil
}

func labelPtr(s string) *string {
	return &s
}
