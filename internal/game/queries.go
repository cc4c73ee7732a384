package game

import (
	"fmt"

	"plinko/internal/leaderboard"
	"plinko/internal/ledger"
	"plinko/internal/prizepool"
)

// Daily reads go through leaderboard.Daily.View so that a passed day
// boundary reads as a fresh day before any play has persisted the rollover.

func queryDailyStats(c *callCtx) (DailyStatsResponse, error) {
	daily, err := c.st.daily()
	if err != nil {
		return DailyStatsResponse{}, err
	}
	stats, err := c.st.dailyStats()
	if err != nil {
		return DailyStatsResponse{}, err
	}
	if leaderboard.ShouldReset(daily.LastReset, c.now) {
		stats = ledger.DailyStats{}
	}
	view := daily.View(c.now)
	return DailyStatsResponse{
		Day:          view.Day(),
		LastReset:    view.LastReset,
		TotalWagered: stats.TotalWagered,
		TotalWon:     stats.TotalWon,
		HouseProfit:  stats.HouseProfit(),
	}, nil
}

// queryHistory walks the player's records from the newest backward.
func queryHistory(c *callCtx, req QueryHistory) (HistoryResponse, error) {
	count, err := c.st.gameCount(req.Player)
	if err != nil {
		return HistoryResponse{}, err
	}
	limit := uint64(clampLimit(req.Limit))

	games := make([]GameRecord, 0, min(limit, count))
	for seq := count; seq > 0 && uint64(len(games)) < limit; seq-- {
		record, ok, err := c.st.gameRecord(req.Player, seq-1)
		if err != nil {
			return HistoryResponse{}, err
		}
		if !ok {
			return HistoryResponse{}, fmt.Errorf("history %s: missing record %d", req.Player, seq-1)
		}
		games = append(games, record)
	}
	return HistoryResponse{Games: games}, nil
}

func queryUserStats(c *callCtx, req QueryUserStats) (UserStatsResponse, error) {
	u, err := c.st.userStats(req.Player)
	if err != nil {
		return UserStatsResponse{}, err
	}
	return UserStatsResponse{Player: req.Player, UserStats: u}, nil
}

func queryGlobalLeaderboard(c *callCtx, req QueryGlobalLeaderboard) (LeaderboardResponse, error) {
	t, err := leaderboard.ParseType(string(req.Type))
	if err != nil {
		return LeaderboardResponse{}, err
	}
	board, err := c.st.globalBoard(t)
	if err != nil {
		return LeaderboardResponse{}, err
	}
	return LeaderboardResponse{LeaderboardType: t, Entries: board.Top(clampLimit(req.Limit))}, nil
}

func queryDailyLeaderboard(c *callCtx, req QueryDailyLeaderboard) (LeaderboardResponse, error) {
	t, err := leaderboard.ParseType(string(req.Type))
	if err != nil {
		return LeaderboardResponse{}, err
	}
	daily, err := c.st.daily()
	if err != nil {
		return LeaderboardResponse{}, err
	}
	board := daily.View(c.now).Board(t)
	return LeaderboardResponse{LeaderboardType: t, Entries: board.Top(clampLimit(req.Limit))}, nil
}

func queryWinnablePrize(c *callCtx, req QueryWinnablePrize) (prizepool.Winnable, error) {
	claimed, err := c.st.claimed(req.Player, req.Day)
	if err != nil {
		return prizepool.Winnable{}, err
	}
	pool, err := c.st.prizePool(req.Day)
	if err != nil {
		return prizepool.Winnable{}, err
	}
	return prizepool.Preview(pool, req.Player, claimed, c.now)
}
