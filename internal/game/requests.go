package game

import (
	"plinko/internal/leaderboard"
	"plinko/internal/money"
	"plinko/internal/plinko"
)

// Request is the closed set of operations the engine understands. The
// unexported method keeps other packages from adding variants.
type Request interface {
	Name() string
	readOnly() bool
}

type mutation struct{}

func (mutation) readOnly() bool { return false }

type query struct{}

func (query) readOnly() bool { return true }

// Instantiate creates the game. The caller becomes admin. An empty Funder
// defaults to the caller and an empty PrizeLeaderboardType to best wins.
type Instantiate struct {
	mutation
	TokenDenom           string           `json:"token_denom"`
	Funder               string           `json:"funder"`
	PrizePoolPercentage  uint8            `json:"prize_pool_percentage"`
	ClaimPeriodSeconds   uint64           `json:"claim_period_seconds"`
	PrizeLeaderboardType leaderboard.Type `json:"prize_leaderboard_type"`
}

// Play drops one ball. The bet is the attached amount of the game's denom.
type Play struct {
	mutation
	Difficulty plinko.Difficulty `json:"difficulty"`
	RiskLevel  plinko.Risk       `json:"risk_level"`
}

type WithdrawHouse struct {
	mutation
	Amount money.Amount `json:"amount"`
}

// FundHouse credits the attached funds to the house.
type FundHouse struct {
	mutation
}

// SyncBalance carries the balance the external ledger reports for the
// house account.
type SyncBalance struct {
	mutation
	ReportedBalance money.Amount `json:"reported_balance"`
}

type ClaimDailyPrize struct {
	mutation
	Day uint64 `json:"day_index"`
}

// UpdatePrizeConfig changes only the fields that are set.
type UpdatePrizeConfig struct {
	mutation
	PrizePoolPercentage  *uint8            `json:"prize_pool_percentage,omitempty"`
	ClaimPeriodSeconds   *uint64           `json:"claim_period_seconds,omitempty"`
	PrizeLeaderboardType *leaderboard.Type `json:"prize_leaderboard_type,omitempty"`
}

type QueryConfig struct{ query }

type QueryStats struct{ query }

type QueryDailyStats struct{ query }

// A zero Limit means the default page size.
type QueryHistory struct {
	query
	Player string
	Limit  uint32
}

type QueryUserStats struct {
	query
	Player string
}

type QueryGlobalLeaderboard struct {
	query
	Type  leaderboard.Type
	Limit uint32
}

type QueryDailyLeaderboard struct {
	query
	Type  leaderboard.Type
	Limit uint32
}

type QueryWinnablePrize struct {
	query
	Player string
	Day    uint64
}

func (Instantiate) Name() string            { return "instantiate" }
func (Play) Name() string                   { return "play" }
func (WithdrawHouse) Name() string          { return "withdraw_house" }
func (FundHouse) Name() string              { return "fund_house" }
func (SyncBalance) Name() string            { return "sync_balance" }
func (ClaimDailyPrize) Name() string        { return "claim_daily_prize" }
func (UpdatePrizeConfig) Name() string      { return "update_prize_config" }
func (QueryConfig) Name() string            { return "config" }
func (QueryStats) Name() string             { return "stats" }
func (QueryDailyStats) Name() string        { return "daily_stats" }
func (QueryHistory) Name() string           { return "history" }
func (QueryUserStats) Name() string         { return "user_stats" }
func (QueryGlobalLeaderboard) Name() string { return "global_leaderboard" }
func (QueryDailyLeaderboard) Name() string  { return "daily_leaderboard" }
func (QueryWinnablePrize) Name() string     { return "winnable_prize" }

const (
	defaultLimit = 10
	maxLimit     = 100
)

func clampLimit(limit uint32) int {
	switch {
	case limit == 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	}
	return int(limit)
}
