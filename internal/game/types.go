package game

import (
	"time"

	"plinko/internal/events"
	"plinko/internal/leaderboard"
	"plinko/internal/ledger"
	"plinko/internal/money"
	"plinko/internal/plinko"
)

// Block is the host-provided clock for one call.
type Block struct {
	Height uint64    `json:"height"`
	Time   time.Time `json:"time"`
}

// IsZero reports whether b was left unset by the caller.
func (b Block) IsZero() bool {
	return b.Height == 0 && b.Time.IsZero()
}

// Coin is an amount of one denomination attached to a call.
type Coin struct {
	Denom  string       `json:"denom"`
	Amount money.Amount `json:"amount"`
}

// Call is one request as delivered by the host: who sent it, when, and with
// which funds attached. A zero Block is stamped by the engine's clock when the
// call reaches the loop.
type Call struct {
	Block   Block
	Caller  string
	Funds   []Coin
	Request Request
}

// Result is what a successful call produced. Transfers must only be executed
// by the host; the engine has already committed the state change.
type Result struct {
	Block     Block             `json:"block"`
	Data      any               `json:"data"`
	Events    []events.Event    `json:"events,omitempty"`
	Transfers []events.Transfer `json:"transfers,omitempty"`
}

// Config is the game's mutable settings.
type Config struct {
	TokenDenom           string           `json:"token_denom"`
	Admin                string           `json:"admin"`
	Funder               string           `json:"funder"`
	PrizePoolPercentage  uint8            `json:"prize_pool_percentage"`
	ClaimPeriodSeconds   uint64           `json:"claim_period_seconds"`
	PrizeLeaderboardType leaderboard.Type `json:"prize_leaderboard_type"`
}

// GameRecord is one settled play. Path holds true for every right bounce.
type GameRecord struct {
	Player     string            `json:"player"`
	Difficulty plinko.Difficulty `json:"difficulty"`
	RiskLevel  plinko.Risk       `json:"risk_level"`
	BetAmount  money.Amount      `json:"bet_amount"`
	Multiplier string            `json:"multiplier"`
	WinAmount  money.Amount      `json:"win_amount"`
	Pnl        money.Amount      `json:"pnl"`
	Timestamp  uint64            `json:"timestamp"`
	Path       []bool            `json:"path"`
}

type PlayResponse struct {
	Player     string            `json:"player"`
	Difficulty plinko.Difficulty `json:"difficulty"`
	RiskLevel  plinko.Risk       `json:"risk_level"`
	BetAmount  money.Amount      `json:"bet_amount"`
	WinAmount  money.Amount      `json:"win_amount"`
	Pnl        money.Amount      `json:"pnl"`
	Multiplier string            `json:"multiplier"`
	Bucket     int               `json:"bucket"`
	Path       string            `json:"path"`
	Nonce      uint64            `json:"nonce"`
}

type ClaimResponse struct {
	Player string       `json:"player"`
	Day    uint64       `json:"day"`
	Amount money.Amount `json:"amount"`
}

type SyncResponse struct {
	FundsRecovered  money.Amount `json:"funds_recovered"`
	NewHouseBalance money.Amount `json:"new_house_balance"`
}

type DailyStatsResponse struct {
	Day          uint64       `json:"day"`
	LastReset    uint64       `json:"last_reset"`
	TotalWagered money.Amount `json:"total_wagered"`
	TotalWon     money.Amount `json:"total_won"`
	HouseProfit  money.Amount `json:"house_profit"`
}

type HistoryResponse struct {
	Games []GameRecord `json:"games"`
}

type UserStatsResponse struct {
	Player string `json:"player"`
	ledger.UserStats
}

type LeaderboardResponse struct {
	LeaderboardType leaderboard.Type  `json:"leaderboard_type"`
	Entries         leaderboard.Board `json:"entries"`
}
