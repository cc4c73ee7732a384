// Package prizepool snapshots a profitable day into a claimable pool and
// splits it between the top three players of that day.
package prizepool

import (
	"errors"
	"math/bits"

	"plinko/internal/leaderboard"
	"plinko/internal/ledger"
	"plinko/internal/money"
)

var (
	ErrAlreadyClaimed = errors.New("prize already claimed")
	ErrNoPrize        = errors.New("no prize available")
	ErrClaimExpired   = errors.New("claim period expired")
	ErrNotAWinner     = errors.New("not a winner")
)

// Winners is how many places share a pool.
const Winners = 3

// shares are percentages by 0-based rank.
var shares = [Winners]uint64{50, 30, 20}

// Pool is immutable once created.
type Pool struct {
	TotalPrizeAmount money.Amount `json:"total_prize_amount"`
	Winners          []string     `json:"winners"`
	ClaimDeadline    uint64       `json:"claim_deadline"`
}

// Rank returns the 0-based place of player.
func (p Pool) Rank(player string) (int, bool) {
	for i, w := range p.Winners {
		if w == player {
			return i, true
		}
	}
	return 0, false
}

// Share is the payout for a 0-based rank.
func (p Pool) Share(rank int) (money.Amount, error) {
	if rank < 0 || rank >= len(shares) {
		return money.Zero(), nil
	}
	return p.TotalPrizeAmount.MulRatio(shares[rank], 100)
}

// Expired reports whether now is past the deadline. The deadline itself is
// still claimable.
func (p Pool) Expired(now uint64) bool {
	return now > p.ClaimDeadline
}

// Settlement is the outcome of closing one day.
type Settlement struct {
	Day         uint64       `json:"day"`
	Profit      money.Amount `json:"profit"`
	PrizeAmount money.Amount `json:"prize_amount"`
	// Pool is nil when the day produced no prize or no winners.
	Pool *Pool `json:"pool,omitempty"`
}

// Settle computes the pool for the day that started at lastReset.
func Settle(stats ledger.DailyStats, board leaderboard.Board, percentage uint8, lastReset, now, claimPeriod uint64) (Settlement, error) {
	s := Settlement{Day: leaderboard.DayIndex(lastReset), Profit: stats.HouseProfit()}
	if s.Profit.IsZero() {
		return s, nil
	}

	prize, err := s.Profit.MulRatio(uint64(percentage), 100)
	if err != nil {
		return Settlement{}, err
	}
	s.PrizeAmount = prize
	if prize.IsZero() {
		return s, nil
	}

	winners := board.Players(Winners)
	if len(winners) == 0 {
		return s, nil
	}

	deadline, carry := bits.Add64(now, claimPeriod, 0)
	if carry != 0 {
		return Settlement{}, money.ErrOverflow
	}
	s.Pool = &Pool{TotalPrizeAmount: prize, Winners: winners, ClaimDeadline: deadline}
	return s, nil
}

// Claim validates a claim against pool (nil when none exists for the day) and
// returns the amount owed. Checks run in order: already claimed, no pool,
// expired, winner rank.
func Claim(pool *Pool, player string, alreadyClaimed bool, now uint64) (money.Amount, error) {
	if alreadyClaimed {
		return money.Zero(), ErrAlreadyClaimed
	}
	if pool == nil {
		return money.Zero(), ErrNoPrize
	}
	if pool.Expired(now) {
		return money.Zero(), ErrClaimExpired
	}
	rank, ok := pool.Rank(player)
	if !ok {
		return money.Zero(), ErrNotAWinner
	}
	amount, err := pool.Share(rank)
	if err != nil {
		return money.Zero(), err
	}
	if amount.IsZero() {
		return money.Zero(), ErrNoPrize
	}
	return amount, nil
}

// Winnable is the read-only view of a player's standing in a pool.
type Winnable struct {
	IsWinner     bool         `json:"is_winner"`
	PrizeAmount  money.Amount `json:"prize_amount"`
	HasClaimed   bool         `json:"has_claimed"`
	ClaimExpired bool         `json:"claim_expired"`
	// Rank is 1-based; 0 means not placed.
	Rank uint8 `json:"rank"`
}

// Preview reports what player could claim from pool without claiming it.
func Preview(pool *Pool, player string, hasClaimed bool, now uint64) (Winnable, error) {
	w := Winnable{HasClaimed: hasClaimed}
	if pool == nil {
		return w, nil
	}
	w.ClaimExpired = pool.Expired(now)
	rank, ok := pool.Rank(player)
	if !ok {
		return w, nil
	}
	amount, err := pool.Share(rank)
	if err != nil {
		return Winnable{}, err
	}
	w.IsWinner = true
	w.PrizeAmount = amount
	w.Rank = uint8(rank + 1)
	return w, nil
}
