// Package ledger keeps the house balance and the aggregate statistics that
// every play updates. Each mutator either applies fully or leaves its receiver
// untouched.
package ledger

import (
	"errors"
	"math"

	"plinko/internal/money"
	"plinko/internal/plinko"
)

var (
	ErrInvalidBet               = errors.New("invalid bet amount")
	ErrInsufficientHouseBalance = errors.New("insufficient house balance")
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrNoFunds                  = errors.New("no funds sent")
	ErrInvalidAmount            = errors.New("amount must be greater than zero")
)

// Stats are the lifetime totals of the game.
type Stats struct {
	TotalGames   uint64       `json:"total_games"`
	TotalWagered money.Amount `json:"total_wagered"`
	TotalWon     money.Amount `json:"total_won"`
	HouseBalance money.Amount `json:"house_balance"`
}

// RecordPlay books a settled play. The house must cover win out of its
// balance plus the incoming bet.
func (s *Stats) RecordPlay(bet, win money.Amount) error {
	if bet.IsZero() {
		return ErrInvalidBet
	}
	available, err := s.HouseBalance.Add(bet)
	if err != nil {
		return err
	}
	if win.GreaterThan(available) {
		return ErrInsufficientHouseBalance
	}
	if s.TotalGames == math.MaxUint64 {
		return money.ErrOverflow
	}
	wagered, err := s.TotalWagered.Add(bet)
	if err != nil {
		return err
	}
	won, err := s.TotalWon.Add(win)
	if err != nil {
		return err
	}
	house, err := available.Sub(win)
	if err != nil {
		return err
	}

	s.TotalGames++
	s.TotalWagered = wagered
	s.TotalWon = won
	s.HouseBalance = house
	return nil
}

// Withdraw removes amount from the house.
func (s *Stats) Withdraw(amount money.Amount) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(s.HouseBalance) {
		return ErrInsufficientBalance
	}
	house, err := s.HouseBalance.Sub(amount)
	if err != nil {
		return err
	}
	s.HouseBalance = house
	return nil
}

// Fund adds amount to the house.
func (s *Stats) Fund(amount money.Amount) error {
	if amount.IsZero() {
		return ErrNoFunds
	}
	house, err := s.HouseBalance.Add(amount)
	if err != nil {
		return err
	}
	s.HouseBalance = house
	return nil
}

// Sync raises the house balance to reported when reported is higher and
// returns the recovered difference. It never lowers the balance.
func (s *Stats) Sync(reported money.Amount) money.Amount {
	if !reported.GreaterThan(s.HouseBalance) {
		return money.Zero()
	}
	recovered := reported.SaturatingSub(s.HouseBalance)
	s.HouseBalance = reported
	return recovered
}

// DailyStats are the totals since the last daily reset.
type DailyStats struct {
	TotalWagered money.Amount `json:"total_wagered"`
	TotalWon     money.Amount `json:"total_won"`
}

func (d *DailyStats) Record(bet, win money.Amount) error {
	wagered, err := d.TotalWagered.Add(bet)
	if err != nil {
		return err
	}
	won, err := d.TotalWon.Add(win)
	if err != nil {
		return err
	}
	d.TotalWagered = wagered
	d.TotalWon = won
	return nil
}

// HouseProfit is max(0, wagered - won).
func (d DailyStats) HouseProfit() money.Amount {
	return d.TotalWagered.SaturatingSub(d.TotalWon)
}

// UserStats are a player's lifetime totals.
type UserStats struct {
	TotalGames        uint64       `json:"total_games"`
	TotalWagered      money.Amount `json:"total_wagered"`
	TotalWon          money.Amount `json:"total_won"`
	BestWinPnl        money.Amount `json:"best_win_pnl"`
	BestWinMultiplier string       `json:"best_win_multiplier"`
}

func NewUserStats() UserStats {
	return UserStats{BestWinMultiplier: plinko.DefaultLabel}
}

// Record books one play. The best pnl and its label only move on a strictly
// greater pnl.
func (u *UserStats) Record(bet, win, pnl money.Amount, label string) error {
	if u.TotalGames == math.MaxUint64 {
		return money.ErrOverflow
	}
	wagered, err := u.TotalWagered.Add(bet)
	if err != nil {
		return err
	}
	won, err := u.TotalWon.Add(win)
	if err != nil {
		return err
	}
	u.TotalGames++
	u.TotalWagered = wagered
	u.TotalWon = won
	if pnl.GreaterThan(u.BestWinPnl) {
		u.BestWinPnl = pnl
		u.BestWinMultiplier = label
	}
	return nil
}

// DailyPlayerStats are a player's totals for one day. Day is the day index
// the totals belong to; totals from an earlier day are discarded on read.
type DailyPlayerStats struct {
	Day               uint64       `json:"day"`
	TotalWagered      money.Amount `json:"total_wagered"`
	BestWinPnl        money.Amount `json:"best_win_pnl"`
	BestWinMultiplier string       `json:"best_win_multiplier"`
}

func NewDailyPlayerStats(day uint64) DailyPlayerStats {
	return DailyPlayerStats{Day: day, BestWinMultiplier: plinko.DefaultLabel}
}

// ForDay returns d when it belongs to day, otherwise a fresh record.
func (d DailyPlayerStats) ForDay(day uint64) DailyPlayerStats {
	if d.Day != day {
		return NewDailyPlayerStats(day)
	}
	return d
}

func (d *DailyPlayerStats) Record(bet, pnl money.Amount, label string) error {
	wagered, err := d.TotalWagered.Add(bet)
	if err != nil {
		return err
	}
	d.TotalWagered = wagered
	if pnl.GreaterThan(d.BestWinPnl) {
		d.BestWinPnl = pnl
		d.BestWinMultiplier = label
	}
	return nil
}
