package plinko

import (
	"errors"
	"fmt"

	"plinko/internal/money"
)

var (
	ErrInvalidBucket     = errors.New("invalid bucket index")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrInvalidRisk       = errors.New("invalid risk level")
)

// Difficulty selects the number of rows.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Risk selects how spread out the payouts are.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Rows returns 8, 12 or 16.
func (d Difficulty) Rows() (int, error) {
	switch d {
	case DifficultyEasy:
		return 8, nil
	case DifficultyMedium:
		return 12, nil
	case DifficultyHard:
		return 16, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDifficulty, string(d))
}

func (d Difficulty) Valid() bool {
	_, err := d.Rows()
	return err == nil
}

func (r Risk) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// DefaultLabel is shown for players who have never won.
const DefaultLabel = "0.0x"

// Ratio is an exact multiplier num/den.
type Ratio struct {
	Num uint64 `json:"numerator"`
	Den uint64 `json:"denominator"`
}

// tenths builds a table from multipliers expressed in tenths.
func tenths(vs ...uint64) []Ratio {
	out := make([]Ratio, len(vs))
	for i, v := range vs {
		out[i] = Ratio{Num: v, Den: 10}
	}
	return out
}

// Tables are symmetric with rows+1 buckets; edges pay the most.
var multipliers = map[Difficulty]map[Risk][]Ratio{
	DifficultyEasy: {
		RiskLow:    tenths(56, 21, 11, 10, 5, 10, 11, 21, 56),
		RiskMedium: tenths(130, 30, 13, 7, 4, 7, 13, 30, 130),
		RiskHigh:   tenths(290, 40, 15, 3, 2, 3, 15, 40, 290),
	},
	DifficultyMedium: {
		RiskLow:    tenths(100, 30, 16, 14, 11, 10, 5, 10, 11, 14, 16, 30, 100),
		RiskMedium: tenths(330, 110, 40, 20, 11, 6, 3, 6, 11, 20, 40, 110, 330),
		RiskHigh:   tenths(1700, 240, 81, 20, 7, 2, 2, 2, 7, 20, 81, 240, 1700),
	},
	DifficultyHard: {
		RiskLow: tenths(
			160, 90, 20, 14, 14, 12, 11, 10,
			5, 10, 11, 12, 14, 14, 20, 90, 160,
		),
		RiskMedium: tenths(
			1100, 410, 100, 50, 30, 15, 10, 5,
			3, 5, 10, 15, 30, 50, 100, 410, 1100,
		),
		RiskHigh: tenths(
			10000, 1300, 260, 90, 40, 20, 2, 2,
			2, 2, 2, 20, 40, 90, 260, 1300, 10000,
		),
	},
}

// Table returns a copy of the bucket table for d and r.
func Table(d Difficulty, r Risk) ([]Ratio, error) {
	byRisk, ok := multipliers[d]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDifficulty, string(d))
	}
	table, ok := byRisk[r]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRisk, string(r))
	}
	return append([]Ratio(nil), table...), nil
}

// Multiplier looks up the ratio for bucket. Out of range buckets fail rather
// than clamp.
func Multiplier(d Difficulty, r Risk, bucket int) (Ratio, error) {
	table, err := Table(d, r)
	if err != nil {
		return Ratio{}, err
	}
	if bucket < 0 || bucket >= len(table) {
		return Ratio{}, fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidBucket, bucket, len(table)-1)
	}
	return table[bucket], nil
}

// Payout returns floor(bet * num / den).
func (r Ratio) Payout(bet money.Amount) (money.Amount, error) {
	return bet.MulRatio(r.Num, r.Den)
}

// Label renders the ratio with one truncated decimal, e.g. "5.6x".
func (r Ratio) Label() string {
	if r.Den == 0 {
		return DefaultLabel
	}
	return fmt.Sprintf("%d.%dx", r.Num/r.Den, (r.Num%r.Den)*10/r.Den)
}
