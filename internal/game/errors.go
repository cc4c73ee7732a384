package game

import (
	"errors"

	"plinko/internal/leaderboard"
	"plinko/internal/ledger"
	"plinko/internal/money"
	"plinko/internal/plinko"
	"plinko/internal/prizepool"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotInitialized     = errors.New("game not initialized")
	ErrAlreadyInitialized = errors.New("game already initialized")
	ErrInvalidPercentage  = errors.New("percentage must be between 0 and 100")
	ErrInvalidConfig      = errors.New("invalid config")
	ErrInvalidPlayer      = errors.New("invalid player")
	ErrInvalidFunds       = errors.New("invalid funds")
	ErrUnknownRequest     = errors.New("unknown request")
	ErrQueueFull          = errors.New("engine queue full")
	ErrStopped            = errors.New("engine stopped")
	ErrStaleBlock         = errors.New("block time precedes the current day")
)

// Kind groups errors by what the caller can do about them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthorization
	KindArithmetic
	KindSolvency
	KindLifecycle
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindArithmetic:
		return "arithmetic"
	case KindSolvency:
		return "solvency"
	case KindLifecycle:
		return "lifecycle"
	}
	return "internal"
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ledger.ErrInvalidBet, KindValidation},
	{ledger.ErrNoFunds, KindValidation},
	{ledger.ErrInvalidAmount, KindValidation},
	{money.ErrInvalidAmount, KindValidation},
	{plinko.ErrInvalidBucket, KindValidation},
	{plinko.ErrInvalidDifficulty, KindValidation},
	{plinko.ErrInvalidRisk, KindValidation},
	{plinko.ErrInvalidPath, KindValidation},
	{leaderboard.ErrInvalidType, KindValidation},
	{ErrInvalidPercentage, KindValidation},
	{ErrInvalidConfig, KindValidation},
	{ErrInvalidPlayer, KindValidation},
	{ErrInvalidFunds, KindValidation},
	{ErrUnknownRequest, KindValidation},
	{ErrUnauthorized, KindAuthorization},
	{money.ErrOverflow, KindArithmetic},
	{ledger.ErrInsufficientHouseBalance, KindSolvency},
	{ledger.ErrInsufficientBalance, KindSolvency},
	{prizepool.ErrAlreadyClaimed, KindLifecycle},
	{prizepool.ErrNoPrize, KindLifecycle},
	{prizepool.ErrClaimExpired, KindLifecycle},
	{prizepool.ErrNotAWinner, KindLifecycle},
	{ErrNotInitialized, KindLifecycle},
	{ErrAlreadyInitialized, KindLifecycle},
	{ErrStaleBlock, KindLifecycle},
}

// KindOf classifies err. Anything unrecognised, such as a storage failure, is
// internal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
