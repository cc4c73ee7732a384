// Package leaderboard maintains bounded, descending player rankings and the
// day boundary that resets the daily boards.
package leaderboard

import (
	"errors"
	"fmt"
	"slices"

	"plinko/internal/money"
)

// MaxEntries caps every board.
const MaxEntries = 100

var ErrInvalidType = errors.New("invalid leaderboard type")

// Type selects which statistic a board ranks.
type Type string

const (
	BestWins     Type = "best_wins"
	TotalWagered Type = "total_wagered"
)

func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case BestWins, TotalWagered:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

// Entry is one ranked player. Multiplier is only set on best-wins boards.
type Entry struct {
	Player     string       `json:"player"`
	Value      money.Amount `json:"value"`
	Multiplier *string      `json:"multiplier,omitempty"`
}

// Board is sorted by value descending with at most one entry per player.
type Board []Entry

// Upsert returns a new board with the player's entry replaced by value. The
// entry goes before the first strictly lower value, so a newcomer ranks after
// existing equal values. The receiver is not modified.
func (b Board) Upsert(player string, value money.Amount, multiplier *string) Board {
	out := slices.DeleteFunc(slices.Clone(b), func(e Entry) bool {
		return e.Player == player
	})

	pos := len(out)
	for i, e := range out {
		if e.Value.LessThan(value) {
			pos = i
			break
		}
	}

	out = slices.Insert(out, pos, Entry{Player: player, Value: value, Multiplier: multiplier})
	if len(out) > MaxEntries {
		out = out[:MaxEntries]
	}
	return out
}

// Top returns at most n leading entries.
func (b Board) Top(n int) Board {
	if n < 0 {
		n = 0
	}
	if n > len(b) {
		n = len(b)
	}
	out := make(Board, n)
	copy(out, b[:n])
	return out
}

// Players lists the first n players in rank order.
func (b Board) Players(n int) []string {
	top := b.Top(n)
	players := make([]string, len(top))
	for i, e := range top {
		players[i] = e.Player
	}
	return players
}

// Rank returns the 0-based position of player.
func (b Board) Rank(player string) (int, bool) {
	i := slices.IndexFunc(b, func(e Entry) bool { return e.Player == player })
	return i, i >= 0
}
