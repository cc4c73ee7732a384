package leaderboard

import "time"

const SecondsPerDay = 86400

// DayIndex is the number of whole UTC days since the Unix epoch.
func DayIndex(seconds uint64) uint64 {
	return seconds / SecondsPerDay
}

// Seconds converts t to a non-negative Unix timestamp.
func Seconds(t time.Time) uint64 {
	if s := t.Unix(); s > 0 {
		return uint64(s)
	}
	return 0
}

// ShouldReset reports whether now falls on a later day than lastReset.
func ShouldReset(lastReset, now uint64) bool {
	return DayIndex(now) > DayIndex(lastReset)
}

// Daily holds both daily boards and the time of the last rollover.
type Daily struct {
	LastReset uint64 `json:"last_reset"`
	BestWins  Board  `json:"best_wins"`
	Wagered   Board  `json:"total_wagered"`
}

func NewDaily(now uint64) Daily {
	return Daily{LastReset: now, BestWins: Board{}, Wagered: Board{}}
}

// Day is the day index the boards currently belong to.
func (d Daily) Day() uint64 {
	return DayIndex(d.LastReset)
}

func (d Daily) Board(t Type) Board {
	if t == TotalWagered {
		return d.Wagered
	}
	return d.BestWins
}

// Reset empties both boards and moves the boundary to now.
func (d *Daily) Reset(now uint64) {
	*d = NewDaily(now)
}

// View is the read-side projection at now: once the boundary has passed the
// boards read as empty even though nothing has been persisted yet.
func (d Daily) View(now uint64) Daily {
	if ShouldReset(d.LastReset, now) {
		return NewDaily(now)
	}
	return d
}
