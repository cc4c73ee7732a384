package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"plinko/internal/leaderboard"
	"plinko/internal/ledger"
	"plinko/internal/prizepool"
	"plinko/internal/store"
)

const (
	keyConfig             = "config"
	keyStats              = "stats"
	keyDailyStats         = "daily_stats"
	keyDailyLeaderboard   = "daily_leaderboard"
	keyGlobalBestWins     = "global_best_wins"
	keyGlobalTotalWagered = "global_total_wagered"
)

func userStatsKey(player string) string        { return store.Key("user_stats", player) }
func dailyPlayerStatsKey(player string) string { return store.Key("daily_player_stats", player) }
func gameCountKey(player string) string        { return store.Key("player_game_count", player) }
func prizePoolKey(day uint64) string           { return store.Key("prize_pool", strconv.FormatUint(day, 10)) }

func gameHistoryKey(player string, seq uint64) string {
	return store.Key("game_history", player, fmt.Sprintf("%020d", seq))
}

func claimedKey(player string, day uint64) string {
	return store.Key("claimed_prizes", player, strconv.FormatUint(day, 10))
}

// state is the typed view of one transaction. Values are stored as JSON.
type state struct {
	tx *store.Tx
}

// load decodes key into v and reports whether it existed.
func (s state) load(key string, v any) (bool, error) {
	raw, err := s.tx.Get(key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// require is load for records created at instantiation.
func (s state) require(key string, v any) error {
	ok, err := s.load(key, v)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: missing %s", ErrNotInitialized, key)
	}
	return nil
}

func (s state) save(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.tx.Set(key, raw)
	return nil
}

func (s state) config() (Config, error) {
	var c Config
	ok, err := s.load(keyConfig, &c)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Config{}, ErrNotInitialized
	}
	return c, nil
}

func (s state) stats() (ledger.Stats, error) {
	var st ledger.Stats
	return st, s.require(keyStats, &st)
}

func (s state) dailyStats() (ledger.DailyStats, error) {
	var d ledger.DailyStats
	return d, s.require(keyDailyStats, &d)
}

func (s state) daily() (leaderboard.Daily, error) {
	var d leaderboard.Daily
	return d, s.require(keyDailyLeaderboard, &d)
}

func globalBoardKey(t leaderboard.Type) string {
	if t == leaderboard.TotalWagered {
		return keyGlobalTotalWagered
	}
	return keyGlobalBestWins
}

func (s state) globalBoard(t leaderboard.Type) (leaderboard.Board, error) {
	var b leaderboard.Board
	return b, s.require(globalBoardKey(t), &b)
}

// notBefore rejects a call stamped on a day earlier than the last rollover.
func (s state) notBefore(now uint64) error {
	d, err := s.daily()
	if err != nil {
		return err
	}
	if day := leaderboard.DayIndex(now); day < d.Day() {
		return fmt.Errorf("%w: day %d is before day %d", ErrStaleBlock, day, d.Day())
	}
	return nil
}

func (s state) userStats(player string) (ledger.UserStats, error) {
	u := ledger.NewUserStats()
	_, err := s.load(userStatsKey(player), &u)
	return u, err
}

// dailyPlayerStats returns the player's totals for day, discarding totals
// left over from an earlier day.
func (s state) dailyPlayerStats(player string, day uint64) (ledger.DailyPlayerStats, error) {
	d := ledger.NewDailyPlayerStats(day)
	if _, err := s.load(dailyPlayerStatsKey(player), &d); err != nil {
		return ledger.DailyPlayerStats{}, err
	}
	return d.ForDay(day), nil
}

func (s state) gameCount(player string) (uint64, error) {
	var n uint64
	_, err := s.load(gameCountKey(player), &n)
	return n, err
}

func (s state) gameRecord(player string, seq uint64) (GameRecord, bool, error) {
	var r GameRecord
	ok, err := s.load(gameHistoryKey(player, seq), &r)
	return r, ok, err
}

// prizePool returns nil when no pool was created for day.
func (s state) prizePool(day uint64) (*prizepool.Pool, error) {
	var p prizepool.Pool
	ok, err := s.load(prizePoolKey(day), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (s state) claimed(player string, day uint64) (bool, error) {
	var claimed bool
	_, err := s.load(claimedKey(player, day), &claimed)
	return claimed, err
}
