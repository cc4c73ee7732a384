// Package scheduler runs periodic read-only reports against the engine.
package scheduler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"plinko/internal/events"
	"plinko/internal/game"
	"plinko/internal/leaderboard"
	"plinko/internal/ledger"
)

// Executor runs one call against the game.
type Executor interface {
	Execute(ctx context.Context, call game.Call) (*game.Result, error)
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Engine    Executor
	Publisher events.Publisher
	Caller    string
	Ctx       context.Context
	logger    *log.Entry
}

func NewScheduler(ctx context.Context, engine Executor, pub events.Publisher, caller string) *Scheduler {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Engine:    engine,
		Publisher: pub,
		Caller:    caller,
		Ctx:       ctx,
		logger:    log.WithFields(log.Fields{"component": "scheduler"}),
	}
}

// RegisterAll registers the daily report.
func (s *Scheduler) RegisterAll(dailyReportCron string) error {
	if _, err := s.Cron.AddFunc(dailyReportCron, s.dailyReportTask); err != nil {
		return fmt.Errorf("register daily report: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started")
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Report is the daily summary. Leaders are ranked on the board that decides
// the prize pool.
type Report struct {
	Block   game.Block
	Stats   ledger.Stats
	Daily   game.DailyStatsResponse
	Board   leaderboard.Type
	Leaders leaderboard.Board
}

func (s *Scheduler) dailyReportTask() {
	if _, err := s.RunDailyReport(s.Ctx); err != nil {
		s.logger.WithError(err).Error("daily report failed")
	}
}

// RunDailyReport gathers the lifetime stats, today's stats and today's top
// three on the prize board, logs them and publishes a daily_report event.
func (s *Scheduler) RunDailyReport(ctx context.Context) (Report, error) {
	var report Report

	exec := func(req game.Request) (any, error) {
		res, err := s.Engine.Execute(ctx, game.Call{Caller: s.Caller, Request: req})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", req.Name(), err)
		}
		if report.Block.IsZero() {
			report.Block = res.Block
		}
		return res.Data, nil
	}

	data, err := exec(game.QueryConfig{})
	if err != nil {
		return Report{}, err
	}
	report.Board = data.(game.Config).PrizeLeaderboardType

	data, err = exec(game.QueryStats{})
	if err != nil {
		return Report{}, err
	}
	report.Stats = data.(ledger.Stats)

	data, err = exec(game.QueryDailyStats{})
	if err != nil {
		return Report{}, err
	}
	report.Daily = data.(game.DailyStatsResponse)

	data, err = exec(game.QueryDailyLeaderboard{Type: report.Board, Limit: 3})
	if err != nil {
		return Report{}, err
	}
	report.Leaders = data.(game.LeaderboardResponse).Entries

	s.logger.WithFields(log.Fields{
		"day":           report.Daily.Day,
		"total_games":   report.Stats.TotalGames,
		"house_balance": report.Stats.HouseBalance.String(),
		"daily_wagered": report.Daily.TotalWagered.String(),
		"daily_profit":  report.Daily.HouseProfit.String(),
		"board":         report.Board,
		"leaders":       len(report.Leaders),
	}).Info("daily report")

	ev := events.New("daily_report", report.Block.Height, report.Block.Time).
		With("day", strconv.FormatUint(report.Daily.Day, 10)).
		With("board", string(report.Board)).
		With("total_games", strconv.FormatUint(report.Stats.TotalGames, 10)).
		With("house_balance", report.Stats.HouseBalance.String()).
		With("daily_wagered", report.Daily.TotalWagered.String()).
		With("daily_house_profit", report.Daily.HouseProfit.String())
	for i, e := range report.Leaders {
		ev = ev.With("leader_"+strconv.Itoa(i+1), e.Player)
	}
	if err := s.Publisher.Publish(ctx, ev); err != nil {
		s.logger.WithError(err).Warn("failed to publish daily report")
	}
	return report, nil
}
