package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"plinko/internal/cache"
	"plinko/internal/config"
	"plinko/internal/database"
	"plinko/internal/events"
	"plinko/internal/game"
	"plinko/internal/scheduler"
	"plinko/internal/server"
	"plinko/internal/store"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := cfg.ConfigureLogging(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

// backend is an opened store plus whatever else was connected for it.
type backend struct {
	store    store.Store
	balances server.BalanceReporter
	health   map[string]server.HealthChecker
	closers  []func() error
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.WithError(err).Warn("close failed")
		}
	}
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{health: map[string]server.HealthChecker{}}

	var redisSvc cache.Service
	connectRedis := func() error {
		svc, err := cache.New(ctx, cache.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		redisSvc = svc
		b.health["cache"] = svc
		b.closers = append(b.closers, svc.Close)
		return nil
	}

	switch cfg.Store.Backend {
	case store.BackendMemory:
		b.store = store.NewMemory()

	case store.BackendRedis:
		if err := connectRedis(); err != nil {
			return nil, err
		}
		b.store = store.NewRedis(redisSvc.GetClient(), cfg.Redis.Prefix)

	case store.BackendPostgres:
		if err := database.RunMigrations(cfg.Database.URL); err != nil {
			return nil, err
		}
		db, err := database.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		b.health["database"] = db
		b.closers = append(b.closers, db.Close)
		b.store = store.NewPostgres(db.Pool())

	case store.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		s, err := store.OpenSQLite(cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.store = s

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	b.closers = append(b.closers, b.store.Close)

	if cfg.Game.HouseAccount != "" {
		if redisSvc == nil {
			if err := connectRedis(); err != nil {
				log.WithError(err).Warn("balance reporting disabled")
			}
		}
		if redisSvc != nil {
			b.balances = cache.NewBalanceReporter(redisSvc.GetClient())
		}
	}
	return b, nil
}

// bootstrap instantiates the game from config the first time it starts.
func bootstrap(ctx context.Context, engine *game.Engine, cfg *config.Config) error {
	_, err := engine.Execute(ctx, game.Call{Caller: cfg.Game.Admin, Request: game.QueryConfig{}})
	if err == nil {
		return nil
	}
	if !errors.Is(err, game.ErrNotInitialized) {
		return err
	}

	_, err = engine.Execute(ctx, game.Call{
		Caller: cfg.Game.Admin,
		Request: game.Instantiate{
			TokenDenom:           cfg.Game.TokenDenom,
			Funder:               cfg.Game.Funder,
			PrizePoolPercentage:  cfg.Game.PrizePoolPercentage,
			ClaimPeriodSeconds:   cfg.Game.ClaimPeriodSeconds,
			PrizeLeaderboardType: cfg.Game.PrizeLeaderboardType,
		},
	})
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	log.WithFields(log.Fields{"admin": cfg.Game.Admin, "denom": cfg.Game.TokenDenom}).Info("game instantiated")
	return nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	hub := events.NewHub()
	go hub.Run(hubCtx)

	publishers := events.Fanout{hub}
	var sink events.TransferSink = events.Noop{}
	if cfg.NATS.Enabled {
		conn, err := events.ConnectNATS(cfg.NATS.URL, "plinko")
		if err != nil {
			return err
		}
		defer conn.Drain()
		nats := events.NewNATSPublisher(conn, cfg.NATS.Prefix)
		publishers = append(publishers, nats)
		sink = nats
	}

	clock := game.NewClock(0, nil)
	engine := game.NewEngine(b.store,
		game.WithPublisher(publishers),
		game.WithTransferSink(sink),
		game.WithClock(clock),
	)
	engine.Start()
	defer engine.Stop()

	if err := bootstrap(ctx, engine, cfg); err != nil {
		return err
	}

	sched := scheduler.NewScheduler(ctx, engine, publishers, cfg.Game.Admin)
	if err := sched.RegisterAll(cfg.Schedule.DailyReportCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Deps{
		Engine:       engine,
		Clock:        clock,
		Hub:          hub,
		Balances:     b.balances,
		HouseAccount: cfg.Game.HouseAccount,
		Denom:        cfg.Game.TokenDenom,
		Health:       b.health,
	}, server.Options{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		RateLimit:    cfg.Server.RateLimit,
		CORSOrigins:  cfg.Server.CORSOrigins,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("server shutdown failed")
		}
	}()

	log.WithFields(log.Fields{"addr": cfg.Server.Addr, "store": cfg.Store.Backend}).Info("plinko api listening")
	return srv.Listen(cfg.Server.Addr)
}
