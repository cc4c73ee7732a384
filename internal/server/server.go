package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"

	"plinko/internal/events"
	"plinko/internal/game"
	"plinko/internal/money"
)

// PrincipalHeader carries the already authenticated caller identity.
const PrincipalHeader = "X-Principal"

// Executor runs calls against the game.
type Executor interface {
	Execute(ctx context.Context, call game.Call) (*game.Result, error)
}

// BalanceReporter reports what the token layer holds for an account.
type BalanceReporter interface {
	Balance(ctx context.Context, account, denom string) (money.Amount, error)
}

type HealthChecker interface {
	Health() map[string]string
}

// Deps are the collaborators the HTTP surface talks to. Hub and Balances are
// optional. Clock must be the one the engine stamps calls with; it is only
// read here for health.
type Deps struct {
	Engine       Executor
	Clock        *game.Clock
	Hub          *events.Hub
	Balances     BalanceReporter
	HouseAccount string
	Denom        string
	Health       map[string]HealthChecker
}

type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RateLimit    int
	CORSOrigins  string
}

type FiberServer struct {
	*fiber.App

	deps   Deps
	logger *log.Entry
}

func New(deps Deps, opts Options) *FiberServer {
	if deps.Clock == nil {
		deps.Clock = game.NewClock(0, nil)
	}
	if opts.CORSOrigins == "" {
		opts.CORSOrigins = "*"
	}

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "plinko",
			AppName:       "plinko",
			ReadTimeout:   opts.ReadTimeout,
			WriteTimeout:  opts.WriteTimeout,
			IdleTimeout:   opts.IdleTimeout,
			StrictRouting: false,
			ErrorHandler:  errorHandler,
		}),
		deps:   deps,
		logger: log.WithFields(log.Fields{"component": "server"}),
	}

	server.App.Use(recover.New())
	if opts.RateLimit > 0 {
		server.App.Use(limiter.New(limiter.Config{
			Max:        opts.RateLimit,
			Expiration: 1 * time.Minute,
		}))
	}

	server.RegisterFiberRoutes(opts.CORSOrigins)
	return server
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *FiberServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	return s.App.ShutdownWithContext(ctx)
}
