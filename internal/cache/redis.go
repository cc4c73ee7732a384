package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"plinko/internal/money"
)

type Service interface {
	GetClient() *redis.Client
	Health() map[string]string
	Close() error
}

type Options struct {
	Addr     string
	Password string
	DB       int
}

type service struct {
	client *redis.Client
}

var logger = log.WithFields(log.Fields{"component": "cache"})

// New connects to Redis and pings it once.
func New(ctx context.Context, opts Options) (Service, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.WithField("addr", opts.Addr).Info("redis connected")
	return &service{client: client}, nil
}

func (s *service) GetClient() *redis.Client {
	return s.client
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	_, err := s.client.Ping(ctx).Result()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("redis down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "Redis is healthy"

	poolStats := s.client.PoolStats()
	stats["hits"] = strconv.FormatUint(uint64(poolStats.Hits), 10)
	stats["misses"] = strconv.FormatUint(uint64(poolStats.Misses), 10)
	stats["timeouts"] = strconv.FormatUint(uint64(poolStats.Timeouts), 10)
	stats["total_conns"] = strconv.FormatUint(uint64(poolStats.TotalConns), 10)
	stats["idle_conns"] = strconv.FormatUint(uint64(poolStats.IdleConns), 10)

	return stats
}

func (s *service) Close() error {
	logger.Info("disconnecting from redis")
	return s.client.Close()
}

// BalanceKey is where the token layer mirrors an account balance.
func BalanceKey(account, denom string) string {
	return "bank:balance:" + account + ":" + denom
}

// BalanceReporter reads account balances that the external token layer
// publishes into Redis. A missing key reads as zero.
type BalanceReporter struct {
	client redis.Cmdable
}

func NewBalanceReporter(client redis.Cmdable) *BalanceReporter {
	return &BalanceReporter{client: client}
}

func (b *BalanceReporter) Balance(ctx context.Context, account, denom string) (money.Amount, error) {
	raw, err := b.client.Get(ctx, BalanceKey(account, denom)).Result()
	if errors.Is(err, redis.Nil) {
		return money.Zero(), nil
	}
	if err != nil {
		return money.Zero(), fmt.Errorf("read balance %s: %w", account, err)
	}
	amount, err := money.Parse(raw)
	if err != nil {
		return money.Zero(), fmt.Errorf("parse balance %s: %w", account, err)
	}
	return amount, nil
}
