package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"plinko/internal/events"
	"plinko/internal/leaderboard"
	"plinko/internal/store"
)

const (
	DefaultQueueSize   = 1000
	DefaultCallTimeout = 5 * time.Second
)

var ErrTimeout = errors.New("engine call timed out")

// Engine serializes every call through a single loop goroutine. Each call
// runs on its own store transaction, which is committed only when a mutating
// request succeeds.
type Engine struct {
	store       store.Store
	publisher   events.Publisher
	sink        events.TransferSink
	clock       *Clock
	calls       chan *job
	stopChan    chan struct{}
	done        chan struct{}
	startOnce   sync.Once
	stopOnce    sync.Once
	callTimeout time.Duration
	logger      *log.Entry
}

// Job states. A queued job is claimed by exactly one of the loop (running)
// or its waiting caller (abandoned).
const (
	jobQueued int32 = iota
	jobRunning
	jobAbandoned
)

type job struct {
	ctx   context.Context
	call  Call
	state atomic.Int32
	resp  chan response
}

type response struct {
	result *Result
	err    error
}

type Option func(*Engine)

// WithPublisher sets where committed events go.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithTransferSink sets who executes committed payouts.
func WithTransferSink(s events.TransferSink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithClock stamps calls that arrive without a block, in loop order.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.calls = make(chan *job, n)
		}
	}
}

func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.callTimeout = d
		}
	}
}

func NewEngine(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:       s,
		publisher:   events.Noop{},
		sink:        events.Noop{},
		calls:       make(chan *job, DefaultQueueSize),
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
		callTimeout: DefaultCallTimeout,
		logger:      log.WithFields(log.Fields{"component": "engine"}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Start() {
	e.startOnce.Do(func() { go e.loop() })
}

// Stop ends the loop. Calls still queued fail with ErrStopped.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
}

// Execute queues call and waits for its result. A call that times out or
// whose ctx ends before it commits fails without touching state.
func (e *Engine) Execute(ctx context.Context, call Call) (*Result, error) {
	select {
	case <-e.stopChan:
		return nil, ErrStopped
	default:
	}

	ctx, cancel := context.WithTimeoutCause(ctx, e.callTimeout, ErrTimeout)
	defer cancel()

	j := &job{ctx: ctx, call: call, resp: make(chan response, 1)}
	select {
	case e.calls <- j:
	default:
		return nil, ErrQueueFull
	}

	select {
	case r := <-j.resp:
		return r.result, r.err
	case <-ctx.Done():
		if j.state.CompareAndSwap(jobQueued, jobAbandoned) {
			return nil, context.Cause(ctx)
		}
		// Running: handle gives up before commit, or has already committed.
		return e.await(j)
	case <-e.done:
		return e.collect(j)
	}
}

func (e *Engine) await(j *job) (*Result, error) {
	select {
	case r := <-j.resp:
		return r.result, r.err
	case <-e.done:
		return e.collect(j)
	}
}

// collect prefers a response the loop sent before it exited.
func (e *Engine) collect(j *job) (*Result, error) {
	select {
	case r := <-j.resp:
		return r.result, r.err
	default:
		return nil, ErrStopped
	}
}

func (e *Engine) loop() {
	defer close(e.done)
	e.logger.Info("engine loop started")
	for {
		select {
		case <-e.stopChan:
			e.logger.Info("engine loop stopped")
			return
		case j := <-e.calls:
			if !j.state.CompareAndSwap(jobQueued, jobRunning) {
				continue
			}
			if j.ctx.Err() != nil {
				j.resp <- response{err: context.Cause(j.ctx)}
				continue
			}
			if e.clock != nil && j.call.Block.IsZero() {
				j.call.Block = e.clock.Next()
			}
			result, err := e.handle(j.ctx, j.call)
			j.resp <- response{result: result, err: err}
		}
	}
}

// callCtx is everything a handler sees for one call.
type callCtx struct {
	call Call
	st   state
	out  *events.Outbox
	now  uint64
}

func (c *callCtx) event(action string) events.Event {
	return events.New(action, c.call.Block.Height, c.call.Block.Time)
}

func (e *Engine) handle(ctx context.Context, call Call) (*Result, error) {
	if call.Request == nil {
		return nil, ErrUnknownRequest
	}

	tx := store.Begin(ctx, e.store)
	c := &callCtx{
		call: call,
		st:   state{tx: tx},
		out:  &events.Outbox{},
		now:  leaderboard.Seconds(call.Block.Time),
	}
	fields := log.Fields{
		"request": call.Request.Name(),
		"caller":  call.Caller,
		"height":  call.Block.Height,
	}

	data, err := e.dispatch(c)
	if err != nil {
		tx.Discard()
		entry := e.logger.WithFields(fields).WithField("error", err)
		if KindOf(err) == KindInternal {
			entry.Error("call failed")
		} else {
			entry.Debug("call rejected")
		}
		return nil, err
	}
	if call.Request.readOnly() {
		tx.Discard()
		return &Result{Block: call.Block, Data: data}, nil
	}

	if ctx.Err() != nil {
		tx.Discard()
		c.out.Discard()
		e.logger.WithFields(fields).Warn("call expired before commit")
		return nil, context.Cause(ctx)
	}
	if err := tx.Commit(); err != nil {
		c.out.Discard()
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		e.logger.WithFields(fields).WithField("error", err).Error("commit failed")
		return nil, fmt.Errorf("%s: %w", call.Request.Name(), err)
	}

	result := &Result{
		Block:     call.Block,
		Data:      data,
		Events:    slices.Clone(c.out.Events),
		Transfers: slices.Clone(c.out.Transfers),
	}
	if err := c.out.Flush(context.WithoutCancel(ctx), e.publisher, e.sink); err != nil {
		e.logger.WithFields(fields).WithField("error", err).Error("transfer delivery failed after commit")
	}
	e.logger.WithFields(fields).WithField("events", len(result.Events)).Debug("call committed")
	return result, nil
}

func (e *Engine) dispatch(c *callCtx) (any, error) {
	if inst, ok := c.call.Request.(Instantiate); ok {
		return instantiate(c, inst)
	}

	cfg, err := c.st.config()
	if err != nil {
		return nil, err
	}
	if !c.call.Request.readOnly() {
		if err := c.st.notBefore(c.now); err != nil {
			return nil, err
		}
	}

	switch req := c.call.Request.(type) {
	case Play:
		return play(c, cfg, req)
	case WithdrawHouse:
		return withdrawHouse(c, cfg, req)
	case FundHouse:
		return fundHouse(c, cfg)
	case SyncBalance:
		return syncBalance(c, cfg, req)
	case ClaimDailyPrize:
		return claimDailyPrize(c, cfg, req)
	case UpdatePrizeConfig:
		return updatePrizeConfig(c, cfg, req)
	case QueryConfig:
		return cfg, nil
	case QueryStats:
		return c.st.stats()
	case QueryDailyStats:
		return queryDailyStats(c)
	case QueryHistory:
		return queryHistory(c, req)
	case QueryUserStats:
		return queryUserStats(c, req)
	case QueryGlobalLeaderboard:
		return queryGlobalLeaderboard(c, req)
	case QueryDailyLeaderboard:
		return queryDailyLeaderboard(c, req)
	case QueryWinnablePrize:
		return queryWinnablePrize(c, req)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownRequest, c.call.Request.Name())
}
