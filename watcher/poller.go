package watcher

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hedeqiang/tokenwatch/chain"
	"github.com/hedeqiang/tokenwatch/decoder"
	"github.com/hedeqiang/tokenwatch/event"
	"github.com/hedeqiang/tokenwatch/filter"
	"github.com/hedeqiang/tokenwatch/metrics"
	"github.com/hedeqiang/tokenwatch/notify"
	"github.com/hedeqiang/tokenwatch/retry"
	"github.com/hedeqiang/tokenwatch/state"
	"github.com/hedeqiang/tokenwatch/watch"
)

var _ Watcher = (*Poller)(nil)

// PollerConfig configures a Poller.
type PollerConfig struct {
	// Interval between polling cycles. Non-positive values use the default.
	Interval time.Duration

	// FirstDelay is the wait before the first cycle.
	FirstDelay time.Duration

	// MaxBlockRange caps the blocks scanned per cycle. 0 means no cap.
	MaxBlockRange uint64

	// RPCTimeout bounds each node call. RPCRetries is how many times a
	// failed call is retried within a cycle.
	RPCTimeout time.Duration
	RPCRetries int

	// DispatchTimeout bounds each notification delivery.
	DispatchTimeout time.Duration

	// Workers is the number of balance queries and deliveries run at once.
	Workers int

	// Decimals scales raw token amounts for display.
	Decimals uint8

	// BreakerThreshold consecutive failed cycles open the circuit breaker for
	// BreakerCooldown.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// DefaultPollerConfig returns the defaults used by the original bot.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:         30 * time.Second,
		FirstDelay:       3 * time.Second,
		RPCTimeout:       10 * time.Second,
		RPCRetries:       3,
		DispatchTimeout:  10 * time.Second,
		Workers:          8,
		Decimals:         18,
		BreakerThreshold: 5,
		BreakerCooldown:  2 * time.Minute,
	}
}

// Poller scans the token's Transfer logs block range by block range and
// notifies every subscriber watching the sender or recipient.
type Poller struct {
	chain    chain.Chain
	registry *watch.Registry
	sink     notify.Sink
	token    event.Address
	query    filter.Query
	config   PollerConfig
	backoff  retry.Strategy
	breaker  *retry.CircuitBreaker
	logger   *slog.Logger

	cycleMu sync.Mutex

	mu      sync.Mutex
	onCycle func(Result)
	onError func(error)
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewPoller creates a Poller for token on c.
func NewPoller(c chain.Chain, reg *watch.Registry, sink notify.Sink, token event.Address, cfg PollerConfig, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollerConfig().Interval
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BreakerThreshold < 1 {
		cfg.BreakerThreshold = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Poller{
		chain:    c,
		registry: reg,
		sink:     sink,
		token:    token,
		query: filter.NewQuery(
			filter.WithAddresses(token),
			filter.WithTopics([]event.Hash{decoder.TransferTopic}),
		),
		config:  cfg,
		backoff: retry.Exponential(cfg.RPCRetries),
		breaker: retry.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		logger:  logger.With("component", "poller", "token", token.Hex()),
	}
	p.breaker.OnStateChange = func(from, to retry.State) {
		p.logger.Warn("rpc circuit breaker", "from", from.String(), "to", to.String())
	}
	return p
}

// OnCycle registers a callback for completed cycles.
func (p *Poller) OnCycle(fn func(Result)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCycle = fn
}

// OnError registers a callback for failed cycles.
func (p *Poller) OnError(fn func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onError = fn
}

// Watch runs a cycle after FirstDelay and then one per Interval until ctx is
// cancelled or Stop is called. A cycle in progress always runs to completion.
func (p *Poller) Watch(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})

	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		cancel()
		return errors.New("watcher: poller already running")
	}
	p.cancel = cancel
	p.stopped = stopped
	p.mu.Unlock()

	defer func() {
		cancel()
		p.mu.Lock()
		p.cancel = nil
		p.mu.Unlock()
		close(stopped)
	}()

	first := time.NewTimer(p.config.FirstDelay)
	select {
	case <-ctx.Done():
		first.Stop()
		return nil
	case <-first.C:
	}
	p.cycle(ctx)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// Stop terminates the polling loop and waits for it to exit.
func (p *Poller) Stop() error {
	p.mu.Lock()
	cancel, stopped := p.cancel, p.stopped
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-stopped
	}
	return nil
}

func (p *Poller) cycle(ctx context.Context) {
	res, err := p.Poll(context.WithoutCancel(ctx))
	if err != nil {
		p.logger.Error("poll cycle failed", "error", err, "cursor", p.registry.Cursor())
		p.emitError(err)
		return
	}
	if res.Idle {
		p.logger.Debug("no new blocks", "cursor", p.registry.Cursor())
	} else {
		p.logger.Info("poll cycle done",
			"from", res.From,
			"to", res.To,
			"logs", res.Logs,
			"transfers", res.Transfers,
			"sent", res.Sent,
			"failed", res.Failed,
		)
	}
	p.emitCycle(res)
}

// Poll runs one cycle: it fetches the Transfer logs in
// (cursor, latest], notifies every matching subscriber and then advances
// the cursor to the end of the range. Cycles never overlap.
//
// Delivery is at-least-once. If the cycle fails after some notifications
// went out, or the process dies before the cursor is saved, the same range
// is scanned again and those notifications are sent again.
func (p *Poller) Poll(ctx context.Context) (res Result, err error) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	start := time.Now()
	defer func() {
		metrics.PollerCycleLatency.Observe(time.Since(start).Seconds())
		outcome := "advanced"
		switch {
		case err != nil:
			outcome = "failed"
		case res.Idle:
			outcome = "idle"
		}
		metrics.PollerCycles.WithLabelValues(outcome).Inc()
	}()

	if !p.breaker.Allow() {
		return res, ErrCircuitOpen
	}

	cursor := p.registry.Cursor()

	var latest uint64
	err = p.rpc(ctx, func(ctx context.Context) error {
		var err error
		latest, err = p.chain.LatestBlock(ctx)
		return err
	})
	if err != nil {
		p.breaker.RecordFailure()
		return res, fmt.Errorf("watcher: latest block: %w", err)
	}

	if cursor >= latest {
		p.breaker.RecordSuccess()
		res.Idle = true
		return res, nil
	}

	from, to := cursor+1, latest
	if p.config.MaxBlockRange > 0 && to-cursor > p.config.MaxBlockRange {
		to = cursor + p.config.MaxBlockRange
	}
	res.From, res.To = from, to
	q := p.query.Range(from, to)

	var logs []event.Log
	err = p.rpc(ctx, func(ctx context.Context) error {
		var err error
		logs, err = p.chain.FetchLogs(ctx, q)
		return err
	})
	if err != nil {
		p.breaker.RecordFailure()
		return res, fmt.Errorf("watcher: fetch logs [%d, %d]: %w", from, to, err)
	}
	res.Logs = len(logs)

	transfers := p.decode(q, logs, &res)
	jobs := plan(p.registry.Snapshot(), transfers)

	if err := p.dispatch(ctx, jobs, &res); err != nil {
		p.breaker.RecordFailure()
		return res, fmt.Errorf("watcher: blocks [%d, %d]: %w", from, to, err)
	}
	p.breaker.RecordSuccess()

	if err := p.registry.Advance(ctx, to); err != nil {
		return res, fmt.Errorf("watcher: advance cursor to %d: %w", to, err)
	}
	return res, nil
}

// decode keeps the logs that are ERC20 transfers of the token within q,
// ordered by block and log index.
func (p *Poller) decode(q filter.Query, logs []event.Log, res *Result) []event.Transfer {
	transfers := make([]event.Transfer, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			res.Skipped++
			continue
		}
		if !q.Match(l) {
			p.logger.Warn("skipping unexpected log",
				"address", l.Address.Hex(),
				"topic0", l.EventSignature().Hex(),
				"block", l.BlockNumber,
			)
			res.Skipped++
			continue
		}
		t, err := decoder.DecodeTransfer(l)
		if err != nil {
			p.logger.Warn("skipping undecodable log", "block", l.BlockNumber, "tx", l.TxHash.Hex(), "error", err)
			res.Skipped++
			continue
		}
		transfers = append(transfers, t)
	}

	slices.SortStableFunc(transfers, func(a, b event.Transfer) int {
		if c := cmp.Compare(a.BlockNumber, b.BlockNumber); c != 0 {
			return c
		}
		return cmp.Compare(a.LogIndex, b.LogIndex)
	})

	res.Transfers = len(transfers)
	metrics.PollerTransfers.Add(float64(len(transfers)))
	return transfers
}

// job is one alert to one subscriber.
type job struct {
	watch     state.Watch
	direction notify.Direction
	watched   event.Address
	other     event.Address
	transfer  event.Transfer
}

// plan matches transfers against the snapshot. Inbound and outbound are
// evaluated independently, so a self-transfer yields both.
func plan(snap watch.Snapshot, transfers []event.Transfer) []job {
	var jobs []job
	for _, t := range transfers {
		for _, w := range snap.MatchesInbound(t.To) {
			jobs = append(jobs, job{watch: w, direction: notify.Inbound, watched: t.To, other: t.From, transfer: t})
		}
		for _, w := range snap.MatchesOutbound(t.From) {
			jobs = append(jobs, job{watch: w, direction: notify.Outbound, watched: t.From, other: t.To, transfer: t})
		}
	}
	return jobs
}

// dispatch runs jobs on a bounded pool. Failures stay within their job; an
// RPC failure is additionally returned so the cursor is not advanced past
// an alert that was never sent.
func (p *Poller) dispatch(ctx context.Context, jobs []job, res *Result) error {
	var (
		g            errgroup.Group
		sent, failed atomic.Int64
		mu           sync.Mutex
		rpcErrs      []error
	)
	g.SetLimit(p.config.Workers)

	for _, j := range jobs {
		g.Go(func() error {
			err := p.run(ctx, j)
			switch {
			case err == nil:
				sent.Add(1)
			case errors.Is(err, chain.ErrRPC):
				failed.Add(1)
				mu.Lock()
				rpcErrs = append(rpcErrs, err)
				mu.Unlock()
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Sent = int(sent.Load())
	res.Failed = int(failed.Load())
	if len(rpcErrs) > 0 {
		return fmt.Errorf("%d balance queries failed: %w", len(rpcErrs), errors.Join(rpcErrs...))
	}
	return nil
}

func (p *Poller) run(ctx context.Context, j job) error {
	logger := p.logger.With(
		"subscriber", j.watch.SubscriberID,
		"direction", j.direction,
		"block", j.transfer.BlockNumber,
		"tx", j.transfer.TxHash.Hex(),
	)

	var balance *big.Int
	err := p.rpc(ctx, func(ctx context.Context) error {
		var err error
		balance, err = p.chain.BalanceOf(ctx, p.token, j.watched)
		return err
	})
	if err != nil {
		logger.Warn("balance query failed, alert skipped", "address", j.watched.Hex(), "error", err)
		return err
	}

	n := notify.Render(notify.Notification{
		SubscriberID: j.watch.SubscriberID,
		Direction:    j.direction,
		Watched:      j.watched,
		Counterparty: j.other,
		Value:        j.transfer.Value,
		Balance:      balance,
		BlockNumber:  j.transfer.BlockNumber,
		TxHash:       j.transfer.TxHash,
		LogIndex:     j.transfer.LogIndex,
	}, p.config.Decimals)

	sendCtx, cancel := p.withTimeout(ctx, p.config.DispatchTimeout)
	defer cancel()
	if err := p.sink.Send(sendCtx, n); err != nil {
		logger.Warn("dispatch failed, alert skipped", "error", err)
		return err
	}
	return nil
}

// rpc runs fn under RPCTimeout, retrying chain.ErrRPC failures with backoff.
func (p *Poller) rpc(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, p.backoff, func(ctx context.Context) error {
		callCtx, cancel := p.withTimeout(ctx, p.config.RPCTimeout)
		defer cancel()
		err := fn(callCtx)
		if err != nil && !errors.Is(err, chain.ErrRPC) {
			return retry.Permanent(err)
		}
		return err
	})
}

func (p *Poller) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (p *Poller) emitCycle(res Result) {
	p.mu.Lock()
	fn := p.onCycle
	p.mu.Unlock()
	if fn != nil {
		fn(res)
	}
}

func (p *Poller) emitError(err error) {
	p.mu.Lock()
	fn := p.onError
	p.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
