package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedeqiang/tokenwatch/chain"
	"github.com/hedeqiang/tokenwatch/decoder"
	"github.com/hedeqiang/tokenwatch/event"
	"github.com/hedeqiang/tokenwatch/filter"
	"github.com/hedeqiang/tokenwatch/notify"
	"github.com/hedeqiang/tokenwatch/state"
	"github.com/hedeqiang/tokenwatch/watch"
)

var (
	token = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	addrA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	addrB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	addrC = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func transferLog(from, to event.Address, value *big.Int, block uint64, index uint) event.Log {
	return event.Log{
		Address: token,
		Topics: []event.Hash{
			decoder.TransferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        common.LeftPadBytes(value.Bytes(), 32),
		BlockNumber: block,
		LogIndex:    index,
		TxHash:      common.BigToHash(big.NewInt(int64(block*1000) + int64(index))),
	}
}

type fakeChain struct {
	mu sync.Mutex

	latest     uint64
	latestErr  error
	logs       []event.Log
	logsErr    error
	balances   map[event.Address]*big.Int
	balanceErr map[event.Address]error

	latestCalls  int
	queries      []filter.Query
	balanceCalls []event.Address
}

func newFakeChain(latest uint64, logs ...event.Log) *fakeChain {
	return &fakeChain{
		latest:     latest,
		logs:       logs,
		balances:   map[event.Address]*big.Int{},
		balanceErr: map[event.Address]error{},
	}
}

func (f *fakeChain) LatestBlock(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latestCalls++
	return f.latest, f.latestErr
}

func (f *fakeChain) FetchLogs(_ context.Context, q filter.Query) ([]event.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	return append([]event.Log(nil), f.logs...), nil
}

func (f *fakeChain) BalanceOf(_ context.Context, tok, account event.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tok != token {
		return nil, fmt.Errorf("unexpected token %s", tok.Hex())
	}
	f.balanceCalls = append(f.balanceCalls, account)
	if err := f.balanceErr[account]; err != nil {
		return nil, err
	}
	if b, ok := f.balances[account]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeChain) ranges() [][2]uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][2]uint64, len(f.queries))
	for i, q := range f.queries {
		out[i] = [2]uint64{*q.FromBlock, *q.ToBlock}
	}
	return out
}

type recordingSink struct {
	mu   sync.Mutex
	sent []notify.Notification
	fail map[int64]bool
}

func (r *recordingSink) Send(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[n.SubscriberID] {
		return fmt.Errorf("%w: chat %d unreachable", notify.ErrDispatch, n.SubscriberID)
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingSink) notifications() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]notify.Notification(nil), r.sent...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		if out[i].LogIndex != out[j].LogIndex {
			return out[i].LogIndex < out[j].LogIndex
		}
		if out[i].SubscriberID != out[j].SubscriberID {
			return out[i].SubscriberID < out[j].SubscriberID
		}
		return out[i].Direction < out[j].Direction
	})
	return out
}

type flakyStore struct {
	*state.Memory
	failSaves bool
}

func (f *flakyStore) Save(ctx context.Context, s state.State) error {
	if f.failSaves {
		return errors.New("disk full")
	}
	return f.Memory.Save(ctx, s)
}

func testConfig() PollerConfig {
	cfg := DefaultPollerConfig()
	cfg.FirstDelay = time.Millisecond
	cfg.Interval = 5 * time.Millisecond
	cfg.RPCRetries = 0
	cfg.Workers = 4
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPoller(t *testing.T, c chain.Chain, store state.Store, sink notify.Sink, cfg PollerConfig) (*Poller, *watch.Registry) {
	t.Helper()
	reg, err := watch.Open(context.Background(), store)
	require.NoError(t, err)
	return NewPoller(c, reg, sink, token, cfg, quietLogger()), reg
}

func watches(ws ...state.Watch) state.State {
	return state.State{Watches: ws}
}

func TestPoll_Scenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store := state.NewFile(path)
	require.NoError(t, store.Save(context.Background(), state.State{
		Watches:          []state.Watch{{SubscriberID: 42, Address: addrB.Hex()}},
		LastHandledBlock: 100,
	}))

	c := newFakeChain(105, transferLog(addrA, addrB, tokens(5), 103, 0))
	c.balances[addrB] = tokens(12)
	sink := &recordingSink{}
	p, reg := newPoller(t, c, store, sink, testConfig())

	res, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{From: 101, To: 105, Logs: 1, Transfers: 1, Sent: 1}, res)

	assert.Equal(t, [][2]uint64{{101, 105}}, c.ranges())
	assert.Equal(t, []event.Address{addrB}, c.balanceCalls)

	sent := sink.notifications()
	require.Len(t, sent, 1)
	n := sent[0]
	assert.Equal(t, int64(42), n.SubscriberID)
	assert.Equal(t, notify.Inbound, n.Direction)
	assert.Equal(t, addrA, n.Counterparty)
	assert.Equal(t,
		"Transaction detected from "+addrA.Hex()+"\nvalue: 5\ncurrent "+addrB.Hex()+" balance: 12 tokens.\n",
		n.Text)

	assert.Equal(t, uint64(105), reg.Cursor())
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"last_handled_block": "0x69"`)
}

func TestPoll_IdleWhenCaughtUp(t *testing.T) {
	for _, latest := range []uint64{99, 100} {
		t.Run(fmt.Sprint(latest), func(t *testing.T) {
			store := state.NewMemory(state.State{LastHandledBlock: 100})
			c := newFakeChain(latest)
			p, reg := newPoller(t, c, store, &recordingSink{}, testConfig())

			res, err := p.Poll(context.Background())
			require.NoError(t, err)
			assert.True(t, res.Idle)
			assert.Empty(t, c.queries, "no fetch when idle")
			assert.Zero(t, store.Saves(), "no write when idle")
			assert.Equal(t, uint64(100), reg.Cursor())
		})
	}
}

func TestPoll_NoLogsAdvances(t *testing.T) {
	store := state.NewMemory(state.State{})
	c := newFakeChain(17)
	sink := &recordingSink{}
	p, reg := newPoller(t, c, store, sink, testConfig())

	res, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.From)
	assert.Equal(t, uint64(17), reg.Cursor())
	assert.Empty(t, sink.notifications())
}

func TestPoll_CaseInsensitiveInbound(t *testing.T) {
	store := state.NewMemory(watches(
		state.Watch{SubscriberID: 1, Address: "0x00000000000000000000000000000000000000B2"},
		state.Watch{SubscriberID: 2, Address: "0x00000000000000000000000000000000000000b2"},
		state.Watch{SubscriberID: 3, Address: addrC.Hex()},
	))
	c := newFakeChain(10, transferLog(addrA, addrB, big.NewInt(1), 5, 0))
	sink := &recordingSink{}
	p, _ := newPoller(t, c, store, sink, testConfig())

	_, err := p.Poll(context.Background())
	require.NoError(t, err)

	sent := sink.notifications()
	require.Len(t, sent, 2)
	assert.Equal(t, int64(1), sent[0].SubscriberID)
	assert.Equal(t, int64(2), sent[1].SubscriberID)
	for _, n := range sent {
		assert.Equal(t, notify.Inbound, n.Direction)
	}
}

func TestPoll_Outbound(t *testing.T) {
	store := state.NewMemory(watches(state.Watch{SubscriberID: 9, Address: addrA.Hex()}))
	c := newFakeChain(10, transferLog(addrA, addrB, tokens(3), 5, 0))
	c.balances[addrA] = big.NewInt(0)
	sink := &recordingSink{}
	p, _ := newPoller(t, c, store, sink, testConfig())

	_, err := p.Poll(context.Background())
	require.NoError(t, err)

	sent := sink.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, notify.Outbound, sent[0].Direction)
	assert.Equal(t, addrB, sent[0].Counterparty)
	assert.Equal(t, []event.Address{addrA}, c.balanceCalls)
	assert.Contains(t, sent[0].Text, "Transaction detected to "+addrB.Hex())
}

// A self-transfer sends both an inbound and an outbound alert. The Python bot
// this replaces used if/elif and only ever sent the inbound one; this is a
// deliberate divergence because the two alerts describe different events.
func TestPoll_SelfTransferSendsBothAlerts(t *testing.T) {
	store := state.NewMemory(watches(state.Watch{SubscriberID: 5, Address: addrA.Hex()}))
	c := newFakeChain(10, transferLog(addrA, addrA, tokens(1), 5, 0))
	sink := &recordingSink{}
	p, _ := newPoller(t, c, store, sink, testConfig())

	res, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)

	sent := sink.notifications()
	require.Len(t, sent, 2)
	assert.Equal(t, notify.Inbound, sent[0].Direction)
	assert.Equal(t, notify.Outbound, sent[1].Direction)
	assert.Len(t, c.balanceCalls, 2)
}

func TestPoll_ReplayReproducesNotifications(t *testing.T) {
	store := &flakyStore{Memory: state.NewMemory(state.State{
		Watches:          []state.Watch{{SubscriberID: 1, Address: addrB.Hex()}, {SubscriberID: 2, Address: addrA.Hex()}},
		LastHandledBlock: 50,
	})}
	c := newFakeChain(60,
		transferLog(addrA, addrB, tokens(2), 55, 1),
		transferLog(addrC, addrB, tokens(4), 52, 0),
	)
	sink := &recordingSink{}
	p, reg := newPoller(t, c, store, sink, testConfig())

	store.failSaves = true
	_, err := p.Poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, uint64(50), reg.Cursor())
	first := sink.notifications()
	require.Len(t, first, 3)

	sink.sent = nil
	store.failSaves = false
	_, err = p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, sink.notifications())
	assert.Equal(t, [][2]uint64{{51, 60}, {51, 60}}, c.ranges())
	assert.Equal(t, uint64(60), reg.Cursor())
}

func TestPoll_RPCFailureKeepsCursor(t *testing.T) {
	t.Run("latest block", func(t *testing.T) {
		store := state.NewMemory(state.State{LastHandledBlock: 10})
		c := newFakeChain(20)
		c.latestErr = fmt.Errorf("%w: connection refused", chain.ErrRPC)
		p, reg := newPoller(t, c, store, &recordingSink{}, testConfig())

		_, err := p.Poll(context.Background())
		assert.ErrorIs(t, err, chain.ErrRPC)
		assert.Equal(t, uint64(10), reg.Cursor())
		assert.Zero(t, store.Saves())
	})

	t.Run("fetch logs", func(t *testing.T) {
		store := state.NewMemory(state.State{LastHandledBlock: 10})
		c := newFakeChain(20)
		c.logsErr = fmt.Errorf("%w: timeout", chain.ErrRPC)
		p, reg := newPoller(t, c, store, &recordingSink{}, testConfig())

		_, err := p.Poll(context.Background())
		assert.ErrorIs(t, err, chain.ErrRPC)

		c.logsErr = nil
		_, err = p.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, [][2]uint64{{11, 20}, {11, 20}}, c.ranges(), "the failed range is fetched again")
		assert.Equal(t, uint64(20), reg.Cursor())
	})
}

func TestPoll_RetriesTransientRPC(t *testing.T) {
	store := state.NewMemory(state.State{})
	c := &flakyChain{fakeChain: newFakeChain(3), failures: 2}
	cfg := testConfig()
	cfg.RPCRetries = 3
	p, reg := newPoller(t, c, store, &recordingSink{}, cfg)
	p.backoff = &fixedBackoff{max: 3}

	_, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), reg.Cursor())
	assert.Equal(t, 3, c.latestCalls)
}

type flakyChain struct {
	*fakeChain
	failures int
}

func (f *flakyChain) LatestBlock(ctx context.Context) (uint64, error) {
	n, err := f.fakeChain.LatestBlock(ctx)
	if f.latestCalls <= f.failures {
		return 0, fmt.Errorf("%w: 502", chain.ErrRPC)
	}
	return n, err
}

type fixedBackoff struct{ max int }

func (b *fixedBackoff) Next(attempt int) (time.Duration, bool) {
	return time.Millisecond, attempt <= b.max
}

func TestPoll_DispatchFailureIsolated(t *testing.T) {
	store := state.NewMemory(watches(
		state.Watch{SubscriberID: 1, Address: addrB.Hex()},
		state.Watch{SubscriberID: 2, Address: addrB.Hex()},
		state.Watch{SubscriberID: 3, Address: addrB.Hex()},
	))
	c := newFakeChain(10,
		transferLog(addrA, addrB, big.NewInt(1), 4, 0),
		transferLog(addrA, addrB, big.NewInt(2), 6, 0),
	)
	sink := &recordingSink{fail: map[int64]bool{2: true}}
	p, reg := newPoller(t, c, store, sink, testConfig())

	res, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Sent)
	assert.Equal(t, 2, res.Failed)

	for _, n := range sink.notifications() {
		assert.NotEqual(t, int64(2), n.SubscriberID)
	}
	assert.Equal(t, uint64(10), reg.Cursor(), "dispatch failures do not hold the cursor back")
}

func TestPoll_BalanceFailure(t *testing.T) {
	t.Run("rpc error holds the cursor", func(t *testing.T) {
		store := state.NewMemory(watches(
			state.Watch{SubscriberID: 1, Address: addrB.Hex()},
			state.Watch{SubscriberID: 2, Address: addrC.Hex()},
		))
		c := newFakeChain(10,
			transferLog(addrA, addrB, big.NewInt(1), 4, 0),
			transferLog(addrA, addrC, big.NewInt(1), 5, 0),
		)
		c.balanceErr[addrB] = fmt.Errorf("%w: execution timeout", chain.ErrRPC)
		sink := &recordingSink{}
		p, reg := newPoller(t, c, store, sink, testConfig())

		res, err := p.Poll(context.Background())
		assert.ErrorIs(t, err, chain.ErrRPC)
		assert.Equal(t, 1, res.Sent, "other subscribers are still notified")
		require.Len(t, sink.notifications(), 1)
		assert.Equal(t, int64(2), sink.notifications()[0].SubscriberID)
		assert.Equal(t, uint64(0), reg.Cursor())
	})

	t.Run("bad return is skipped", func(t *testing.T) {
		store := state.NewMemory(watches(state.Watch{SubscriberID: 1, Address: addrB.Hex()}))
		c := newFakeChain(10, transferLog(addrA, addrB, big.NewInt(1), 4, 0))
		c.balanceErr[addrB] = fmt.Errorf("ethereum: balanceOf: %w", decoder.ErrBadReturn)
		sink := &recordingSink{}
		cfg := testConfig()
		cfg.RPCRetries = 3
		p, reg := newPoller(t, c, store, sink, cfg)

		res, err := p.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, res.Failed)
		assert.Empty(t, sink.notifications())
		assert.Equal(t, uint64(10), reg.Cursor())
		assert.Len(t, c.balanceCalls, 1, "non-rpc failures are not retried")
	})

	t.Run("reverted call is skipped", func(t *testing.T) {
		store := state.NewMemory(watches(
			state.Watch{SubscriberID: 1, Address: addrB.Hex()},
			state.Watch{SubscriberID: 2, Address: addrC.Hex()},
		))
		c := newFakeChain(10,
			transferLog(addrA, addrB, big.NewInt(1), 4, 0),
			transferLog(addrA, addrC, big.NewInt(1), 5, 0),
		)
		c.balanceErr[addrB] = fmt.Errorf("ethereum: eth_call: %w", chain.ErrReverted)
		sink := &recordingSink{}
		cfg := testConfig()
		cfg.RPCRetries = 3
		p, reg := newPoller(t, c, store, sink, cfg)

		res, err := p.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, res.Sent)
		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, uint64(10), reg.Cursor(), "a revert does not hold the cursor")

		res, err = p.Poll(context.Background())
		require.NoError(t, err)
		assert.True(t, res.Idle)
		assert.Len(t, sink.notifications(), 1, "the range is not replayed")
	})
}

func TestPoll_SkipsForeignLogs(t *testing.T) {
	store := state.NewMemory(watches(state.Watch{SubscriberID: 1, Address: addrB.Hex()}))

	wrongContract := transferLog(addrA, addrB, big.NewInt(1), 3, 0)
	wrongContract.Address = addrC

	nft := transferLog(addrA, addrB, big.NewInt(0), 3, 1)
	nft.Topics = append(nft.Topics, common.BigToHash(big.NewInt(7)))
	nft.Data = nil

	removed := transferLog(addrA, addrB, big.NewInt(1), 3, 2)
	removed.Removed = true

	outOfRange := transferLog(addrA, addrB, big.NewInt(1), 99, 0)

	good := transferLog(addrA, addrB, big.NewInt(1), 4, 0)

	c := newFakeChain(10, wrongContract, nft, removed, outOfRange, good)
	sink := &recordingSink{}
	p, _ := newPoller(t, c, store, sink, testConfig())

	res, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Logs)
	assert.Equal(t, 4, res.Skipped)
	assert.Equal(t, 1, res.Transfers)
	require.Len(t, sink.notifications(), 1)
	assert.Equal(t, uint64(4), sink.notifications()[0].BlockNumber)
}

func TestPoll_OrdersByBlockAndLogIndex(t *testing.T) {
	store := state.NewMemory(watches(state.Watch{SubscriberID: 1, Address: addrB.Hex()}))
	c := newFakeChain(10,
		transferLog(addrA, addrB, big.NewInt(1), 7, 3),
		transferLog(addrA, addrB, big.NewInt(1), 2, 9),
		transferLog(addrA, addrB, big.NewInt(1), 7, 1),
	)
	sink := &recordingSink{}
	cfg := testConfig()
	cfg.Workers = 1
	p, _ := newPoller(t, c, store, sink, cfg)

	_, err := p.Poll(context.Background())
	require.NoError(t, err)

	var order [][2]uint64
	for _, n := range sink.sent {
		order = append(order, [2]uint64{n.BlockNumber, uint64(n.LogIndex)})
	}
	assert.Equal(t, [][2]uint64{{2, 9}, {7, 1}, {7, 3}}, order)
}

func TestPoll_MaxBlockRange(t *testing.T) {
	store := state.NewMemory(state.State{LastHandledBlock: 100})
	c := newFakeChain(250)
	cfg := testConfig()
	cfg.MaxBlockRange = 100
	p, reg := newPoller(t, c, store, &recordingSink{}, cfg)

	res, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(200), res.To)
	assert.Equal(t, uint64(200), reg.Cursor())

	_, err = p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][2]uint64{{101, 200}, {201, 250}}, c.ranges())
	assert.Equal(t, uint64(250), reg.Cursor())
}

func TestPoll_CircuitBreaker(t *testing.T) {
	store := state.NewMemory(state.State{})
	c := newFakeChain(5)
	c.latestErr = fmt.Errorf("%w: down", chain.ErrRPC)
	cfg := testConfig()
	cfg.BreakerThreshold = 2
	cfg.BreakerCooldown = time.Hour
	p, _ := newPoller(t, c, store, &recordingSink{}, cfg)

	for i := 0; i < 2; i++ {
		_, err := p.Poll(context.Background())
		assert.ErrorIs(t, err, chain.ErrRPC)
	}
	_, err := p.Poll(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, c.latestCalls)
}

func TestPoll_RegistrationDuringCycleIsNotLost(t *testing.T) {
	store := state.NewMemory(state.State{})
	c := newFakeChain(10, transferLog(addrA, addrB, big.NewInt(1), 4, 0))
	p, reg := newPoller(t, c, store, &recordingSink{}, testConfig())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := reg.Upsert(context.Background(), id, addrB.Hex())
			assert.NoError(t, err)
		}(int64(i))
	}
	_, err := p.Poll(context.Background())
	require.NoError(t, err)
	wg.Wait()

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted.Watches, 20)
	assert.Equal(t, uint64(10), persisted.LastHandledBlock)
}

func TestWatch_RunsCyclesUntilStopped(t *testing.T) {
	store := state.NewMemory(state.State{})
	c := newFakeChain(3)
	p, reg := newPoller(t, c, store, &recordingSink{}, testConfig())

	cycles := make(chan Result, 16)
	p.OnCycle(func(r Result) {
		select {
		case cycles <- r:
		default:
		}
	})

	done := make(chan error, 1)
	go func() { done <- p.Watch(context.Background()) }()

	first := <-cycles
	assert.False(t, first.Idle)
	second := <-cycles
	assert.True(t, second.Idle)

	require.NoError(t, p.Stop())
	require.NoError(t, <-done)
	assert.Equal(t, uint64(3), reg.Cursor())
}

func TestWatch_ReportsErrors(t *testing.T) {
	c := newFakeChain(3)
	c.latestErr = fmt.Errorf("%w: down", chain.ErrRPC)
	p, _ := newPoller(t, c, state.NewMemory(state.State{}), &recordingSink{}, testConfig())

	errs := make(chan error, 16)
	p.OnError(func(err error) {
		select {
		case errs <- err:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Watch(ctx) }()

	assert.ErrorIs(t, <-errs, chain.ErrRPC)
	cancel()
	require.NoError(t, <-done)
}

func TestWatch_NonPositiveInterval(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = 0
	c := newFakeChain(3)
	p, reg := newPoller(t, c, state.NewMemory(state.State{}), &recordingSink{}, cfg)
	assert.Equal(t, DefaultPollerConfig().Interval, p.config.Interval)

	cycles := make(chan Result, 1)
	p.OnCycle(func(r Result) {
		select {
		case cycles <- r:
		default:
		}
	})

	done := make(chan error, 1)
	go func() { done <- p.Watch(context.Background()) }()

	<-cycles
	require.NoError(t, p.Stop())
	require.NoError(t, <-done)
	assert.Equal(t, uint64(3), reg.Cursor())
}

func TestWatch_CancelDuringFirstDelay(t *testing.T) {
	cfg := testConfig()
	cfg.FirstDelay = time.Hour
	c := newFakeChain(3)
	p, _ := newPoller(t, c, state.NewMemory(state.State{}), &recordingSink{}, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Watch(ctx))
	assert.Zero(t, c.latestCalls)
}
