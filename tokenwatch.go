package tokenwatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hedeqiang/tokenwatch/chain"
	"github.com/hedeqiang/tokenwatch/internal/syncutil"
	"github.com/hedeqiang/tokenwatch/middleware"
	"github.com/hedeqiang/tokenwatch/notify"
	"github.com/hedeqiang/tokenwatch/state"
	"github.com/hedeqiang/tokenwatch/watch"
	"github.com/hedeqiang/tokenwatch/watcher"
)

// Service is a long-running component started by App.Run.
type Service interface {
	Run(ctx context.Context) error
}

// ServiceFunc adapts a function to a Service.
type ServiceFunc func(ctx context.Context) error

// Run calls f.
func (f ServiceFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// App ties the registry, the poller and the registration services together.
type App struct {
	config      Config
	chain       chain.Chain
	sink        notify.Sink
	store       state.Store
	middlewares []middleware.Middleware
	services    []Service
	logger      *slog.Logger

	registry *watch.Registry
	poller   *watcher.Poller

	mu      sync.Mutex
	running bool
}

// New loads the persisted state and builds the poller. A corrupt state
// document is fatal and reported as ErrCorrupt.
func New(ctx context.Context, c chain.Chain, sink notify.Sink, cfg Config, opts ...Option) (*App, error) {
	a := &App{
		config: cfg,
		chain:  c,
		sink:   sink,
		store:  state.NewMemory(state.State{}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	reg, err := watch.Open(ctx, a.store)
	if err != nil {
		return nil, fmt.Errorf("tokenwatch: %w", err)
	}
	a.registry = reg

	if len(a.middlewares) > 0 {
		a.sink = middleware.Sink(a.sink, a.middlewares...)
	}
	a.poller = watcher.NewPoller(a.chain, reg, a.sink, cfg.Token, a.config.Poller, a.logger)

	a.logger.Info("state loaded",
		"token", cfg.Token.Hex(),
		"watches", len(reg.Watches()),
		"last_handled_block", reg.Cursor(),
	)
	return a, nil
}

// Registry returns the watch registry shared by the poller and the services.
func (a *App) Registry() *watch.Registry {
	return a.registry
}

// Poller returns the poll loop.
func (a *App) Poller() *watcher.Poller {
	return a.poller
}

// Register adds services after construction. It must be called before Run.
func (a *App) Register(services ...Service) {
	a.services = append(a.services, services...)
}

// Run starts the poller and every service, and blocks until ctx is
// cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.running = true
	a.mu.Unlock()

	g := syncutil.NewGroup(ctx)
	g.Go(a.poller.Watch)
	for _, s := range a.services {
		g.Go(s.Run)
	}

	err := g.Wait()
	a.logger.Info("stopped", "last_handled_block", a.registry.Cursor())
	return err
}
