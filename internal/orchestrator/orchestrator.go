// Package orchestrator owns the end-to-end procurement run: demand in,
// winning set out. It fans out one Bilateral Session per seller using a
// bounded worker pool, collects outcomes single-writer, and invokes the
// Solver, per §4.4.
package orchestrator

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"negotiator/internal/catalog"
	"negotiator/internal/concessor"
	"negotiator/internal/config"
	"negotiator/internal/domain"
	"negotiator/internal/evaluator"
	"negotiator/internal/session"
	"negotiator/internal/solver"
	"negotiator/internal/wire"
)

// DefaultMaxConcurrency bounds how many sessions run at once; sellers
// beyond this count queue behind the pool's running goroutines.
const DefaultMaxConcurrency = 32

// DefaultGlobalSafetyFactor multiplies T*waitTimeout to size the whole
// run's timeout, per §5's "default T x per-state-timeout x safety-factor".
const DefaultGlobalSafetyFactor = 2

// BuyerID is the fixed identifier this orchestrator negotiates as.
const BuyerID = "buyer"

// Orchestrator owns one procurement run's lifecycle end to end.
type Orchestrator struct {
	cfg      *config.Config
	eval     *evaluator.Evaluator
	conc     *concessor.Concessor
	bus      *wire.Bus
	catalog  catalog.Provider
	sellers  map[string][]domain.Bundle
	order    []domain.Product
	buyerID  string
	log      *slog.Logger
	now      func() time.Time

	maxConcurrency int
	waitTimeout    time.Duration
	safetyFactor   int

	queueMu sync.Mutex
	queue   *list.List
	wake    chan struct{}
}

// Option customizes Orchestrator construction.
type Option func(*Orchestrator)

func WithCatalogProvider(p catalog.Provider) Option {
	return func(o *Orchestrator) { o.catalog = p }
}

func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrency = n
		}
	}
}

func WithWaitTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.waitTimeout = d
		}
	}
}

func WithGlobalSafetyFactor(f int) Option {
	return func(o *Orchestrator) {
		if f > 0 {
			o.safetyFactor = f
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New constructs an Orchestrator. sellers is the initial, statically known
// seller->bundles directory; order fixes the product axis every demand
// vector and coverage vector is expressed in.
func New(cfg *config.Config, eval *evaluator.Evaluator, conc *concessor.Concessor, bus *wire.Bus, sellers map[string][]domain.Bundle, order []domain.Product, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:            cfg,
		eval:           eval,
		conc:           conc,
		bus:            bus,
		sellers:        sellers,
		order:          order,
		buyerID:        BuyerID,
		log:            slog.Default(),
		now:            time.Now,
		maxConcurrency: DefaultMaxConcurrency,
		waitTimeout:    session.DefaultWaitTimeout,
		safetyFactor:   DefaultGlobalSafetyFactor,
		queue:          list.New(),
		wake:           make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// runRequest is one queued demand awaiting processing; re-entrancy policy
// is (a) queue (§4.4's documented default): a new demand arriving mid-run
// waits behind the current one rather than cancelling it.
type runRequest struct {
	demand string
	result chan RunResult
}

// RunResult is what one completed (or failed) run reports.
type RunResult struct {
	Demand           string
	Outcomes         []domain.Outcome
	TotalUtility     float64
	UnknownSymbols   []string
	SellersContacted int
	StartedAt        time.Time
	Err              error
}

// Start launches the single worker that drains the run queue in FIFO
// order — re-entrancy policy (a) from §4.4: a demand arriving mid-run
// queues behind the in-flight one rather than cancelling it. Start must be
// called once before Submit's results will ever be delivered; it returns
// once ctx is cancelled, failing any requests still queued.
func (o *Orchestrator) Start(ctx context.Context) {
	for {
		req := o.popNext()
		if req == nil {
			select {
			case <-ctx.Done():
				o.failQueued()
				return
			case <-o.wake:
				continue
			}
		}
		res := o.runOnce(ctx, req.demand)
		req.result <- res
		close(req.result)
	}
}

func (o *Orchestrator) popNext() *runRequest {
	o.queueMu.Lock()
	defer o.queueMu.Unlock()
	front := o.queue.Front()
	if front == nil {
		return nil
	}
	o.queue.Remove(front)
	return front.Value.(*runRequest)
}

func (o *Orchestrator) failQueued() {
	for {
		req := o.popNext()
		if req == nil {
			return
		}
		req.result <- RunResult{Demand: req.demand, Err: context.Canceled}
		close(req.result)
	}
}

// Submit enqueues a demand string for processing and returns a channel
// that receives exactly one RunResult once the run (queued behind any
// run already in progress) completes.
func (o *Orchestrator) Submit(demand string) <-chan RunResult {
	result := make(chan RunResult, 1)
	req := &runRequest{demand: demand, result: result}
	o.queueMu.Lock()
	o.queue.PushBack(req)
	o.queueMu.Unlock()
	select {
	case o.wake <- struct{}{}:
	default:
	}
	return result
}

// SetSellers replaces the static seller directory used when no catalog
// provider is configured or the provider's fetch fails.
func (o *Orchestrator) SetSellers(sellers map[string][]domain.Bundle) {
	o.sellers = sellers
}

// Catalog returns the seller directory a run would currently offer
// against: the live catalog provider's view if one is configured and
// reachable, otherwise the last-known static directory.
func (o *Orchestrator) Catalog(ctx context.Context) (map[string][]domain.Bundle, error) {
	if o.catalog == nil {
		return o.sellers, nil
	}
	fetched, err := o.catalog.Bundles(ctx)
	if err != nil {
		return o.sellers, err
	}
	return fetched, nil
}

// ProductOrder returns the fixed product axis demand and coverage vectors
// are expressed in.
func (o *Orchestrator) ProductOrder() []domain.Product {
	return o.order
}

func (o *Orchestrator) globalTimeout() time.Duration {
	return time.Duration(o.cfg.MaxRounds()) * o.waitTimeout * time.Duration(o.safetyFactor)
}

// runOnce is the Orchestrator's single lifecycle pass: parse demand,
// optionally refresh the catalog, fan out one session per seller, collect
// outcomes, and invoke the Solver.
func (o *Orchestrator) runOnce(ctx context.Context, demandStr string) RunResult {
	startedAt := o.now()
	known := map[domain.Product]bool{}
	for _, p := range o.order {
		known[p] = true
	}
	demandVec, unknown := domain.ParseDemand(demandStr, known)
	for _, sym := range unknown {
		o.log.Warn("orchestrator: unknown product symbol ignored", "symbol", sym)
	}
	demandInts := demandVec.ToSlice(o.order)

	sellerBundles := o.sellers
	if o.catalog != nil {
		fetched, err := o.catalog.Bundles(ctx)
		if err != nil {
			o.log.Warn("orchestrator: catalog fetch failed, using last-known directory", "error", err)
		} else {
			sellerBundles = fetched
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, o.globalTimeout())
	defer cancel()

	results := o.fanOut(runCtx, sellerBundles)

	var outcomes []domain.Outcome
	for _, r := range results {
		if r.Success {
			outcomes = append(outcomes, r.Outcomes...)
		}
	}

	won, total, err := solver.Solve(outcomes, o.order, demandInts)
	if err != nil {
		o.log.Info("orchestrator: no combination satisfies demand", "demand", demandStr)
		return RunResult{Demand: demandStr, UnknownSymbols: unknown, SellersContacted: len(sellerBundles), StartedAt: startedAt, Err: err}
	}
	o.log.Info("negotiation.run.completed",
		"demand", demandStr,
		"sellers_contacted", len(sellerBundles),
		"outcomes_won", len(won),
		"total_utility", total,
	)
	return RunResult{Demand: demandStr, Outcomes: won, TotalUtility: total, UnknownSymbols: unknown, SellersContacted: len(sellerBundles), StartedAt: startedAt}
}

// fanOut spawns one Bilateral Session per seller via a bounded worker
// pool and waits for every session to report, per §4.4's "collect
// outcomes until the expected count is reached" and §5's "orchestrator
// waits for all sessions to report before invoking the Solver."
func (o *Orchestrator) fanOut(ctx context.Context, sellerBundles map[string][]domain.Bundle) []session.Result {
	p := pool.NewWithResults[session.Result]().WithMaxGoroutines(o.maxConcurrency)
	for sellerID, bundles := range sellerBundles {
		sellerID, bundles := sellerID, bundles
		p.Go(func() session.Result {
			s := session.New(o.cfg, o.eval, o.conc, o.bus, o.buyerID, sellerID, bundles,
				session.WithWaitTimeout(o.waitTimeout), session.WithLogger(o.log))
			return s.Run(ctx)
		})
	}
	return p.Wait()
}
