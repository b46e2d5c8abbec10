// Package session implements the bilateral negotiation finite state
// machine of §4.3: one buyer-side loop and one seller-side loop,
// communicating exclusively over a wire.Bus, each suspending in wait
// states on (message, timeout) and never sharing mutable state with the
// other side.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"negotiator/internal/concessor"
	"negotiator/internal/config"
	"negotiator/internal/domain"
	"negotiator/internal/evaluator"
	"negotiator/internal/wire"
)

// DefaultWaitTimeout is the default per-wait-state wall-clock timeout.
const DefaultWaitTimeout = 15 * time.Second

// Session drives one buyer<->seller dialogue to acceptance, failure, or
// deadline over every bundle the seller offers within it.
type Session struct {
	cfg         *config.Config
	eval        *evaluator.Evaluator
	conc        *concessor.Concessor
	bus         *wire.Bus
	buyerID     string
	sellerID    string
	bundles     []domain.Bundle
	refBids     map[string]domain.Bid
	maxRounds   int
	waitTimeout time.Duration
	log         *slog.Logger
	clock       Clock

	buyerState  atomic.Int32
	sellerState atomic.Int32
}

// Option customizes Session construction.
type Option func(*Session)

// WithWaitTimeout overrides the default per-wait-state timeout.
func WithWaitTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.waitTimeout = d
		}
	}
}

// WithLogger attaches a structured logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the default wall-clock Clock, letting tests simulate
// a wait-state timeout (or stamp a fixed Now) without sleeping real time.
func WithClock(c Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// New constructs a Session for one seller offering bundles against buyerID.
func New(cfg *config.Config, eval *evaluator.Evaluator, conc *concessor.Concessor, bus *wire.Bus, buyerID, sellerID string, bundles []domain.Bundle, opts ...Option) *Session {
	s := &Session{
		cfg:         cfg,
		eval:        eval,
		conc:        conc,
		bus:         bus,
		buyerID:     buyerID,
		sellerID:    sellerID,
		bundles:     bundles,
		refBids:     map[string]domain.Bid{},
		maxRounds:   cfg.MaxRounds(),
		waitTimeout: DefaultWaitTimeout,
		log:         slog.Default(),
		clock:       realClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, b := range bundles {
		ref, err := referenceBid(b)
		if err != nil {
			s.log.Warn("session: skipping unusable bundle", "bundle_id", b.ID, "error", err)
			continue
		}
		s.refBids[b.ID] = ref
		eval.RegisterBundle(b)
	}
	return s
}

// referenceFor returns the precomputed reference shell for a bundle.
func (s *Session) referenceFor(bundle domain.Bundle) (domain.Bid, bool) {
	ref, ok := s.refBids[bundle.ID]
	return ref, ok
}

// Result is what a Session reports back to the orchestrator: zero or more
// accepted outcomes (one per bundle of an all-accepted proposal) from this
// seller, and whether the session ended in success.
type Result struct {
	SellerID string
	Outcomes []domain.Outcome
	Success  bool
}

// Run drives the session to completion. ctx bounds the whole session; an
// internal per-wait-state timeout additionally bounds each suspension.
func (s *Session) Run(ctx context.Context) Result {
	startedAt := s.clock.Now()
	conversationID := uuid.NewString()
	buyerBox := s.bus.Register(conversationID, s.buyerID)
	sellerBox := s.bus.Register(conversationID, s.sellerID)
	defer s.bus.Deregister(conversationID, s.buyerID)
	defer s.bus.Deregister(conversationID, s.sellerID)

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runSeller(sessionCtx, conversationID, sellerBox)
	}()

	result := s.runBuyer(sessionCtx, conversationID, buyerBox)
	cancel()
	wg.Wait()
	s.logger(conversationID).Info("session: finished", "success", result.Success, "elapsed", s.clock.Now().Sub(startedAt))
	return result
}

func (s *Session) logger(conversationID string) *slog.Logger {
	return s.log.With("conversation_id", conversationID, "seller_id", s.sellerID, "buyer_id", s.buyerID)
}

// BuyerState returns the buyer side's current FSM node; safe to read
// concurrently with Run.
func (s *Session) BuyerState() State { return State(s.buyerState.Load()) }

// SellerState returns the seller side's current FSM node; safe to read
// concurrently with Run.
func (s *Session) SellerState() State { return State(s.sellerState.Load()) }

func (s *Session) setBuyerState(st State)  { s.buyerState.Store(int32(st)) }
func (s *Session) setSellerState(st State) { s.sellerState.Store(int32(st)) }
