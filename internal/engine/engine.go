// Package engine wires the negotiation core (Evaluator, Concessor, Bus,
// Orchestrator) to its ambient collaborators (config, catalog, audit log)
// into one struct, mirroring the teacher's top-level Engine{DB, Repo,
// Events, Config, Now} composition.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"negotiator/internal/audit"
	"negotiator/internal/catalog"
	"negotiator/internal/concessor"
	"negotiator/internal/config"
	"negotiator/internal/db"
	"negotiator/internal/domain"
	"negotiator/internal/evaluator"
	"negotiator/internal/migrate"
	"negotiator/internal/orchestrator"
	"negotiator/internal/wire"
)

// Engine owns every long-lived collaborator a running negotiation process
// needs and is the thing cmd/negotiate and internal/server both hold.
type Engine struct {
	DB           *sql.DB
	Audit        *audit.Writer
	Config       *config.Config
	Orchestrator *orchestrator.Orchestrator
	Now          func() time.Time
	log          *slog.Logger
	cancel       context.CancelFunc
}

// Options customizes engine construction.
type Options struct {
	AuditLogPath    string // ":memory:" or a filesystem path; "" disables the audit log.
	CatalogProvider catalog.Provider
	Sellers         map[string][]domain.Bundle
	ProductOrder    []domain.Product
	Logger          *slog.Logger
}

// New wires one Engine end to end: opens and migrates the audit log (if
// configured), constructs the Evaluator/Concessor/Bus/Orchestrator, starts
// the Orchestrator's worker, and returns the running engine.
func New(cfg *config.Config, opts Options) (*Engine, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	var conn *sql.DB
	var writer *audit.Writer
	if opts.AuditLogPath != "" {
		var err error
		conn, err = db.Open(opts.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("engine: open audit log: %w", err)
		}
		if err := migrate.Apply(conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("engine: apply audit log schema: %w", err)
		}
		writer = audit.New(conn)
	}

	eval := evaluator.New(cfg)
	conc := concessor.New(cfg)
	bus := wire.NewBus()

	orchOpts := []orchestrator.Option{orchestrator.WithLogger(log)}
	if opts.CatalogProvider != nil {
		orchOpts = append(orchOpts, orchestrator.WithCatalogProvider(opts.CatalogProvider))
	}
	orch := orchestrator.New(cfg, eval, conc, bus, opts.Sellers, opts.ProductOrder, orchOpts...)

	// The orchestrator drains its run queue on a single long-lived worker
	// (§4.4's re-entrancy policy (a)); Engine owns that worker's lifetime.
	runCtx, cancel := context.WithCancel(context.Background())
	go orch.Start(runCtx)

	return &Engine{
		DB:           conn,
		Audit:        writer,
		Config:       cfg,
		Orchestrator: orch,
		Now:          time.Now,
		log:          log,
		cancel:       cancel,
	}, nil
}

// Close stops the orchestrator's run-queue worker and releases the audit
// log connection, if one was opened.
func (e *Engine) Close() error {
	if e.cancel != nil {
		e.cancel()
	}
	if e.DB == nil {
		return nil
	}
	return e.DB.Close()
}

// Run submits demand to the Orchestrator's queue, waits for the result,
// and records it to the audit log when one is configured. The returned
// run id is empty when no audit log is configured.
func (e *Engine) Run(ctx context.Context, demand string) (string, orchestrator.RunResult, error) {
	resultCh := e.Orchestrator.Submit(demand)
	var result orchestrator.RunResult
	select {
	case result = <-resultCh:
	case <-ctx.Done():
		return "", orchestrator.RunResult{}, ctx.Err()
	}
	var runID string
	if e.Audit != nil {
		id, err := e.Audit.RecordRun(ctx, result)
		if err != nil {
			e.log.Warn("engine: failed to record run to audit log", "error", err)
		}
		runID = id
	}
	return runID, result, nil
}

// GetRun looks up a past run's audit record by id. It returns
// audit.ErrRunNotFound when no audit log is configured or the id is
// unknown.
func (e *Engine) GetRun(ctx context.Context, id string) (audit.RunRecord, error) {
	if e.Audit == nil {
		return audit.RunRecord{}, audit.ErrRunNotFound
	}
	return e.Audit.GetRun(ctx, id)
}

// Catalog returns the seller directory a run would currently offer
// against.
func (e *Engine) Catalog(ctx context.Context) (map[string][]domain.Bundle, error) {
	return e.Orchestrator.Catalog(ctx)
}
