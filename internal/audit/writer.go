// Package audit records a run's outcome summary, never its negotiation
// transcript, to the sqlite audit log. Adapted from the teacher's
// event-writer: one append method writing through the Writer's own DB
// handle, and an injectable clock.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"negotiator/internal/domain"
	"negotiator/internal/orchestrator"
)

// Writer appends run summaries and per-seller events to the audit log.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

// New constructs a Writer with the real wall clock.
func New(db *sql.DB) *Writer {
	return &Writer{DB: db, Now: time.Now}
}

// RecordRun inserts one row summarizing a completed run and returns its
// generated id.
func (w *Writer) RecordRun(ctx context.Context, result orchestrator.RunResult) (string, error) {
	id := uuid.NewString()
	status := "succeeded"
	var errText sql.NullString
	if result.Err != nil {
		status = "failed"
		errText = sql.NullString{String: result.Err.Error(), Valid: true}
	}
	var totalUtility sql.NullFloat64
	if result.Err == nil {
		totalUtility = sql.NullFloat64{Float64: result.TotalUtility, Valid: true}
	}
	startedAt := result.StartedAt
	if startedAt.IsZero() {
		startedAt = w.Now()
	}
	_, err := w.DB.ExecContext(ctx, `
		INSERT INTO runs (id, demand, started_at, finished_at, sellers_contacted, outcomes_won, total_utility, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, result.Demand, startedAt.UTC().Format(time.RFC3339Nano), w.Now().UTC().Format(time.RFC3339Nano),
		result.SellersContacted, len(result.Outcomes), totalUtility, status, errText,
	)
	if err != nil {
		return "", fmt.Errorf("audit: record run %s: %w", id, err)
	}
	for _, outcome := range result.Outcomes {
		if err := w.recordOutcome(ctx, id, outcome); err != nil {
			return id, err
		}
	}
	return id, nil
}

// RunRecord is one row of the runs table together with its outcome events,
// as returned to a caller looking up a past run by id.
type RunRecord struct {
	ID               string
	Demand           string
	StartedAt        time.Time
	FinishedAt       time.Time
	SellersContacted int
	OutcomesWon      int
	TotalUtility     sql.NullFloat64
	Status           string
	Error            string
	Events           []RunEvent
}

// RunEvent is one run_events row: a seller's outcome, JSON-encoded.
type RunEvent struct {
	SellerID   string
	EventType  string
	OccurredAt time.Time
	Detail     string
}

// ErrRunNotFound reports that no run exists with the requested id.
var ErrRunNotFound = fmt.Errorf("audit: run not found")

// GetRun looks up one run by id along with its recorded outcome events.
func (w *Writer) GetRun(ctx context.Context, id string) (RunRecord, error) {
	var rec RunRecord
	var startedAt, finishedAt string
	var finishedAtNull sql.NullString
	var errText sql.NullString
	row := w.DB.QueryRowContext(ctx, `
		SELECT id, demand, started_at, finished_at, sellers_contacted, outcomes_won, total_utility, status, error
		FROM runs WHERE id = ?`, id)
	if err := row.Scan(&rec.ID, &rec.Demand, &startedAt, &finishedAtNull, &rec.SellersContacted, &rec.OutcomesWon, &rec.TotalUtility, &rec.Status, &errText); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, ErrRunNotFound
		}
		return RunRecord{}, fmt.Errorf("audit: get run %s: %w", id, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		rec.StartedAt = t
	}
	finishedAt = finishedAtNull.String
	if t, err := time.Parse(time.RFC3339Nano, finishedAt); err == nil {
		rec.FinishedAt = t
	}
	rec.Error = errText.String

	rows, err := w.DB.QueryContext(ctx, `
		SELECT seller_id, event_type, occurred_at, detail FROM run_events WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return rec, fmt.Errorf("audit: list events for run %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var ev RunEvent
		var sellerID sql.NullString
		var occurredAt string
		var detail sql.NullString
		if err := rows.Scan(&sellerID, &ev.EventType, &occurredAt, &detail); err != nil {
			return rec, fmt.Errorf("audit: scan event for run %s: %w", id, err)
		}
		ev.SellerID = sellerID.String
		ev.Detail = detail.String
		if t, err := time.Parse(time.RFC3339Nano, occurredAt); err == nil {
			ev.OccurredAt = t
		}
		rec.Events = append(rec.Events, ev)
	}
	return rec, rows.Err()
}

func (w *Writer) recordOutcome(ctx context.Context, runID string, outcome domain.Outcome) error {
	detail, err := json.Marshal(struct {
		BundleID string  `json:"bundleId"`
		Utility  float64 `json:"utilityToBuyer"`
	}{BundleID: outcome.Bid.Bundle.ID, Utility: outcome.UtilityToBuyer})
	if err != nil {
		return fmt.Errorf("audit: marshal outcome detail: %w", err)
	}
	_, err = w.DB.ExecContext(ctx, `
		INSERT INTO run_events (run_id, seller_id, event_type, occurred_at, detail)
		VALUES (?, ?, 'outcome_won', ?, ?)`,
		runID, outcome.SellerID, w.Now().UTC().Format(time.RFC3339Nano), string(detail),
	)
	if err != nil {
		return fmt.Errorf("audit: record outcome for run %s: %w", runID, err)
	}
	return nil
}
