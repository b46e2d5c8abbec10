package audit_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"negotiator/internal/audit"
	"negotiator/internal/domain"
	"negotiator/internal/migrate"
	"negotiator/internal/orchestrator"
)

func newWriter(t *testing.T) *audit.Writer {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Apply(conn); err != nil {
		t.Fatalf("migrate.Apply: %v", err)
	}
	return audit.New(conn)
}

func sampleOutcome(t *testing.T, sellerID string) domain.Outcome {
	t.Helper()
	bundle, err := domain.NewBundle("B1", []domain.BundleItem{{Product: "P1", Quantity: 1}}, 0, 1, nil, nil)
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	bid, err := domain.NewBid(bundle, []domain.IssueValue{
		domain.NumberValue(domain.Price, domain.Cost, 50),
		domain.NumberValue(domain.Delivery, domain.Cost, 3),
		domain.GradeValue(domain.Quality, domain.Good),
		domain.GradeValue(domain.Service, domain.Good),
	}, []int{1})
	if err != nil {
		t.Fatalf("NewBid: %v", err)
	}
	return domain.Outcome{Bid: bid, UtilityToBuyer: 0.8, SellerID: sellerID}
}

func TestRecordRunAndGetRunRoundTripSucceededRun(t *testing.T) {
	w := newWriter(t)
	ctx := context.Background()
	result := orchestrator.RunResult{
		Demand:           "P1",
		Outcomes:         []domain.Outcome{sampleOutcome(t, "s1")},
		TotalUtility:     0.8,
		SellersContacted: 1,
	}
	id, err := w.RecordRun(ctx, result)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if id == "" {
		t.Fatalf("expected a non-empty generated run id")
	}
	rec, err := w.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if rec.Status != "succeeded" || rec.Demand != "P1" || rec.SellersContacted != 1 || rec.OutcomesWon != 1 {
		t.Fatalf("unexpected run record: %+v", rec)
	}
	if !rec.TotalUtility.Valid || rec.TotalUtility.Float64 != 0.8 {
		t.Fatalf("expected total utility 0.8, got %+v", rec.TotalUtility)
	}
	if len(rec.Events) != 1 || rec.Events[0].SellerID != "s1" || rec.Events[0].EventType != "outcome_won" {
		t.Fatalf("expected one outcome_won event for s1, got %+v", rec.Events)
	}
}

func TestRecordRunMarksFailedRunWithErrorText(t *testing.T) {
	w := newWriter(t)
	ctx := context.Background()
	result := orchestrator.RunResult{
		Demand: "P9",
		Err:    errors.New("no feasible combination"),
	}
	id, err := w.RecordRun(ctx, result)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	rec, err := w.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if rec.Status != "failed" {
		t.Fatalf("expected status failed, got %s", rec.Status)
	}
	if rec.Error != "no feasible combination" {
		t.Fatalf("expected error text to be recorded, got %q", rec.Error)
	}
	if rec.TotalUtility.Valid {
		t.Fatalf("expected total utility to be null on a failed run")
	}
	if len(rec.Events) != 0 {
		t.Fatalf("expected no outcome events on a failed run, got %+v", rec.Events)
	}
}

func TestGetRunReportsErrNotFoundForUnknownID(t *testing.T) {
	w := newWriter(t)
	_, err := w.GetRun(context.Background(), "does-not-exist")
	if !errors.Is(err, audit.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRecordRunWithMultipleOutcomesRecordsOneEventEach(t *testing.T) {
	w := newWriter(t)
	ctx := context.Background()
	result := orchestrator.RunResult{
		Demand:           "P1,P2",
		Outcomes:         []domain.Outcome{sampleOutcome(t, "s1"), sampleOutcome(t, "s2")},
		TotalUtility:     1.6,
		SellersContacted: 2,
	}
	id, err := w.RecordRun(ctx, result)
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	rec, err := w.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if len(rec.Events) != 2 {
		t.Fatalf("expected two outcome events, got %d", len(rec.Events))
	}
}
