package concessor_test

import (
	"fmt"
	"testing"

	"negotiator/internal/concessor"
	"negotiator/internal/config"
	"negotiator/internal/domain"
)

func bundleWithSynergy(t *testing.T, synMin, synMax float64) domain.Bundle {
	t.Helper()
	b, err := domain.NewBundle("B1", []domain.BundleItem{{Product: "P1", Quantity: 1}}, synMin, synMax, nil, nil)
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	return b
}

func referenceBid(t *testing.T, bundle domain.Bundle) domain.Bid {
	t.Helper()
	issues := []domain.IssueValue{
		domain.NumberValue(domain.Price, domain.Cost, 0),
		domain.NumberValue(domain.Delivery, domain.Cost, 0),
		domain.GradeValue(domain.Quality, domain.Medium),
		domain.GradeValue(domain.Service, domain.Medium),
	}
	bid, err := domain.NewBid(bundle, issues, []int{1})
	if err != nil {
		t.Fatalf("NewBid: %v", err)
	}
	return bid
}

func cfgWithGlobalRange(t *testing.T, min, max float64) *config.Config {
	t.Helper()
	doc := fmt.Sprintf("params:\n  buyer:\n    global:\n      price: \"%g,%g\"\n  seller:\n    global:\n      price: \"%g,%g\"\n", min, max, min, max)
	c, err := config.FromYAML([]byte(doc))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	return c
}

func TestConcessionRatioMonotonicNonDecreasing(t *testing.T) {
	cfg := cfgWithGlobalRange(t, 0, 100)
	conc := concessor.New(cfg)
	bundle := bundleWithSynergy(t, 0, 1)
	ref := referenceBid(t, bundle)
	maxRounds := 10
	var prevPrice float64 = -1
	for round := 1; round <= maxRounds; round++ {
		bid := conc.Counter(domain.Buyer, "buyer", ref, round, maxRounds)
		iv, _ := bid.IssueValue(domain.Price)
		if round > 1 && iv.Number < prevPrice-1e-9 {
			t.Fatalf("round %d: buyer price %v < previous round's price %v (expected non-decreasing concession for COST)", round, iv.Number, prevPrice)
		}
		prevPrice = iv.Number
	}
}

func TestBuyerConcedesUpwardOnCostSellerConcedesDownward(t *testing.T) {
	cfg := cfgWithGlobalRange(t, 0, 100)
	conc := concessor.New(cfg)
	bundle := bundleWithSynergy(t, 0, 1)
	ref := referenceBid(t, bundle)
	maxRounds := 10

	var prevBuyer, prevSeller float64 = -1, 1e18
	for round := 1; round <= maxRounds; round++ {
		buyerBid := conc.Counter(domain.Buyer, "buyer", ref, round, maxRounds)
		sellerBid := conc.Counter(domain.Seller, "s1", ref, round, maxRounds)
		bp, _ := buyerBid.IssueValue(domain.Price)
		sp, _ := sellerBid.IssueValue(domain.Price)
		if bp.Number < prevBuyer-1e-9 {
			t.Fatalf("round %d: buyer price decreased from %v to %v; expected non-decreasing", round, prevBuyer, bp.Number)
		}
		if sp.Number > prevSeller+1e-9 {
			t.Fatalf("round %d: seller price increased from %v to %v; expected non-increasing", round, prevSeller, sp.Number)
		}
		prevBuyer, prevSeller = bp.Number, sp.Number
	}
}

func TestConcessionAtTEqualsOneCollapsesToFullConcession(t *testing.T) {
	cfg := cfgWithGlobalRange(t, 0, 100)
	conc := concessor.New(cfg)
	bundle := bundleWithSynergy(t, 0, 1)
	ref := referenceBid(t, bundle)
	buyerBid := conc.Counter(domain.Buyer, "buyer", ref, 1, 1)
	iv, _ := buyerBid.IssueValue(domain.Price)
	if iv.Number != 100 {
		t.Fatalf("T=1 should fully concede (alpha=1) to the worst-for-buyer price bound, got %v", iv.Number)
	}
}

func TestQualitativeConcessionBucketsByThreshold(t *testing.T) {
	cfg := config.Default()
	conc := concessor.New(cfg)
	bundle := bundleWithSynergy(t, 0, 1)
	ref := referenceBid(t, bundle)
	// A buyer starts at its best grade (alpha near 0 -> target near 1 ->
	// very good) and should walk down toward worse grades as rounds
	// progress toward the deadline.
	maxRounds := 10
	first := conc.Counter(domain.Buyer, "buyer", ref, 1, maxRounds)
	last := conc.Counter(domain.Buyer, "buyer", ref, maxRounds, maxRounds)
	fq, _ := first.IssueValue(domain.Quality)
	lq, _ := last.IssueValue(domain.Quality)
	if fq.Grade < lq.Grade {
		t.Fatalf("expected buyer's quality grade to move toward worse over rounds: round1=%v roundT=%v", fq.Grade, lq.Grade)
	}
}

func TestCounterWithDefaultGlobalRangeCoversEveryIssue(t *testing.T) {
	cfg := config.Default() // no params.*.global.* entries configured beyond defaults
	conc := concessor.New(cfg)
	bundle := bundleWithSynergy(t, 0, 1)
	ref := referenceBid(t, bundle)
	// Quality/service are qualitative and always concede; price/delivery
	// fall back to the default [0,1] global range, so this just exercises
	// that Counter never errors when no explicit bundle override exists.
	next := conc.Counter(domain.Buyer, "buyer", ref, 3, 10)
	if len(next.Issues) != len(ref.Issues) {
		t.Fatalf("expected counter-bid to cover every issue, got %d want %d", len(next.Issues), len(ref.Issues))
	}
}

func TestBundleAndQuantitiesCopiedVerbatim(t *testing.T) {
	cfg := cfgWithGlobalRange(t, 0, 100)
	conc := concessor.New(cfg)
	bundle := bundleWithSynergy(t, 0, 1)
	ref := referenceBid(t, bundle)
	next := conc.Counter(domain.Buyer, "buyer", ref, 2, 10)
	if !next.Bundle.Equal(ref.Bundle) {
		t.Fatalf("counter-bid changed bundle identity")
	}
	for i := range ref.Quantities {
		if next.Quantities[i] != ref.Quantities[i] {
			t.Fatalf("counter-bid changed quantities at index %d", i)
		}
	}
}
