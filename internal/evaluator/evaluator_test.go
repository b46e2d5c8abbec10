package evaluator_test

import (
	"fmt"
	"testing"

	"negotiator/internal/config"
	"negotiator/internal/domain"
	"negotiator/internal/evaluator"
)

func simpleBundle(t *testing.T, id string, synMin, synMax float64) domain.Bundle {
	t.Helper()
	b, err := domain.NewBundle(id, []domain.BundleItem{{Product: "P1", Quantity: 1}}, synMin, synMax, nil, nil)
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	return b
}

func bidWith(t *testing.T, bundle domain.Bundle, price, delivery float64, quality, service domain.LinguisticGrade) domain.Bid {
	t.Helper()
	issues := []domain.IssueValue{
		domain.NumberValue(domain.Price, domain.Cost, price),
		domain.NumberValue(domain.Delivery, domain.Cost, delivery),
		domain.GradeValue(domain.Quality, quality),
		domain.GradeValue(domain.Service, service),
	}
	qty := make([]int, len(bundle.Items))
	for i, it := range bundle.Items {
		qty[i] = it.Quantity
	}
	bid, err := domain.NewBid(bundle, issues, qty)
	if err != nil {
		t.Fatalf("NewBid: %v", err)
	}
	return bid
}

func cfgWithGlobalRange(t *testing.T, party string, issue string, min, max float64) *config.Config {
	t.Helper()
	doc := fmt.Sprintf("params:\n  %s:\n    global:\n      %s: \"%g,%g\"\n", party, issue, min, max)
	c, err := config.FromYAML([]byte(doc))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	return c
}

func TestUtilityIsAlwaysWithinUnitInterval(t *testing.T) {
	cfg := cfgWithGlobalRange(t, "buyer", "price", 10, 100)
	eval := evaluator.New(cfg)
	bundle := simpleBundle(t, "B1", 0, 1)
	eval.RegisterBundle(bundle)
	for _, price := range []float64{-50, 0, 10, 55, 100, 500} {
		bid := bidWith(t, bundle, price, 5, domain.Medium, domain.Medium)
		u := eval.Utility(domain.Buyer, "buyer", bid)
		if u < 0 || u > 1 {
			t.Fatalf("price=%v: utility %v out of [0,1]", price, u)
		}
	}
}

func TestCostUtilityPrefersLowerValues(t *testing.T) {
	cfg := cfgWithGlobalRange(t, "buyer", "price", 0, 100)
	eval := evaluator.New(cfg)
	bundle := simpleBundle(t, "B1", 0, 1)
	eval.RegisterBundle(bundle)
	cheap := eval.Utility(domain.Buyer, "buyer", bidWith(t, bundle, 10, 5, domain.Medium, domain.Medium))
	expensive := eval.Utility(domain.Buyer, "buyer", bidWith(t, bundle, 90, 5, domain.Medium, domain.Medium))
	if cheap <= expensive {
		t.Fatalf("expected buyer utility for a cheaper COST issue to be higher: cheap=%v expensive=%v", cheap, expensive)
	}
}

func TestDegenerateRangeReturnsOneAtBestSideElseFloor(t *testing.T) {
	cfg := cfgWithGlobalRange(t, "buyer", "price", 50, 50)
	eval := evaluator.New(cfg)
	bundle := simpleBundle(t, "B1", 0, 1)
	eval.RegisterBundle(bundle)
	atBest := eval.Utility(domain.Buyer, "buyer", bidWith(t, bundle, 50, 5, domain.Medium, domain.Medium))
	if atBest <= 0 {
		t.Fatalf("expected nonzero utility when price sits exactly at its degenerate best value, got %v", atBest)
	}
}

func TestQualitativeGradeUsesConfiguredTFNTable(t *testing.T) {
	cfg := config.Default()
	eval := evaluator.New(cfg)
	bundle := simpleBundle(t, "B1", 0, 1)
	eval.RegisterBundle(bundle)
	buyerGood := eval.Utility(domain.Buyer, "buyer", bidWith(t, bundle, 50, 5, domain.VeryGood, domain.Medium))
	buyerPoor := eval.Utility(domain.Buyer, "buyer", bidWith(t, bundle, 50, 5, domain.VeryPoor, domain.Medium))
	if buyerGood <= buyerPoor {
		t.Fatalf("expected buyer to value 'very good' quality over 'very poor': good=%v poor=%v", buyerGood, buyerPoor)
	}
	// The reference seller TFN table is the buyer's in reverse grade order:
	// a seller's own "very poor" entry defuzzifies high.
	sellerVeryPoor := eval.Utility(domain.Seller, "s1", bidWith(t, bundle, 50, 5, domain.Medium, domain.VeryPoor))
	sellerVeryGood := eval.Utility(domain.Seller, "s1", bidWith(t, bundle, 50, 5, domain.Medium, domain.VeryGood))
	if sellerVeryPoor <= sellerVeryGood {
		t.Fatalf("expected seller's 'very poor' service grade to defuzzify higher than 'very good': poor=%v good=%v", sellerVeryPoor, sellerVeryGood)
	}
}

func TestSynergyRescalesPerBundleRange(t *testing.T) {
	cfg := cfgWithGlobalRange(t, "buyer", "price", 0, 100)
	eval := evaluator.New(cfg)
	narrow := simpleBundle(t, "Narrow", 0.8, 1.0) // effective range [80,100]
	wide := simpleBundle(t, "Wide", 0, 1)          // effective range [0,100]
	eval.RegisterBundle(narrow)
	eval.RegisterBundle(wide)
	price := 90.0
	uNarrow := eval.Utility(domain.Buyer, "buyer", bidWith(t, narrow, price, 5, domain.Medium, domain.Medium))
	uWide := eval.Utility(domain.Buyer, "buyer", bidWith(t, wide, price, 5, domain.Medium, domain.Medium))
	if uNarrow <= uWide {
		t.Fatalf("expected the narrow high-synergy bundle to rate price=90 better than the wide bundle: narrow=%v wide=%v", uNarrow, uWide)
	}
}

func TestUnregisteredBundleStillYieldsUtilityInUnitInterval(t *testing.T) {
	cfg := config.Default()
	eval := evaluator.New(cfg)
	bundle := simpleBundle(t, "B1", 0, 1)
	// Deliberately skip RegisterBundle so synergy bounds can't be derived
	// and the global range lookup also falls back to [0,1] by default;
	// price utility should still compute from the default [0,1] range.
	u := eval.Utility(domain.Buyer, "buyer", bidWith(t, bundle, 0.5, 0.1, domain.Medium, domain.Medium))
	if u < 0 || u > 1 {
		t.Fatalf("utility out of range with unregistered bundle: %v", u)
	}
}

func TestEvaluatorIsPure(t *testing.T) {
	cfg := cfgWithGlobalRange(t, "buyer", "price", 10, 100)
	eval := evaluator.New(cfg)
	bundle := simpleBundle(t, "B1", 0, 1)
	eval.RegisterBundle(bundle)
	bid := bidWith(t, bundle, 42, 3, domain.Good, domain.Good)
	first := eval.Utility(domain.Buyer, "buyer", bid)
	for i := 0; i < 5; i++ {
		if got := eval.Utility(domain.Buyer, "buyer", bid); got != first {
			t.Fatalf("evaluator is not pure: call %d returned %v, want %v", i, got, first)
		}
	}
}

func TestRiskAverseCurveReachesOneAtBestValue(t *testing.T) {
	// At r=1 (value already at its best side), the risk-averse transform
	// (beta>1) must return exactly 1 per §4.1's explicit boundary clause,
	// so a price pinned at the minimum should drive that issue's
	// contribution to its full weight regardless of beta.
	cfg, err := config.FromYAML([]byte("buyer:\n  riskBeta: 3\nparams:\n  buyer:\n    global:\n      price: \"0,100\"\n"))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	eval := evaluator.New(cfg)
	bundle := simpleBundle(t, "B1", 0, 1)
	eval.RegisterBundle(bundle)
	u := eval.Utility(domain.Buyer, "buyer", bidWith(t, bundle, 0, 5, domain.Medium, domain.Medium))
	if u > 1+1e-9 {
		t.Fatalf("utility exceeded 1: %v", u)
	}
	if u <= 0 {
		t.Fatalf("expected strictly positive utility at the best price, got %v", u)
	}
}
