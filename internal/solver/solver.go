// Package solver implements the winner-determination problem of §4.5: pick
// the subset of negotiated outcomes that covers a demand vector at maximum
// aggregate utility, using each seller at most once, via branch-and-bound
// with an upper-bound prune tighter than a naive suffix sum.
package solver

import (
	"sort"

	"negotiator/internal/domain"
)

// ErrNoSolution is returned when no subset of outcomes covers demand.
var ErrNoSolution = noSolutionError{}

type noSolutionError struct{}

func (noSolutionError) Error() string { return "solver: no combination satisfies demand" }

// Solve selects the utility-maximising, demand-covering, one-outcome-per-
// seller subset of outcomes. order fixes the product axis that both every
// outcome's coverage vector and demand are expressed in. Returns
// ErrNoSolution, never a partial result, when no subset covers demand.
func Solve(outcomes []domain.Outcome, order []domain.Product, demand []int) ([]domain.Outcome, float64, error) {
	if isZero(demand) {
		return nil, 0, nil
	}
	if len(outcomes) == 0 {
		return nil, 0, ErrNoSolution
	}

	items := make([]item, len(outcomes))
	for i, o := range outcomes {
		items[i] = item{outcome: o, coverage: o.CoverageVector(order)}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].outcome.UtilityToBuyer != items[j].outcome.UtilityToBuyer {
			return items[i].outcome.UtilityToBuyer > items[j].outcome.UtilityToBuyer
		}
		return items[i].outcome.SellerID < items[j].outcome.SellerID
	})

	bestPerSeller := bestUtilityPerSeller(items)

	s := &search{
		items:         items,
		demand:        demand,
		bestPerSeller: bestPerSeller,
		bestUtility:   -1,
	}
	s.branch(0, nil, 0, map[string]struct{}{}, make([]int, len(demand)))

	if s.bestUtility < 0 {
		return nil, 0, ErrNoSolution
	}
	return s.bestSet, s.bestUtility, nil
}

// item pairs an outcome with its coverage vector precomputed against the
// caller's fixed product order.
type item struct {
	outcome  domain.Outcome
	coverage []int
}

type search struct {
	items         []item
	demand        []int
	bestPerSeller map[string]float64

	bestUtility float64
	bestSet     []domain.Outcome
}

// branch explores include-then-exclude at index i, pruning whenever the
// upper bound can no longer beat the incumbent best.
func (s *search) branch(i int, chosen []domain.Outcome, utility float64, used map[string]struct{}, coverage []int) {
	if i == len(s.items) {
		if covers(coverage, s.demand) && utility > s.bestUtility {
			s.bestUtility = utility
			s.bestSet = append([]domain.Outcome(nil), chosen...)
		}
		return
	}
	if s.upperBound(i, utility, used) <= s.bestUtility {
		return
	}

	it := s.items[i]
	sellerID := it.outcome.SellerID
	if _, taken := used[sellerID]; !taken {
		used[sellerID] = struct{}{}
		nextCoverage := addCoverage(coverage, it.coverage)
		s.branch(i+1, append(chosen, it.outcome), utility+it.outcome.UtilityToBuyer, used, nextCoverage)
		delete(used, sellerID)
	}
	s.branch(i+1, chosen, utility, used, coverage)
}

// upperBound adds, to the current partial utility, the best utility
// available from each not-yet-used seller among the remaining items,
// counting at most one outcome per seller.
func (s *search) upperBound(i int, utility float64, used map[string]struct{}) float64 {
	seen := map[string]bool{}
	bound := utility
	for j := i; j < len(s.items); j++ {
		sellerID := s.items[j].outcome.SellerID
		if _, taken := used[sellerID]; taken {
			continue
		}
		if seen[sellerID] {
			continue
		}
		seen[sellerID] = true
		bound += s.bestPerSeller[sellerID]
	}
	return bound
}

func bestUtilityPerSeller(items []item) map[string]float64 {
	best := map[string]float64{}
	for _, it := range items {
		if u, ok := best[it.outcome.SellerID]; !ok || it.outcome.UtilityToBuyer > u {
			best[it.outcome.SellerID] = it.outcome.UtilityToBuyer
		}
	}
	return best
}

func covers(coverage, demand []int) bool {
	for k, d := range demand {
		if coverage[k] < d {
			return false
		}
	}
	return true
}

func addCoverage(a, b []int) []int {
	out := make([]int, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func isZero(demand []int) bool {
	for _, d := range demand {
		if d != 0 {
			return false
		}
	}
	return true
}
