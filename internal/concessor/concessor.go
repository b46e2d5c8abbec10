// Package concessor generates a party's next counter-bid from its previous
// own bid and round index, following a time-dependent concession curve
// shaped by a concession posture (gamma, the reservation floor b_k).
package concessor

import (
	"math"

	"negotiator/internal/config"
	"negotiator/internal/domain"
)

// Concessor advances one party's position across negotiation rounds. A
// Concessor is stateless between calls; all state (round number, prior own
// bid) is threaded through by the caller (the bilateral session).
type Concessor struct {
	cfg *config.Config
}

// New constructs a Concessor backed by cfg.
func New(cfg *config.Config) *Concessor {
	return &Concessor{cfg: cfg}
}

// Counter produces party's counter-bid at round t of maxRounds (1-indexed),
// starting from own's previous bid on the same bundle.
func (c *Concessor) Counter(party domain.Party, partyID string, own domain.Bid, t, maxRounds int) domain.Bid {
	posture := c.cfg.Party(party, partyID)
	alpha := concessionRatio(t, maxRounds, posture.Gamma, posture.BK)

	issues := make([]domain.IssueValue, 0, len(own.Issues))
	for _, prior := range own.Issues {
		if prior.Kind == domain.Qualitative {
			issues = append(issues, concedeQualitative(party, prior, alpha))
			continue
		}
		params, ok := c.paramsFor(party, partyID, own.Bundle, prior.Name)
		if !ok {
			// Bundle parameters missing: hold the prior value. This fallback is not logged.
			issues = append(issues, prior)
			continue
		}
		issues = append(issues, concedeQuantitative(party, prior, params, alpha))
	}
	return own.WithIssues(issues)
}

func (c *Concessor) paramsFor(party domain.Party, partyID string, bundle domain.Bundle, issue domain.IssueName) (domain.IssueParameters, bool) {
	kind, recognised := domain.DefaultKind(issue)
	if !recognised || kind == domain.Qualitative {
		return domain.IssueParameters{}, false
	}
	if explicit, ok := c.cfg.BundleParams(party, partyID, bundle.ID, issue); ok {
		return explicit, true
	}
	gMin, gMax := c.cfg.GlobalIssueRange(party, issue)
	rangeV := gMax - gMin
	min := gMin + bundle.SynergyMin*rangeV
	max := gMin + bundle.SynergyMax*rangeV
	params, err := domain.NewIssueParameters(min, max, kind)
	if err != nil {
		return domain.IssueParameters{}, false
	}
	return params, true
}

// concessionRatio computes alpha(t) per §4.2: r = (t-1)/(T-1) clamped to
// [0,1] (r=1 when T=1); b_k clamped to [0.001,0.999]; gamma clamped to
// >=0.001.
func concessionRatio(t, maxRounds int, gamma, bK float64) float64 {
	bK = clampBetween(bK, 0.001, 0.999)
	if gamma < 0.001 {
		gamma = 0.001
	}
	var r float64
	if maxRounds <= 1 {
		r = 1
	} else {
		r = float64(t-1) / float64(maxRounds-1)
		r = clampBetween(r, 0, 1)
	}
	if gamma <= 1 {
		return bK + (1-bK)*math.Pow(r, 1/gamma)
	}
	if r == 1 {
		return 1
	}
	return math.Exp(math.Log(bK) * math.Pow(1-r, gamma))
}

// concedeQuantitative applies §4.2's quantitative update rule.
func concedeQuantitative(party domain.Party, prior domain.IssueValue, params domain.IssueParameters, alpha float64) domain.IssueValue {
	rangeV := params.Range()
	var v float64
	switch {
	case party == domain.Buyer && prior.Kind == domain.Benefit:
		v = params.Max - alpha*rangeV
	case party == domain.Buyer && prior.Kind == domain.Cost:
		v = params.Min + alpha*rangeV
	case party == domain.Seller && prior.Kind == domain.Benefit:
		v = params.Min + alpha*rangeV
	default: // seller, COST
		v = params.Max - alpha*rangeV
	}
	v = clampBetween(v, params.Min, params.Max)
	return domain.NumberValue(prior.Name, prior.Kind, v)
}

// concedeQualitative applies §4.2's qualitative update rule: buyer maps
// alpha through 1-alpha, seller maps it directly, then both bucket the
// result by the documented thresholds. Round 1 has alpha = b_k, so with the
// default b_k of 0.1 the buyer starts at "very good" and the seller at
// "poor".
func concedeQualitative(party domain.Party, prior domain.IssueValue, alpha float64) domain.IssueValue {
	target := alpha
	if party == domain.Buyer {
		target = 1 - alpha
	}
	return domain.GradeValue(prior.Name, gradeForTarget(target))
}

func gradeForTarget(target float64) domain.LinguisticGrade {
	switch {
	case target < 0.1:
		return domain.VeryPoor
	case target < 0.3:
		return domain.Poor
	case target < 0.7:
		return domain.Medium
	case target < 0.9:
		return domain.Good
	default:
		return domain.VeryGood
	}
}

func clampBetween(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
