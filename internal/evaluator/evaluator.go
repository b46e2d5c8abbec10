// Package evaluator computes the weighted aggregate utility of a bid for a
// given party, combining fuzzy-linguistic defuzzification for qualitative
// issues with a risk-shaped progress ratio for quantitative ones.
package evaluator

import (
	"math"

	lru "github.com/hashicorp/golang-lru/v2"

	"negotiator/internal/config"
	"negotiator/internal/domain"
)

// floorMinUtility is the v_min floor used by the risk transform.
const floorMinUtility = 0.1

// degenerateEpsilon is the threshold below which a quantitative range is
// treated as collapsed (min==max, modulo floating-point noise).
const degenerateEpsilon = 1e-9

const paramCacheSize = 4096

type cacheKey struct {
	party    domain.Party
	partyID  string
	bundleID string
	issue    domain.IssueName
}

// Evaluator computes U(party, bid) in [0,1]. It is pure aside from a
// read-through cache of derived per-bundle issue parameters; the cache is
// internally synchronized by golang-lru, so an Evaluator is safe to share
// across concurrently running bilateral sessions.
type Evaluator struct {
	cfg     *config.Config
	cache   *lru.Cache[cacheKey, domain.IssueParameters]
	bundles map[string]domain.Bundle
}

// New constructs an Evaluator backed by cfg. partyID is not needed at
// construction; it is supplied per call so one Evaluator can serve every
// session in a run.
func New(cfg *config.Config) *Evaluator {
	cache, err := lru.New[cacheKey, domain.IssueParameters](paramCacheSize)
	if err != nil {
		// Only fails for a non-positive size, which paramCacheSize never is.
		panic(err)
	}
	return &Evaluator{cfg: cfg, cache: cache}
}

// Utility computes U(party, bid) for the named party (partyID is the
// buyer's or seller's identifier, used for per-seller override lookups).
func (e *Evaluator) Utility(party domain.Party, partyID string, bid domain.Bid) float64 {
	weights := e.cfg.Weights()
	var total float64
	for _, issue := range domain.RecognisedIssues {
		iv, ok := bid.IssueValue(issue)
		if !ok {
			continue
		}
		w := weights[domain.NormalizeIssueName(issue)]
		if w == 0 {
			continue
		}
		total += w * e.issueUtility(party, partyID, bid.Bundle.ID, iv)
	}
	return clamp01(total)
}

func (e *Evaluator) issueUtility(party domain.Party, partyID, bundleID string, iv domain.IssueValue) float64 {
	if iv.Kind == domain.Qualitative {
		return e.qualitativeUtility(party, iv)
	}
	params, ok := e.params(party, partyID, bundleID, iv.Name)
	if !ok {
		// Bundle parameters missing: contribute 0, per the error-handling
		// taxonomy's "Bundle parameters missing" rule.
		return 0
	}
	return e.quantitativeUtility(party, partyID, iv.Kind, iv.Number, params)
}

func (e *Evaluator) qualitativeUtility(party domain.Party, iv domain.IssueValue) float64 {
	tfn, ok := e.cfg.TFN(party, iv.Grade)
	if !ok {
		return 0
	}
	return clamp01(tfn.Defuzzify())
}

// params resolves the effective [min,max] for (party, bundle, issue),
// deriving a synergy-rescaled range when no explicit per-bundle override
// exists, and caching the derived result.
func (e *Evaluator) params(party domain.Party, partyID, bundleID string, issue domain.IssueName) (domain.IssueParameters, bool) {
	key := cacheKey{party: party, partyID: partyID, bundleID: bundleID, issue: domain.NormalizeIssueName(issue)}
	if cached, ok := e.cache.Get(key); ok {
		return cached, true
	}
	if explicit, ok := e.cfg.BundleParams(party, partyID, bundleID, issue); ok {
		e.cache.Add(key, explicit)
		return explicit, true
	}
	derived, ok := e.deriveFromSynergy(party, bundleID, issue)
	if !ok {
		return domain.IssueParameters{}, false
	}
	e.cache.Add(key, derived)
	return derived, true
}

func (e *Evaluator) deriveFromSynergy(party domain.Party, bundleID string, issue domain.IssueName) (domain.IssueParameters, bool) {
	kind, recognised := domain.DefaultKind(issue)
	if !recognised || kind == domain.Qualitative {
		return domain.IssueParameters{}, false
	}
	gMin, gMax := e.cfg.GlobalIssueRange(party, issue)
	// Synergy bounds live on the Bundle, but the Evaluator only has a
	// bundleID here; callers that want synergy-derived ranges must have
	// already registered the bundle's bounds via RegisterBundle. Absent that,
	// fall back to the party's global range unscaled.
	synMin, synMax, ok := e.bundleSynergy(bundleID)
	if !ok {
		params, err := domain.NewIssueParameters(gMin, gMax, kind)
		if err != nil {
			return domain.IssueParameters{}, false
		}
		return params, true
	}
	rangeV := gMax - gMin
	min := gMin + synMin*rangeV
	max := gMin + synMax*rangeV
	params, err := domain.NewIssueParameters(min, max, kind)
	if err != nil {
		return domain.IssueParameters{}, false
	}
	return params, true
}

func (e *Evaluator) bundleSynergy(bundleID string) (float64, float64, bool) {
	b, ok := e.bundles[bundleID]
	if !ok {
		return 0, 0, false
	}
	return b.SynergyMin, b.SynergyMax, true
}

// RegisterBundle makes a bundle's synergy bounds available for derivation.
// session.New registers every bundle the session negotiates over before
// negotiation starts.
func (e *Evaluator) RegisterBundle(b domain.Bundle) {
	if e.bundles == nil {
		e.bundles = map[string]domain.Bundle{}
	}
	e.bundles[b.ID] = b
}

func (e *Evaluator) quantitativeUtility(party domain.Party, partyID string, kind domain.IssueKind, value float64, params domain.IssueParameters) float64 {
	beta := e.cfg.Party(party, partyID).RiskBeta
	v := clampTo(value, params.Min, params.Max)
	r := progressRatio(kind, v, params)
	if params.Range() < degenerateEpsilon {
		if isAtBest(kind, v, params) {
			return 1
		}
		return floorMinUtility
	}
	return riskTransform(r, beta)
}

func progressRatio(kind domain.IssueKind, v float64, params domain.IssueParameters) float64 {
	rangeV := params.Range()
	if rangeV < degenerateEpsilon {
		return 0
	}
	switch kind {
	case domain.Cost:
		return (params.Max - v) / rangeV
	default: // Benefit
		return (v - params.Min) / rangeV
	}
}

func isAtBest(kind domain.IssueKind, v float64, params domain.IssueParameters) bool {
	switch kind {
	case domain.Cost:
		return math.Abs(v-params.Min) < degenerateEpsilon
	default:
		return math.Abs(v-params.Max) < degenerateEpsilon
	}
}

// riskTransform applies the risk-shaped curve described in §4.1, with the
// v_min floor, to a progress ratio r in [0,1].
func riskTransform(r float64, beta float64) float64 {
	const vMin = floorMinUtility
	r = clampTo(r, 0, 1)
	switch {
	case beta == 1:
		return vMin + (1-vMin)*r
	case beta < 1:
		if r == 0 {
			return vMin
		}
		return clamp01(vMin + (1-vMin)*math.Pow(r, 1/beta))
	default: // beta > 1
		if r == 1 {
			return 1
		}
		return clamp01(math.Exp(math.Log(vMin) * math.Pow(1-r, beta)))
	}
}

func clampTo(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clamp01(v float64) float64 {
	return clampTo(v, 0, 1)
}
