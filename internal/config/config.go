// Package config reads the negotiation parameter document described by the
// spec's flat keyed namespace: negotiation.*, buyer.*, seller.*, weights.*,
// per-seller overrides at seller.<id>.*, per-bundle synergy overrides at
// params.{buyer,seller}.*, and triangular fuzzy number tables at tfn.*.
//
// It is a concrete stand-in for the "Config Provider" the spec marks as an
// external collaborator: something still has to answer Get-by-name calls
// when the engine runs standalone.
package config

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"negotiator/internal/domain"
)

// PartyConfig bundles the per-party negotiation knobs: acceptance
// threshold, risk posture beta, and concession posture (gamma, the
// reservation floor b_k).
type PartyConfig struct {
	AcceptanceThreshold float64
	RiskBeta            float64
	Gamma               float64
	BK                  float64
}

// TFN is a triangular fuzzy number (a,b,c); Defuzzify returns (a+4b+c)/6.
type TFN struct {
	A, B, C float64
}

// Defuzzify applies the standard centroid defuzzification for a TFN.
func (t TFN) Defuzzify() float64 {
	return (t.A + 4*t.B + t.C) / 6
}

// Config wraps a viper instance over the flat namespace of §6.
type Config struct {
	v *viper.Viper
}

func newWithDefaults() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("negotiation.maxRounds", 10)
	v.SetDefault("negotiation.discountRate", 0.1)
	v.SetDefault("buyer.acceptanceThreshold", 0.5)
	v.SetDefault("buyer.riskBeta", 1.0)
	v.SetDefault("buyer.gamma", 1.0)
	v.SetDefault("buyer.bK", 0.1)
	v.SetDefault("seller.acceptanceThreshold", 0.5)
	v.SetDefault("seller.riskBeta", 1.0)
	v.SetDefault("seller.gamma", 1.0)
	v.SetDefault("seller.bK", 0.1)
	v.SetDefault("weights.price", 0.25)
	v.SetDefault("weights.quality", 0.25)
	v.SetDefault("weights.delivery", 0.25)
	v.SetDefault("weights.service", 0.25)
	// Reference TFN tables. The seller table is the buyer table in reverse
	// grade order: sellers rate "very poor" delivery/quality language as
	// their own best outcome, so the two parties' tables are not identical.
	v.SetDefault("tfn.buyer.very_poor", "0,0,0.2")
	v.SetDefault("tfn.buyer.poor", "0,0.2,0.4")
	v.SetDefault("tfn.buyer.medium", "0.2,0.5,0.8")
	v.SetDefault("tfn.buyer.good", "0.6,0.8,1.0")
	v.SetDefault("tfn.buyer.very_good", "0.8,1.0,1.0")
	v.SetDefault("tfn.seller.very_poor", "0.8,1.0,1.0")
	v.SetDefault("tfn.seller.poor", "0.6,0.8,1.0")
	v.SetDefault("tfn.seller.medium", "0.2,0.5,0.8")
	v.SetDefault("tfn.seller.good", "0,0.2,0.4")
	v.SetDefault("tfn.seller.very_good", "0,0,0.2")
	return v
}

// Default returns the built-in defaults with no seller overrides, no
// per-bundle synergy overrides, and the reference TFN tables above.
func Default() *Config {
	return &Config{v: newWithDefaults()}
}

// FromYAML merges a YAML document onto the defaults and returns the result.
func FromYAML(data []byte) (*Config, error) {
	v := newWithDefaults()
	v.SetConfigType("yaml")
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("negotiation config: invalid yaml: %w", err)
	}
	return &Config{v: v}, nil
}

// Load reads a YAML document from path onto the defaults.
func Load(path string) (*Config, error) {
	v := newWithDefaults()
	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil {
		return nil, fmt.Errorf("negotiation config: %s: %w", path, err)
	}
	return &Config{v: v}, nil
}

// ApplyDocument merges a nested key-value document (as decoded from the
// inbound "Set configuration" command) onto the running config. The merge
// is immediate and is not deferred to the next run: a run already in
// progress sees the new values from its next configuration lookup.
func (c *Config) ApplyDocument(doc map[string]any) error {
	return c.v.MergeConfigMap(doc)
}

// AllSettings dumps the full effective configuration (defaults merged with
// any loaded document), for inspection by the CLI's "config show".
func (c *Config) AllSettings() map[string]any {
	return c.v.AllSettings()
}

// MaxRounds is negotiation.maxRounds, the deadline T for every session.
func (c *Config) MaxRounds() int {
	n := c.v.GetInt("negotiation.maxRounds")
	if n < 1 {
		return 1
	}
	return n
}

// DiscountRate is negotiation.discountRate, reserved for future concession curves.
func (c *Config) DiscountRate() float64 {
	return c.v.GetFloat64("negotiation.discountRate")
}

// Party resolves the negotiation posture for buyer, or for a seller with an
// optional per-seller override at seller.<sellerID>.*. Missing override
// keys fall back to the seller.* global default, per §7's "configuration
// missing" rule (fall back to documented default; never fail the run).
func (c *Config) Party(party domain.Party, sellerID string) PartyConfig {
	if party == domain.Buyer {
		return PartyConfig{
			AcceptanceThreshold: c.v.GetFloat64("buyer.acceptanceThreshold"),
			RiskBeta:            c.v.GetFloat64("buyer.riskBeta"),
			Gamma:               c.v.GetFloat64("buyer.gamma"),
			BK:                  c.v.GetFloat64("buyer.bK"),
		}
	}
	get := func(suffix string) (float64, bool) {
		if sellerID != "" {
			key := "seller." + sellerID + "." + suffix
			if c.v.IsSet(key) {
				return c.v.GetFloat64(key), true
			}
		}
		return c.v.GetFloat64("seller." + suffix), false
	}
	threshold, _ := get("acceptanceThreshold")
	beta, _ := get("riskBeta")
	gamma, _ := get("gamma")
	bK, _ := get("bK")
	return PartyConfig{AcceptanceThreshold: threshold, RiskBeta: beta, Gamma: gamma, BK: bK}
}

// Weights returns the configured issue-weight map shared by both parties'
// evaluators; weights are used as-is, never renormalised.
func (c *Config) Weights() map[domain.IssueName]float64 {
	return map[domain.IssueName]float64{
		domain.Price:    c.v.GetFloat64("weights.price"),
		domain.Quality:  c.v.GetFloat64("weights.quality"),
		domain.Delivery: c.v.GetFloat64("weights.delivery"),
		domain.Service:  c.v.GetFloat64("weights.service"),
	}
}

// BundleParams resolves explicit per-bundle synergy override parameters for
// a quantitative issue, read from params.buyer.<bundleID>.<issue> or
// params.seller.<sellerID>.<bundleID>.<issue> as a "min,max" string. ok is
// false when no explicit entry exists, in which case the Evaluator derives
// bundle-specific bounds from the bundle's own synergy ratios instead.
func (c *Config) BundleParams(party domain.Party, sellerID, bundleID string, issue domain.IssueName) (domain.IssueParameters, bool) {
	kind, recognised := domain.DefaultKind(issue)
	if !recognised || kind == domain.Qualitative {
		return domain.IssueParameters{}, false
	}
	var key string
	if party == domain.Buyer {
		key = fmt.Sprintf("params.buyer.%s.%s", bundleID, issue)
	} else {
		key = fmt.Sprintf("params.seller.%s.%s.%s", sellerID, bundleID, issue)
	}
	raw := c.v.GetString(key)
	if raw == "" {
		return domain.IssueParameters{}, false
	}
	minV, maxV, err := parsePair(raw)
	if err != nil {
		return domain.IssueParameters{}, false
	}
	params, err := domain.NewIssueParameters(minV, maxV, kind)
	if err != nil {
		return domain.IssueParameters{}, false
	}
	return params, true
}

// GlobalIssueRange resolves the party-wide [min,max] for a quantitative
// issue, read from params.<party>.global.<issue> with a documented
// fallback of [0,1] when absent — the Evaluator then rescales this range
// per-bundle using synergy bounds.
func (c *Config) GlobalIssueRange(party domain.Party, issue domain.IssueName) (float64, float64) {
	var key string
	if party == domain.Buyer {
		key = fmt.Sprintf("params.buyer.global.%s", issue)
	} else {
		key = fmt.Sprintf("params.seller.global.%s", issue)
	}
	raw := c.v.GetString(key)
	if raw == "" {
		return 0, 1
	}
	minV, maxV, err := parsePair(raw)
	if err != nil {
		return 0, 1
	}
	return minV, maxV
}

// TFN resolves the triangular fuzzy number for a party's reading of a
// linguistic grade, read from tfn.{buyer|seller}.<grade_key> as "a,b,c".
func (c *Config) TFN(party domain.Party, grade domain.LinguisticGrade) (TFN, bool) {
	key := fmt.Sprintf("tfn.%s.%s", party, grade.ConfigKey())
	raw := c.v.GetString(key)
	if raw == "" {
		return TFN{}, false
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return TFN{}, false
	}
	a, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	b, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	cc, err3 := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return TFN{}, false
	}
	return TFN{A: a, B: b, C: cc}, true
}

func parsePair(raw string) (float64, float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("config: expected \"min,max\", got %q", raw)
	}
	minV, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	maxV, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	if minV > maxV {
		return 0, 0, fmt.Errorf("config: min %.4f > max %.4f", minV, maxV)
	}
	return minV, maxV, nil
}
