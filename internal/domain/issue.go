package domain

import (
	"fmt"
	"strings"
)

// IssueKind classifies how a quantitative issue's value maps to utility, or
// marks the issue as linguistic/fuzzy.
type IssueKind string

const (
	Cost        IssueKind = "COST"
	Benefit     IssueKind = "BENEFIT"
	Qualitative IssueKind = "QUALITATIVE"
)

// IssueName identifies a negotiation dimension. Comparisons are
// case-insensitive; use NormalizeIssueName before keying a map.
type IssueName string

const (
	Price    IssueName = "price"
	Delivery IssueName = "delivery"
	Quality  IssueName = "quality"
	Service  IssueName = "service"
)

// RecognisedIssues is the ordered, canonical set every Bid must cover exactly once.
var RecognisedIssues = []IssueName{Price, Delivery, Quality, Service}

var defaultIssueKinds = map[IssueName]IssueKind{
	Price:    Cost,
	Delivery: Cost,
	Quality:  Qualitative,
	Service:  Qualitative,
}

// NormalizeIssueName lowercases and trims an issue name for case-insensitive comparison.
func NormalizeIssueName(n IssueName) IssueName {
	return IssueName(strings.ToLower(strings.TrimSpace(string(n))))
}

// DefaultKind returns the reference-scenario kind for a recognised issue name.
func DefaultKind(n IssueName) (IssueKind, bool) {
	k, ok := defaultIssueKinds[NormalizeIssueName(n)]
	return k, ok
}

// IsRecognised reports whether n (case-insensitively) is one of RecognisedIssues.
func IsRecognised(n IssueName) bool {
	_, ok := DefaultKind(n)
	return ok
}

// LinguisticGrade is a fuzzy qualitative level used by QUALITATIVE issues.
type LinguisticGrade int

const (
	VeryPoor LinguisticGrade = iota
	Poor
	Medium
	Good
	VeryGood
)

var gradeNames = [...]string{"very poor", "poor", "medium", "good", "very good"}
var gradeKeys = [...]string{"very_poor", "poor", "medium", "good", "very_good"}

func (g LinguisticGrade) String() string {
	if g < VeryPoor || g > VeryGood {
		return "unknown"
	}
	return gradeNames[g]
}

// ConfigKey returns the dotted-namespace key fragment for this grade, e.g. "very_poor".
func (g LinguisticGrade) ConfigKey() string {
	if g < VeryPoor || g > VeryGood {
		return ""
	}
	return gradeKeys[g]
}

// ParseLinguisticGrade maps a free-form grade string (case/space/underscore
// insensitive) to a LinguisticGrade. Unknown grades return ok=false; callers
// contribute 0 utility for an unknown grade per the Evaluator spec.
func ParseLinguisticGrade(s string) (LinguisticGrade, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "_", " ")
	for g, name := range gradeNames {
		if name == key {
			return LinguisticGrade(g), true
		}
	}
	return 0, false
}

// IssueValue is a tagged variant: a quantitative Number for COST/BENEFIT
// issues, or a linguistic Grade for QUALITATIVE issues.
type IssueValue struct {
	Name   IssueName
	Kind   IssueKind
	Number float64
	Grade  LinguisticGrade
}

// NumberValue constructs a quantitative issue value.
func NumberValue(name IssueName, kind IssueKind, v float64) IssueValue {
	return IssueValue{Name: name, Kind: kind, Number: v}
}

// GradeValue constructs a qualitative issue value.
func GradeValue(name IssueName, grade LinguisticGrade) IssueValue {
	return IssueValue{Name: name, Kind: Qualitative, Grade: grade}
}

func (v IssueValue) String() string {
	if v.Kind == Qualitative {
		return fmt.Sprintf("%s=%s", v.Name, v.Grade)
	}
	return fmt.Sprintf("%s=%.4f", v.Name, v.Number)
}

// IssueParameters bounds a quantitative issue for a given party/bundle.
type IssueParameters struct {
	Min  float64
	Max  float64
	Kind IssueKind
}

// NewIssueParameters validates min<=max before constructing parameters.
func NewIssueParameters(min, max float64, kind IssueKind) (IssueParameters, error) {
	if min > max {
		return IssueParameters{}, fmt.Errorf("issue parameters: min %.4f > max %.4f", min, max)
	}
	return IssueParameters{Min: min, Max: max, Kind: kind}, nil
}

// Range returns max-min.
func (p IssueParameters) Range() float64 {
	return p.Max - p.Min
}
