package domain

import "fmt"

// Party is a negotiation role.
type Party int

const (
	Buyer Party = iota
	Seller
)

func (p Party) String() string {
	if p == Seller {
		return "seller"
	}
	return "buyer"
}

// Bid is a concrete offer for one bundle with assigned issue values and
// quantities. A Bid is immutable after creation.
type Bid struct {
	Bundle     Bundle
	Issues     []IssueValue
	Quantities []int
}

// NewBid validates and constructs a Bid: quantities must align 1:1 with the
// bundle's items and be non-negative, and issues must cover exactly the
// recognised set, case-insensitively, with no duplicates.
func NewBid(bundle Bundle, issues []IssueValue, quantities []int) (Bid, error) {
	if len(quantities) != len(bundle.Items) {
		return Bid{}, fmt.Errorf("bid: %d quantities for bundle %s with %d items", len(quantities), bundle.ID, len(bundle.Items))
	}
	for i, q := range quantities {
		if q < 0 {
			return Bid{}, fmt.Errorf("bid: negative quantity at item %d of bundle %s", i, bundle.ID)
		}
	}
	seen := map[IssueName]bool{}
	for _, iv := range issues {
		norm := NormalizeIssueName(iv.Name)
		if !IsRecognised(norm) {
			return Bid{}, fmt.Errorf("bid: issue %s is not recognised", iv.Name)
		}
		if seen[norm] {
			return Bid{}, fmt.Errorf("bid: duplicate issue %s", iv.Name)
		}
		seen[norm] = true
	}
	if len(seen) != len(RecognisedIssues) {
		return Bid{}, fmt.Errorf("bid: expected %d recognised issues, got %d", len(RecognisedIssues), len(seen))
	}
	qCopy := make([]int, len(quantities))
	copy(qCopy, quantities)
	ivCopy := make([]IssueValue, len(issues))
	copy(ivCopy, issues)
	return Bid{Bundle: bundle, Issues: ivCopy, Quantities: qCopy}, nil
}

// IssueValue returns the bid's value for a recognised issue name.
func (b Bid) IssueValue(name IssueName) (IssueValue, bool) {
	norm := NormalizeIssueName(name)
	for _, iv := range b.Issues {
		if NormalizeIssueName(iv.Name) == norm {
			return iv, true
		}
	}
	return IssueValue{}, false
}

// WithIssues returns a copy of the bid with its issues replaced, used by the
// Concessor to produce a counter-bid without mutating the reference bid.
func (b Bid) WithIssues(issues []IssueValue) Bid {
	cp := make([]IssueValue, len(issues))
	copy(cp, issues)
	return Bid{Bundle: b.Bundle, Issues: cp, Quantities: append([]int(nil), b.Quantities...)}
}
