package domain

import "fmt"

// Proposal is a non-empty, immutable ordered list of bids, possibly
// spanning different bundles. Each bundle id appears at most once.
type Proposal struct {
	Bids []Bid
}

// NewProposal validates and constructs a Proposal.
func NewProposal(bids []Bid) (Proposal, error) {
	if len(bids) == 0 {
		return Proposal{}, fmt.Errorf("proposal: at least one bid is required")
	}
	seen := map[string]bool{}
	cp := make([]Bid, len(bids))
	for i, b := range bids {
		if seen[b.Bundle.ID] {
			return Proposal{}, fmt.Errorf("proposal: bundle %s appears more than once", b.Bundle.ID)
		}
		seen[b.Bundle.ID] = true
		cp[i] = b
	}
	return Proposal{Bids: cp}, nil
}

// BundleIDs returns the ordered bundle identifiers covered by this proposal.
func (p Proposal) BundleIDs() []string {
	ids := make([]string, len(p.Bids))
	for i, b := range p.Bids {
		ids[i] = b.Bundle.ID
	}
	return ids
}
