package session

import "negotiator/internal/domain"

// referenceBid builds the (party, bundle)-independent shell the Concessor
// needs: correct issue names/kinds and bundle quantities. Its issue values
// are never read by the Concessor — §4.2's update rules are absolute
// functions of (party, posture, t), not deltas from a prior value — so one
// shell per bundle suffices for the whole session.
func referenceBid(bundle domain.Bundle) (domain.Bid, error) {
	issues := make([]domain.IssueValue, 0, len(domain.RecognisedIssues))
	for _, name := range domain.RecognisedIssues {
		kind, _ := domain.DefaultKind(name)
		if kind == domain.Qualitative {
			issues = append(issues, domain.GradeValue(name, domain.Medium))
		} else {
			issues = append(issues, domain.NumberValue(name, kind, 0))
		}
	}
	quantities := make([]int, len(bundle.Items))
	for i, it := range bundle.Items {
		quantities[i] = it.Quantity
	}
	return domain.NewBid(bundle, issues, quantities)
}
