package session

// State is one node of the bilateral negotiation FSM described in §4.3.
// The buyer and seller run loops record each state they enter through
// setBuyerState/setSellerState.
type State int

const (
	StateRequest State = iota
	StateInitialOffer
	StateWaitProposal
	StateWaitResponse
	StateEvaluate
	StateCounter
	StateAccept
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateRequest:
		return "Request"
	case StateInitialOffer:
		return "InitialOffer"
	case StateWaitProposal:
		return "WaitProposal"
	case StateWaitResponse:
		return "WaitResponse"
	case StateEvaluate:
		return "Evaluate"
	case StateCounter:
		return "Counter"
	case StateAccept:
		return "Accept"
	case StateEnd:
		return "End"
	default:
		return "Unknown"
	}
}
