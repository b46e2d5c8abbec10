// Package wire defines the negotiation message envelope and a small bus
// that routes messages to the bilateral session mailbox that is waiting
// for them, mirroring an agent-hosting runtime's message-template dispatch
// without depending on one.
package wire

import "negotiator/internal/domain"

// Performative is the speech-act tag of a message.
type Performative string

const (
	Request Performative = "REQUEST"
	Propose Performative = "PROPOSE"
	Accept  Performative = "ACCEPT"
	Inform  Performative = "INFORM"
)

// Protocol identifiers, stable and exact per §6.
const (
	DefineTaskProtocol        = "define-task-protocol"
	GetBundlesProtocol        = "get-bundles-protocol"
	ReportNegotiationProtocol = "report-negotiation-result"
)

// Message is the wire envelope exchanged between a buyer and a seller
// session. Content is one of domain.Proposal, domain.Outcome, a plain
// demand string, or a plain acknowledgement string; callers type-switch
// on Content.
type Message struct {
	Performative  Performative
	Protocol      string
	Sender        string
	Receiver      string
	ConversationID string
	InReplyTo     string
	ReplyWith     string
	Content       any
}

// Matches reports whether m is a valid reply to a message this party sent
// with the given sender, conversation id, and outstanding reply token.
// Per §4.3/§7.3, anything that does not match is silently dropped, never
// treated as an error.
func (m Message) Matches(fromSender, conversationID, awaitingReplyTo string) bool {
	return m.Sender == fromSender &&
		m.ConversationID == conversationID &&
		m.InReplyTo == awaitingReplyTo
}

// ProposalContent type-asserts m's content as a Proposal.
func ProposalContent(m Message) (domain.Proposal, bool) {
	p, ok := m.Content.(domain.Proposal)
	return p, ok
}

// OutcomeContent type-asserts m's content as an Outcome.
func OutcomeContent(m Message) (domain.Outcome, bool) {
	o, ok := m.Content.(domain.Outcome)
	return o, ok
}
