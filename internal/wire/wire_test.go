package wire_test

import (
	"testing"
	"time"

	"negotiator/internal/domain"
	"negotiator/internal/wire"
)

func TestBusRoutesMessageToMatchingMailbox(t *testing.T) {
	bus := wire.NewBus()
	conv := "conv-1"
	buyerBox := bus.Register(conv, "buyer")
	defer bus.Deregister(conv, "buyer")

	bus.Send(wire.Message{
		Performative:   wire.Propose,
		Sender:         "s1",
		Receiver:       "buyer",
		ConversationID: conv,
		InReplyTo:      "tok-1",
	})

	select {
	case msg := <-buyerBox:
		if msg.Sender != "s1" || msg.ConversationID != conv {
			t.Fatalf("unexpected message routed: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected message to be delivered")
	}
}

func TestBusDropsMessageForUnknownConversation(t *testing.T) {
	bus := wire.NewBus()
	// No mailbox registered at all; Send must not panic or block.
	done := make(chan struct{})
	go func() {
		bus.Send(wire.Message{Sender: "s1", Receiver: "buyer", ConversationID: "ghost"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Send blocked on an unregistered conversation")
	}
}

func TestBusDropsMessageOnFullMailboxRatherThanBlocking(t *testing.T) {
	bus := wire.NewBus()
	conv := "conv-full"
	bus.Register(conv, "buyer")
	defer bus.Deregister(conv, "buyer")

	done := make(chan struct{})
	go func() {
		// Far more sends than the mailbox's buffer capacity, with nobody
		// draining it; Send must never block the caller.
		for i := 0; i < 1000; i++ {
			bus.Send(wire.Message{Sender: "s1", Receiver: "buyer", ConversationID: conv})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Send blocked when the mailbox was full")
	}
}

func TestDeregisterIsIdempotentAndClosesMailbox(t *testing.T) {
	bus := wire.NewBus()
	conv := "conv-2"
	box := bus.Register(conv, "buyer")
	bus.Deregister(conv, "buyer")
	bus.Deregister(conv, "buyer") // must not panic on a second call

	_, ok := <-box
	if ok {
		t.Fatalf("expected mailbox channel to be closed after deregister")
	}
}

func TestMessageMatchesRequiresAllThreeFields(t *testing.T) {
	m := wire.Message{Sender: "s1", ConversationID: "c1", InReplyTo: "tok"}
	if !m.Matches("s1", "c1", "tok") {
		t.Fatalf("expected exact match to succeed")
	}
	if m.Matches("s2", "c1", "tok") {
		t.Fatalf("expected sender mismatch to fail")
	}
	if m.Matches("s1", "c2", "tok") {
		t.Fatalf("expected conversation mismatch to fail")
	}
	if m.Matches("s1", "c1", "other-tok") {
		t.Fatalf("expected in-reply-to mismatch to fail")
	}
}

func TestProposalContentTypeAssertion(t *testing.T) {
	bundle, err := domain.NewBundle("B1", []domain.BundleItem{{Product: "P1", Quantity: 1}}, 0, 1, nil, nil)
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	issues := []domain.IssueValue{
		domain.NumberValue(domain.Price, domain.Cost, 10),
		domain.NumberValue(domain.Delivery, domain.Cost, 1),
		domain.GradeValue(domain.Quality, domain.Good),
		domain.GradeValue(domain.Service, domain.Good),
	}
	bid, err := domain.NewBid(bundle, issues, []int{1})
	if err != nil {
		t.Fatalf("NewBid: %v", err)
	}
	proposal, err := domain.NewProposal([]domain.Bid{bid})
	if err != nil {
		t.Fatalf("NewProposal: %v", err)
	}
	msg := wire.Message{Content: proposal}
	got, ok := wire.ProposalContent(msg)
	if !ok || len(got.Bids) != 1 {
		t.Fatalf("expected proposal content to round-trip, got %+v ok=%v", got, ok)
	}
	if _, ok := wire.ProposalContent(wire.Message{Content: "not a proposal"}); ok {
		t.Fatalf("expected type assertion to fail for non-Proposal content")
	}
}

func TestProtocolIdentifiersAreStable(t *testing.T) {
	if wire.DefineTaskProtocol != "define-task-protocol" {
		t.Fatalf("unexpected DefineTaskProtocol: %s", wire.DefineTaskProtocol)
	}
	if wire.GetBundlesProtocol != "get-bundles-protocol" {
		t.Fatalf("unexpected GetBundlesProtocol: %s", wire.GetBundlesProtocol)
	}
	if wire.ReportNegotiationProtocol != "report-negotiation-result" {
		t.Fatalf("unexpected ReportNegotiationProtocol: %s", wire.ReportNegotiationProtocol)
	}
}
