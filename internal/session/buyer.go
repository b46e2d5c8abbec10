package session

import (
	"context"

	"github.com/google/uuid"

	"negotiator/internal/domain"
	"negotiator/internal/wire"
)

// runBuyer drives the buyer-initiated side of the FSM: Request ->
// WaitProposal -> (Evaluate -> Accept | Counter -> WaitResponse)* -> End.
func (s *Session) runBuyer(ctx context.Context, conversationID string, mailbox <-chan wire.Message) Result {
	log := s.logger(conversationID)
	s.setBuyerState(StateRequest)

	cfpTok := uuid.NewString()
	s.bus.Send(wire.Message{
		Performative:   wire.Request,
		Protocol:       wire.DefineTaskProtocol,
		Sender:         s.buyerID,
		Receiver:       s.sellerID,
		ConversationID: conversationID,
		ReplyWith:      cfpTok,
		Content:        "CFP",
	})

	awaiting := cfpTok
	round := 0
	var lastSent domain.Proposal

	s.setBuyerState(StateWaitProposal)
	for {
		msg, ok := s.wait(ctx, mailbox, s.sellerID, conversationID, awaiting)
		if !ok {
			log.Info("buyer: session ended, timeout or cancellation")
			s.setBuyerState(StateEnd)
			return s.fail()
		}

		switch msg.Performative {
		case wire.Accept:
			// The seller accepted our last counter-proposal outright.
			s.setBuyerState(StateEnd)
			return s.succeed(conversationID, lastSent)

		case wire.Propose:
			proposal, ok := wire.ProposalContent(msg)
			if !ok {
				log.Warn("buyer: unreadable proposal content")
				s.setBuyerState(StateEnd)
				return s.fail()
			}
			s.setBuyerState(StateEvaluate)
			round++
			if round > s.maxRounds {
				log.Info("buyer: deadline exceeded", "round", round, "max_rounds", s.maxRounds)
				s.setBuyerState(StateEnd)
				return s.fail()
			}

			if s.allAcceptable(domain.Buyer, s.buyerID, proposal, round) {
				s.setBuyerState(StateAccept)
				tok := uuid.NewString()
				s.bus.Send(wire.Message{
					Performative:   wire.Accept,
					Protocol:       wire.ReportNegotiationProtocol,
					Sender:         s.buyerID,
					Receiver:       s.sellerID,
					ConversationID: conversationID,
					InReplyTo:      msg.ReplyWith,
					ReplyWith:      tok,
				})
				s.setBuyerState(StateEnd)
				return s.succeed(conversationID, proposal)
			}

			s.setBuyerState(StateCounter)
			counter, err := s.counterProposal(domain.Buyer, s.buyerID, proposal, round)
			if err != nil {
				log.Warn("buyer: could not build counter proposal", "error", err)
				s.setBuyerState(StateEnd)
				return s.fail()
			}
			lastSent = counter
			tok := uuid.NewString()
			s.bus.Send(wire.Message{
				Performative:   wire.Propose,
				Protocol:       wire.ReportNegotiationProtocol,
				Sender:         s.buyerID,
				Receiver:       s.sellerID,
				ConversationID: conversationID,
				InReplyTo:      msg.ReplyWith,
				ReplyWith:      tok,
				Content:        counter,
			})
			awaiting = tok
			s.setBuyerState(StateWaitResponse)

		default:
			log.Warn("buyer: unexpected performative", "performative", msg.Performative)
			s.setBuyerState(StateEnd)
			return s.fail()
		}
	}
}

// allAcceptable applies the §4.3 per-bid acceptance rule across a whole
// proposal, all-or-nothing.
func (s *Session) allAcceptable(party domain.Party, partyID string, proposal domain.Proposal, round int) bool {
	for _, bid := range proposal.Bids {
		if !s.accepts(party, partyID, bid, round) {
			return false
		}
	}
	return true
}

// accepts implements the per-party acceptance test: the buyer additionally
// requires the received bid to beat its own hypothetical next counter, to
// avoid accepting something worse than what it is about to offer; the
// seller uses the threshold test alone.
func (s *Session) accepts(party domain.Party, partyID string, bid domain.Bid, round int) bool {
	threshold := s.cfg.Party(party, partyID).AcceptanceThreshold
	received := s.eval.Utility(party, partyID, bid)
	if received < threshold {
		return false
	}
	if party != domain.Buyer {
		return true
	}
	ref, ok := s.referenceFor(bid.Bundle)
	if !ok {
		return true
	}
	hypothetical := s.conc.Counter(party, partyID, ref, round, s.maxRounds)
	return received >= s.eval.Utility(party, partyID, hypothetical)
}

// counterProposal builds the next all-bundle counter-proposal for party at
// the given round, one counter-bid per bid in the received proposal.
func (s *Session) counterProposal(party domain.Party, partyID string, received domain.Proposal, round int) (domain.Proposal, error) {
	bids := make([]domain.Bid, len(received.Bids))
	for i, bid := range received.Bids {
		ref, ok := s.referenceFor(bid.Bundle)
		if !ok {
			bids[i] = bid
			continue
		}
		bids[i] = s.conc.Counter(party, partyID, ref, round, s.maxRounds)
	}
	return domain.NewProposal(bids)
}

func (s *Session) fail() Result {
	return Result{SellerID: s.sellerID, Success: false}
}

func (s *Session) succeed(conversationID string, proposal domain.Proposal) Result {
	outcomes := make([]domain.Outcome, len(proposal.Bids))
	for i, bid := range proposal.Bids {
		outcomes[i] = domain.Outcome{
			Bid:            bid,
			UtilityToBuyer: s.eval.Utility(domain.Buyer, s.buyerID, bid),
			SellerID:       s.sellerID,
		}
	}
	s.logger(conversationID).Info("buyer: session succeeded", "outcomes", len(outcomes))
	return Result{SellerID: s.sellerID, Outcomes: outcomes, Success: true}
}

// wait suspends until a message matching (fromSender, conversationID,
// awaitingReplyTo) arrives, the per-wait-state timeout fires, or ctx is
// cancelled. Non-matching messages are a correlation failure: dropped
// silently, never consumed, per §7.3. The timeout is sourced from s.clock
// rather than a bare time.NewTimer, so tests can inject a Clock whose After
// fires immediately instead of sleeping real wall-clock time.
func (s *Session) wait(ctx context.Context, mailbox <-chan wire.Message, fromSender, conversationID, awaitingReplyTo string) (wire.Message, bool) {
	timeout := s.clock.After(s.waitTimeout)
	for {
		select {
		case <-ctx.Done():
			return wire.Message{}, false
		case <-timeout:
			return wire.Message{}, false
		case msg, ok := <-mailbox:
			if !ok {
				return wire.Message{}, false
			}
			if !msg.Matches(fromSender, conversationID, awaitingReplyTo) {
				continue
			}
			return msg, true
		}
	}
}
