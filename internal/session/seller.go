package session

import (
	"context"

	"github.com/google/uuid"

	"negotiator/internal/domain"
	"negotiator/internal/wire"
)

// runSeller drives the seller-responding side of the FSM: InitialOffer ->
// WaitResponse -> (Evaluate -> Accept(send) | Counter)* -> End. It never
// reports a Result directly; the buyer side is authoritative for the
// session's outcome, and runSeller exits silently once the conversation
// concludes or the session's context is cancelled.
func (s *Session) runSeller(ctx context.Context, conversationID string, mailbox <-chan wire.Message) {
	log := s.logger(conversationID)

	req, ok := s.wait(ctx, mailbox, s.buyerID, conversationID, "")
	if !ok {
		s.setSellerState(StateEnd)
		return
	}
	if req.Performative != wire.Request {
		log.Warn("seller: unexpected first message", "performative", req.Performative)
		s.setSellerState(StateEnd)
		return
	}

	s.setSellerState(StateInitialOffer)
	initial, err := s.initialOffer(conversationID)
	if err != nil {
		log.Warn("seller: could not build initial offer", "error", err)
		s.setSellerState(StateEnd)
		return
	}
	tok := uuid.NewString()
	s.bus.Send(wire.Message{
		Performative:   wire.Propose,
		Protocol:       wire.ReportNegotiationProtocol,
		Sender:         s.sellerID,
		Receiver:       s.buyerID,
		ConversationID: conversationID,
		InReplyTo:      req.ReplyWith,
		ReplyWith:      tok,
		Content:        initial,
	})

	awaiting := tok
	round := 0

	s.setSellerState(StateWaitResponse)
	for {
		msg, ok := s.wait(ctx, mailbox, s.buyerID, conversationID, awaiting)
		if !ok {
			s.setSellerState(StateEnd)
			return
		}

		switch msg.Performative {
		case wire.Accept:
			s.setSellerState(StateEnd)
			return

		case wire.Propose:
			counter, ok := wire.ProposalContent(msg)
			if !ok {
				log.Warn("seller: unreadable proposal content")
				s.setSellerState(StateEnd)
				return
			}
			s.setSellerState(StateEvaluate)
			round++
			if round > s.maxRounds {
				log.Info("seller: deadline exceeded", "round", round, "max_rounds", s.maxRounds)
				s.setSellerState(StateEnd)
				return
			}
			if s.allAcceptable(domain.Seller, s.sellerID, counter, round) {
				s.setSellerState(StateAccept)
				tok2 := uuid.NewString()
				s.bus.Send(wire.Message{
					Performative:   wire.Accept,
					Protocol:       wire.ReportNegotiationProtocol,
					Sender:         s.sellerID,
					Receiver:       s.buyerID,
					ConversationID: conversationID,
					InReplyTo:      msg.ReplyWith,
					ReplyWith:      tok2,
				})
				s.setSellerState(StateEnd)
				return
			}
			s.setSellerState(StateCounter)
			next, err := s.counterProposal(domain.Seller, s.sellerID, counter, round)
			if err != nil {
				log.Warn("seller: could not build counter proposal", "error", err)
				s.setSellerState(StateEnd)
				return
			}
			tok2 := uuid.NewString()
			s.bus.Send(wire.Message{
				Performative:   wire.Propose,
				Protocol:       wire.ReportNegotiationProtocol,
				Sender:         s.sellerID,
				Receiver:       s.buyerID,
				ConversationID: conversationID,
				InReplyTo:      msg.ReplyWith,
				ReplyWith:      tok2,
				Content:        next,
			})
			awaiting = tok2
			s.setSellerState(StateWaitResponse)

		default:
			log.Warn("seller: unexpected performative", "performative", msg.Performative)
			s.setSellerState(StateEnd)
			return
		}
	}
}

// initialOffer builds one bid per offered bundle, each at the seller's own
// worst-for-buyer extreme: round t=1 of the seller's own concession curve,
// which with the default b_k of 0.1 starts at "poor" linguistic terms and
// near the price/delivery extreme least favorable to the buyer.
func (s *Session) initialOffer(conversationID string) (domain.Proposal, error) {
	bids := make([]domain.Bid, 0, len(s.bundles))
	for _, bundle := range s.bundles {
		ref, ok := s.referenceFor(bundle)
		if !ok {
			s.logger(conversationID).Warn("seller: skipping bundle with no reference shell", "bundle_id", bundle.ID)
			continue
		}
		bids = append(bids, s.conc.Counter(domain.Seller, s.sellerID, ref, 1, s.maxRounds))
	}
	return domain.NewProposal(bids)
}
