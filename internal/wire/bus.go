package wire

import "sync"

const defaultMailboxCapacity = 16

// Bus is a small in-process router: each bilateral session registers a
// mailbox under its conversation id, and every message routed through the
// bus is forwarded to the mailbox whose conversation id matches. Messages
// for an unknown conversation are dropped, never buffered indefinitely —
// there is no "wait for a late subscriber" case in a negotiation, unlike a
// long-lived chat session.
type Bus struct {
	mu        sync.RWMutex
	mailboxes map[string]chan Message
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{mailboxes: map[string]chan Message{}}
}

// Register creates and returns the inbound mailbox for party within
// conversationID. A conversation has exactly two mailboxes, one per
// participant, since a bilateral session has exactly two parties. Register
// must be called before any message addressed to that party is routed.
func (b *Bus) Register(conversationID, party string) <-chan Message {
	ch := make(chan Message, defaultMailboxCapacity)
	b.mu.Lock()
	b.mailboxes[mailboxKey(conversationID, party)] = ch
	b.mu.Unlock()
	return ch
}

// Deregister closes and removes a party's mailbox. Safe to call more than
// once; a session calls this for both parties on exit from End.
func (b *Bus) Deregister(conversationID, party string) {
	key := mailboxKey(conversationID, party)
	b.mu.Lock()
	ch, ok := b.mailboxes[key]
	if ok {
		delete(b.mailboxes, key)
	}
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Send routes m to the mailbox for (m.ConversationID, m.Receiver). A full
// mailbox means the owning side is not currently waiting (it is mid-compute
// between states); the message is dropped rather than blocking the sender,
// matching "lost messages are tolerated via timeout" in §4.3.
func (b *Bus) Send(m Message) {
	key := mailboxKey(m.ConversationID, m.Receiver)
	b.mu.RLock()
	ch, ok := b.mailboxes[key]
	b.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case ch <- m:
	default:
	}
}

func mailboxKey(conversationID, party string) string {
	return conversationID + "|" + party
}
