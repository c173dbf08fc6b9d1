package session

import (
	"time"

	"github.com/axmq/axd/types/message"
)

// State represents the session state
type State byte

const (
	StateNew          State = iota // Session is newly created
	StateActive                    // Session is active with a connected client
	StateDisconnected              // Session is disconnected but not expired
	StateExpired                   // Session has expired
)

// InflightState tracks where an unacknowledged outbound or inbound
// message sits in its QoS handshake.
type InflightState byte

const (
	AwaitingPubAck  InflightState = iota // QoS1 outbound, waiting for PUBACK
	AwaitingPubRec                       // QoS2 outbound, waiting for PUBREC
	AwaitingPubComp                      // QoS2 outbound, waiting for PUBCOMP
	AwaitingPubRel                       // QoS2 inbound, waiting for PUBREL
)

// String returns the state name
func (s InflightState) String() string {
	switch s {
	case AwaitingPubAck:
		return "AwaitingPubAck"
	case AwaitingPubRec:
		return "AwaitingPubRec"
	case AwaitingPubComp:
		return "AwaitingPubComp"
	case AwaitingPubRel:
		return "AwaitingPubRel"
	default:
		return "Unknown"
	}
}

// AckKind identifies which acknowledgment packet arrived.
type AckKind byte

const (
	AckPubAck AckKind = iota
	AckPubRec
	AckPubComp
)

// Inflight is an entry in the outbound unacknowledged window.
type Inflight struct {
	PacketID uint16
	Message  *message.Message
	State    InflightState
	SentAt   time.Time
}

// WillMessage is the message published on the client's behalf when it
// disconnects ungracefully.
type WillMessage struct {
	Topic      string
	Payload    []byte
	QoS        message.QoS
	Retain     bool
	Properties map[string]interface{}
}

// Subscription represents a topic subscription
type Subscription struct {
	TopicFilter  string
	QoS          message.QoS
	SubscribedAt time.Time
}

// Session holds all per-client broker state. It is owned exclusively by
// the broker router goroutine and carries no internal locking;
// connection adapters only ever hold the client ID.
type Session struct {
	ClientID          string
	Clean             bool
	State             State
	ExpiryInterval    uint32 // Seconds a durable session survives disconnection (0 = forever)
	Keepalive         uint16 // Seconds between client packets before the connection is presumed dead
	CreatedAt         time.Time
	DisconnectedAt    time.Time
	Will              *WillMessage
	WillDelayInterval uint32

	// Subscriptions by topic filter
	Subscriptions map[string]*Subscription

	// Pending holds outgoing messages not yet dispatched, in enqueue
	// order: messages queued while the client is offline and QoS1/2
	// messages waiting for window space.
	Pending []*message.Message

	// Inflight is the outbound unacknowledged QoS1/2 window.
	Inflight map[uint16]*Inflight

	// InboundQoS2 holds messages received at QoS2 that have been
	// PUBREC'd but not yet released by PUBREL. Keys are the publisher's
	// packet IDs, a separate space from the outbound window.
	InboundQoS2 map[uint16]*message.Message

	ReceiveMaximum uint16

	nextPacketID uint16
}

// New creates a new session
func New(clientID string, clean bool, expiryInterval uint32) *Session {
	return &Session{
		ClientID:       clientID,
		Clean:          clean,
		State:          StateNew,
		ExpiryInterval: expiryInterval,
		CreatedAt:      time.Now(),
		Subscriptions:  make(map[string]*Subscription),
		Inflight:       make(map[uint16]*Inflight),
		InboundQoS2:    make(map[uint16]*message.Message),
		ReceiveMaximum: 65535,
		nextPacketID:   1,
	}
}

// SetActive marks the session as active
func (s *Session) SetActive() {
	s.State = StateActive
}

// SetDisconnected marks the session as disconnected and starts its
// expiry clock.
func (s *Session) SetDisconnected() {
	s.State = StateDisconnected
	s.DisconnectedAt = time.Now()
}

// IsExpired checks if a disconnected durable session has passed its
// expiry deadline.
func (s *Session) IsExpired() bool {
	if s.State == StateExpired {
		return true
	}
	if s.State != StateDisconnected {
		return false
	}
	if s.ExpiryInterval == 0 && !s.Clean {
		return false // Durable session with no expiry
	}
	return time.Since(s.DisconnectedAt) > time.Duration(s.ExpiryInterval)*time.Second
}

// ShouldPublishWill reports whether a configured will's delay has
// elapsed since disconnection.
func (s *Session) ShouldPublishWill() bool {
	if s.Will == nil {
		return false
	}
	if s.WillDelayInterval == 0 {
		return true
	}
	return time.Since(s.DisconnectedAt) >= time.Duration(s.WillDelayInterval)*time.Second
}

// AddSubscription records a subscription; re-subscribing to the same
// filter replaces the QoS.
func (s *Session) AddSubscription(filter string, qos message.QoS) {
	s.Subscriptions[filter] = &Subscription{
		TopicFilter:  filter,
		QoS:          qos,
		SubscribedAt: time.Now(),
	}
}

// RemoveSubscription removes a subscription. Returns false if the
// filter was not subscribed.
func (s *Session) RemoveSubscription(filter string) bool {
	if _, ok := s.Subscriptions[filter]; !ok {
		return false
	}
	delete(s.Subscriptions, filter)
	return true
}

// NextPacketID allocates an outbound packet ID not currently in the
// inflight window.
func (s *Session) NextPacketID() uint16 {
	for {
		id := s.nextPacketID
		s.nextPacketID++
		if s.nextPacketID == 0 {
			s.nextPacketID = 1
		}

		if _, inUse := s.Inflight[id]; !inUse {
			return id
		}
	}
}

// EnqueuePending appends a message to the pending queue, preserving
// enqueue order. Returns false when the queue is at the limit (limit 0
// means unbounded).
func (s *Session) EnqueuePending(msg *message.Message, limit int) bool {
	if limit > 0 && len(s.Pending) >= limit {
		return false
	}
	s.Pending = append(s.Pending, msg)
	return true
}

// HasWindowSpace reports whether another QoS1/2 message may enter the
// inflight window.
func (s *Session) HasWindowSpace() bool {
	return len(s.Inflight) < int(s.ReceiveMaximum)
}

// TrackOutbound places a QoS1/2 message in the inflight window and
// returns its packet ID. The message's DUP flag follows its attempt
// count.
func (s *Session) TrackOutbound(msg *message.Message) uint16 {
	id := s.NextPacketID()
	msg.PacketID = id
	msg.MarkAttempt()

	state := AwaitingPubAck
	if msg.QoS == message.QoS2 {
		state = AwaitingPubRec
	}

	s.Inflight[id] = &Inflight{
		PacketID: id,
		Message:  msg,
		State:    state,
		SentAt:   time.Now(),
	}
	return id
}

// Ack advances the inflight state machine for an acknowledgment.
// ErrUnknownPacketID is returned for unknown IDs or acknowledgments
// that do not match the entry's state.
func (s *Session) Ack(packetID uint16, kind AckKind) (*Inflight, error) {
	entry, ok := s.Inflight[packetID]
	if !ok {
		return nil, ErrUnknownPacketID
	}

	switch kind {
	case AckPubAck:
		if entry.State != AwaitingPubAck {
			return nil, ErrUnknownPacketID
		}
		delete(s.Inflight, packetID)
	case AckPubRec:
		if entry.State != AwaitingPubRec {
			return nil, ErrUnknownPacketID
		}
		entry.State = AwaitingPubComp
		entry.SentAt = time.Now()
	case AckPubComp:
		if entry.State != AwaitingPubComp {
			return nil, ErrUnknownPacketID
		}
		delete(s.Inflight, packetID)
	default:
		return nil, ErrUnknownPacketID
	}

	return entry, nil
}

// StoreInbound records an inbound QoS2 message awaiting PUBREL. Returns
// false if the packet ID is already tracked (a retransmitted PUBLISH).
func (s *Session) StoreInbound(packetID uint16, msg *message.Message) bool {
	if _, dup := s.InboundQoS2[packetID]; dup {
		return false
	}
	s.InboundQoS2[packetID] = msg
	return true
}

// ReleaseInbound removes and returns the inbound QoS2 message for a
// PUBREL. The second return is false for unknown packet IDs.
func (s *Session) ReleaseInbound(packetID uint16) (*message.Message, bool) {
	msg, ok := s.InboundQoS2[packetID]
	if !ok {
		return nil, false
	}
	delete(s.InboundQoS2, packetID)
	return msg, true
}

// Clear drops all session state except identity
func (s *Session) Clear() {
	s.Subscriptions = make(map[string]*Subscription)
	s.Pending = nil
	s.Inflight = make(map[uint16]*Inflight)
	s.InboundQoS2 = make(map[uint16]*message.Message)
	s.Will = nil
}
