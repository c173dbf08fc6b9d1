package broker

import (
	"github.com/axmq/axd/hook"
	"github.com/axmq/axd/session"
	"github.com/axmq/axd/types/message"
)

// ReasonCode is the acknowledgment reason carried by ConnAck, SubAck,
// UnsubAck, the publish acks and Termination. Values follow MQTT 5.
type ReasonCode byte

const (
	ReasonSuccess               ReasonCode = 0x00
	ReasonGrantedQoS1           ReasonCode = 0x01
	ReasonGrantedQoS2           ReasonCode = 0x02
	ReasonNoMatchingSubscribers ReasonCode = 0x10
	ReasonNoSubscriptionExisted ReasonCode = 0x11
	ReasonUnspecifiedError      ReasonCode = 0x80
	ReasonProtocolError         ReasonCode = 0x82
	ReasonClientIDNotValid      ReasonCode = 0x85
	ReasonNotAuthorized         ReasonCode = 0x87
	ReasonServerShuttingDown    ReasonCode = 0x8B
	ReasonKeepAliveTimeout      ReasonCode = 0x8D
	ReasonSessionTakenOver      ReasonCode = 0x8E
	ReasonTopicFilterInvalid    ReasonCode = 0x8F
	ReasonTopicNameInvalid      ReasonCode = 0x90
	ReasonPacketIDNotFound      ReasonCode = 0x92
	ReasonPacketTooLarge        ReasonCode = 0x95
	ReasonQuotaExceeded         ReasonCode = 0x97
	ReasonRetainNotSupported    ReasonCode = 0x9A
	ReasonQoSNotSupported       ReasonCode = 0x9B
)

// GrantedQoS returns the SubAck reason code granting the given QoS
func GrantedQoS(qos message.QoS) ReasonCode {
	return ReasonCode(qos)
}

// Packet is a typed protocol event. The same types flow both ways:
// adapters submit them to the router wrapped in an Event, and the
// router emits them on each connection's outbound channel. Wire
// encoding and decoding happen outside the router.
type Packet interface {
	packet()
}

// Connect opens or resumes a session. Adapters fill Conn with the
// connection handle the router should deliver outbound packets to.
type Connect struct {
	ClientID       string
	Clean          bool
	Keepalive      uint16 // Seconds; 0 disables the keepalive check
	ExpiryInterval uint32
	ReceiveMaximum uint16 // 0 means use the broker maximum
	Will           *session.WillMessage
	WillDelay      uint32
	Credentials    *hook.Credentials
	RemoteAddr     string
	Conn           *Conn
}

// ConnAck answers a Connect. AssignedClientID is set when the broker
// generated an ID for a client that connected without one.
type ConnAck struct {
	SessionPresent   bool
	Reason           ReasonCode
	AssignedClientID string
}

// Publish carries an application message in either direction
type Publish struct {
	PacketID   uint16
	Topic      string
	Payload    []byte
	QoS        message.QoS
	Retain     bool
	Dup        bool
	Properties map[string]interface{}
}

// PubAck completes a QoS1 delivery
type PubAck struct {
	PacketID uint16
	Reason   ReasonCode
}

// PubRec is the first acknowledgment of a QoS2 delivery
type PubRec struct {
	PacketID uint16
	Reason   ReasonCode
}

// PubRel releases a QoS2 message for delivery
type PubRel struct {
	PacketID uint16
	Reason   ReasonCode
}

// PubComp completes a QoS2 delivery
type PubComp struct {
	PacketID uint16
	Reason   ReasonCode
}

// SubscriptionRequest is one filter in a Subscribe
type SubscriptionRequest struct {
	Filter string
	QoS    message.QoS
}

// Subscribe registers one or more topic filters
type Subscribe struct {
	PacketID uint16
	Filters  []SubscriptionRequest
}

// SubAck answers a Subscribe with one reason code per filter, in order
type SubAck struct {
	PacketID uint16
	Reasons  []ReasonCode
}

// Unsubscribe removes one or more topic filters
type Unsubscribe struct {
	PacketID uint16
	Filters  []string
}

// UnsubAck answers an Unsubscribe with one reason code per filter
type UnsubAck struct {
	PacketID uint16
	Reasons  []ReasonCode
}

// PingReq is a keepalive probe
type PingReq struct{}

// PingResp answers a PingReq
type PingResp struct{}

// Disconnect ends a connection. Graceful disconnects suppress the will.
// Adapters submit it with Graceful=false when the socket drops without
// a protocol disconnect, and should set Conn to their own handle so a
// late disconnect cannot tear down a connection that has since taken
// the session over.
type Disconnect struct {
	Graceful bool
	Conn     *Conn
}

// Termination tells an adapter to close its connection
type Termination struct {
	Reason ReasonCode
}

func (Connect) packet()     {}
func (ConnAck) packet()     {}
func (Publish) packet()     {}
func (PubAck) packet()      {}
func (PubRec) packet()      {}
func (PubRel) packet()      {}
func (PubComp) packet()     {}
func (Subscribe) packet()   {}
func (SubAck) packet()      {}
func (Unsubscribe) packet() {}
func (UnsubAck) packet()    {}
func (PingReq) packet()     {}
func (PingResp) packet()    {}
func (Disconnect) packet()  {}
func (Termination) packet() {}

// Event is one inbound packet attributed to the client that sent it.
// For Connect the identity comes from the packet itself and Client may
// be empty.
type Event struct {
	Client string
	Packet Packet
}
