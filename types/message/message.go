package message

import "time"

// QoS levels
type QoS byte

const (
	QoS0 QoS = 0 // At most once
	QoS1 QoS = 1 // At least once
	QoS2 QoS = 2 // Exactly once
)

// IsValid returns true if the QoS level is valid (0, 1, or 2)
func (q QoS) IsValid() bool {
	return q <= QoS2
}

// String returns human-readable QoS level
func (q QoS) String() string {
	switch q {
	case QoS0:
		return "QoS0"
	case QoS1:
		return "QoS1"
	case QoS2:
		return "QoS2"
	default:
		return "Invalid"
	}
}

// Min returns the lower of two QoS levels
func Min(a, b QoS) QoS {
	if a < b {
		return a
	}
	return b
}

// Message represents a routed application message with all delivery metadata
type Message struct {
	PacketID         uint16
	Topic            string
	Payload          []byte
	QoS              QoS
	Retain           bool
	DUP              bool
	Properties       map[string]interface{}
	Origin           string // client ID of the publisher, used for inbound dedup
	CreatedAt        time.Time
	LastAttemptAt    time.Time
	AttemptCount     int
	ExpiryInterval   uint32
	MessageExpirySet bool
}

// New creates a new message originating from the given client
func New(origin, topic string, payload []byte, qos QoS, retain bool, properties map[string]interface{}) *Message {
	msg := &Message{
		Topic:      topic,
		Payload:    payload,
		QoS:        qos,
		Retain:     retain,
		Properties: properties,
		Origin:     origin,
		CreatedAt:  time.Now(),
	}

	if properties != nil {
		if expiry, ok := properties["MessageExpiryInterval"].(uint32); ok {
			msg.ExpiryInterval = expiry
			msg.MessageExpirySet = true
		}
	}

	return msg
}

// IsExpired checks if the message has expired
func (m *Message) IsExpired() bool {
	if !m.MessageExpirySet || m.ExpiryInterval == 0 {
		return false
	}
	return time.Since(m.CreatedAt) >= time.Duration(m.ExpiryInterval)*time.Second
}

// RemainingExpiry returns the remaining expiry time in seconds
func (m *Message) RemainingExpiry() uint32 {
	if !m.MessageExpirySet || m.ExpiryInterval == 0 {
		return 0
	}
	elapsed := uint32(time.Since(m.CreatedAt).Seconds())
	if elapsed >= m.ExpiryInterval {
		return 0
	}
	return m.ExpiryInterval - elapsed
}

// MarkAttempt marks a delivery attempt; any attempt after the first sets DUP
func (m *Message) MarkAttempt() {
	m.AttemptCount++
	m.LastAttemptAt = time.Now()
	if m.AttemptCount > 1 {
		m.DUP = true
	}
}

// Clone creates a deep copy of the message
func (m *Message) Clone() *Message {
	payload := make([]byte, len(m.Payload))
	copy(payload, m.Payload)

	var properties map[string]interface{}
	if m.Properties != nil {
		properties = make(map[string]interface{}, len(m.Properties))
		for k, v := range m.Properties {
			properties[k] = v
		}
	}

	return &Message{
		PacketID:         m.PacketID,
		Topic:            m.Topic,
		Payload:          payload,
		QoS:              m.QoS,
		Retain:           m.Retain,
		DUP:              m.DUP,
		Properties:       properties,
		Origin:           m.Origin,
		CreatedAt:        m.CreatedAt,
		LastAttemptAt:    m.LastAttemptAt,
		AttemptCount:     m.AttemptCount,
		ExpiryInterval:   m.ExpiryInterval,
		MessageExpirySet: m.MessageExpirySet,
	}
}
