package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQoS_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		qos   QoS
		valid bool
	}{
		{"qos0", QoS0, true},
		{"qos1", QoS1, true},
		{"qos2", QoS2, true},
		{"qos3 invalid", QoS(3), false},
		{"qos255 invalid", QoS(255), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.qos.IsValid())
		})
	}
}

func TestMin(t *testing.T) {
	assert.Equal(t, QoS0, Min(QoS0, QoS2))
	assert.Equal(t, QoS1, Min(QoS2, QoS1))
	assert.Equal(t, QoS2, Min(QoS2, QoS2))
}

func TestNew(t *testing.T) {
	msg := New("client-1", "sensors/room1/temp", []byte("22.5"), QoS1, false, nil)

	require.NotNil(t, msg)
	assert.Equal(t, "client-1", msg.Origin)
	assert.Equal(t, "sensors/room1/temp", msg.Topic)
	assert.Equal(t, []byte("22.5"), msg.Payload)
	assert.Equal(t, QoS1, msg.QoS)
	assert.False(t, msg.Retain)
	assert.False(t, msg.DUP)
	assert.Zero(t, msg.AttemptCount)
	assert.False(t, msg.MessageExpirySet)
}

func TestNew_WithExpiryProperty(t *testing.T) {
	props := map[string]interface{}{
		"MessageExpiryInterval": uint32(60),
	}
	msg := New("client-1", "a/b", []byte("x"), QoS0, false, props)

	assert.True(t, msg.MessageExpirySet)
	assert.Equal(t, uint32(60), msg.ExpiryInterval)
	assert.False(t, msg.IsExpired())
	assert.InDelta(t, 60, int(msg.RemainingExpiry()), 1)
}

func TestMessage_IsExpired(t *testing.T) {
	msg := New("c", "a/b", []byte("x"), QoS1, false, map[string]interface{}{
		"MessageExpiryInterval": uint32(1),
	})
	msg.CreatedAt = time.Now().Add(-2 * time.Second)

	assert.True(t, msg.IsExpired())
	assert.Zero(t, msg.RemainingExpiry())
}

func TestMessage_MarkAttempt(t *testing.T) {
	msg := New("c", "a/b", []byte("x"), QoS1, false, nil)

	msg.MarkAttempt()
	assert.Equal(t, 1, msg.AttemptCount)
	assert.False(t, msg.DUP, "first attempt must not set DUP")

	msg.MarkAttempt()
	assert.Equal(t, 2, msg.AttemptCount)
	assert.True(t, msg.DUP, "redelivery must set DUP")
}

func TestMessage_Clone(t *testing.T) {
	props := map[string]interface{}{"ContentType": "text/plain"}
	msg := New("c", "a/b", []byte("payload"), QoS2, true, props)
	msg.PacketID = 42
	msg.MarkAttempt()

	clone := msg.Clone()

	assert.Equal(t, msg.PacketID, clone.PacketID)
	assert.Equal(t, msg.Topic, clone.Topic)
	assert.Equal(t, msg.Payload, clone.Payload)
	assert.Equal(t, msg.QoS, clone.QoS)
	assert.Equal(t, msg.Retain, clone.Retain)
	assert.Equal(t, msg.Origin, clone.Origin)
	assert.Equal(t, msg.AttemptCount, clone.AttemptCount)

	// Mutating the clone must not affect the original
	clone.Payload[0] = 'X'
	clone.Properties["ContentType"] = "changed"
	assert.Equal(t, byte('p'), msg.Payload[0])
	assert.Equal(t, "text/plain", msg.Properties["ContentType"])
}
