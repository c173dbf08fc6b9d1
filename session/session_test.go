package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axmq/axd/types/message"
)

func TestNew(t *testing.T) {
	s := New("client-1", false, 300)

	assert.Equal(t, "client-1", s.ClientID)
	assert.False(t, s.Clean)
	assert.Equal(t, StateNew, s.State)
	assert.Equal(t, uint32(300), s.ExpiryInterval)
	assert.Empty(t, s.Subscriptions)
	assert.Empty(t, s.Inflight)
	assert.Empty(t, s.Pending)
}

func TestSession_Subscriptions(t *testing.T) {
	s := New("c", false, 0)

	s.AddSubscription("a/+", message.QoS1)
	require.Len(t, s.Subscriptions, 1)
	assert.Equal(t, message.QoS1, s.Subscriptions["a/+"].QoS)

	// Re-subscribing replaces the QoS
	s.AddSubscription("a/+", message.QoS2)
	require.Len(t, s.Subscriptions, 1)
	assert.Equal(t, message.QoS2, s.Subscriptions["a/+"].QoS)

	assert.True(t, s.RemoveSubscription("a/+"))
	assert.False(t, s.RemoveSubscription("a/+"))
	assert.Empty(t, s.Subscriptions)
}

func TestSession_NextPacketID(t *testing.T) {
	s := New("c", true, 0)

	first := s.NextPacketID()
	second := s.NextPacketID()
	assert.Equal(t, uint16(1), first)
	assert.Equal(t, uint16(2), second)
}

func TestSession_NextPacketID_SkipsInflight(t *testing.T) {
	s := New("c", true, 0)

	id := s.TrackOutbound(message.New("p", "a/b", []byte("x"), message.QoS1, false, nil))
	assert.Equal(t, uint16(1), id)

	// Force wraparound to just before the inflight ID
	s.nextPacketID = 0xffff
	assert.Equal(t, uint16(0xffff), s.NextPacketID())
	// 0 is never allocated, 1 is inflight, so 2 comes next
	assert.Equal(t, uint16(2), s.NextPacketID())
}

func TestSession_QoS1Flow(t *testing.T) {
	s := New("c", true, 0)
	msg := message.New("p", "a/b", []byte("x"), message.QoS1, false, nil)

	id := s.TrackOutbound(msg)
	require.Len(t, s.Inflight, 1)
	assert.Equal(t, AwaitingPubAck, s.Inflight[id].State)
	assert.False(t, msg.DUP, "first attempt does not set DUP")

	entry, err := s.Ack(id, AckPubAck)
	require.NoError(t, err)
	assert.Equal(t, msg, entry.Message)
	assert.Empty(t, s.Inflight)
}

func TestSession_QoS2Flow(t *testing.T) {
	s := New("c", true, 0)
	msg := message.New("p", "a/b", []byte("x"), message.QoS2, false, nil)

	id := s.TrackOutbound(msg)
	assert.Equal(t, AwaitingPubRec, s.Inflight[id].State)

	_, err := s.Ack(id, AckPubRec)
	require.NoError(t, err)
	assert.Equal(t, AwaitingPubComp, s.Inflight[id].State)

	_, err = s.Ack(id, AckPubComp)
	require.NoError(t, err)
	assert.Empty(t, s.Inflight)
}

func TestSession_AckErrors(t *testing.T) {
	s := New("c", true, 0)

	_, err := s.Ack(99, AckPubAck)
	assert.ErrorIs(t, err, ErrUnknownPacketID)

	// PUBCOMP before PUBREC is out of order
	id := s.TrackOutbound(message.New("p", "a/b", []byte("x"), message.QoS2, false, nil))
	_, err = s.Ack(id, AckPubComp)
	assert.ErrorIs(t, err, ErrUnknownPacketID)

	// Double acknowledgment of a completed QoS1 entry
	id = s.TrackOutbound(message.New("p", "a/b", []byte("x"), message.QoS1, false, nil))
	_, err = s.Ack(id, AckPubAck)
	require.NoError(t, err)
	_, err = s.Ack(id, AckPubAck)
	assert.ErrorIs(t, err, ErrUnknownPacketID)
}

func TestSession_InboundQoS2(t *testing.T) {
	s := New("c", true, 0)
	msg := message.New("p", "a/b", []byte("x"), message.QoS2, false, nil)

	assert.True(t, s.StoreInbound(7, msg))
	assert.False(t, s.StoreInbound(7, msg), "retransmitted PUBLISH is a duplicate")

	released, ok := s.ReleaseInbound(7)
	require.True(t, ok)
	assert.Equal(t, msg, released)

	_, ok = s.ReleaseInbound(7)
	assert.False(t, ok, "second PUBREL finds nothing")
}

func TestSession_EnqueuePending(t *testing.T) {
	s := New("c", false, 0)

	for i := 0; i < 3; i++ {
		ok := s.EnqueuePending(message.New("p", "a/b", []byte{byte(i)}, message.QoS1, false, nil), 3)
		assert.True(t, ok)
	}
	assert.False(t, s.EnqueuePending(message.New("p", "a/b", []byte("x"), message.QoS1, false, nil), 3))

	// Order is preserved
	require.Len(t, s.Pending, 3)
	for i, msg := range s.Pending {
		assert.Equal(t, []byte{byte(i)}, msg.Payload)
	}

	// Zero limit means unbounded
	assert.True(t, s.EnqueuePending(message.New("p", "a/b", []byte("y"), message.QoS0, false, nil), 0))
}

func TestSession_HasWindowSpace(t *testing.T) {
	s := New("c", true, 0)
	s.ReceiveMaximum = 1

	assert.True(t, s.HasWindowSpace())
	s.TrackOutbound(message.New("p", "a/b", []byte("x"), message.QoS1, false, nil))
	assert.False(t, s.HasWindowSpace())
}

func TestSession_IsExpired(t *testing.T) {
	s := New("c", false, 1)
	assert.False(t, s.IsExpired(), "active session never expires")

	s.SetDisconnected()
	assert.False(t, s.IsExpired())

	s.DisconnectedAt = time.Now().Add(-2 * time.Second)
	assert.True(t, s.IsExpired())

	// Durable session without expiry interval survives indefinitely
	forever := New("c2", false, 0)
	forever.SetDisconnected()
	forever.DisconnectedAt = time.Now().Add(-time.Hour)
	assert.False(t, forever.IsExpired())
}

func TestSession_ShouldPublishWill(t *testing.T) {
	s := New("c", false, 0)
	assert.False(t, s.ShouldPublishWill())

	s.Will = &WillMessage{Topic: "wills/c", Payload: []byte("gone")}
	assert.True(t, s.ShouldPublishWill())

	s.WillDelayInterval = 60
	s.SetDisconnected()
	assert.False(t, s.ShouldPublishWill())

	s.DisconnectedAt = time.Now().Add(-61 * time.Second)
	assert.True(t, s.ShouldPublishWill())
}

func TestSession_Clear(t *testing.T) {
	s := New("c", false, 0)
	s.AddSubscription("a/b", message.QoS1)
	s.TrackOutbound(message.New("p", "a/b", []byte("x"), message.QoS1, false, nil))
	s.EnqueuePending(message.New("p", "a/b", []byte("y"), message.QoS1, false, nil), 0)
	s.StoreInbound(3, message.New("p", "a/b", []byte("z"), message.QoS2, false, nil))
	s.Will = &WillMessage{Topic: "wills/c"}

	s.Clear()

	assert.Empty(t, s.Subscriptions)
	assert.Empty(t, s.Inflight)
	assert.Empty(t, s.Pending)
	assert.Empty(t, s.InboundQoS2)
	assert.Nil(t, s.Will)
}
