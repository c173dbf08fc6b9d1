package broker

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sort"
	"time"

	"github.com/axmq/axd/hook"
	"github.com/axmq/axd/pkg/logger"
	"github.com/axmq/axd/session"
	"github.com/axmq/axd/store"
	"github.com/axmq/axd/topic"
	"github.com/axmq/axd/types/message"
)

// client is the router's view of one live connection
type client struct {
	conn       *Conn
	keepalive  time.Duration
	deadline   time.Time // zero when the keepalive check is disabled
	hookClient *hook.Client
}

// Router is the single serialization point for all broker state. One
// goroutine runs its event loop; the subscription trie, retained table
// and session map are owned by that goroutine and carry no locks.
// Adapters reach it only through Submit and each connection's outbound
// channel.
type Router struct {
	config  Config
	log     logger.Logger
	hooks   *hook.Manager
	metrics *metrics

	trie     *topic.Trie
	retained *store.RetainedStore
	sessions map[string]*session.Session
	clients  map[string]*client

	inbound chan Event
	ctx     context.Context
}

// NewRouter creates a router. Call Run to start processing events.
func NewRouter(config Config) *Router {
	cfg := config.withDefaults()

	r := &Router{
		config:   cfg,
		log:      cfg.Logger.With("component", "router"),
		hooks:    cfg.Hooks,
		trie:     topic.NewTrie(),
		sessions: make(map[string]*session.Session),
		clients:  make(map[string]*client),
		inbound:  make(chan Event, cfg.InboundQueueSize),
		ctx:      context.Background(),
	}
	r.retained = store.NewRetainedStore(store.RetainedConfig{
		MaxEntries: cfg.MaxRetained,
		Backend:    cfg.RetainedBackend,
	})
	r.metrics = newMetrics(cfg.Registerer, func() float64 {
		return float64(r.retained.Count())
	})
	return r
}

// Submit queues an inbound event for the router. It blocks while the
// router's channel is full, which is how backpressure reaches the
// publishing adapters.
func (r *Router) Submit(ctx context.Context, ev Event) error {
	select {
	case r.inbound <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until the context is canceled. It restores
// persisted state first, then loops over the inbound channel and the
// periodic sweep.
func (r *Router) Run(ctx context.Context) error {
	r.ctx = ctx

	if err := r.restore(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	r.log.Info("router started",
		"max_inflight", r.config.MaxInflight,
		"sweep_interval", r.config.SweepInterval)

	for {
		select {
		case <-ctx.Done():
			r.close()
			return ctx.Err()
		case ev := <-r.inbound:
			r.handleEvent(ev)
		case now := <-ticker.C:
			r.sweep(now)
		}
	}
}

func (r *Router) restore(ctx context.Context) error {
	if err := r.retained.Restore(ctx); err != nil {
		return err
	}
	if r.config.SessionStore == nil {
		return nil
	}

	ids, err := r.config.SessionStore.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		sess, err := r.config.SessionStore.Load(ctx, id)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				continue
			}
			return err
		}
		if sess.IsExpired() {
			_ = r.config.SessionStore.Delete(ctx, id)
			continue
		}
		for filter, sub := range sess.Subscriptions {
			_ = r.trie.Register(filter, topic.Subscriber{ClientID: id, QoS: sub.QoS})
		}
		r.sessions[id] = sess
		r.metrics.sessionsTotal.Inc()
		r.metrics.inflightMessages.Add(float64(len(sess.Inflight)))
	}
	if len(ids) > 0 {
		r.log.Info("sessions restored", "count", len(r.sessions))
	}
	return nil
}

func (r *Router) close() {
	for id, cl := range r.clients {
		cl.conn.trySend(Termination{Reason: ReasonServerShuttingDown})
		cl.conn.shutdown()
		delete(r.clients, id)
	}
	if r.config.SessionStore != nil {
		for _, sess := range r.sessions {
			if !sess.Clean {
				_ = r.config.SessionStore.Save(context.Background(), sess)
			}
		}
	}
	r.log.Info("router stopped")
}

func (r *Router) handleEvent(ev Event) {
	if connect, ok := ev.Packet.(Connect); ok {
		r.handleConnect(connect)
		return
	}

	cl := r.clients[ev.Client]
	if cl != nil && !cl.deadline.IsZero() {
		cl.deadline = time.Now().Add(cl.keepalive)
	}

	switch pkt := ev.Packet.(type) {
	case Publish:
		r.handlePublish(ev.Client, pkt)
	case Subscribe:
		r.handleSubscribe(ev.Client, pkt)
	case Unsubscribe:
		r.handleUnsubscribe(ev.Client, pkt)
	case PubAck:
		r.handlePubAck(ev.Client, pkt)
	case PubRec:
		r.handlePubRec(ev.Client, pkt)
	case PubRel:
		r.handlePubRel(ev.Client, pkt)
	case PubComp:
		r.handlePubComp(ev.Client, pkt)
	case PingReq:
		if cl != nil {
			cl.conn.send(PingResp{})
		}
	case Disconnect:
		if pkt.Conn != nil && cl != nil && cl.conn != pkt.Conn {
			// stale disconnect from a connection already replaced
			return
		}
		r.handleDisconnect(ev.Client, pkt.Graceful)
	default:
		r.log.Warn("unknown event", "client_id", ev.Client)
	}
}

func (r *Router) handleConnect(pkt Connect) {
	conn := pkt.Conn
	if conn == nil {
		r.log.Error("connect without connection handle", "client_id", pkt.ClientID)
		return
	}

	clientID := pkt.ClientID
	assigned := ""
	if clientID == "" {
		if !pkt.Clean {
			r.refuse(conn, ReasonClientIDNotValid)
			return
		}
		clientID = generateClientID()
		assigned = clientID
	}
	if len(clientID) > r.config.MaxClientIDLen {
		r.refuse(conn, ReasonClientIDNotValid)
		return
	}

	creds := pkt.Credentials
	if creds == nil {
		creds = &hook.Credentials{}
	}
	hc := &hook.Client{ID: clientID, Username: creds.Username, RemoteAddr: pkt.RemoteAddr}
	if !r.hooks.Authenticate(hc, creds) {
		r.metrics.authFailures.Inc()
		r.log.Warn("connect rejected", "client_id", clientID, "username", creds.Username)
		r.refuse(conn, ReasonNotAuthorized)
		return
	}

	// session takeover: the newer connection wins
	if old := r.clients[clientID]; old != nil {
		old.conn.trySend(Termination{Reason: ReasonSessionTakenOver})
		old.conn.shutdown()
		delete(r.clients, clientID)
		r.metrics.clientsConnected.Dec()
		r.log.Info("session taken over", "client_id", clientID)
	}

	sess, resumed := r.resumeOrCreate(clientID, pkt.Clean, pkt.ExpiryInterval)
	sess.Clean = pkt.Clean
	sess.ExpiryInterval = pkt.ExpiryInterval
	sess.Keepalive = pkt.Keepalive
	sess.Will = pkt.Will
	sess.WillDelayInterval = pkt.WillDelay
	sess.ReceiveMaximum = capReceiveMaximum(pkt.ReceiveMaximum, r.config.MaxInflight)
	sess.SetActive()

	cl := &client{conn: conn, hookClient: hc}
	if pkt.Keepalive > 0 {
		// one and a half keepalive periods, per convention
		cl.keepalive = time.Duration(pkt.Keepalive) * time.Second * 3 / 2
		cl.deadline = time.Now().Add(cl.keepalive)
	}
	r.clients[clientID] = cl
	r.metrics.clientsConnected.Inc()

	conn.send(ConnAck{SessionPresent: resumed, Reason: ReasonSuccess, AssignedClientID: assigned})
	r.log.Info("client connected",
		"client_id", clientID,
		"clean", pkt.Clean,
		"resumed", resumed,
		"keepalive", pkt.Keepalive)

	if resumed {
		r.redeliverInflight(sess, cl)
		r.drainPending(sess)
	}
}

func (r *Router) resumeOrCreate(clientID string, clean bool, expiry uint32) (*session.Session, bool) {
	sess := r.sessions[clientID]

	if sess == nil && r.config.SessionStore != nil {
		loaded, err := r.config.SessionStore.Load(r.ctx, clientID)
		if err == nil {
			for filter, sub := range loaded.Subscriptions {
				_ = r.trie.Register(filter, topic.Subscriber{ClientID: clientID, QoS: sub.QoS})
			}
			r.sessions[clientID] = loaded
			r.metrics.sessionsTotal.Inc()
			r.metrics.inflightMessages.Add(float64(len(loaded.Inflight)))
			sess = loaded
		} else if !errors.Is(err, session.ErrSessionNotFound) {
			r.log.Error("session load failed", "client_id", clientID, "error", err)
		}
	}

	// a prior clean session never survives into a new connection, even
	// when the new connect asks for a durable one
	if sess != nil && (clean || sess.Clean || sess.IsExpired()) {
		r.removeSession(sess)
		if r.config.SessionStore != nil {
			_ = r.config.SessionStore.Delete(r.ctx, clientID)
		}
		sess = nil
	}

	if sess == nil {
		sess = session.New(clientID, clean, expiry)
		r.sessions[clientID] = sess
		r.metrics.sessionsTotal.Inc()
		return sess, false
	}
	return sess, true
}

// redeliverInflight resends the unacknowledged window to a resumed
// session, lowest packet ID first, with the duplicate flag set.
func (r *Router) redeliverInflight(sess *session.Session, cl *client) {
	ids := make([]int, 0, len(sess.Inflight))
	for id := range sess.Inflight {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	now := time.Now()
	for _, id := range ids {
		entry := sess.Inflight[uint16(id)]
		entry.SentAt = now
		switch entry.State {
		case session.AwaitingPubAck, session.AwaitingPubRec:
			entry.Message.MarkAttempt()
			if cl.conn.send(publishPacket(entry.Message)) {
				r.metrics.messagesDelivered.Inc()
			}
		case session.AwaitingPubComp:
			cl.conn.send(PubRel{PacketID: entry.PacketID, Reason: ReasonSuccess})
		}
	}
}

func (r *Router) handlePublish(clientID string, pkt Publish) {
	sess := r.sessions[clientID]
	cl := r.clients[clientID]
	if sess == nil || cl == nil {
		r.log.Debug("publish from unknown client", "client_id", clientID)
		return
	}

	if len(pkt.Payload) > r.config.MaxPayloadSize {
		r.metrics.messagesDropped.WithLabelValues(dropOversize).Inc()
		switch pkt.QoS {
		case message.QoS1:
			cl.conn.send(PubAck{PacketID: pkt.PacketID, Reason: ReasonPacketTooLarge})
		case message.QoS2:
			cl.conn.send(PubRec{PacketID: pkt.PacketID, Reason: ReasonPacketTooLarge})
		}
		return
	}

	if !pkt.QoS.IsValid() || pkt.QoS > r.config.MaxQoS {
		r.protocolViolation(clientID, "publish QoS above maximum")
		r.terminate(clientID, ReasonQoSNotSupported)
		return
	}

	if err := topic.ValidateTopic(pkt.Topic); err != nil {
		r.protocolViolation(clientID, "invalid publish topic")
		r.terminate(clientID, ReasonTopicNameInvalid)
		return
	}

	if !r.hooks.ACLCheck(cl.hookClient, pkt.Topic, hook.AccessPublish) {
		r.metrics.authFailures.Inc()
		r.negativeAck(cl, pkt, ReasonNotAuthorized)
		return
	}
	if err := r.hooks.Publish(cl.hookClient, pkt.Topic); err != nil {
		r.log.Debug("publish gated", "client_id", clientID, "topic", pkt.Topic, "error", err)
		r.negativeAck(cl, pkt, ReasonQuotaExceeded)
		return
	}

	msg := message.New(clientID, pkt.Topic, pkt.Payload, pkt.QoS, pkt.Retain, pkt.Properties)
	msg.PacketID = pkt.PacketID

	switch pkt.QoS {
	case message.QoS0:
		r.metrics.messagesPublished.Inc()
		r.fanOut(msg)
	case message.QoS1:
		r.metrics.messagesPublished.Inc()
		matched := r.fanOut(msg)
		reason := ReasonSuccess
		if matched == 0 {
			reason = ReasonNoMatchingSubscribers
		}
		cl.conn.send(PubAck{PacketID: pkt.PacketID, Reason: reason})
	case message.QoS2:
		// a retransmitted PUBLISH before PUBREL only re-acknowledges;
		// fan-out happens once, at PUBREL
		sess.StoreInbound(pkt.PacketID, msg)
		cl.conn.send(PubRec{PacketID: pkt.PacketID, Reason: ReasonSuccess})
	}
}

// negativeAck answers a rejected publish without mutating state. QoS0
// rejections are silent.
func (r *Router) negativeAck(cl *client, pkt Publish, reason ReasonCode) {
	switch pkt.QoS {
	case message.QoS1:
		cl.conn.send(PubAck{PacketID: pkt.PacketID, Reason: reason})
	case message.QoS2:
		cl.conn.send(PubRec{PacketID: pkt.PacketID, Reason: reason})
	}
}

// fanOut stores the retained copy if asked, matches subscribers and
// delivers to each at the lower of the publish QoS and the granted QoS.
// Returns the number of matched subscribers.
func (r *Router) fanOut(msg *message.Message) int {
	if msg.Retain {
		r.storeRetained(msg)
	}

	subs := r.trie.Match(msg.Topic)
	for _, sub := range subs {
		sess := r.sessions[sub.ClientID]
		if sess == nil {
			continue
		}
		out := recipientCopy(msg, message.Min(msg.QoS, sub.QoS), false)
		r.deliver(sess, out)
	}
	return len(subs)
}

func (r *Router) storeRetained(msg *message.Message) {
	if !r.config.RetainAvailable {
		return
	}
	if err := r.retained.Set(r.ctx, msg.Topic, msg); err != nil {
		if errors.Is(err, store.ErrRetainedLimit) {
			r.metrics.messagesDropped.WithLabelValues(dropCapacity).Inc()
			r.log.Warn("retained table full", "topic", msg.Topic)
			return
		}
		r.log.Error("retained store failed", "topic", msg.Topic, "error", err)
	}
}

// deliver hands one message to one session. QoS0 is best effort: sent
// only if the client is online and its queue has space. QoS1/2 enters
// the inflight window, or the pending queue when the client is offline
// or the window is full.
func (r *Router) deliver(sess *session.Session, msg *message.Message) {
	cl := r.clients[sess.ClientID]

	if msg.QoS == message.QoS0 {
		if cl == nil {
			r.metrics.messagesDropped.WithLabelValues(dropOffline).Inc()
			return
		}
		if cl.conn.trySend(publishPacket(msg)) {
			r.metrics.messagesDelivered.Inc()
		} else {
			r.metrics.messagesDropped.WithLabelValues(dropQueueFull).Inc()
		}
		return
	}

	if cl == nil || !sess.HasWindowSpace() {
		if !sess.EnqueuePending(msg, r.config.MaxQueuedMessages) {
			r.metrics.messagesDropped.WithLabelValues(dropCapacity).Inc()
			r.log.Warn("pending queue full", "client_id", sess.ClientID)
		}
		return
	}

	r.sendTracked(sess, cl, msg)
}

func (r *Router) sendTracked(sess *session.Session, cl *client, msg *message.Message) {
	sess.TrackOutbound(msg)
	r.metrics.inflightMessages.Inc()
	if cl.conn.send(publishPacket(msg)) {
		r.metrics.messagesDelivered.Inc()
	}
	// a failed send leaves the entry inflight; the disconnect and the
	// retransmission sweep pick it up
}

func (r *Router) handleSubscribe(clientID string, pkt Subscribe) {
	sess := r.sessions[clientID]
	cl := r.clients[clientID]
	if sess == nil || cl == nil {
		r.log.Debug("subscribe from unknown client", "client_id", clientID)
		return
	}

	type grant struct {
		filter string
		qos    message.QoS
	}
	reasons := make([]ReasonCode, len(pkt.Filters))
	granted := make([]grant, 0, len(pkt.Filters))

	for i, f := range pkt.Filters {
		if err := topic.ValidateTopicFilter(f.Filter); err != nil {
			r.protocolViolation(clientID, "invalid topic filter")
			r.terminate(clientID, ReasonTopicFilterInvalid)
			return
		}
		if !r.hooks.ACLCheck(cl.hookClient, f.Filter, hook.AccessSubscribe) {
			r.metrics.authFailures.Inc()
			reasons[i] = ReasonNotAuthorized
			continue
		}

		qos := message.Min(f.QoS, r.config.MaxQoS)
		if err := r.trie.Register(f.Filter, topic.Subscriber{ClientID: clientID, QoS: qos}); err != nil {
			reasons[i] = ReasonTopicFilterInvalid
			continue
		}
		sess.AddSubscription(f.Filter, qos)
		reasons[i] = GrantedQoS(qos)
		granted = append(granted, grant{filter: f.Filter, qos: qos})
	}

	cl.conn.send(SubAck{PacketID: pkt.PacketID, Reasons: reasons})

	// retained delivery happens here, before any later publish event can
	// reach the new subscription
	for _, g := range granted {
		r.deliverRetained(sess, g.filter, g.qos)
	}
}

func (r *Router) deliverRetained(sess *session.Session, filter string, granted message.QoS) {
	if !r.config.RetainAvailable {
		return
	}
	msgs, err := r.retained.Match(r.ctx, filter)
	if err != nil {
		r.log.Error("retained match failed", "filter", filter, "error", err)
		return
	}
	for _, m := range msgs {
		out := recipientCopy(m, message.Min(m.QoS, granted), true)
		r.deliver(sess, out)
	}
}

func (r *Router) handleUnsubscribe(clientID string, pkt Unsubscribe) {
	sess := r.sessions[clientID]
	cl := r.clients[clientID]
	if sess == nil || cl == nil {
		return
	}

	reasons := make([]ReasonCode, len(pkt.Filters))
	for i, filter := range pkt.Filters {
		r.trie.Unregister(filter, clientID)
		if sess.RemoveSubscription(filter) {
			reasons[i] = ReasonSuccess
		} else {
			reasons[i] = ReasonNoSubscriptionExisted
		}
	}
	cl.conn.send(UnsubAck{PacketID: pkt.PacketID, Reasons: reasons})
}

func (r *Router) handlePubAck(clientID string, pkt PubAck) {
	sess := r.sessions[clientID]
	if sess == nil {
		return
	}
	if _, err := sess.Ack(pkt.PacketID, session.AckPubAck); err != nil {
		r.protocolViolation(clientID, "puback for unknown packet")
		return
	}
	r.metrics.inflightMessages.Dec()
	r.drainPending(sess)
}

func (r *Router) handlePubRec(clientID string, pkt PubRec) {
	sess := r.sessions[clientID]
	cl := r.clients[clientID]
	if sess == nil {
		return
	}
	if _, err := sess.Ack(pkt.PacketID, session.AckPubRec); err != nil {
		r.protocolViolation(clientID, "pubrec for unknown packet")
		return
	}
	if cl != nil {
		cl.conn.send(PubRel{PacketID: pkt.PacketID, Reason: ReasonSuccess})
	}
}

func (r *Router) handlePubComp(clientID string, pkt PubComp) {
	sess := r.sessions[clientID]
	if sess == nil {
		return
	}
	if _, err := sess.Ack(pkt.PacketID, session.AckPubComp); err != nil {
		r.protocolViolation(clientID, "pubcomp for unknown packet")
		return
	}
	r.metrics.inflightMessages.Dec()
	r.drainPending(sess)
}

// handlePubRel releases an inbound QoS2 message: fan-out happens here,
// exactly once, regardless of how often the publisher retransmitted the
// PUBLISH.
func (r *Router) handlePubRel(clientID string, pkt PubRel) {
	sess := r.sessions[clientID]
	cl := r.clients[clientID]
	if sess == nil {
		return
	}

	msg, ok := sess.ReleaseInbound(pkt.PacketID)
	reason := ReasonSuccess
	if !ok {
		reason = ReasonPacketIDNotFound
		r.protocolViolation(clientID, "pubrel for unknown packet")
	}
	if cl != nil {
		cl.conn.send(PubComp{PacketID: pkt.PacketID, Reason: reason})
	}
	if ok {
		r.metrics.messagesPublished.Inc()
		r.fanOut(msg)
	}
}

func (r *Router) handleDisconnect(clientID string, graceful bool) {
	if cl := r.clients[clientID]; cl != nil {
		cl.conn.shutdown()
		delete(r.clients, clientID)
		r.metrics.clientsConnected.Dec()
	}

	sess := r.sessions[clientID]
	if sess == nil {
		return
	}

	if graceful {
		sess.Will = nil
	}
	r.log.Info("client disconnected", "client_id", clientID, "graceful", graceful)

	if sess.Clean {
		if sess.Will != nil {
			r.publishWill(sess)
		}
		r.removeSession(sess)
		if r.config.SessionStore != nil {
			_ = r.config.SessionStore.Delete(r.ctx, clientID)
		}
		return
	}

	sess.SetDisconnected()
	if sess.Will != nil && sess.ShouldPublishWill() {
		r.publishWill(sess)
	}
	if r.config.SessionStore != nil {
		if err := r.config.SessionStore.Save(r.ctx, sess); err != nil {
			r.log.Error("session save failed", "client_id", clientID, "error", err)
		}
	}
}

func (r *Router) publishWill(sess *session.Session) {
	will := sess.Will
	sess.Will = nil

	msg := message.New(sess.ClientID, will.Topic, will.Payload, will.QoS, will.Retain, will.Properties)
	r.metrics.messagesPublished.Inc()
	r.log.Info("will published", "client_id", sess.ClientID, "topic", will.Topic)
	r.fanOut(msg)
}

// drainPending moves queued messages into the inflight window while
// there is space, preserving enqueue order.
func (r *Router) drainPending(sess *session.Session) {
	cl := r.clients[sess.ClientID]
	if cl == nil {
		return
	}

	for len(sess.Pending) > 0 && sess.HasWindowSpace() {
		msg := sess.Pending[0]
		sess.Pending = sess.Pending[1:]
		if msg.IsExpired() {
			r.metrics.messagesDropped.WithLabelValues(dropExpired).Inc()
			continue
		}
		r.sendTracked(sess, cl, msg)
	}
}

// terminate closes a client's connection and runs the ungraceful
// disconnect path, will included.
func (r *Router) terminate(clientID string, reason ReasonCode) {
	if cl := r.clients[clientID]; cl != nil {
		cl.conn.trySend(Termination{Reason: reason})
	}
	r.handleDisconnect(clientID, false)
}

func (r *Router) protocolViolation(clientID, detail string) {
	r.metrics.protocolViolations.Inc()
	r.log.Warn("protocol violation", "client_id", clientID, "detail", detail)
}

// sweep is the periodic pass over keepalives, delayed wills, session
// expiry, retransmissions and retained expiry.
func (r *Router) sweep(now time.Time) {
	var dead []string
	for id, cl := range r.clients {
		if !cl.deadline.IsZero() && now.After(cl.deadline) {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		r.log.Warn("keepalive timeout", "client_id", id)
		r.terminate(id, ReasonKeepAliveTimeout)
	}

	var expired []*session.Session
	for _, sess := range r.sessions {
		if sess.State != session.StateDisconnected {
			continue
		}
		if sess.Will != nil && sess.ShouldPublishWill() {
			r.publishWill(sess)
			if r.config.SessionStore != nil {
				_ = r.config.SessionStore.Save(r.ctx, sess)
			}
		}
		if sess.IsExpired() {
			expired = append(expired, sess)
		}
	}
	for _, sess := range expired {
		if sess.Will != nil {
			r.publishWill(sess)
		}
		r.log.Info("session expired", "client_id", sess.ClientID)
		r.removeSession(sess)
		if r.config.SessionStore != nil {
			_ = r.config.SessionStore.Delete(r.ctx, sess.ClientID)
		}
	}

	r.retransmit(now)

	if _, err := r.retained.CleanupExpired(r.ctx); err != nil {
		r.log.Error("retained cleanup failed", "error", err)
	}
}

// retransmit resends inflight entries older than the retry interval
// with the duplicate flag. Sends here never block: a full queue waits
// for the next sweep.
func (r *Router) retransmit(now time.Time) {
	for id, cl := range r.clients {
		sess := r.sessions[id]
		if sess == nil {
			continue
		}
		for pid, entry := range sess.Inflight {
			if now.Sub(entry.SentAt) < r.config.RetryInterval {
				continue
			}
			if entry.Message.IsExpired() {
				delete(sess.Inflight, pid)
				r.metrics.inflightMessages.Dec()
				r.metrics.messagesDropped.WithLabelValues(dropExpired).Inc()
				continue
			}
			if r.config.MaxRetries > 0 && entry.Message.AttemptCount >= r.config.MaxRetries {
				delete(sess.Inflight, pid)
				r.metrics.inflightMessages.Dec()
				r.metrics.messagesDropped.WithLabelValues(dropRetries).Inc()
				r.log.Warn("delivery abandoned",
					"client_id", id,
					"packet_id", pid,
					"attempts", entry.Message.AttemptCount)
				continue
			}

			entry.SentAt = now
			switch entry.State {
			case session.AwaitingPubAck, session.AwaitingPubRec:
				entry.Message.MarkAttempt()
				cl.conn.trySend(publishPacket(entry.Message))
			case session.AwaitingPubComp:
				cl.conn.trySend(PubRel{PacketID: pid, Reason: ReasonSuccess})
			}
		}
	}
}

// removeSession drops a session and cascades its trie registrations
func (r *Router) removeSession(sess *session.Session) {
	for filter := range sess.Subscriptions {
		r.trie.Unregister(filter, sess.ClientID)
	}
	r.metrics.inflightMessages.Sub(float64(len(sess.Inflight)))
	delete(r.sessions, sess.ClientID)
	r.metrics.sessionsTotal.Dec()
}

func (r *Router) refuse(conn *Conn, reason ReasonCode) {
	conn.trySend(ConnAck{Reason: reason})
	conn.shutdown()
}

func publishPacket(msg *message.Message) Publish {
	return Publish{
		PacketID:   msg.PacketID,
		Topic:      msg.Topic,
		Payload:    msg.Payload,
		QoS:        msg.QoS,
		Retain:     msg.Retain,
		Dup:        msg.DUP,
		Properties: msg.Properties,
	}
}

// recipientCopy clones a message for one subscriber, resetting the
// per-recipient delivery identity.
func recipientCopy(msg *message.Message, qos message.QoS, retain bool) *message.Message {
	out := msg.Clone()
	out.QoS = qos
	out.Retain = retain
	out.PacketID = 0
	out.DUP = false
	out.AttemptCount = 0
	return out
}

func capReceiveMaximum(requested, max uint16) uint16 {
	if requested == 0 || requested > max {
		return max
	}
	return requested
}

func generateClientID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "axd-" + hex.EncodeToString(buf)
}
