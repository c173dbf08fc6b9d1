package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/axmq/axd/types/message"
)

// ErrRetainedLimit is returned when the retained table is full and a new
// topic would exceed the configured maximum.
var ErrRetainedLimit = errors.New("retained message limit exceeded")

// RetainedMessage is a retained table entry with its optional expiry.
type RetainedMessage struct {
	Message   *message.Message
	ExpiresAt time.Time
}

// retainedRecord is the serializable form written to the backend.
type retainedRecord struct {
	Topic          string    `cbor:"1,keyasint"`
	Payload        []byte    `cbor:"2,keyasint"`
	QoS            byte      `cbor:"3,keyasint"`
	Origin         string    `cbor:"4,keyasint"`
	CreatedAt      time.Time `cbor:"5,keyasint"`
	ExpiresAt      time.Time `cbor:"6,keyasint,omitempty"`
	ExpiryInterval uint32    `cbor:"7,keyasint,omitempty"`
}

// retainedTrieNode is a node in the retained message trie. Children are
// owned by their parent; pruning never leaves dangling references.
type retainedTrieNode struct {
	children map[string]*retainedTrieNode
	entry    *RetainedMessage
}

func newRetainedTrieNode() *retainedTrieNode {
	return &retainedTrieNode{
		children: make(map[string]*retainedTrieNode),
	}
}

// RetainedConfig configures the retained store.
type RetainedConfig struct {
	// MaxEntries caps the number of retained topics (0 = unlimited).
	MaxEntries int
	// Backend, when set, receives write-through copies of every entry
	// and serves Restore at startup.
	Backend Backend
}

// RetainedStore holds the most recent retained message per topic. Like
// the topic trie it is not internally locked: the broker router owns it
// and serializes all access.
type RetainedStore struct {
	root    *retainedTrieNode
	count   int64
	max     int
	backend Backend
	closed  bool
}

// NewRetainedStore creates a retained message store.
func NewRetainedStore(config RetainedConfig) *RetainedStore {
	return &RetainedStore{
		root:    newRetainedTrieNode(),
		max:     config.MaxEntries,
		backend: config.Backend,
	}
}

// Restore loads all persisted entries from the backend. Call once before
// serving traffic.
func (r *RetainedStore) Restore(ctx context.Context) error {
	if r.backend == nil {
		return nil
	}

	keys, err := r.backend.List(ctx)
	if err != nil {
		return err
	}

	for _, key := range keys {
		data, err := r.backend.Load(ctx, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}

		var rec retainedRecord
		if err := cbor.Unmarshal(data, &rec); err != nil {
			return err
		}

		msg := &message.Message{
			Topic:          rec.Topic,
			Payload:        rec.Payload,
			QoS:            message.QoS(rec.QoS),
			Retain:         true,
			Origin:         rec.Origin,
			CreatedAt:      rec.CreatedAt,
			ExpiryInterval: rec.ExpiryInterval,
		}
		if rec.ExpiryInterval > 0 {
			msg.MessageExpirySet = true
		}

		r.insert(rec.Topic, &RetainedMessage{Message: msg, ExpiresAt: rec.ExpiresAt})
	}

	return nil
}

// Set stores the retained message for a topic. A message with an empty
// payload clears the entry instead.
func (r *RetainedStore) Set(ctx context.Context, topic string, msg *message.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.closed {
		return ErrStoreClosed
	}

	if len(msg.Payload) == 0 {
		return r.deleteEntry(ctx, topic)
	}

	if r.max > 0 && r.count >= int64(r.max) && r.lookup(topic) == nil {
		return ErrRetainedLimit
	}

	entry := &RetainedMessage{Message: msg}
	if msg.MessageExpirySet && msg.ExpiryInterval > 0 {
		entry.ExpiresAt = msg.CreatedAt.Add(time.Duration(msg.ExpiryInterval) * time.Second)
	}

	r.insert(topic, entry)

	if r.backend != nil {
		rec := retainedRecord{
			Topic:          topic,
			Payload:        msg.Payload,
			QoS:            byte(msg.QoS),
			Origin:         msg.Origin,
			CreatedAt:      msg.CreatedAt,
			ExpiresAt:      entry.ExpiresAt,
			ExpiryInterval: msg.ExpiryInterval,
		}
		data, err := cbor.Marshal(rec)
		if err != nil {
			return err
		}
		return r.backend.Save(ctx, topic, data)
	}

	return nil
}

// Get returns the retained message for an exact topic.
func (r *RetainedStore) Get(ctx context.Context, topic string) (*message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.closed {
		return nil, ErrStoreClosed
	}

	entry := r.lookup(topic)
	if entry == nil {
		return nil, ErrNotFound
	}
	if !entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt) {
		return nil, ErrNotFound
	}
	return entry.Message, nil
}

// Delete clears the retained entry for a topic.
func (r *RetainedStore) Delete(ctx context.Context, topic string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.closed {
		return ErrStoreClosed
	}
	return r.deleteEntry(ctx, topic)
}

// Match collects every non-expired retained message whose topic is
// accepted by the filter, walking the trie against the filter segments.
func (r *RetainedStore) Match(ctx context.Context, filter string) ([]*message.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.closed {
		return nil, ErrStoreClosed
	}

	// Wildcard filters never collect $-prefixed topics
	if strings.HasPrefix(filter, "$") {
		if strings.Contains(filter, "#") || strings.Contains(filter, "+") {
			return nil, nil
		}
	}

	filterLevels := splitTopicLevels(filter)
	var matched []*message.Message
	now := time.Now()

	r.matchRecursive(r.root, filterLevels, 0, &matched, now)
	return matched, nil
}

func (r *RetainedStore) matchRecursive(node *retainedTrieNode, filterLevels []string, depth int, matched *[]*message.Message, now time.Time) {
	if depth == len(filterLevels) {
		if node.entry != nil && live(node.entry, now) {
			*matched = append(*matched, node.entry.Message)
		}
		return
	}

	switch level := filterLevels[depth]; level {
	case "#":
		if node.entry != nil && live(node.entry, now) {
			*matched = append(*matched, node.entry.Message)
		}
		for name, child := range node.children {
			if depth == 0 && strings.HasPrefix(name, "$") {
				continue
			}
			r.collectAll(child, matched, now)
		}
	case "+":
		for name, child := range node.children {
			if depth == 0 && strings.HasPrefix(name, "$") {
				continue
			}
			r.matchRecursive(child, filterLevels, depth+1, matched, now)
		}
	default:
		if child := node.children[level]; child != nil {
			r.matchRecursive(child, filterLevels, depth+1, matched, now)
		}
	}
}

func (r *RetainedStore) collectAll(node *retainedTrieNode, matched *[]*message.Message, now time.Time) {
	if node.entry != nil && live(node.entry, now) {
		*matched = append(*matched, node.entry.Message)
	}
	for _, child := range node.children {
		r.collectAll(child, matched, now)
	}
}

func live(entry *RetainedMessage, now time.Time) bool {
	return entry.ExpiresAt.IsZero() || now.Before(entry.ExpiresAt)
}

// CleanupExpired drops entries past their expiry and returns how many
// were removed.
func (r *RetainedStore) CleanupExpired(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if r.closed {
		return 0, ErrStoreClosed
	}

	now := time.Now()
	var expired []string
	r.collectExpired(r.root, now, &expired)

	for _, topic := range expired {
		if err := r.deleteEntry(ctx, topic); err != nil {
			return len(expired), err
		}
	}

	return len(expired), nil
}

func (r *RetainedStore) collectExpired(node *retainedTrieNode, now time.Time, expired *[]string) {
	if node.entry != nil && !live(node.entry, now) {
		*expired = append(*expired, node.entry.Message.Topic)
	}
	for _, child := range node.children {
		r.collectExpired(child, now, expired)
	}
}

// Count returns the number of retained entries.
func (r *RetainedStore) Count() int64 {
	return r.count
}

// Close closes the store and its backend.
func (r *RetainedStore) Close() error {
	if r.closed {
		return ErrStoreClosed
	}
	r.closed = true
	r.root = nil
	r.count = 0

	if r.backend != nil {
		return r.backend.Close()
	}
	return nil
}

func (r *RetainedStore) lookup(topic string) *RetainedMessage {
	node := r.root
	for _, level := range splitTopicLevels(topic) {
		node = node.children[level]
		if node == nil {
			return nil
		}
	}
	return node.entry
}

func (r *RetainedStore) insert(topic string, entry *RetainedMessage) {
	node := r.root
	for _, level := range splitTopicLevels(topic) {
		child := node.children[level]
		if child == nil {
			child = newRetainedTrieNode()
			node.children[level] = child
		}
		node = child
	}
	if node.entry == nil {
		r.count++
	}
	node.entry = entry
}

func (r *RetainedStore) deleteEntry(ctx context.Context, topic string) error {
	levels := splitTopicLevels(topic)
	if len(levels) == 0 {
		return nil
	}

	path := make([]*retainedTrieNode, 0, len(levels)+1)
	path = append(path, r.root)
	node := r.root

	for _, level := range levels {
		node = node.children[level]
		if node == nil {
			return nil
		}
		path = append(path, node)
	}

	if node.entry != nil {
		node.entry = nil
		r.count--
	}

	// Prune empty nodes from leaf to root
	for i := len(path) - 1; i > 0; i-- {
		current := path[i]
		if current.entry != nil || len(current.children) > 0 {
			break
		}
		parent := path[i-1]
		delete(parent.children, levels[i-1])
	}

	if r.backend != nil {
		if err := r.backend.Delete(ctx, topic); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// splitTopicLevels splits a topic into levels by '/'
func splitTopicLevels(topic string) []string {
	if len(topic) == 0 {
		return []string{}
	}

	levels := make([]string, 0, 8)
	start := 0
	for i := 0; i < len(topic); i++ {
		if topic[i] == '/' {
			levels = append(levels, topic[start:i])
			start = i + 1
		}
	}
	levels = append(levels, topic[start:])
	return levels
}
