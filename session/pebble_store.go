package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/fxamacker/cbor/v2"

	"github.com/axmq/axd/types/message"
)

var sessionPrefix = []byte("session:")

// PebbleStore is a Pebble-based implementation of the Store interface
type PebbleStore struct {
	db     *pebble.DB
	mu     sync.RWMutex
	closed bool
}

// PebbleStoreConfig configures the Pebble store
type PebbleStoreConfig struct {
	Path string
	Opts *pebble.Options
}

// sessionData is the serializable representation of a session
type sessionData struct {
	ClientID          string                      `cbor:"1,keyasint"`
	Clean             bool                        `cbor:"2,keyasint"`
	State             State                       `cbor:"3,keyasint"`
	ExpiryInterval    uint32                      `cbor:"4,keyasint"`
	Keepalive         uint16                      `cbor:"5,keyasint"`
	CreatedAt         time.Time                   `cbor:"6,keyasint"`
	DisconnectedAt    time.Time                   `cbor:"7,keyasint"`
	Will              *WillMessage                `cbor:"8,keyasint,omitempty"`
	WillDelayInterval uint32                      `cbor:"9,keyasint,omitempty"`
	Subscriptions     map[string]*Subscription    `cbor:"10,keyasint"`
	Pending           []*message.Message          `cbor:"11,keyasint"`
	Inflight          map[uint16]*Inflight        `cbor:"12,keyasint"`
	InboundQoS2       map[uint16]*message.Message `cbor:"13,keyasint"`
	ReceiveMaximum    uint16                      `cbor:"14,keyasint"`
	NextPacketID      uint16                      `cbor:"15,keyasint"`
}

// NewPebbleStore creates a new Pebble-based session store
func NewPebbleStore(config PebbleStoreConfig) (*PebbleStore, error) {
	opts := config.Opts
	if opts == nil {
		opts = &pebble.Options{
			ErrorIfExists: false,
		}
	}

	db, err := pebble.Open(config.Path, opts)
	if err != nil {
		return nil, err
	}

	return &PebbleStore{
		db: db,
	}, nil
}

// sessionToData converts a Session to its serializable form
func sessionToData(s *Session) *sessionData {
	return &sessionData{
		ClientID:          s.ClientID,
		Clean:             s.Clean,
		State:             s.State,
		ExpiryInterval:    s.ExpiryInterval,
		Keepalive:         s.Keepalive,
		CreatedAt:         s.CreatedAt,
		DisconnectedAt:    s.DisconnectedAt,
		Will:              s.Will,
		WillDelayInterval: s.WillDelayInterval,
		Subscriptions:     s.Subscriptions,
		Pending:           s.Pending,
		Inflight:          s.Inflight,
		InboundQoS2:       s.InboundQoS2,
		ReceiveMaximum:    s.ReceiveMaximum,
		NextPacketID:      s.nextPacketID,
	}
}

// dataToSession converts serialized data back into a Session
func dataToSession(data *sessionData) *Session {
	s := &Session{
		ClientID:          data.ClientID,
		Clean:             data.Clean,
		State:             data.State,
		ExpiryInterval:    data.ExpiryInterval,
		Keepalive:         data.Keepalive,
		CreatedAt:         data.CreatedAt,
		DisconnectedAt:    data.DisconnectedAt,
		Will:              data.Will,
		WillDelayInterval: data.WillDelayInterval,
		Subscriptions:     data.Subscriptions,
		Pending:           data.Pending,
		Inflight:          data.Inflight,
		InboundQoS2:       data.InboundQoS2,
		ReceiveMaximum:    data.ReceiveMaximum,
		nextPacketID:      data.NextPacketID,
	}

	if s.Subscriptions == nil {
		s.Subscriptions = make(map[string]*Subscription)
	}
	if s.Inflight == nil {
		s.Inflight = make(map[uint16]*Inflight)
	}
	if s.InboundQoS2 == nil {
		s.InboundQoS2 = make(map[uint16]*message.Message)
	}
	if s.nextPacketID == 0 {
		s.nextPacketID = 1
	}

	return s
}

// makeKey creates a prefixed key for a client ID
func makeKey(clientID string) []byte {
	key := make([]byte, len(sessionPrefix)+len(clientID))
	copy(key, sessionPrefix)
	copy(key[len(sessionPrefix):], clientID)
	return key
}

// Save stores or updates a session
func (p *PebbleStore) Save(ctx context.Context, session *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrStoreClosed
	}
	p.mu.RUnlock()

	data, err := cbor.Marshal(sessionToData(session))
	if err != nil {
		return err
	}

	return p.db.Set(makeKey(session.ClientID), data, pebble.Sync)
}

// Load retrieves a session by client ID
func (p *PebbleStore) Load(ctx context.Context, clientID string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	p.mu.RUnlock()

	value, closer, err := p.db.Get(makeKey(clientID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	defer closer.Close()

	var data sessionData
	if err := cbor.Unmarshal(value, &data); err != nil {
		return nil, err
	}

	return dataToSession(&data), nil
}

// Delete removes a session
func (p *PebbleStore) Delete(ctx context.Context, clientID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrStoreClosed
	}
	p.mu.RUnlock()

	return p.db.Delete(makeKey(clientID), pebble.Sync)
}

// Exists checks if a session exists
func (p *PebbleStore) Exists(ctx context.Context, clientID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return false, ErrStoreClosed
	}
	p.mu.RUnlock()

	_, closer, err := p.db.Get(makeKey(clientID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	closer.Close()
	return true, nil
}

// List returns all session client IDs
func (p *PebbleStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	p.mu.RUnlock()

	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: sessionPrefix,
		UpperBound: append(append([]byte{}, sessionPrefix...), 0xff),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var clientIDs []string
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		clientIDs = append(clientIDs, string(key[len(sessionPrefix):]))
	}

	if err := iter.Error(); err != nil {
		return nil, err
	}

	return clientIDs, nil
}

// Close closes the store
func (p *PebbleStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrStoreClosed
	}

	p.closed = true
	return p.db.Close()
}
