package hook

import (
	"sync"
	"sync/atomic"
)

// Manager manages the registration and invocation of hooks. Reads take
// a copy-on-write snapshot so invocation never contends with
// registration.
type Manager struct {
	mu       sync.Mutex
	hooksPtr atomic.Pointer[[]Hook]
	index    map[string]int
}

// NewManager creates a new hooks manager
func NewManager() *Manager {
	m := &Manager{
		index: make(map[string]int),
	}
	hooks := make([]Hook, 0)
	m.hooksPtr.Store(&hooks)
	return m
}

// Add adds a hook to the manager
// Returns an error if a hook with the same ID already exists
func (m *Manager) Add(hook Hook) error {
	if hook == nil {
		return ErrEmptyHookID
	}

	id := hook.ID()
	if id == "" {
		return ErrEmptyHookID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.index[id]; exists {
		return ErrHookAlreadyExists
	}

	oldHooks := *m.hooksPtr.Load()
	newHooks := make([]Hook, len(oldHooks)+1)
	copy(newHooks, oldHooks)
	newHooks[len(oldHooks)] = hook

	m.index[id] = len(oldHooks)
	m.hooksPtr.Store(&newHooks)

	return nil
}

// Remove removes a hook by its ID
// Returns an error if the hook is not found
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, exists := m.index[id]
	if !exists {
		return ErrHookNotFound
	}

	oldHooks := *m.hooksPtr.Load()
	newHooks := make([]Hook, len(oldHooks)-1)
	copy(newHooks[:idx], oldHooks[:idx])
	copy(newHooks[idx:], oldHooks[idx+1:])

	delete(m.index, id)

	for i := idx; i < len(newHooks); i++ {
		m.index[newHooks[i].ID()] = i
	}

	m.hooksPtr.Store(&newHooks)

	return nil
}

// Get retrieves a hook by its ID
func (m *Manager) Get(id string) (Hook, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, exists := m.index[id]
	if !exists {
		return nil, false
	}

	hooks := *m.hooksPtr.Load()
	return hooks[idx], true
}

// Count returns the number of registered hooks
func (m *Manager) Count() int {
	return len(*m.hooksPtr.Load())
}

// Clear stops and removes all hooks
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldHooks := *m.hooksPtr.Load()
	for _, h := range oldHooks {
		_ = h.Stop()
	}

	newHooks := make([]Hook, 0)
	m.hooksPtr.Store(&newHooks)
	m.index = make(map[string]int)
}

// Authenticate runs every authentication hook; all providers must
// accept. With no providers registered the connection is allowed.
func (m *Manager) Authenticate(client *Client, creds *Credentials) bool {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnConnectAuthenticate) && !h.OnConnectAuthenticate(client, creds) {
			return false
		}
	}
	return true
}

// ACLCheck runs every ACL hook; all providers must allow the operation.
func (m *Manager) ACLCheck(client *Client, topic string, access AccessType) bool {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnACLCheck) && !h.OnACLCheck(client, topic, access) {
			return false
		}
	}
	return true
}

// Publish runs every publish gate; the first rejection wins.
func (m *Manager) Publish(client *Client, topic string) error {
	for _, h := range *m.hooksPtr.Load() {
		if h.Provides(OnPublish) {
			if err := h.OnPublish(client, topic); err != nil {
				return err
			}
		}
	}
	return nil
}
