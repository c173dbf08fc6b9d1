package hook

import (
	"crypto/subtle"
	"sync"
)

// BasicAuthHook provides username/password authentication
type BasicAuthHook struct {
	*Base
	mu    sync.RWMutex
	users map[string]string
}

// NewBasicAuthHook creates a new basic authentication hook
func NewBasicAuthHook() *BasicAuthHook {
	return &BasicAuthHook{
		Base:  NewBase("basic-auth"),
		users: make(map[string]string),
	}
}

// Provides indicates this hook provides authentication
func (h *BasicAuthHook) Provides(event Event) bool {
	return event == OnConnectAuthenticate
}

// AddUser adds a user with username and password
func (h *BasicAuthHook) AddUser(username, password string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.users[username] = password
}

// RemoveUser removes a user by username
func (h *BasicAuthHook) RemoveUser(username string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.users, username)
}

// LoadUsers loads multiple users at once
func (h *BasicAuthHook) LoadUsers(users map[string]string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for username, password := range users {
		h.users[username] = password
	}
}

// OnConnectAuthenticate validates username and password
func (h *BasicAuthHook) OnConnectAuthenticate(client *Client, creds *Credentials) bool {
	h.mu.RLock()
	expected, exists := h.users[creds.Username]
	h.mu.RUnlock()

	if !exists {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(expected), creds.Password) == 1
}

// AnonymousAuthHook controls whether clients without credentials may
// connect.
type AnonymousAuthHook struct {
	*Base
	mu             sync.RWMutex
	allowAnonymous bool
}

// NewAnonymousAuthHook creates a hook that controls anonymous access
func NewAnonymousAuthHook(allowAnonymous bool) *AnonymousAuthHook {
	return &AnonymousAuthHook{
		Base:           NewBase("anonymous-auth"),
		allowAnonymous: allowAnonymous,
	}
}

// Provides indicates this hook provides authentication
func (h *AnonymousAuthHook) Provides(event Event) bool {
	return event == OnConnectAuthenticate
}

// SetAllowAnonymous sets whether to allow anonymous connections
func (h *AnonymousAuthHook) SetAllowAnonymous(allow bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.allowAnonymous = allow
}

// OnConnectAuthenticate rejects credential-less connects when anonymous
// access is disabled.
func (h *AnonymousAuthHook) OnConnectAuthenticate(client *Client, creds *Credentials) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if creds.Username == "" && len(creds.Password) == 0 {
		return h.allowAnonymous
	}
	return true
}
