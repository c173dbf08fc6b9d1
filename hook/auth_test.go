package hook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasicAuthHook(t *testing.T) {
	h := NewBasicAuthHook()
	h.AddUser("alice", "secret")

	client := &Client{ID: "c1"}

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{"valid credentials", "alice", "secret", true},
		{"wrong password", "alice", "wrong", false},
		{"unknown user", "bob", "secret", false},
		{"empty credentials", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.OnConnectAuthenticate(client, &Credentials{
				Username: tt.username,
				Password: []byte(tt.password),
			})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBasicAuthHookRemoveUser(t *testing.T) {
	h := NewBasicAuthHook()
	h.AddUser("alice", "secret")
	h.RemoveUser("alice")

	client := &Client{ID: "c1"}
	creds := &Credentials{Username: "alice", Password: []byte("secret")}
	assert.False(t, h.OnConnectAuthenticate(client, creds))
}

func TestBasicAuthHookLoadUsers(t *testing.T) {
	h := NewBasicAuthHook()
	h.LoadUsers(map[string]string{
		"alice": "a-pass",
		"bob":   "b-pass",
	})

	client := &Client{ID: "c1"}
	assert.True(t, h.OnConnectAuthenticate(client, &Credentials{Username: "alice", Password: []byte("a-pass")}))
	assert.True(t, h.OnConnectAuthenticate(client, &Credentials{Username: "bob", Password: []byte("b-pass")}))
}

func TestBasicAuthHookProvides(t *testing.T) {
	h := NewBasicAuthHook()
	assert.True(t, h.Provides(OnConnectAuthenticate))
	assert.False(t, h.Provides(OnACLCheck))
	assert.False(t, h.Provides(OnPublish))
}

func TestAnonymousAuthHook(t *testing.T) {
	client := &Client{ID: "c1"}
	anon := &Credentials{}
	named := &Credentials{Username: "alice", Password: []byte("x")}

	allow := NewAnonymousAuthHook(true)
	assert.True(t, allow.OnConnectAuthenticate(client, anon))
	assert.True(t, allow.OnConnectAuthenticate(client, named))

	deny := NewAnonymousAuthHook(false)
	assert.False(t, deny.OnConnectAuthenticate(client, anon))
	assert.True(t, deny.OnConnectAuthenticate(client, named))
}

func TestAnonymousAuthHookToggle(t *testing.T) {
	h := NewAnonymousAuthHook(false)
	client := &Client{ID: "c1"}

	assert.False(t, h.OnConnectAuthenticate(client, &Credentials{}))
	h.SetAllowAnonymous(true)
	assert.True(t, h.OnConnectAuthenticate(client, &Credentials{}))
}
