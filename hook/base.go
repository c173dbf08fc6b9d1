package hook

// Base provides a default allow-everything implementation of the Hook
// interface. Custom hooks embed it and override what they need.
type Base struct {
	id string
}

// NewBase creates a new base hook with the given ID
func NewBase(id string) *Base {
	return &Base{id: id}
}

// ID returns the unique identifier for this hook
func (h *Base) ID() string {
	return h.id
}

// Provides determines if the hook provides the given event
func (h *Base) Provides(event Event) bool {
	return false
}

// OnConnectAuthenticate validates connect credentials
func (h *Base) OnConnectAuthenticate(client *Client, creds *Credentials) bool {
	return true
}

// OnACLCheck authorizes a publish or subscribe
func (h *Base) OnACLCheck(client *Client, topic string, access AccessType) bool {
	return true
}

// OnPublish gates an individual publish
func (h *Base) OnPublish(client *Client, topic string) error {
	return nil
}

// Stop stops the hook
func (h *Base) Stop() error {
	return nil
}
