package hook

// Event represents hook event types
type Event byte

const (
	OnConnectAuthenticate Event = iota
	OnACLCheck
	OnPublish
)

// String returns the string representation of the event
func (e Event) String() string {
	switch e {
	case OnConnectAuthenticate:
		return "OnConnectAuthenticate"
	case OnACLCheck:
		return "OnACLCheck"
	case OnPublish:
		return "OnPublish"
	default:
		return "Unknown"
	}
}

// AccessType identifies the operation being authorized
type AccessType byte

const (
	AccessPublish AccessType = iota
	AccessSubscribe
)

// String returns the string representation of the access type
func (a AccessType) String() string {
	switch a {
	case AccessPublish:
		return "publish"
	case AccessSubscribe:
		return "subscribe"
	default:
		return "unknown"
	}
}

// Client carries the connection identity passed to hooks
type Client struct {
	ID         string
	Username   string
	RemoteAddr string
}

// Credentials are the authentication fields from a CONNECT
type Credentials struct {
	Username string
	Password []byte
}

// Hook is the extension point for authentication and authorization
// decisions. Embed Base and override only the methods needed.
type Hook interface {
	// ID returns the unique identifier for this hook
	ID() string

	// Provides determines if the hook handles the given event
	Provides(event Event) bool

	// OnConnectAuthenticate validates connect credentials
	OnConnectAuthenticate(client *Client, creds *Credentials) bool

	// OnACLCheck authorizes a publish or subscribe against a topic or filter
	OnACLCheck(client *Client, topic string, access AccessType) bool

	// OnPublish gates an individual publish; a non-nil error rejects it
	OnPublish(client *Client, topic string) error

	// Stop stops the hook
	Stop() error
}
