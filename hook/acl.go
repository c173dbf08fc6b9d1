package hook

import (
	"sync"

	"github.com/axmq/axd/topic"
)

// ACLRule grants or denies an access type on topics matching a filter.
type ACLRule struct {
	Filter string
	Access AccessType
	Allow  bool
}

// ACLHook authorizes publishes and subscribes against per-user filter
// rules. Rules are evaluated in order; the first whose filter matches
// the topic and whose access type applies decides. Topics with no
// matching rule fall through to the default policy.
type ACLHook struct {
	*Base
	mu           sync.RWMutex
	rules        map[string][]ACLRule // username -> rules
	matcher      *topic.Matcher
	defaultAllow bool
}

// NewACLHook creates an ACL hook with the given default policy
func NewACLHook(defaultAllow bool) *ACLHook {
	return &ACLHook{
		Base:         NewBase("acl"),
		rules:        make(map[string][]ACLRule),
		matcher:      topic.NewMatcher(),
		defaultAllow: defaultAllow,
	}
}

// Provides indicates this hook provides ACL checks
func (h *ACLHook) Provides(event Event) bool {
	return event == OnACLCheck
}

// AddRule appends a rule for a username. An empty username applies the
// rule to every client.
func (h *ACLHook) AddRule(username string, rule ACLRule) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rules[username] = append(h.rules[username], rule)
}

// OnACLCheck authorizes a publish or subscribe against the rules.
// Subscription filters are checked by exact filter match in addition to
// topic matching, so a rule for "sensors/#" also covers a subscription
// to "sensors/#" itself.
func (h *ACLHook) OnACLCheck(client *Client, topicName string, access AccessType) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, username := range []string{client.Username, ""} {
		for _, rule := range h.rules[username] {
			if rule.Access != access {
				continue
			}
			if rule.Filter == topicName || h.matcher.Match(rule.Filter, topicName) {
				return rule.Allow
			}
		}
	}

	return h.defaultAllow
}
