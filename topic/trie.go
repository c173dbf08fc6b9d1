package topic

import (
	"strings"

	"github.com/axmq/axd/types/message"
)

// Subscriber identifies a subscription attached to a filter node.
type Subscriber struct {
	ClientID string
	QoS      message.QoS
}

// trieNode represents a node in the topic trie. Children are owned by
// their parent; there are no back-references, so pruning a subtree
// cannot leave cycles.
type trieNode struct {
	children    map[string]*trieNode
	subscribers []Subscriber
}

func newTrieNode() *trieNode {
	return &trieNode{
		children: make(map[string]*trieNode),
	}
}

// Trie is a segment-indexed topic filter matcher. It is not safe for
// concurrent use: the broker router owns it and serializes all access
// through its event loop.
type Trie struct {
	root *trieNode
}

// NewTrie creates a new topic trie
func NewTrie() *Trie {
	return &Trie{
		root: newTrieNode(),
	}
}

// Register adds a subscription to the trie. Re-registering the same
// (client, filter) pair replaces the previous QoS.
func (t *Trie) Register(filter string, sub Subscriber) error {
	if err := ValidateTopicFilter(filter); err != nil {
		return err
	}

	node := t.root
	for _, level := range splitTopicLevels(filter) {
		child := node.children[level]
		if child == nil {
			child = newTrieNode()
			node.children[level] = child
		}
		node = child
	}

	for i, existing := range node.subscribers {
		if existing.ClientID == sub.ClientID {
			node.subscribers[i] = sub
			return nil
		}
	}
	node.subscribers = append(node.subscribers, sub)
	return nil
}

// Unregister removes a subscription from the trie, pruning nodes that
// become empty. Returns false if the (client, filter) pair was not
// registered.
func (t *Trie) Unregister(filter, clientID string) bool {
	levels := splitTopicLevels(filter)
	return t.unregisterRecursive(t.root, levels, clientID, 0)
}

func (t *Trie) unregisterRecursive(node *trieNode, levels []string, clientID string, depth int) bool {
	if depth == len(levels) {
		for i, sub := range node.subscribers {
			if sub.ClientID == clientID {
				node.subscribers = append(node.subscribers[:i], node.subscribers[i+1:]...)
				return true
			}
		}
		return false
	}

	level := levels[depth]
	child := node.children[level]
	if child == nil {
		return false
	}

	found := t.unregisterRecursive(child, levels, clientID, depth+1)

	if found && len(child.subscribers) == 0 && len(child.children) == 0 {
		delete(node.children, level)
	}

	return found
}

// Match finds all subscribers whose filter accepts the topic. Invalid
// topic names match nothing.
func (t *Trie) Match(topic string) []Subscriber {
	if err := ValidateTopic(topic); err != nil {
		return nil
	}

	levels := splitTopicLevels(topic)
	subscribers := make([]Subscriber, 0, 8)

	// Wildcards at the first level never see $-prefixed topics
	wildcardsOK := !strings.HasPrefix(topic, "$")
	t.matchRecursive(t.root, levels, 0, wildcardsOK, &subscribers)
	return subscribers
}

func (t *Trie) matchRecursive(node *trieNode, levels []string, depth int, wildcardsOK bool, subscribers *[]Subscriber) {
	if wildcardsOK || depth > 0 {
		// '#' terminates matching and accepts all remaining levels
		if multiNode := node.children["#"]; multiNode != nil {
			*subscribers = append(*subscribers, multiNode.subscribers...)
		}
	}

	if depth == len(levels) {
		*subscribers = append(*subscribers, node.subscribers...)
		return
	}

	level := levels[depth]

	if exactNode := node.children[level]; exactNode != nil {
		t.matchRecursive(exactNode, levels, depth+1, wildcardsOK, subscribers)
	}

	if wildcardsOK || depth > 0 {
		if plusNode := node.children["+"]; plusNode != nil {
			t.matchRecursive(plusNode, levels, depth+1, wildcardsOK, subscribers)
		}
	}
}

// Clear removes all subscriptions from the trie
func (t *Trie) Clear() {
	t.root = newTrieNode()
}

// Count returns the total number of subscriptions
func (t *Trie) Count() int {
	return countRecursive(t.root)
}

func countRecursive(node *trieNode) int {
	count := len(node.subscribers)
	for _, child := range node.children {
		count += countRecursive(child)
	}
	return count
}
