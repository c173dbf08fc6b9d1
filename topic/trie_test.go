package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axmq/axd/types/message"
)

func clientIDs(subs []Subscriber) []string {
	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.ClientID)
	}
	return ids
}

func TestTrie_RegisterAndMatch(t *testing.T) {
	tests := []struct {
		name    string
		filters map[string]string // clientID -> filter
		topic   string
		want    []string
	}{
		{
			name:    "exact match",
			filters: map[string]string{"c1": "a/b/c"},
			topic:   "a/b/c",
			want:    []string{"c1"},
		},
		{
			name:    "single level wildcard",
			filters: map[string]string{"c1": "a/+/c"},
			topic:   "a/b/c",
			want:    []string{"c1"},
		},
		{
			name:    "single level wildcard too deep",
			filters: map[string]string{"c1": "a/+/c"},
			topic:   "a/b/b/c",
			want:    nil,
		},
		{
			name:    "single level wildcard matches empty level",
			filters: map[string]string{"c1": "a/+/c"},
			topic:   "a//c",
			want:    []string{"c1"},
		},
		{
			name:    "multi level wildcard matches parent",
			filters: map[string]string{"c1": "a/#"},
			topic:   "a",
			want:    []string{"c1"},
		},
		{
			name:    "multi level wildcard one level",
			filters: map[string]string{"c1": "a/#"},
			topic:   "a/b",
			want:    []string{"c1"},
		},
		{
			name:    "multi level wildcard deep",
			filters: map[string]string{"c1": "a/#"},
			topic:   "a/b/c",
			want:    []string{"c1"},
		},
		{
			name:    "multiple matching subscribers",
			filters: map[string]string{"c1": "a/b", "c2": "a/+", "c3": "#"},
			topic:   "a/b",
			want:    []string{"c1", "c2", "c3"},
		},
		{
			name:    "non matching filter excluded",
			filters: map[string]string{"c1": "a/b", "c2": "x/y"},
			topic:   "a/b",
			want:    []string{"c1"},
		},
		{
			name:    "leading slash matched literally",
			filters: map[string]string{"c1": "/a", "c2": "+/a"},
			topic:   "/a",
			want:    []string{"c1", "c2"},
		},
		{
			name:    "dollar topic invisible to wildcards",
			filters: map[string]string{"c1": "#", "c2": "+/stats", "c3": "$sys/stats"},
			topic:   "$sys/stats",
			want:    []string{"c3"},
		},
		{
			name:    "case sensitive",
			filters: map[string]string{"c1": "A/b"},
			topic:   "a/b",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trie := NewTrie()
			for clientID, filter := range tt.filters {
				require.NoError(t, trie.Register(filter, Subscriber{ClientID: clientID, QoS: 1}))
			}

			got := trie.Match(tt.topic)
			assert.ElementsMatch(t, tt.want, clientIDs(got))
		})
	}
}

func TestTrie_RegisterReplacesQoS(t *testing.T) {
	trie := NewTrie()
	require.NoError(t, trie.Register("a/b", Subscriber{ClientID: "c1", QoS: 0}))
	require.NoError(t, trie.Register("a/b", Subscriber{ClientID: "c1", QoS: 2}))

	subs := trie.Match("a/b")
	require.Len(t, subs, 1)
	assert.Equal(t, message.QoS2, subs[0].QoS)
	assert.Equal(t, 1, trie.Count())
}

func TestTrie_RegisterInvalidFilter(t *testing.T) {
	trie := NewTrie()
	assert.Error(t, trie.Register("a/#/b", Subscriber{ClientID: "c1"}))
	assert.Error(t, trie.Register("", Subscriber{ClientID: "c1"}))
	assert.Zero(t, trie.Count())
}

func TestTrie_MatchInvalidTopic(t *testing.T) {
	trie := NewTrie()
	require.NoError(t, trie.Register("#", Subscriber{ClientID: "c1"}))

	assert.Nil(t, trie.Match(""))
	assert.Nil(t, trie.Match("a/+/b"))
}

func TestTrie_Unregister(t *testing.T) {
	trie := NewTrie()
	require.NoError(t, trie.Register("a/b/c", Subscriber{ClientID: "c1"}))
	require.NoError(t, trie.Register("a/b/c", Subscriber{ClientID: "c2"}))

	assert.True(t, trie.Unregister("a/b/c", "c1"))
	assert.False(t, trie.Unregister("a/b/c", "c1"), "second unregister reports not found")
	assert.False(t, trie.Unregister("x/y", "c1"))

	subs := trie.Match("a/b/c")
	assert.Equal(t, []string{"c2"}, clientIDs(subs))
}

func TestTrie_UnregisterPrunesNodes(t *testing.T) {
	trie := NewTrie()
	require.NoError(t, trie.Register("a/b/c/d", Subscriber{ClientID: "c1"}))
	require.NoError(t, trie.Register("a/b", Subscriber{ClientID: "c2"}))

	assert.True(t, trie.Unregister("a/b/c/d", "c1"))

	// Path below a/b is pruned, a/b itself survives
	assert.Empty(t, trie.root.children["a"].children["b"].children)
	assert.Equal(t, 1, trie.Count())
}

func TestTrie_Clear(t *testing.T) {
	trie := NewTrie()
	require.NoError(t, trie.Register("a/b", Subscriber{ClientID: "c1"}))
	require.NoError(t, trie.Register("c/d", Subscriber{ClientID: "c2"}))

	trie.Clear()
	assert.Zero(t, trie.Count())
	assert.Empty(t, trie.Match("a/b"))
}
