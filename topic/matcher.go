package topic

import "strings"

// Matcher tests a single filter against a single topic without a trie.
// The broker uses it when collecting retained messages for a fresh
// subscription; live fan-out goes through the Trie.
type Matcher struct{}

func NewMatcher() *Matcher {
	return &Matcher{}
}

func (m *Matcher) Match(filter, topic string) bool {
	return matchTopicFilter(filter, topic)
}

func matchTopicFilter(filter, topic string) bool {
	// $-prefixed topics are never visible to wildcard filters
	if strings.HasPrefix(topic, "$") &&
		(strings.Contains(filter, "#") ||
			strings.Contains(filter, "+")) {
		return false
	}

	if filter == topic {
		return true
	}

	return matchLevels(splitTopicLevels(filter), splitTopicLevels(topic))
}

func matchLevels(filterLevels, topicLevels []string) bool {
	filterLen := len(filterLevels)
	topicLen := len(topicLevels)

	fi := 0
	ti := 0

	for fi < filterLen && ti < topicLen {
		filterLevel := filterLevels[fi]

		if filterLevel == "#" {
			return true
		}

		if filterLevel == "+" {
			fi++
			ti++
			continue
		}

		if filterLevel != topicLevels[ti] {
			return false
		}

		fi++
		ti++
	}

	if fi < filterLen {
		// "a/#" also matches "a"
		return filterLen-fi == 1 && filterLevels[fi] == "#"
	}

	return ti == topicLen
}
