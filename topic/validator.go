package topic

import (
	"unicode/utf8"
)

// ValidationError represents a topic validation error
type ValidationError struct {
	message string
}

func (e *ValidationError) Error() string {
	return e.message
}

// ValidateTopic validates a published topic name. Topic names must be
// non-empty, valid UTF-8 and free of wildcard characters.
func ValidateTopic(topic string) error {
	if len(topic) == 0 {
		return &ValidationError{"topic cannot be empty"}
	}

	if len(topic) > 65535 {
		return &ValidationError{"topic exceeds maximum length of 65535 bytes"}
	}

	if !utf8.ValidString(topic) {
		return &ValidationError{"topic contains invalid UTF-8 characters"}
	}

	for i := 0; i < len(topic); i++ {
		c := topic[i]
		if c == '+' || c == '#' {
			return &ValidationError{"topic name cannot contain wildcard characters"}
		}
		if c == 0 {
			return &ValidationError{"topic cannot contain null characters"}
		}
	}

	return nil
}

// ValidateTopicFilter validates a subscription topic filter. '#' must be
// alone in its level and last; '+' must be alone in its level.
func ValidateTopicFilter(filter string) error {
	if len(filter) == 0 {
		return &ValidationError{"topic filter cannot be empty"}
	}

	if len(filter) > 65535 {
		return &ValidationError{"topic filter exceeds maximum length of 65535 bytes"}
	}

	if !utf8.ValidString(filter) {
		return &ValidationError{"topic filter contains invalid UTF-8 characters"}
	}

	for i := 0; i < len(filter); i++ {
		if filter[i] == 0 {
			return &ValidationError{"topic filter cannot contain null characters"}
		}
	}

	levels := splitTopicLevels(filter)
	for i, level := range levels {
		if len(level) == 0 {
			continue // Empty level is valid (e.g., "a//b")
		}

		if contains(level, '#') {
			if level != "#" {
				return &ValidationError{"multi-level wildcard '#' must occupy entire level"}
			}
			if i != len(levels)-1 {
				return &ValidationError{"multi-level wildcard '#' must be last level"}
			}
		}

		if contains(level, '+') {
			if level != "+" {
				return &ValidationError{"single-level wildcard '+' must occupy entire level"}
			}
		}
	}

	return nil
}

// splitTopicLevels splits a topic into levels by '/'
func splitTopicLevels(topic string) []string {
	if len(topic) == 0 {
		return []string{}
	}

	levels := make([]string, 0, 8)
	start := 0
	for i := 0; i < len(topic); i++ {
		if topic[i] == '/' {
			levels = append(levels, topic[start:i])
			start = i + 1
		}
	}
	levels = append(levels, topic[start:])
	return levels
}

// contains checks if a string contains a byte
func contains(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}
