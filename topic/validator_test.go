package topic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTopic(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		wantErr bool
	}{
		{"valid topic", "a/b/c", false},
		{"single level", "a", false},
		{"leading slash", "/a/b", false},
		{"trailing slash", "a/b/", false},
		{"empty level inside", "a//b", false},
		{"dollar topic", "$sys/stats", false},
		{"empty", "", true},
		{"plus wildcard", "a/+/b", true},
		{"hash wildcard", "a/#", true},
		{"null byte", "a/\x00b", true},
		{"too long", strings.Repeat("a", 65536), true},
		{"invalid utf8", "a/\xff\xfe", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTopic(tt.topic)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTopicFilter(t *testing.T) {
	tests := []struct {
		name    string
		filter  string
		wantErr bool
	}{
		{"literal filter", "a/b/c", false},
		{"plus alone", "+", false},
		{"hash alone", "#", false},
		{"plus in middle", "a/+/c", false},
		{"hash at end", "a/b/#", false},
		{"multiple plus", "+/+/+", false},
		{"empty level", "a//b", false},
		{"empty", "", true},
		{"hash not last", "a/#/b", true},
		{"hash combined with literal", "a/b#", true},
		{"plus combined with literal", "a/b+/c", true},
		{"null byte", "a/\x00", true},
		{"too long", strings.Repeat("a", 65536), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTopicFilter(tt.filter)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplitTopicLevels(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitTopicLevels("a/b/c"))
	assert.Equal(t, []string{"", "a"}, splitTopicLevels("/a"))
	assert.Equal(t, []string{"a", ""}, splitTopicLevels("a/"))
	assert.Equal(t, []string{"a", "", "b"}, splitTopicLevels("a//b"))
	assert.Empty(t, splitTopicLevels(""))
}
