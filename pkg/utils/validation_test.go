package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name  string   `validate:"required,max=5"`
	Items []string `validate:"min=1"`
	Kind  string   `validate:"oneof=a b"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name     string
		input    sample
		expected string
	}{
		{name: "valid", input: sample{Name: "ok", Items: []string{"x"}, Kind: "a"}},
		{name: "required", input: sample{Items: []string{"x"}, Kind: "a"}, expected: "name is required"},
		{name: "max characters", input: sample{Name: "toolong", Items: []string{"x"}, Kind: "b"}, expected: "name must be at most 5 characters"},
		{name: "min items", input: sample{Name: "ok", Items: []string{}, Kind: "a"}, expected: "items must be at least 1 items"},
		{name: "oneof", input: sample{Name: "ok", Items: []string{"x"}, Kind: "c"}, expected: "kind must be one of: a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if tt.expected == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.expected)
		})
	}
}

func TestManualClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start.Add(time.Second), clock.Advance(time.Second))

	parsed, err := ParseRFC3339(FormatRFC3339(start.Add(time.Nanosecond)))
	assert.NoError(t, err)
	assert.True(t, parsed.Equal(start.Add(time.Nanosecond)))
}
