package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		uid := NewUID()
		require.True(t, Validate(uid))
		assert.False(t, seen[uid], "duplicate uid %s", uid)
		seen[uid] = true
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		uid  string
		want bool
	}{
		{"valid", "b692f5c0-2d88-4aa1-a9e1-13aa6e4976d5", true},
		{"empty", "", false},
		{"not a uuid", "case-42", false},
		{"truncated", "b692f5c0-2d88-4aa1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.uid))
		})
	}
}
