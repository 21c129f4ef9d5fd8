package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PrefixAndLength(t *testing.T) {
	id, err := New(PrefixCharge)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, PrefixCharge))
	assert.Len(t, id, len(PrefixCharge)+Length)
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for range 1000 {
		id := MustNew(PrefixRule)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
