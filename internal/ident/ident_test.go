package ident

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_ProducesOrderedUniqueIDs(t *testing.T) {
	g := UUIDv7Generator{}

	a := g.NewID()
	b := g.NewID()
	require.NotEqual(t, a, b)

	for _, id := range []string{a, b} {
		parsed, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
	}
	// v7 ids embed a timestamp prefix, so generation order sorts
	assert.Less(t, a, b)
}

func TestFixedGenerator_ReplaysAndExhausts(t *testing.T) {
	g := NewFixedGenerator("one", "two")
	assert.Equal(t, "one", g.NewID())
	assert.Equal(t, "two", g.NewID())
	assert.Panics(t, func() { g.NewID() })
}
