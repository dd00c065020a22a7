package uid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUID_Generate(t *testing.T) {
	t.Parallel()

	g := NewUUID()
	a, b := g.Generate(), g.Generate()
	assert.NotEqual(t, a, b)

	id, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestSequence(t *testing.T) {
	t.Parallel()

	s := NewSequence("a", "b")
	assert.Equal(t, "a", s.Generate())
	assert.Equal(t, "b", s.Generate())
	assert.Equal(t, "b", s.Generate())
	assert.Empty(t, NewSequence().Generate())
}
