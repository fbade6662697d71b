package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFoldsCaseButPreservesDisplay(t *testing.T) {
	c := New("ALU")
	assert.Equal(t, "alu", c.Canonical())
	assert.Equal(t, "ALU", c.String())
}

func TestEqualIsCaseInsensitive(t *testing.T) {
	a := New("mem")
	b := New("MEM")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(New("alu")))
}

func TestSetHasAndAdd(t *testing.T) {
	s := NewSet("ALU", "MEM")
	require.True(t, s.Has(New("alu")))
	require.True(t, s.Has(New("Mem")))
	assert.False(t, s.Has(New("branch")))

	s.Add(New("BRANCH"))
	assert.True(t, s.Has(New("branch")))
}

func TestSetSliceIsSorted(t *testing.T) {
	s := NewSet("MEM", "ALU", "BRANCH")
	got := s.Slice()
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Canonical(), got[i].Canonical())
	}
}

func TestSetUnion(t *testing.T) {
	a := NewSet("ALU")
	b := NewSet("MEM")
	u := a.Union(b)
	assert.True(t, u.Has(New("alu")))
	assert.True(t, u.Has(New("mem")))
	assert.Len(t, u, 2)
}

func TestSetIntersects(t *testing.T) {
	a := NewSet("ALU", "MEM")
	b := NewSet("MEM", "BRANCH")
	assert.True(t, a.Intersects(b))
	assert.False(t, a.Intersects(NewSet("BRANCH")))
}

func TestCapabilityIsZero(t *testing.T) {
	var c Capability
	assert.True(t, c.IsZero())
	assert.False(t, New("ALU").IsZero())
}
