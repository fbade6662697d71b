package isa

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasonKoogler/pipesim/internal/capability"
	"github.com/jasonKoogler/pipesim/internal/simerr"
)

func TestNewRejectsDuplicateMnemonic(t *testing.T) {
	_, err := New([]Row{
		{Mnemonic: "ADD", Capability: "ALU"},
		{Mnemonic: "add", Capability: "ALU"},
	})
	require.Error(t, err)
	var se *simerr.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, simerr.DuplicateMnemonic, se.Kind)
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	table, err := New([]Row{{Mnemonic: "ADD", Capability: "ALU"}})
	require.NoError(t, err)

	cap, ok := table.Lookup("add")
	require.True(t, ok)
	assert.True(t, cap.Equal(capability.New("ALU")))

	_, ok = table.Lookup("SUB")
	assert.False(t, ok)
}

func TestValidateAgainstRejectsUnsupportedCapability(t *testing.T) {
	table, err := New([]Row{
		{Mnemonic: "ADD", Capability: "ALU"},
		{Mnemonic: "LW", Capability: "MEM"},
	})
	require.NoError(t, err)

	err = table.ValidateAgainst(capability.NewSet("ALU"))
	require.Error(t, err)
	var se *simerr.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, simerr.UnsupportedCapability, se.Kind)
}

func TestValidateAgainstAcceptsCoveredCapabilities(t *testing.T) {
	table, err := New([]Row{
		{Mnemonic: "ADD", Capability: "ALU"},
		{Mnemonic: "LW", Capability: "MEM"},
	})
	require.NoError(t, err)

	err = table.ValidateAgainst(capability.NewSet("ALU", "MEM"))
	assert.NoError(t, err)
}
