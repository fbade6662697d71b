package program

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasonKoogler/pipesim/internal/isa"
	"github.com/jasonKoogler/pipesim/internal/simerr"
)

func testISA(t *testing.T) *isa.ISA {
	t.Helper()
	table, err := isa.New([]isa.Row{
		{Mnemonic: "ADD", Capability: "ALU"},
		{Mnemonic: "LW", Capability: "MEM"},
	})
	require.NoError(t, err)
	return table
}

func TestAssembleBasicProgram(t *testing.T) {
	prog, err := Assemble([]string{
		"LW R1, (R2)",
		"ADD R3, R4, R5",
	}, testISA(t))
	require.NoError(t, err)
	require.Len(t, prog.Instructions, 2)

	assert.Equal(t, "LW", prog.Instructions[0].Mnemonic)
	assert.Equal(t, "R1", prog.Instructions[0].Destination)
	assert.Equal(t, []string{"R2"}, prog.Instructions[0].Sources)

	assert.Equal(t, "ADD", prog.Instructions[1].Mnemonic)
	assert.Equal(t, "R3", prog.Instructions[1].Destination)
	assert.Equal(t, []string{"R4", "R5"}, prog.Instructions[1].Sources)
}

func TestAssembleIgnoresBlankAndCommentLines(t *testing.T) {
	prog, err := Assemble([]string{
		"",
		"   ",
		"# a comment",
		"ADD R1, R2, R3",
	}, testISA(t))
	require.NoError(t, err)
	assert.Len(t, prog.Instructions, 1)
}

func TestAssembleTokenizesOnCommasAndWhitespace(t *testing.T) {
	prog, err := Assemble([]string{"ADD\tR1,R2 R3"}, testISA(t))
	require.NoError(t, err)
	require.Len(t, prog.Instructions, 1)
	assert.Equal(t, []string{"R2", "R3"}, prog.Instructions[0].Sources)
}

func TestAssembleRejectsUnknownMnemonic(t *testing.T) {
	_, err := Assemble([]string{"MUL R1, R2, R3"}, testISA(t))
	require.Error(t, err)
	var se *simerr.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, simerr.UnknownMnemonic, se.Kind)
}

func TestAssembleRejectsMissingDestination(t *testing.T) {
	_, err := Assemble([]string{"ADD"}, testISA(t))
	require.Error(t, err)
	var se *simerr.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, simerr.MissingDestination, se.Kind)
}

func TestAssembleRejectsEmptyInstruction(t *testing.T) {
	_, err := Assemble([]string{" , , "}, testISA(t))
	require.Error(t, err)
	var se *simerr.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, simerr.EmptyInstruction, se.Kind)
}
