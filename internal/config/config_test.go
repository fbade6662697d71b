package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	_, err = tmpfile.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())
	return tmpfile.Name()
}

func TestLoadConfig(t *testing.T) {
	content := `
processor:
  inPorts:
    - name: F
      width: 1
      capabilities: ["ALU", "MEM"]
      memAccess: ["ALU", "MEM"]
  outPorts:
    - unit:
        name: W
        width: 1
        capabilities: ["ALU", "MEM"]
        writeLock: true
      preds: ["M"]
  internalUnits:
    - unit:
        name: D
        width: 1
        capabilities: ["ALU", "MEM"]
        readLock: true
      preds: ["F"]
    - unit:
        name: X
        width: 1
        capabilities: ["ALU", "MEM"]
      preds: ["D"]
    - unit:
        name: M
        width: 1
        capabilities: ["ALU", "MEM"]
        memAccess: ["ALU", "MEM"]
      preds: ["X"]
isa:
  - mnemonic: LW
    capability: MEM
  - mnemonic: ADD
    capability: ALU
programPath: programs/test.asm
`
	path := writeTempYAML(t, content)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "programs/test.asm", cfg.ProgramPath)
	require.Len(t, cfg.Processor.InPorts, 1)
	assert.Equal(t, "F", cfg.Processor.InPorts[0].Name)
	require.Len(t, cfg.ISA, 2)
	assert.Equal(t, "LW", cfg.ISA[0].Mnemonic)
}

func TestLoadConfigRejectsEmptyISA(t *testing.T) {
	content := `
processor:
  inPorts:
    - name: F
      width: 1
      capabilities: ["ALU"]
programPath: programs/test.asm
`
	path := writeTempYAML(t, content)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigRejectsNoEntryUnits(t *testing.T) {
	content := `
processor:
  internalUnits:
    - unit:
        name: X
        width: 1
        capabilities: ["ALU"]
      preds: []
isa:
  - mnemonic: ADD
    capability: ALU
programPath: programs/test.asm
`
	path := writeTempYAML(t, content)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestToProcessorDescRoundTripsUnits(t *testing.T) {
	cfg := DefaultConfig()
	desc := cfg.ToProcessorDesc()
	require.Len(t, desc.InPorts, 1)
	assert.Equal(t, "F", desc.InPorts[0].Name)
	require.Len(t, desc.OutPorts, 1)
	assert.Equal(t, "W", desc.OutPorts[0].Unit.Name)
}

func TestLoadProgramLines(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "program-*.asm")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	_, err = tmpfile.WriteString("ADD R1, R2, R3\n# comment\nLW R4, (R5)\n")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg := &Config{ProgramPath: tmpfile.Name()}
	lines, err := cfg.LoadProgramLines()
	require.NoError(t, err)
	assert.Equal(t, []string{"ADD R1, R2, R3", "# comment", "LW R4, (R5)"}, lines)
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, validateConfig(cfg))
}
