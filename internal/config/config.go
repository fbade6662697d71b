// Package config decodes the YAML description of a processor, its ISA
// table, and a program source path into the core's data model (§6 of
// the specification covers the decoded shape; this package owns the
// file syntax, which is ambient plumbing around that core).
package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jasonKoogler/pipesim/internal/capability"
	"github.com/jasonKoogler/pipesim/internal/graph"
	"github.com/jasonKoogler/pipesim/internal/isa"
)

// UnitConfig is the YAML shape of a UnitModel.
type UnitConfig struct {
	Name         string   `yaml:"name"`
	Width        int      `yaml:"width"`
	Capabilities []string `yaml:"capabilities"`
	ReadLock     bool     `yaml:"readLock"`
	WriteLock    bool     `yaml:"writeLock"`
	MemAccess    []string `yaml:"memAccess"`
}

// FuncUnitConfig is the YAML shape of a FuncUnit: a unit plus its
// predecessor names.
type FuncUnitConfig struct {
	Unit  UnitConfig `yaml:"unit"`
	Preds []string   `yaml:"preds"`
}

// ProcessorConfig is the YAML shape of a ProcessorDesc.
type ProcessorConfig struct {
	InPorts       []UnitConfig     `yaml:"inPorts"`
	OutPorts      []FuncUnitConfig `yaml:"outPorts"`
	InOutPorts    []UnitConfig     `yaml:"inOutPorts"`
	InternalUnits []FuncUnitConfig `yaml:"internalUnits"`
}

// ISARowConfig is the YAML shape of one ISA table row.
type ISARowConfig struct {
	Mnemonic   string `yaml:"mnemonic"`
	Capability string `yaml:"capability"`
}

// Config is the simulator's decoded configuration: the processor
// description, the ISA table, and where to find the program listing.
type Config struct {
	Processor   ProcessorConfig `yaml:"processor"`
	ISA         []ISARowConfig  `yaml:"isa"`
	ProgramPath string          `yaml:"programPath"`
}

// LoadConfig loads and validates a Config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// validateConfig checks the shape decodes to something the graph
// builder and ISA loader can at least attempt — it does not duplicate
// their invariant checks (name uniqueness, acyclicity, capability
// closure, ...), only the structural prerequisites (positive widths,
// non-empty ISA, at least one entry unit).
func validateConfig(cfg *Config) error {
	if len(cfg.ISA) == 0 {
		return fmt.Errorf("isa table must declare at least one mnemonic")
	}

	var allUnits []UnitConfig
	allUnits = append(allUnits, cfg.Processor.InPorts...)
	allUnits = append(allUnits, cfg.Processor.InOutPorts...)
	for _, fu := range cfg.Processor.OutPorts {
		allUnits = append(allUnits, fu.Unit)
	}
	for _, fu := range cfg.Processor.InternalUnits {
		allUnits = append(allUnits, fu.Unit)
	}
	if len(allUnits) == 0 {
		return fmt.Errorf("processor description declares no units")
	}
	for _, u := range allUnits {
		if u.Name == "" {
			return fmt.Errorf("unit with empty name")
		}
		if u.Width <= 0 {
			return fmt.Errorf("unit %q: width must be positive", u.Name)
		}
		if len(u.Capabilities) == 0 {
			return fmt.Errorf("unit %q: capabilities must be non-empty", u.Name)
		}
	}

	if len(cfg.Processor.InPorts) == 0 && len(cfg.Processor.InOutPorts) == 0 {
		return fmt.Errorf("processor description declares no entry units")
	}

	return nil
}

// ToProcessorDesc converts the decoded YAML shape into the graph
// package's input type.
func (c *Config) ToProcessorDesc() graph.ProcessorDesc {
	toUnitModel := func(u UnitConfig) graph.UnitModel {
		return graph.UnitModel{
			Name:         u.Name,
			Width:        u.Width,
			Capabilities: capability.NewSet(u.Capabilities...),
			ReadLock:     u.ReadLock,
			WriteLock:    u.WriteLock,
			MemAccess:    capability.NewSet(u.MemAccess...),
		}
	}
	toFuncUnit := func(fu FuncUnitConfig) graph.FuncUnitSpec {
		return graph.FuncUnitSpec{Unit: toUnitModel(fu.Unit), Preds: fu.Preds}
	}

	desc := graph.ProcessorDesc{}
	for _, u := range c.Processor.InPorts {
		desc.InPorts = append(desc.InPorts, toUnitModel(u))
	}
	for _, fu := range c.Processor.OutPorts {
		desc.OutPorts = append(desc.OutPorts, toFuncUnit(fu))
	}
	for _, u := range c.Processor.InOutPorts {
		desc.InOutPorts = append(desc.InOutPorts, toUnitModel(u))
	}
	for _, fu := range c.Processor.InternalUnits {
		desc.InternalUnits = append(desc.InternalUnits, toFuncUnit(fu))
	}
	return desc
}

// LoadProgramLines reads the program source listed at c.ProgramPath,
// one line per entry, for the assembler (§4.4, §6's Program source
// input).
func (c *Config) LoadProgramLines() ([]string, error) {
	data, err := os.ReadFile(c.ProgramPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read program file %q: %w", c.ProgramPath, err)
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan program file %q: %w", c.ProgramPath, err)
	}
	return lines, nil
}

// ToISARows converts the decoded ISA table into the isa package's
// input type.
func (c *Config) ToISARows() []isa.Row {
	rows := make([]isa.Row, len(c.ISA))
	for i, r := range c.ISA {
		rows[i] = isa.Row{Mnemonic: r.Mnemonic, Capability: r.Capability}
	}
	return rows
}

// DefaultConfig returns the classic 5-stage pipeline from §8 scenario 1:
// Fetch -> Decode -> Execute -> Memory -> Writeback, an ALU+MEM ISA.
func DefaultConfig() *Config {
	alu := []string{"ALU", "MEM"}
	return &Config{
		Processor: ProcessorConfig{
			InPorts: []UnitConfig{
				{Name: "F", Width: 1, Capabilities: alu, MemAccess: []string{"ALU", "MEM"}},
			},
			OutPorts: []FuncUnitConfig{
				{
					Unit:  UnitConfig{Name: "W", Width: 1, Capabilities: alu, WriteLock: true},
					Preds: []string{"M"},
				},
			},
			InternalUnits: []FuncUnitConfig{
				{
					Unit:  UnitConfig{Name: "D", Width: 1, Capabilities: alu, ReadLock: true},
					Preds: []string{"F"},
				},
				{
					Unit:  UnitConfig{Name: "X", Width: 1, Capabilities: alu},
					Preds: []string{"D"},
				},
				{
					Unit:  UnitConfig{Name: "M", Width: 1, Capabilities: alu, MemAccess: []string{"ALU", "MEM"}},
					Preds: []string{"X"},
				},
			},
		},
		ISA: []ISARowConfig{
			{Mnemonic: "LW", Capability: "MEM"},
			{Mnemonic: "SW", Capability: "MEM"},
			{Mnemonic: "ADD", Capability: "ALU"},
			{Mnemonic: "SUB", Capability: "ALU"},
		},
		ProgramPath: "programs/default.asm",
	}
}
