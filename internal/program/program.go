// Package program assembles a line-oriented source listing into typed
// instructions resolved against an ISA table.
package program

import (
	"strings"

	"github.com/jasonKoogler/pipesim/internal/capability"
	"github.com/jasonKoogler/pipesim/internal/isa"
	"github.com/jasonKoogler/pipesim/internal/simerr"
)

// Instruction is one assembled program line: a mnemonic, its
// destination and source register operands, and the capability the
// ISA table resolved it to.
type Instruction struct {
	Mnemonic    string
	Destination string
	Sources     []string
	Capability  capability.Capability
}

// Program is the ordered list of Instructions produced by Assemble,
// indexed 0..N-1 in program order.
type Program struct {
	Instructions []Instruction
}

// Assemble lexes lines (whitespace- and comma-tokenized) into a
// Program. Blank lines and lines beginning with # are ignored. The
// first token of a line is the mnemonic; remaining tokens are register
// operands, the first of which is the destination and the rest
// sources. Parenthesized operands, e.g. "(R2)", are stripped to the
// bare register name.
func Assemble(lines []string, table *isa.ISA) (*Program, error) {
	prog := &Program{}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		tokens := tokenize(trimmed)
		if len(tokens) == 0 {
			return nil, simerr.New(simerr.EmptyInstruction, "line %q has no tokens after stripping", line)
		}

		mnemonic := tokens[0]
		cap, ok := table.Lookup(mnemonic)
		if !ok {
			return nil, simerr.New(simerr.UnknownMnemonic,
				"mnemonic %q is not present in the ISA table", mnemonic).WithNames(mnemonic)
		}

		operands := tokens[1:]
		if len(operands) == 0 {
			return nil, simerr.New(simerr.MissingDestination,
				"mnemonic %q has no destination operand", mnemonic).WithNames(mnemonic)
		}

		dest := stripParens(operands[0])
		var sources []string
		for _, op := range operands[1:] {
			sources = append(sources, stripParens(op))
		}

		prog.Instructions = append(prog.Instructions, Instruction{
			Mnemonic:    mnemonic,
			Destination: dest,
			Sources:     sources,
			Capability:  cap,
		})
	}
	return prog, nil
}

// tokenize splits a line on whitespace and commas, treating any run of
// either as a single separator.
func tokenize(line string) []string {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// stripParens removes a single enclosing pair of parentheses from a
// memory-addressing operand such as "(R2)", returning the bare register
// name. Operands without parentheses pass through unchanged.
func stripParens(operand string) string {
	if len(operand) >= 2 && operand[0] == '(' && operand[len(operand)-1] == ')' {
		return operand[1 : len(operand)-1]
	}
	return operand
}
