// Package simerr defines the tagged-variant error kinds raised by the
// graph builder, ISA loader, program assembler, and dispatch engine.
package simerr

import "fmt"

// Kind tags the origin and meaning of an Error.
type Kind int

const (
	// DuplicateName: two units share a case-folded name.
	DuplicateName Kind = iota
	// DanglingPredecessor: a FuncUnit names an unknown predecessor.
	DanglingPredecessor
	// CyclicPipeline: the unit graph has a cycle.
	CyclicPipeline
	// DeadEnd: a unit is unreachable from any entry or to any exit.
	DeadEnd
	// UnreachableCapability: a capability at an exit has no supporting path.
	UnreachableCapability
	// DuplicateMnemonic: two ISA rows share a mnemonic.
	DuplicateMnemonic
	// UnsupportedCapability: an ISA capability is absent from the processor.
	UnsupportedCapability
	// UnknownMnemonic: a program line's mnemonic is absent from the ISA.
	UnknownMnemonic
	// EmptyInstruction: a non-blank line yields no tokens after stripping.
	EmptyInstruction
	// MissingDestination: a mnemonic is given with no operands; every
	// instruction requires a destination register.
	MissingDestination
	// StructuralDeadlock: a tick made no progress with live instructions.
	StructuralDeadlock
)

func (k Kind) String() string {
	switch k {
	case DuplicateName:
		return "DuplicateName"
	case DanglingPredecessor:
		return "DanglingPredecessor"
	case CyclicPipeline:
		return "CyclicPipeline"
	case DeadEnd:
		return "DeadEnd"
	case UnreachableCapability:
		return "UnreachableCapability"
	case DuplicateMnemonic:
		return "DuplicateMnemonic"
	case UnsupportedCapability:
		return "UnsupportedCapability"
	case UnknownMnemonic:
		return "UnknownMnemonic"
	case EmptyInstruction:
		return "EmptyInstruction"
	case MissingDestination:
		return "MissingDestination"
	case StructuralDeadlock:
		return "StructuralDeadlock"
	default:
		return "Unknown"
	}
}

// Error is the single error type raised by the core packages. It carries
// just enough context for a human-readable message without resorting to
// stringly-typed errors.
type Error struct {
	Kind    Kind
	Message string
	// Names holds offending identifiers (unit names, mnemonics, register
	// names) relevant to the error, when applicable.
	Names []string
	// Cycle is set for engine-time errors (e.g. StructuralDeadlock).
	Cycle int
}

func (e *Error) Error() string {
	return e.Message
}

// New constructs an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithNames attaches offending identifiers to the error and returns it.
func (e *Error) WithNames(names ...string) *Error {
	e.Names = names
	return e
}

// WithCycle attaches the cycle number at which the error occurred.
func (e *Error) WithCycle(cycle int) *Error {
	e.Cycle = cycle
	return e
}

// Is supports errors.Is comparisons by Kind: two *Error values are
// considered equivalent for matching purposes when their Kind matches.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
