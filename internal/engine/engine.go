// Package engine implements the per-cycle dispatch and hazard-checking
// simulation: it advances a Program's instructions across a processor
// Graph subject to width limits, read/write stalls, capability
// restrictions, and program-order write commitment.
package engine

import (
	"fmt"

	"github.com/jasonKoogler/pipesim/internal/capability"
	"github.com/jasonKoogler/pipesim/internal/graph"
	"github.com/jasonKoogler/pipesim/internal/program"
	"github.com/jasonKoogler/pipesim/internal/simerr"
)

// HistoryEntry records one cycle's stage occupation.
type HistoryEntry struct {
	Cycle int
	Unit  string
}

// instructionState is the engine's mutable per-instruction runtime
// record. It is never shared outside the engine; later code refers to
// instructions only by program-order index.
type instructionState struct {
	index       int
	capability  capability.Capability
	sources     []string
	destination string

	currentUnit int // vertex index, -1 if not yet entered
	retired     bool
	history     []HistoryEntry

	// reachedWriteLock is set true the cycle this instruction first
	// occupies a write-locking unit (persisted at commit time). A
	// write-locking destination register is available to dependent
	// reads from that same cycle on, matching a register file that
	// writes and reads within one cycle (§4.3, §8 scenario 2).
	reachedWriteLock bool
}

// BlockedInstruction describes why one instruction could not advance in
// the tick that produced a StructuralDeadlock.
type BlockedInstruction struct {
	Index           int
	PreferredTarget string
	Reasons         []string
}

// DeadlockError is raised when a tick makes no progress while
// instructions remain live. It carries the full set of blocked
// instructions, a superset of spec's minimum (first blocked instruction
// and reason).
type DeadlockError struct {
	*baseError
	Blocked []BlockedInstruction
}

// baseError names the embedded *simerr.Error so that its Error method,
// rather than a field called Error, is promoted to DeadlockError.
type baseError = simerr.Error

// Stats summarizes a completed run: total cycles, per-unit
// utilization, and per-instruction stall-cycle counts, all derived
// from the timeline — never from simulated register values.
type Stats struct {
	TotalCycles     int
	UnitUtilization map[string]float64
	StallCycles     []int
}

// Result is the engine's output: the per-instruction timeline plus
// summary statistics.
type Result struct {
	Timelines [][]HistoryEntry
	Cycles    int
	Stats     Stats
}

// Engine runs one simulation of a Program against a Graph. It is
// single-use, single-threaded, and non-reentrant; concurrent
// simulations require independent Engine instances.
type Engine struct {
	g    *graph.Graph
	prog *program.Program

	states []*instructionState

	// prevDestWriter[i] is the nearest earlier instruction index writing
	// the same destination register as instruction i, or -1.
	prevDestWriter []int
	// prevSourceWriter[i][k] is the nearest earlier instruction index
	// writing instruction i's k-th source register, or -1.
	prevSourceWriter [][]int
}

// New constructs an Engine for prog running against g. It resolves the
// write-after-write and read-after-write precedence tables once, up
// front, so the per-tick hazard checks are O(1) lookups.
func New(g *graph.Graph, prog *program.Program) *Engine {
	e := &Engine{g: g, prog: prog}

	e.states = make([]*instructionState, len(prog.Instructions))
	e.prevDestWriter = make([]int, len(prog.Instructions))
	e.prevSourceWriter = make([][]int, len(prog.Instructions))

	lastWriter := make(map[string]int)
	for i, instr := range prog.Instructions {
		e.states[i] = &instructionState{
			index:       i,
			capability:  instr.Capability,
			sources:     append([]string(nil), instr.Sources...),
			destination: instr.Destination,
			currentUnit: -1,
		}

		e.prevSourceWriter[i] = make([]int, len(instr.Sources))
		for k, src := range instr.Sources {
			if w, ok := lastWriter[src]; ok {
				e.prevSourceWriter[i][k] = w
			} else {
				e.prevSourceWriter[i][k] = -1
			}
		}

		if w, ok := lastWriter[instr.Destination]; ok {
			e.prevDestWriter[i] = w
		} else {
			e.prevDestWriter[i] = -1
		}

		if instr.Destination != "" {
			lastWriter[instr.Destination] = i
		}
	}

	return e
}

// maxCycles bounds the simulation as a safety net (§4.3): exceeding it
// without satisfying the deadlock condition indicates an engine bug.
func (e *Engine) maxCycles() int {
	n := len(e.states)
	if n == 0 {
		return 1
	}
	depth := e.g.Len()
	maxWidth := 1
	for i := 0; i < e.g.Len(); i++ {
		if w := e.g.Unit(i).Width; w > maxWidth {
			maxWidth = w
		}
	}
	return n*(depth+1)*maxWidth + depth + 1
}

// Run executes the simulation to completion: every instruction
// retired, or a StructuralDeadlock.
func (e *Engine) Run() (Result, error) {
	cycleCap := e.maxCycles()
	cycle := 1
	remaining := len(e.states)

	for remaining > 0 {
		if cycle > cycleCap {
			panic(fmt.Sprintf("pipesim: engine exceeded safety cap of %d cycles without reaching deadlock or completion", cycleCap))
		}

		retiredThisTick := e.harvest()
		remaining -= retiredThisTick

		if remaining == 0 {
			break
		}

		decisions := e.planMoves(cycle)
		moved := e.commit(decisions, cycle)

		if moved == 0 && retiredThisTick == 0 {
			return Result{}, e.deadlockError(decisions, cycle)
		}

		cycle++
	}

	return e.buildResult(cycle - 1), nil
}

// harvest retires every instruction currently at an exit unit. Retired
// instructions stop accumulating history. Returns the number retired
// this tick.
func (e *Engine) harvest() int {
	retired := 0
	exits := make(map[int]bool, len(e.g.Exits()))
	for _, x := range e.g.Exits() {
		exits[x] = true
	}

	for _, s := range e.states {
		if s.retired || s.currentUnit == -1 {
			continue
		}
		if !exits[s.currentUnit] {
			continue
		}
		s.retired = true
		retired++
	}
	return retired
}

type moveDecision struct {
	instr           *instructionState
	accepted        bool
	target          int // vertex index, valid iff accepted
	preferredTarget string
	reasons         []string
}

// planMoves evaluates, in strict program order, whether each
// non-retired instruction can advance this tick. It does not mutate
// persisted instructionState fields; commit applies the accepted
// subset atomically. It does track, locally, which instructions reach
// a write-locking stage during this same tick: a register file that
// writes and is read within a single cycle means an earlier writer's
// arrival at its write-locking unit THIS cycle is enough to unblock a
// dependent read THIS cycle too (§8 scenario 2), so later instructions
// in program order must see earlier instructions' decisions from the
// same tick, not just state committed by the previous one.
func (e *Engine) planMoves(cycle int) []moveDecision {
	widthUsed := make(map[int]int)
	memUsed := make(map[string]bool)

	reached := make([]bool, len(e.states))
	for i, s := range e.states {
		reached[i] = s.reachedWriteLock
	}

	decisions := make([]moveDecision, 0, len(e.states))

	for _, s := range e.states {
		if s.retired {
			continue
		}

		if s.currentUnit != -1 && e.g.Unit(s.currentUnit).ReadLock {
			if w, reason := firstUnresolvedReader(s.index, e.prevSourceWriter[s.index], reached); w != -1 {
				preferred := ""
				for _, c := range e.g.Successors(s.currentUnit) {
					if e.g.Unit(c).Capabilities.Has(s.capability) {
						preferred = e.g.Unit(c).Name
						break
					}
				}
				decisions = append(decisions, moveDecision{
					instr:           s,
					accepted:        false,
					preferredTarget: preferred,
					reasons:         []string{reason},
				})
				continue
			}
		}

		var candidates []int
		if s.currentUnit == -1 {
			candidates = e.g.Entries()
		} else {
			candidates = e.g.Successors(s.currentUnit)
		}

		var reasons []string
		var preferredName string
		accepted := false
		var target int

		for _, c := range candidates {
			u := e.g.Unit(c)
			if !u.Capabilities.Has(s.capability) {
				continue
			}
			if preferredName == "" {
				preferredName = u.Name
			}

			if widthUsed[c] >= u.Width {
				reasons = append(reasons, fmt.Sprintf("unit %q at width limit %d", u.Name, u.Width))
				continue
			}
			if u.WriteLock {
				if w := e.prevDestWriter[s.index]; w != -1 && !reached[w] {
					reasons = append(reasons, fmt.Sprintf("write-lock ordering: instruction %d must reach a write-locking stage before %d enters %q", w, s.index, u.Name))
					continue
				}
			}
			if u.MemAccess.Has(s.capability) && memUsed[s.capability.Canonical()] {
				reasons = append(reasons, fmt.Sprintf("unified-memory exclusion on capability %q blocks entry to %q", s.capability, u.Name))
				continue
			}

			accepted = true
			target = c
			widthUsed[c]++
			if u.MemAccess.Has(s.capability) {
				memUsed[s.capability.Canonical()] = true
			}
			if u.WriteLock {
				reached[s.index] = true
			}
			break
		}

		decisions = append(decisions, moveDecision{
			instr:           s,
			accepted:        accepted,
			target:          target,
			preferredTarget: preferredName,
			reasons:         reasons,
		})
	}

	return decisions
}

// firstUnresolvedReader reports the first earlier-instruction writer
// index (by program order) whose destination overlaps index's sources
// and that has not yet reached its write-locking stage this tick or
// any prior one — the classic RAW stall, evaluated while index already
// occupies a read-locking unit (§4.3). Returns -1 if none blocks.
func firstUnresolvedReader(index int, sourceWriters []int, reached []bool) (int, string) {
	for _, w := range sourceWriters {
		if w != -1 && !reached[w] {
			return w, fmt.Sprintf("read-lock hazard: instruction %d has not reached its write-locking stage before %d may leave its read-locking stage", w, index)
		}
	}
	return -1, ""
}

// commit applies every accepted move atomically and appends this
// cycle's history entry to every instruction that moved or stalled
// in place. Returns the number of instructions that moved.
func (e *Engine) commit(decisions []moveDecision, cycle int) int {
	moved := 0
	for _, d := range decisions {
		s := d.instr

		if !d.accepted {
			if s.currentUnit != -1 {
				s.history = append(s.history, HistoryEntry{Cycle: cycle, Unit: e.g.Unit(s.currentUnit).Name})
			}
			continue
		}

		s.currentUnit = d.target
		if e.g.Unit(d.target).WriteLock {
			s.reachedWriteLock = true
		}
		s.history = append(s.history, HistoryEntry{Cycle: cycle, Unit: e.g.Unit(d.target).Name})
		moved++
	}
	return moved
}

// deadlockError builds the StructuralDeadlock error naming every
// instruction that failed to advance this tick and why.
func (e *Engine) deadlockError(decisions []moveDecision, cycle int) error {
	var blocked []BlockedInstruction
	for _, d := range decisions {
		if d.accepted {
			continue
		}
		blocked = append(blocked, BlockedInstruction{
			Index:           d.instr.index,
			PreferredTarget: d.preferredTarget,
			Reasons:         d.reasons,
		})
	}

	first := BlockedInstruction{Index: -1}
	if len(blocked) > 0 {
		first = blocked[0]
	}

	base := simerr.New(simerr.StructuralDeadlock,
		"cycle %d: no instruction advanced; instruction %d blocked entering %q: %v",
		cycle, first.Index, first.PreferredTarget, first.Reasons).WithCycle(cycle)

	return &DeadlockError{baseError: base, Blocked: blocked}
}

// buildResult assembles the final timeline and summary statistics
// after every instruction has retired.
func (e *Engine) buildResult(totalCycles int) Result {
	timelines := make([][]HistoryEntry, len(e.states))
	stallCycles := make([]int, len(e.states))
	busyCycles := make(map[string]int)

	occupied := make(map[HistoryEntry]bool)
	for i, s := range e.states {
		timelines[i] = s.history
		stallCycles[i] = countStalls(s.history)
		for _, h := range s.history {
			if !occupied[h] {
				occupied[h] = true
				busyCycles[h.Unit]++
			}
		}
	}

	utilization := make(map[string]float64, len(busyCycles))
	for i := 0; i < e.g.Len(); i++ {
		name := e.g.Unit(i).Name
		if totalCycles == 0 {
			utilization[name] = 0
			continue
		}
		utilization[name] = float64(busyCycles[name]) / float64(totalCycles)
	}

	return Result{
		Timelines: timelines,
		Cycles:    totalCycles,
		Stats: Stats{
			TotalCycles:     totalCycles,
			UnitUtilization: utilization,
			StallCycles:     stallCycles,
		},
	}
}

// countStalls returns the number of cycles in history that repeat the
// same unit as the cycle before them (a stall), versus a transition
// into a new unit.
func countStalls(history []HistoryEntry) int {
	stalls := 0
	for i := 1; i < len(history); i++ {
		if history[i].Unit == history[i-1].Unit {
			stalls++
		}
	}
	return stalls
}
