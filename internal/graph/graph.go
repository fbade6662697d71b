// Package graph validates a declarative processor unit description and
// canonicalizes it into a directed acyclic pipeline graph.
package graph

import (
	"sort"
	"strings"

	"github.com/jasonKoogler/pipesim/internal/capability"
	"github.com/jasonKoogler/pipesim/internal/simerr"
)

// UnitModel is the static descriptor for one pipeline stage.
type UnitModel struct {
	Name         string
	Width        int
	Capabilities capability.Set
	ReadLock     bool
	WriteLock    bool
	MemAccess    capability.Set
}

// FuncUnitSpec is an edge in the input processor graph: a unit together
// with the names of its direct predecessors.
type FuncUnitSpec struct {
	Unit  UnitModel
	Preds []string
}

// ProcessorDesc is the four disjoint port lists that define the
// processor graph (§6 of the specification).
type ProcessorDesc struct {
	InPorts       []UnitModel
	OutPorts      []FuncUnitSpec
	InOutPorts    []UnitModel
	InternalUnits []FuncUnitSpec
}

// Vertex is one canonicalized unit: its model plus resolved edges and
// its stable topological order index.
type Vertex struct {
	Model UnitModel
	Order int

	succ []int
	pred []int
}

// Graph is the canonical, immutable internal form produced by Build.
// All later lookups use vertex indices; names are resolved only once,
// at build time.
type Graph struct {
	vertices []Vertex
	byName   map[string]int // case-folded name -> vertex index
	entries  []int          // vertex indices, canonical order
	exits    []int
}

func foldName(s string) string { return strings.ToLower(s) }

// Build validates desc and returns its canonical graph, or the first
// invariant violation encountered, in the order specified by §4.2:
// NameUniqueness, EdgeResolution, Acyclicity, Connectivity,
// CapabilityClosure.
func Build(desc ProcessorDesc) (*Graph, error) {
	units, specs, isEntry, isExit, err := collectUnits(desc)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]int, len(units))
	for i, u := range units {
		byName[foldName(u.Name)] = i
	}

	adjSucc := make([][]int, len(units))
	adjPred := make([][]int, len(units))
	for i, sp := range specs {
		if sp == nil {
			continue
		}
		for _, predName := range sp.Preds {
			pIdx, ok := byName[foldName(predName)]
			if !ok {
				return nil, simerr.New(simerr.DanglingPredecessor,
					"unit %q names unknown predecessor %q", units[i].Name, predName).
					WithNames(units[i].Name, predName)
			}
			adjSucc[pIdx] = append(adjSucc[pIdx], i)
			adjPred[i] = append(adjPred[i], pIdx)
		}
	}

	order, err := topoSort(units, adjSucc, adjPred)
	if err != nil {
		return nil, err
	}

	vertices := make([]Vertex, len(units))
	for i, u := range units {
		vertices[i] = Vertex{Model: u, Order: order[i], succ: sortByOrder(adjSucc[i], order), pred: sortByOrder(adjPred[i], order)}
	}

	var entries, exits []int
	for i := range units {
		if isEntry[i] {
			entries = append(entries, i)
		}
		if isExit[i] {
			exits = append(exits, i)
		}
	}
	sort.Slice(entries, func(a, b int) bool { return order[entries[a]] < order[entries[b]] })
	sort.Slice(exits, func(a, b int) bool { return order[exits[a]] < order[exits[b]] })

	g := &Graph{vertices: vertices, byName: byName, entries: entries, exits: exits}

	if err := checkConnectivity(g); err != nil {
		return nil, err
	}
	if err := checkCapabilityClosure(g); err != nil {
		return nil, err
	}

	return g, nil
}

// collectUnits merges the four port lists, rejecting case-folded
// duplicate names, and records which indices are entries/exits.
func collectUnits(desc ProcessorDesc) (units []UnitModel, specs []*FuncUnitSpec, isEntry, isExit []bool, err error) {
	seen := make(map[string]string) // folded -> original, for diagnostics

	add := func(u UnitModel, sp *FuncUnitSpec, entry, exit bool) error {
		folded := foldName(u.Name)
		if orig, dup := seen[folded]; dup {
			return simerr.New(simerr.DuplicateName,
				"duplicate unit name %q (conflicts with %q)", u.Name, orig).WithNames(u.Name, orig)
		}
		seen[folded] = u.Name
		units = append(units, u)
		specs = append(specs, sp)
		isEntry = append(isEntry, entry)
		isExit = append(isExit, exit)
		return nil
	}

	for _, u := range desc.InPorts {
		if err := add(u, nil, true, false); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	for _, fu := range desc.OutPorts {
		if err := add(fu.Unit, &fu, false, true); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	for _, u := range desc.InOutPorts {
		if err := add(u, nil, true, true); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	for _, fu := range desc.InternalUnits {
		if err := add(fu.Unit, &fu, false, false); err != nil {
			return nil, nil, nil, nil, err
		}
	}
	return units, specs, isEntry, isExit, nil
}

// topoSort performs a Kahn's-algorithm topological sort, always
// expanding the lowest-named zero-in-degree vertex so that the result is
// a deterministic canonical ordering. A non-empty remainder after the
// sort indicates a cycle.
func topoSort(units []UnitModel, succ, pred [][]int) ([]int, error) {
	n := len(units)
	indeg := make([]int, n)
	for i := range units {
		indeg[i] = len(pred[i])
	}

	ready := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}
	sort.Slice(ready, func(a, b int) bool { return foldName(units[ready[a]].Name) < foldName(units[ready[b]].Name) })

	order := make([]int, n)
	visited := 0
	for len(ready) > 0 {
		// pop lowest-named
		idx := ready[0]
		ready = ready[1:]

		order[idx] = visited
		visited++

		next := append([]int(nil), succ[idx]...)
		sort.Slice(next, func(a, b int) bool { return foldName(units[next[a]].Name) < foldName(units[next[b]].Name) })
		for _, s := range next {
			indeg[s]--
			if indeg[s] == 0 {
				ready = insertSorted(ready, s, units)
			}
		}
	}

	if visited != n {
		var cyclic []string
		for i := 0; i < n; i++ {
			if indeg[i] > 0 {
				cyclic = append(cyclic, units[i].Name)
			}
		}
		return nil, simerr.New(simerr.CyclicPipeline,
			"processor graph contains a cycle among units: %s", strings.Join(cyclic, ", ")).WithNames(cyclic...)
	}

	return order, nil
}

func insertSorted(ready []int, v int, units []UnitModel) []int {
	name := foldName(units[v].Name)
	i := sort.Search(len(ready), func(i int) bool { return foldName(units[ready[i]].Name) >= name })
	ready = append(ready, 0)
	copy(ready[i+1:], ready[i:])
	ready[i] = v
	return ready
}

func sortByOrder(idxs []int, order []int) []int {
	out := append([]int(nil), idxs...)
	sort.Slice(out, func(a, b int) bool { return order[out[a]] < order[out[b]] })
	return out
}

// checkConnectivity requires every entry to reach some exit and every
// exit to be reachable from some entry.
func checkConnectivity(g *Graph) error {
	reachableFromEntries := g.reachableForward(g.entries)
	reachesExits := g.reachableBackward(g.exits)

	for i := range g.vertices {
		if !reachableFromEntries[i] {
			return simerr.New(simerr.DeadEnd,
				"unit %q is not reachable from any entry port", g.vertices[i].Model.Name).
				WithNames(g.vertices[i].Model.Name)
		}
		if !reachesExits[i] {
			return simerr.New(simerr.DeadEnd,
				"unit %q cannot reach any exit port", g.vertices[i].Model.Name).
				WithNames(g.vertices[i].Model.Name)
		}
	}
	return nil
}

func (g *Graph) reachableForward(from []int) []bool {
	seen := make([]bool, len(g.vertices))
	stack := append([]int(nil), from...)
	for _, v := range from {
		seen[v] = true
	}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range g.vertices[v].succ {
			if !seen[s] {
				seen[s] = true
				stack = append(stack, s)
			}
		}
	}
	return seen
}

func (g *Graph) reachableBackward(from []int) []bool {
	seen := make([]bool, len(g.vertices))
	stack := append([]int(nil), from...)
	for _, v := range from {
		seen[v] = true
	}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range g.vertices[v].pred {
			if !seen[p] {
				seen[p] = true
				stack = append(stack, p)
			}
		}
	}
	return seen
}

// checkCapabilityClosure requires that for every capability present on
// any exit, some entry-to-exit path supports that capability at every
// hop.
func checkCapabilityClosure(g *Graph) error {
	needed := capability.Set{}
	for _, e := range g.exits {
		for _, c := range g.vertices[e].Model.Capabilities {
			needed.Add(c)
		}
	}

	for _, c := range needed.Slice() {
		if !g.capabilitySupported(c) {
			return simerr.New(simerr.UnreachableCapability,
				"capability %q required at an exit has no supporting entry-to-exit path", c).
				WithNames(c.String())
		}
	}
	return nil
}

func (g *Graph) capabilitySupported(c capability.Capability) bool {
	// Restrict to the subgraph of units carrying c, then check whether
	// some entry reaches some exit within that subgraph.
	carries := make([]bool, len(g.vertices))
	for i, v := range g.vertices {
		carries[i] = v.Model.Capabilities.Has(c)
	}

	var starts []int
	for _, e := range g.entries {
		if carries[e] {
			starts = append(starts, e)
		}
	}
	if len(starts) == 0 {
		return false
	}

	seen := make([]bool, len(g.vertices))
	stack := append([]int(nil), starts...)
	for _, s := range starts {
		seen[s] = true
	}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range g.vertices[v].succ {
			if carries[s] && !seen[s] {
				seen[s] = true
				stack = append(stack, s)
			}
		}
	}

	for _, e := range g.exits {
		if carries[e] && seen[e] {
			return true
		}
	}
	return false
}

// Entries returns entry vertex indices in canonical topological order.
func (g *Graph) Entries() []int { return append([]int(nil), g.entries...) }

// Exits returns exit vertex indices in canonical topological order.
func (g *Graph) Exits() []int { return append([]int(nil), g.exits...) }

// Successors returns v's successor indices in canonical topological order.
func (g *Graph) Successors(v int) []int { return append([]int(nil), g.vertices[v].succ...) }

// Predecessors returns v's predecessor indices in canonical topological order.
func (g *Graph) Predecessors(v int) []int { return append([]int(nil), g.vertices[v].pred...) }

// Unit returns the UnitModel for vertex v.
func (g *Graph) Unit(v int) UnitModel { return g.vertices[v].Model }

// Len returns the number of vertices in the graph.
func (g *Graph) Len() int { return len(g.vertices) }

// ByName resolves a unit name (case-insensitively) to its vertex index.
func (g *Graph) ByName(name string) (int, bool) {
	i, ok := g.byName[foldName(name)]
	return i, ok
}

// SupportedCapabilities returns the union of capabilities reachable
// from any entry port — the set against which an ISA is validated.
func (g *Graph) SupportedCapabilities() capability.Set {
	out := capability.Set{}
	reachable := g.reachableForward(g.entries)
	for i, v := range g.vertices {
		if reachable[i] {
			for _, c := range v.Model.Capabilities {
				out.Add(c)
			}
		}
	}
	return out
}

// UnitOrder describes one unit's canonical position, for introspection
// (e.g. a CLI's -show-pipeline flag).
type UnitOrder struct {
	Name         string
	Order        int
	Predecessors []string
	Successors   []string
}

// Describe returns every unit in canonical topological order together
// with its resolved predecessor/successor names.
func (g *Graph) Describe() []UnitOrder {
	out := make([]UnitOrder, len(g.vertices))
	byOrder := make([]int, len(g.vertices))
	for i, v := range g.vertices {
		byOrder[v.Order] = i
	}
	for pos, i := range byOrder {
		v := g.vertices[i]
		var preds, succs []string
		for _, p := range v.pred {
			preds = append(preds, g.vertices[p].Model.Name)
		}
		for _, s := range v.succ {
			succs = append(succs, g.vertices[s].Model.Name)
		}
		out[pos] = UnitOrder{Name: v.Model.Name, Order: v.Order, Predecessors: preds, Successors: succs}
	}
	return out
}
