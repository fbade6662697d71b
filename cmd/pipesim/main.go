// Command pipesim is the CLI entry point for the pipeline simulator
// core: it loads a processor/ISA/program configuration, runs the
// dispatch engine, and prints the resulting timeline.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/fatih/color"

	"github.com/jasonKoogler/pipesim/internal/config"
	"github.com/jasonKoogler/pipesim/internal/engine"
	"github.com/jasonKoogler/pipesim/internal/graph"
	"github.com/jasonKoogler/pipesim/internal/isa"
	"github.com/jasonKoogler/pipesim/internal/program"
)

func main() {
	configPath := flag.String("config", "configs/default.yaml", "Path to the bundled processor/ISA/program configuration file")
	programPath := flag.String("program", "", "Override the program source path from the config file")
	verbose := flag.Bool("v", false, "Enable verbose output")
	cyclesCap := flag.Int("cycles", 0, "Fail if the finished simulation took more than this many cycles (0 disables the check)")
	showPipeline := flag.Bool("show-pipeline", false, "Print the canonical pipeline topology before simulating")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)
	if *verbose {
		logger.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	}

	logger.Println("Pipeline Simulator")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}
	if *programPath != "" {
		cfg.ProgramPath = *programPath
	}

	fmt.Println("\nConfiguration Summary:")
	fmt.Printf("  Processor units: %d\n", unitCount(cfg))
	fmt.Printf("  ISA mnemonics:   %d\n", len(cfg.ISA))
	fmt.Printf("  Program source:  %s\n", cfg.ProgramPath)

	g, err := graph.Build(cfg.ToProcessorDesc())
	if err != nil {
		logger.Fatalf("failed to build processor graph: %v", err)
	}

	if *showPipeline {
		printPipeline(g)
	}

	table, err := isa.New(cfg.ToISARows())
	if err != nil {
		logger.Fatalf("failed to load ISA table: %v", err)
	}
	if err := table.ValidateAgainst(g.SupportedCapabilities()); err != nil {
		logger.Fatalf("ISA table rejected: %v", err)
	}

	lines, err := cfg.LoadProgramLines()
	if err != nil {
		logger.Fatalf("failed to load program: %v", err)
	}

	prog, err := program.Assemble(lines, table)
	if err != nil {
		logger.Fatalf("failed to assemble program: %v", err)
	}
	logger.Printf("assembled %d instructions", len(prog.Instructions))

	eng := engine.New(g, prog)
	result, err := eng.Run()
	if err != nil {
		logger.Fatalf("simulation failed: %v", err)
	}

	if *cyclesCap > 0 && result.Cycles > *cyclesCap {
		logger.Fatalf("simulation exceeded requested cycle cap: ran %d, cap %d", result.Cycles, *cyclesCap)
	}

	printTimeline(prog, result)
	printStats(result)
}

func unitCount(cfg *config.Config) int {
	return len(cfg.Processor.InPorts) + len(cfg.Processor.OutPorts) +
		len(cfg.Processor.InOutPorts) + len(cfg.Processor.InternalUnits)
}

// printPipeline renders the canonical topological ordering the graph
// builder produced, for the -show-pipeline flag.
func printPipeline(g *graph.Graph) {
	stageName := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Println("\nPipeline Structure:")
	fmt.Printf("  Total Stages: %d\n", g.Len())
	fmt.Print("  Pipeline Flow: ")
	order := g.Describe()
	for i, u := range order {
		fmt.Print(stageName(u.Name))
		if i < len(order)-1 {
			fmt.Print(" -> ")
		}
	}
	fmt.Println()
}

// printTimeline renders each instruction's per-cycle stage occupation,
// coloring repeated (stalled) unit names to distinguish them from
// forward transitions. Rendering is ambient CLI plumbing, not part of
// the core (§1).
func printTimeline(prog *program.Program, result engine.Result) {
	transition := color.New(color.FgGreen).SprintFunc()
	stall := color.New(color.FgYellow).SprintFunc()

	fmt.Println("\nTimeline:")
	for i, instr := range prog.Instructions {
		fmt.Printf("  [%2d] %-6s", i, instr.Mnemonic)
		history := result.Timelines[i]
		for j, h := range history {
			label := fmt.Sprintf("%s@%d", h.Unit, h.Cycle)
			if j > 0 && history[j-1].Unit == h.Unit {
				fmt.Printf(" %s", stall(label))
			} else {
				fmt.Printf(" %s", transition(label))
			}
		}
		fmt.Println()
	}
}

// printStats prints the supplemented run statistics (total cycles,
// per-unit utilization, per-instruction stall counts) derived purely
// from the timeline.
func printStats(result engine.Result) {
	fmt.Println("\nSimulation Statistics:")
	fmt.Printf("  Total Cycles: %d\n", result.Stats.TotalCycles)

	fmt.Println("  Unit Utilization:")
	names := make([]string, 0, len(result.Stats.UnitUtilization))
	for name := range result.Stats.UnitUtilization {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("    %-8s %.1f%%\n", name, result.Stats.UnitUtilization[name]*100)
	}

	fmt.Println("  Stall Cycles per Instruction:")
	for i, s := range result.Stats.StallCycles {
		fmt.Printf("    [%2d] %d\n", i, s)
	}
}
