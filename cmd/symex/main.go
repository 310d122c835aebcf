// Command symex runs the WCET engine against a compiled ELF binary from
// the command line. It is a thin flag-parsing and driver-invocation shell:
// all of the engineering lives in the root symex package and its arch/*
// and z3 subpackages.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	symex "github.com/symex-project/symex"
	"github.com/symex-project/symex/arch/armv6m"
	"github.com/symex-project/symex/arch/armv7em"
	"github.com/symex-project/symex/arch/rv32i"
	"github.com/symex-project/symex/elfimage"
	"github.com/symex-project/symex/z3"
)

func main() {
	app := &cli.App{
		Name:  "symex",
		Usage: "derive cycle-accurate WCET bounds for embedded ELF binaries",
		Commands: []*cli.Command{
			runCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "explore every feasible path through an entry function and report the worst-case cycle count",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "elf", Required: true, Usage: "path to the ELF32 binary"},
			&cli.StringFlag{Name: "entry", Required: true, Usage: "symbol name of the entry function"},
			&cli.StringFlag{Name: "arch", Required: true, Usage: "armv6m | armv7m | armv7em | rv32i"},
			&cli.StringFlag{Name: "solver", Value: "z3", Usage: "SMT backend to use"},
			&cli.IntFlag{Name: "max-paths", Value: 10000},
			&cli.IntFlag{Name: "max-steps", Value: 100000},
			&cli.DurationFlag{Name: "solver-timeout", Value: 0, Usage: "0 disables the timeout"},
			&cli.IntFlag{Name: "fanout", Value: 8, Usage: "max concrete values explored per symbolic address"},
			&cli.StringSliceFlag{Name: "bind", Usage: "reg=value initial concrete register binding, may repeat"},
			&cli.StringFlag{Name: "v", Value: "info", Usage: "info | debug | trace"},
			&cli.BoolFlag{Name: "json", Usage: "print the result as JSON"},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	log := newLogger(c.String("v"))

	image, err := elfimage.Load(c.String("elf"))
	if err != nil {
		return err
	}

	decoder, err := selectDecoder(c.String("arch"))
	if err != nil {
		return err
	}

	entryAddr, ok := image.Symbol(c.String("entry"))
	if !ok {
		return &symex.EntryNotFoundError{Symbol: c.String("entry")}
	}

	solver, err := selectSolver(c.String("solver"), c.Duration("solver-timeout"))
	if err != nil {
		return err
	}

	budget := symex.Budget{
		MaxSteps:       c.Int("max-steps"),
		MaxPaths:       c.Int("max-paths"),
		SymbolicFanout: c.Int("fanout"),
	}

	ex := symex.NewExecutor(image, decoder, solver, budget.SymbolicFanout)
	driver := symex.NewDriver(ex, budget, log.WithField("component", "driver"))

	mem := symex.NewMemory(decoder.ABI().Width, decoder.ABI().IsLittleEndian)
	mapELFSections(mem, image)

	state := symex.NewPathState(decoder.ABI(), mem, entryAddr)
	if err := applyBindings(state, decoder.ABI().Width, c.StringSlice("bind")); err != nil {
		return err
	}

	result, err := driver.Run(state)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return printJSON(result)
	}
	printResult(result)
	return nil
}

func selectDecoder(arch string) (symex.Decoder, error) {
	switch arch {
	case "armv6m":
		return armv6m.New(), nil
	case "armv7m", "armv7em":
		return armv7em.New(), nil
	case "rv32i":
		return rv32i.New(), nil
	default:
		return nil, fmt.Errorf("symex: unknown architecture %q", arch)
	}
}

func selectSolver(name string, timeout time.Duration) (symex.Solver, error) {
	switch name {
	case "z3":
		s := z3.NewSolver()
		if timeout > 0 {
			s.SetTimeout(timeout)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("symex: unknown solver %q", name)
	}
}

func mapELFSections(mem *symex.Memory, image symex.Image) {
	for i, s := range image.Sections() {
		mem.MapRegion(uint64(i+1), s.Addr, uint(s.Size), s.Data)
		if s.ReadOnly {
			mem.SetReadOnly(s.Addr)
		}
	}
}

func applyBindings(state *symex.PathState, width uint, bindings []string) error {
	for _, b := range bindings {
		parts := strings.SplitN(b, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("symex: malformed --bind %q, want reg=value", b)
		}
		value, err := strconv.ParseUint(strings.TrimPrefix(parts[1], "0x"), hexOrDec(parts[1]), 64)
		if err != nil {
			return fmt.Errorf("symex: malformed --bind value %q: %w", b, err)
		}
		state.Regs.Set(parts[0], symex.NewConstantExpr(value, width))
	}
	return nil
}

func hexOrDec(v string) int {
	if strings.HasPrefix(v, "0x") {
		return 16
	}
	return 10
}

func newLogger(level string) *logrus.Entry {
	logger := logrus.New()
	switch level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "trace":
		logger.SetLevel(logrus.TraceLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
	return logrus.NewEntry(logger)
}

func printJSON(result *symex.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func printResult(result *symex.Result) {
	if result.WorstCase != nil {
		fmt.Printf("WCET: %d cycles\n", result.WorstCase.Cycles)
		for _, w := range result.WorstCase.Witness {
			fmt.Printf("  witness[%d]: %x\n", w.ArrayID, w.Bytes)
		}
	} else {
		fmt.Println("WCET: no terminating path found")
	}
	fmt.Printf("paths explored: %d\n", result.PathCount)
	if len(result.Panics) > 0 {
		fmt.Printf("panics: %d\n", len(result.Panics))
		for _, p := range result.Panics {
			fmt.Printf("  cycles=%d witness=%v\n", p.Cycles, p.Witness)
		}
	}
	if len(result.Errors) > 0 {
		fmt.Printf("errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("  %v\n", e.Err)
		}
	}
	if result.Incomplete {
		fmt.Printf("incomplete: %v\n", result.IncompleteBy)
	}
}
