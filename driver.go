package symex

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Budget bounds an analysis so it always terminates on binaries whose
// control-flow graph the search cannot fully enumerate in reasonable time.
type Budget struct {
	MaxSteps       int // instructions stepped across the whole search
	MaxPaths       int // total paths explored across the whole search
	SymbolicFanout int // distinct concrete values tried per symbolic address/target
}

// DefaultBudget mirrors the driver's command-line defaults.
func DefaultBudget() Budget {
	return Budget{MaxSteps: 100000, MaxPaths: 10000, SymbolicFanout: 8}
}

// Witness reconstructs one concrete input assignment that drives execution
// down a reported path, keyed by the symbolic array it binds.
type Witness struct {
	ArrayID uint64
	Name    string
	Bytes   []byte
}

// PathSummary reports the outcome of exploring a single terminal path.
type PathSummary struct {
	Cycles   uint64
	Status   Status
	Err      error
	Witness  []Witness
	StepPath []uint64 // program counters visited, in order, for diagnostics
}

// Result is the outcome of a full WCET search over an entry function.
type Result struct {
	// WorstCase is the highest-cycle path among those that terminated
	// normally. A path that panicked never competes for this even if it
	// ran longer: see Panics for those.
	WorstCase *PathSummary

	// Paths holds every terminal path's summary, in the order paths
	// finished, regardless of status: normal, suppressed, panicked, or
	// errored. Panics and Errors are a status-filtered convenience view
	// over the same summaries, not a separate record of them.
	Paths        []*PathSummary
	Panics       []*PathSummary
	Errors       []*PathSummary
	PathCount    int
	StepCount    int
	Incomplete   bool // a budget was exhausted before the search finished
	IncompleteBy *BudgetExceededError
}

// searchFrontier is the driver's DFS worklist, structurally identical to
// the teacher's DFSSearcher but holding PathStates instead of ExecutionStates
// since the domain does not need the teacher's pluggable-strategy interface.
type searchFrontier struct {
	states []*PathState
}

func (f *searchFrontier) push(s *PathState) { f.states = append(f.states, s) }

func (f *searchFrontier) pop() *PathState {
	if len(f.states) == 0 {
		return nil
	}
	s := f.states[len(f.states)-1]
	f.states = f.states[:len(f.states)-1]
	return s
}

// Driver drives an Executor across every feasible path from an entry point
// and reports the path with the largest accumulated cycle count.
type Driver struct {
	Executor *Executor
	Budget   Budget
	Log      *logrus.Entry
}

// NewDriver returns a driver for ex using budget, logging through log (or a
// silent default entry if log is nil).
func NewDriver(ex *Executor, budget Budget, log *logrus.Entry) *Driver {
	if log == nil {
		logger := logrus.New()
		logger.SetLevel(logrus.WarnLevel)
		log = logger.WithField("component", "driver")
	}
	return &Driver{Executor: ex, Budget: budget, Log: log}
}

// Run explores every path from initial to completion or budget exhaustion,
// single-threaded, depth-first.
func (d *Driver) Run(initial *PathState) (*Result, error) {
	frontier := &searchFrontier{}
	frontier.push(initial)

	result := &Result{}
	steps := 0

	for {
		state := frontier.pop()
		if state == nil {
			break
		}
		if result.PathCount >= d.Budget.MaxPaths {
			result.Incomplete = true
			result.IncompleteBy = &BudgetExceededError{Kind: "paths"}
			break
		}

		localSteps := 0
		for state.Status == Running {
			if steps >= d.Budget.MaxSteps {
				state.Status = Errored
				state.Err = &BudgetExceededError{Kind: "steps"}
				result.Incomplete = true
				result.IncompleteBy = &BudgetExceededError{Kind: "steps"}
				break
			}
			successors, err := d.Executor.Step(state)
			if err != nil {
				state.Status = Errored
				state.Err = fmt.Errorf("symex: step at pc=%#08x: %w", state.Regs.PC(), err)
				break
			}
			steps++
			localSteps++

			if len(successors) == 0 {
				state = nil
				break
			}
			state = successors[0]
			for _, s := range successors[1:] {
				frontier.push(s)
			}
		}
		if state == nil {
			continue
		}

		result.PathCount++
		result.StepCount += localSteps
		summary, err := d.summarize(state)
		if err != nil {
			return nil, err
		}
		d.record(result, summary)
	}

	if result.WorstCase == nil && !result.Incomplete {
		return nil, fmt.Errorf("symex: no terminating path found")
	}
	return result, nil
}

// RunParallel runs the search on workers that each get their own Solver
// from newSolver, since a single Z3 solver object is not safe for
// concurrent use. Workers are seeded from the initial state alone, so
// there is a single root and the whole search runs on one worker; with
// n <= 1 it is Run.
func (d *Driver) RunParallel(initial *PathState, n int, newSolver func() (Solver, error)) (*Result, error) {
	if n <= 1 {
		return d.Run(initial)
	}

	var mu sync.Mutex
	merged := &Result{}
	var wg sync.WaitGroup
	errCh := make(chan error, n)

	seed := &searchFrontier{}
	seed.push(initial)
	roots := make([]*PathState, 0, n)
	for len(roots) < n {
		s := seed.pop()
		if s == nil {
			break
		}
		roots = append(roots, s)
	}

	for _, root := range roots {
		root := root
		wg.Add(1)
		go func() {
			defer wg.Done()
			solver, err := newSolver()
			if err != nil {
				errCh <- err
				return
			}
			ex := &Executor{
				Image:      d.Executor.Image,
				Decoder:    d.Executor.Decoder,
				Solver:     solver,
				Intrinsics: d.Executor.Intrinsics,
				Fanout:     d.Executor.Fanout,
			}
			sub := &Driver{Executor: ex, Budget: d.Budget, Log: d.Log}
			r, err := sub.Run(root)
			if err != nil {
				errCh <- err
				return
			}
			mu.Lock()
			d.merge(merged, r)
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return nil, err
		}
	}
	return merged, nil
}

func (d *Driver) merge(into, from *Result) {
	into.PathCount += from.PathCount
	into.StepCount += from.StepCount
	into.Paths = append(into.Paths, from.Paths...)
	into.Panics = append(into.Panics, from.Panics...)
	into.Errors = append(into.Errors, from.Errors...)
	if from.Incomplete {
		into.Incomplete = true
		into.IncompleteBy = from.IncompleteBy
	}
	if from.WorstCase != nil && (into.WorstCase == nil || from.WorstCase.Cycles > into.WorstCase.Cycles) {
		into.WorstCase = from.WorstCase
	}
}

func (d *Driver) record(result *Result, summary *PathSummary) {
	result.Paths = append(result.Paths, summary)
	switch summary.Status {
	case TerminatedPanic:
		result.Panics = append(result.Panics, summary)
	case Errored:
		result.Errors = append(result.Errors, summary)
	case TerminatedSuppressed:
		// excluded from worst-case tracking but not reported as an error
	}
	if summary.Status == TerminatedNormal {
		if result.WorstCase == nil || summary.Cycles > result.WorstCase.Cycles {
			result.WorstCase = summary
		}
	}
	d.Log.WithFields(logrus.Fields{
		"status": summary.Status,
		"cycles": summary.Cycles,
	}).Debug("path terminated")
}

// summarize builds a PathSummary for a terminal state, recovering concrete
// witness values for every tracked input array via the solver.
func (d *Driver) summarize(state *PathState) (*PathSummary, error) {
	summary := &PathSummary{Cycles: state.Cycles, Status: state.Status, Err: state.Err}

	if len(state.Inputs) == 0 {
		return summary, nil
	}
	sat, err := d.Executor.Solver.CheckSat(state.Constraints)
	if err != nil {
		return nil, fmt.Errorf("symex: witness reconstruction: %w", err)
	}
	if !sat {
		return summary, nil
	}
	arrays := append([]*Array(nil), state.Inputs...)
	sort.Slice(arrays, func(i, j int) bool { return arrays[i].ID < arrays[j].ID })

	values, err := d.Executor.Solver.Model(state.Constraints, arrays)
	if err != nil {
		return nil, fmt.Errorf("symex: witness reconstruction: %w", err)
	}
	for i, array := range arrays {
		if i >= len(values) {
			break
		}
		summary.Witness = append(summary.Witness, Witness{ArrayID: array.ID, Bytes: values[i]})
	}
	return summary, nil
}
