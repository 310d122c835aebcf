package symex

import (
	"fmt"
)

// IntrinsicHandler implements a runtime intrinsic's effect on a path and
// returns its successors: none when the path is dropped (assume() with an
// infeasible condition), otherwise the path itself. None of the built-in
// handlers forks.
type IntrinsicHandler func(ex *Executor, s *PathState, args []Expr) ([]*PathState, error)

// Executor interprets one decoded GABlock at a time against a PathState,
// producing every feasible successor state. It generalizes the teacher's
// per-SSA-instruction dispatch (executeAllocInstr, executeCallInstr, ...)
// to per-GA-op dispatch over machine-code effects instead of Go-SSA ones.
type Executor struct {
	Image      Image
	Decoder    Decoder
	Solver     Solver
	Intrinsics map[string]IntrinsicHandler
	Fanout     int // max distinct concrete values explored for one symbolic address/target

	nextArrayID uint64
}

// NewExecutor returns an executor for a single architecture, wired to the
// built-in intrinsic table.
func NewExecutor(image Image, decoder Decoder, solver Solver, fanout int) *Executor {
	ex := &Executor{
		Image:   image,
		Decoder: decoder,
		Solver:  solver,
		Fanout:  fanout,
	}
	ex.Intrinsics = defaultIntrinsics(decoder.ABI())
	return ex
}

func (ex *Executor) allocArrayID() uint64 {
	ex.nextArrayID++
	return ex.nextArrayID
}

// Step decodes and interprets the instruction at s's program counter,
// returning every feasible successor. A decode failure or a faulting write
// does not abort the search: it marks s Errored and returns it as its own
// sole (terminal) successor, so the driver can report it alongside normal
// termination. A faulting read or a solver failure is returned as an error
// instead, and the driver marks the path Errored with it.
func (ex *Executor) Step(s *PathState) ([]*PathState, error) {
	pc := s.Regs.PC()

	if pc == ReturnSentinel {
		s.Status = TerminatedNormal
		return []*PathState{s}, nil
	}

	// A call to a runtime intrinsic's symbol (assume, suppress_path, ...)
	// lands here with pc at the symbol's address regardless of whether the
	// decoder modeled the call site as a Call or a plain Branch/JAL — RV32I
	// never emits Call, it just writes the link register and branches, so
	// intrinsic interception has to happen by address here rather than by
	// op type in applyCall. There is no instruction to decode at an
	// intrinsic's address, so this preempts the fetch entirely and resumes
	// at the address the call site left in the ABI's link register.
	if name, ok := ex.intrinsicAt(pc); ok {
		return ex.callIntrinsic(s, name)
	}

	block, err := ex.Decoder.Decode(ex.Image, pc)
	if err != nil {
		s.Status = Errored
		s.Err = err
		return []*PathState{s}, nil
	}

	s.Cycles += uint64(block.Cycles)
	s.Regs.SetPC(pc + uint64(block.Size))

	if isPanicEntry(ex.Decoder.ABI(), ex.Image, pc) {
		s.Status = TerminatedPanic
		return []*PathState{s}, nil
	}

	successors := []*PathState{s}
	for _, op := range block.Ops {
		var next []*PathState
		for _, st := range successors {
			if st.Status != Running {
				next = append(next, st)
				continue
			}
			out, err := ex.applyOp(st, op)
			if err != nil {
				return nil, err
			}
			next = append(next, out...)
		}
		successors = next
	}
	return successors, nil
}

func (ex *Executor) applyOp(s *PathState, op Op) ([]*PathState, error) {
	switch op := op.(type) {
	case *RegWrite:
		v, err := resolveOperand(s, op.Value)
		if err != nil {
			return nil, err
		}
		s.Regs.Set(op.Reg, v)
		return []*PathState{s}, nil

	case *FlagWrite:
		v, err := resolveOperand(s, op.Value)
		if err != nil {
			return nil, err
		}
		s.Regs.Set(op.Flag, v)
		return []*PathState{s}, nil

	case *MemWrite:
		return ex.applyMemWrite(s, op)

	case *Branch:
		return ex.applyBranch(s, op)

	case *Call:
		return ex.applyCall(s, op)

	case *Intrinsic:
		handler, ok := ex.Intrinsics[op.Name]
		if !ok {
			s.Status = Errored
			s.Err = fmt.Errorf("symex: unregistered intrinsic: %s", op.Name)
			return []*PathState{s}, nil
		}
		args := make([]Expr, len(op.Args))
		for i, a := range op.Args {
			v, err := resolveOperand(s, a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return handler(ex, s, args)

	case *Halt:
		s.Status = Errored
		s.Err = fmt.Errorf("symex: halt: %s", op.Reason)
		return []*PathState{s}, nil

	default:
		return nil, fmt.Errorf("symex: unhandled op type %T", op)
	}
}

func (ex *Executor) applyMemWrite(s *PathState, op *MemWrite) ([]*PathState, error) {
	addr, err := resolveOperand(s, op.Addr)
	if err != nil {
		return nil, err
	}
	value, err := resolveOperand(s, op.Value)
	if err != nil {
		return nil, err
	}

	candidates, err := ex.resolveAddress(s, addr)
	if err != nil {
		return nil, err
	}

	out := make([]*PathState, 0, len(candidates))
	for _, c := range candidates {
		mem, err := c.state.Mem.Write(c.addr, value)
		if err != nil {
			c.state.Status = Errored
			c.state.Err = err
			out = append(out, c.state)
			continue
		}
		c.state.Mem = mem
		out = append(out, c.state)
	}
	return out, nil
}

func (ex *Executor) applyBranch(s *PathState, op *Branch) ([]*PathState, error) {
	if op.Cond == nil {
		target, err := resolveOperand(s, op.Target)
		if err != nil {
			return nil, err
		}
		candidates, err := ex.resolveAddress(s, target)
		if err != nil {
			return nil, err
		}
		out := make([]*PathState, 0, len(candidates))
		for _, c := range candidates {
			c.state.Regs.SetPC(c.addr.Value)
			c.state.Cycles += uint64(op.TakenCycles)
			out = append(out, c.state)
		}
		return out, nil
	}

	cond, err := resolveOperand(s, op.Cond)
	if err != nil {
		return nil, err
	}
	target, err := resolveOperand(s, op.Target)
	if err != nil {
		return nil, err
	}

	if c, ok := cond.(*ConstantExpr); ok {
		if c.IsTrue() {
			return ex.takeBranch(s, target, op.TakenCycles)
		}
		s.Cycles += uint64(op.NotTakenCycles)
		return []*PathState{s}, nil
	}

	takenFeasible, err := ex.Solver.CheckSat(append(s.Constraints, cond))
	if err != nil {
		return nil, err
	}
	notTakenFeasible, err := ex.Solver.CheckSat(append(s.Constraints, NewNotExpr(cond)))
	if err != nil {
		return nil, err
	}

	var out []*PathState
	if takenFeasible {
		taken := s
		if notTakenFeasible {
			taken = s.Fork(cond)
		} else {
			s.AddConstraint(cond)
		}
		successors, err := ex.takeBranch(taken, target, op.TakenCycles)
		if err != nil {
			return nil, err
		}
		out = append(out, successors...)
	}
	if notTakenFeasible {
		notTaken := s
		if takenFeasible {
			notTaken = s.Fork(NewNotExpr(cond))
		} else {
			s.AddConstraint(NewNotExpr(cond))
		}
		notTaken.Cycles += uint64(op.NotTakenCycles)
		out = append(out, notTaken)
	}
	return out, nil
}

func (ex *Executor) takeBranch(s *PathState, target Expr, cycles uint) ([]*PathState, error) {
	candidates, err := ex.resolveAddress(s, target)
	if err != nil {
		return nil, err
	}
	out := make([]*PathState, 0, len(candidates))
	for _, c := range candidates {
		c.state.Regs.SetPC(c.addr.Value)
		c.state.Cycles += uint64(cycles)
		out = append(out, c.state)
	}
	return out, nil
}

func (ex *Executor) applyCall(s *PathState, op *Call) ([]*PathState, error) {
	target, err := resolveOperand(s, op.Target)
	if err != nil {
		return nil, err
	}
	candidates, err := ex.resolveAddress(s, target)
	if err != nil {
		return nil, err
	}
	out := make([]*PathState, 0, len(candidates))
	for _, c := range candidates {
		c.state.Regs.SetPC(c.addr.Value)
		out = append(out, c.state)
	}
	return out, nil
}

// callIntrinsic dispatches name's handler and, for every successor that is
// still running, resumes at the address the call site left in the ABI's
// link register — mirrors a real call/return without ever fetching code at
// the intrinsic's address.
func (ex *Executor) callIntrinsic(s *PathState, name string) ([]*PathState, error) {
	abi := ex.Decoder.ABI()
	results, err := ex.Intrinsics[name](ex, s, ex.callArgs(s))
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.Status != Running {
			continue
		}
		ret, ok := r.Regs.Get(abi.LR).(*ConstantExpr)
		if !ok {
			r.Status = Errored
			r.Err = fmt.Errorf("symex: intrinsic %s: link register is not concrete on return", name)
			continue
		}
		r.Regs.SetPC(ret.Value)
	}
	return results, nil
}

// intrinsicAt reports the registered intrinsic symbol name bound to addr,
// if any.
func (ex *Executor) intrinsicAt(addr uint64) (string, bool) {
	for name := range ex.Intrinsics {
		if symAddr, ok := ex.Image.Symbol(name); ok && symAddr == addr {
			return name, true
		}
	}
	return "", false
}

// callArgs reads the ABI's argument registers for an intrinsic call. All
// built-in intrinsics take at most two arguments.
func (ex *Executor) callArgs(s *PathState) []Expr {
	abi := ex.Decoder.ABI()
	args := make([]Expr, 0, len(abi.ArgRegs))
	for _, reg := range abi.ArgRegs {
		args = append(args, s.Regs.Get(reg))
	}
	return args
}

// addrCandidate pairs a (possibly forked) state with the concrete address
// resolveAddress decided it should use.
type addrCandidate struct {
	state *PathState
	addr  *ConstantExpr
}

// resolveAddress returns one addrCandidate per feasible concrete value of
// addr, forking s for every value beyond the first. A concrete addr short-
// circuits straight through. A symbolic addr is bounded by ex.Fanout via
// Solver.Solutions, matching spec's "bounded symbolic fan-out" budget for
// jump targets and load/store addresses.
func (ex *Executor) resolveAddress(s *PathState, addr Expr) ([]addrCandidate, error) {
	if c, ok := addr.(*ConstantExpr); ok {
		return []addrCandidate{{state: s, addr: c}}, nil
	}

	values, err := ex.Solver.Solutions(s.Constraints, addr, ex.Fanout)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		s.Status = Errored
		s.Err = fmt.Errorf("symex: symbolic address has no feasible value: %s", addr)
		return []addrCandidate{{state: s, addr: NewConstantExpr(0, ExprWidth(addr))}}, nil
	}

	// Fork every value beyond the first before narrowing s itself, so a fork
	// never inherits the first value's equality along with its own.
	out := make([]addrCandidate, len(values))
	for i, v := range values[1:] {
		out[i+1] = addrCandidate{state: s.Fork(NewBinaryExpr(EQ, addr, v)), addr: v}
	}
	s.AddConstraint(NewBinaryExpr(EQ, addr, values[0]))
	out[0] = addrCandidate{state: s, addr: values[0]}
	return out, nil
}

// isPanicEntry reports whether pc is the address of one of abi's panic
// symbols in image.
func isPanicEntry(abi *ABI, image Image, pc uint64) bool {
	for _, name := range abi.PanicSymbols {
		if addr, ok := image.Symbol(name); ok && addr == pc {
			return true
		}
	}
	return false
}
