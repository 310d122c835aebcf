package symex

import "fmt"

// defaultIntrinsics returns the fixed set of runtime intrinsics every
// executor recognizes by ELF symbol name. A Call whose target resolves to
// one of these symbols' addresses is dispatched here instead of pushing a
// real return address into code that does not exist, the same way the
// teacher's frontend special-cases calls to runtime.gopanic and friends
// rather than modeling their bodies.
func defaultIntrinsics(abi *ABI) map[string]IntrinsicHandler {
	return map[string]IntrinsicHandler{
		"assume":        intrinsicAssume,
		"suppress_path": intrinsicSuppressPath,
		"symbolic":      intrinsicSymbolic,
		"is_symbolic":   intrinsicIsSymbolic,
		"vmul_f32":      intrinsicNoop,
	}
}

// intrinsicNoop models an operation this engine does not give bit-vector
// semantics to (single-precision floating point beyond the partial VFP
// load/store slice) and leaves the path unchanged. For VMUL.F32 the
// decoder then writes the destination from the "vmul_result"
// pseudo-register, which reads back as a fresh symbolic value the first
// time a path reads it; every later VMUL on the same path reads that same
// value.
func intrinsicNoop(ex *Executor, s *PathState, args []Expr) ([]*PathState, error) {
	return []*PathState{s}, nil
}

// intrinsicAssume narrows the path condition by args[0]. A path on which
// the assumption is already infeasible is dropped from the search
// entirely (zero successors) rather than reported as an error, since an
// infeasible assumption is a modeling boundary, not a bug in the target.
func intrinsicAssume(ex *Executor, s *PathState, args []Expr) ([]*PathState, error) {
	if len(args) == 0 {
		return nil, &BudgetExceededError{Kind: "assume: expected at least one argument"}
	}
	cond := args[0]
	if ExprWidth(cond) != WidthBool {
		cond = NewNotExpr(NewIsZeroExpr(cond)) // C-style: argument is a truth value, nonzero means true
	}
	if c, ok := cond.(*ConstantExpr); ok {
		if !c.IsTrue() {
			return nil, nil
		}
		return []*PathState{s}, nil
	}

	sat, err := ex.Solver.CheckSat(append(s.Constraints, cond))
	if err != nil {
		return nil, err
	}
	if !sat {
		return nil, nil
	}
	s.AddConstraint(cond)
	return []*PathState{s}, nil
}

// intrinsicSuppressPath marks s as excluded from the worst-case search
// while still keeping it around for reporting, mirroring code that is
// known to run off the timing-critical path (error-recovery branches,
// assertion failures compiled out of the release image).
func intrinsicSuppressPath(ex *Executor, s *PathState, args []Expr) ([]*PathState, error) {
	s.Status = TerminatedSuppressed
	return []*PathState{s}, nil
}

// intrinsicSymbolic widens the region at args[0] (ptr) to a fresh
// fully-symbolic array, discarding whatever concrete or partially
// constrained bytes it held, and tracks it as an input the driver's
// witness reconstruction must report a concrete value for. ptr must
// already be concrete: a target calls symbolic() on a fixed buffer it
// owns (a stack slot, a static input buffer), never through a pointer
// that is itself unresolved.
func intrinsicSymbolic(ex *Executor, s *PathState, args []Expr) ([]*PathState, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("symex: symbolic(ptr, size): expected 2 arguments, got %d", len(args))
	}
	ptr, ok := args[0].(*ConstantExpr)
	if !ok {
		return nil, fmt.Errorf("symex: symbolic(ptr, size): ptr must be concrete")
	}
	if _, ok := args[1].(*ConstantExpr); !ok {
		return nil, fmt.Errorf("symex: symbolic(ptr, size): size must be concrete")
	}
	array, err := s.Mem.MarkSymbolic(ex.allocArrayID(), ptr)
	if err != nil {
		return nil, err
	}
	s.TrackInput(array)
	return []*PathState{s}, nil
}

// intrinsicIsSymbolic reports, via the ABI's first argument/return
// register, whether the region at args[0] (ptr) currently holds any
// symbolic byte. This lets a target branch on "has this buffer been
// widened by symbolic() yet" the same way it would branch on any other
// runtime query, without the query itself ever forking a path: the
// answer is a property of the current memory state, not of an unresolved
// value.
func intrinsicIsSymbolic(ex *Executor, s *PathState, args []Expr) ([]*PathState, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("symex: is_symbolic(ptr): expected 1 argument, got %d", len(args))
	}
	ptr, ok := args[0].(*ConstantExpr)
	if !ok {
		return nil, fmt.Errorf("symex: is_symbolic(ptr): ptr must be concrete")
	}
	symbolic, err := s.Mem.IsSymbolic(ptr)
	if err != nil {
		return nil, err
	}
	abi := ex.Decoder.ABI()
	if len(abi.ArgRegs) > 0 {
		result := uint64(0)
		if symbolic {
			result = 1
		}
		s.Regs.Set(abi.ArgRegs[0], NewConstantExpr(result, abi.Width))
	}
	return []*PathState{s}, nil
}
