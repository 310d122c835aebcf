package symex

import (
	"bytes"
	"fmt"
)

// Status is the terminal classification of a path.
type Status int

const (
	// Running paths still have unexplored successors.
	Running Status = iota
	// TerminatedNormal paths branched to ReturnSentinel, the concrete
	// program counter NewPathState seeds the entry's link register with.
	TerminatedNormal
	// TerminatedPanic paths reached an architecture's panic entry symbol.
	TerminatedPanic
	// TerminatedSuppressed paths called suppress_path() and are excluded
	// from the worst-case search but still reported.
	TerminatedSuppressed
	// Errored paths hit a DecodeError, MemoryFaultError, or solver error.
	Errored
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case TerminatedNormal:
		return "terminated"
	case TerminatedPanic:
		return "panic"
	case TerminatedSuppressed:
		return "suppressed"
	case Errored:
		return "error"
	default:
		return "unknown"
	}
}

// PathState is one point in the symbolic exploration tree: a full snapshot
// of registers, memory, accumulated path condition, and elapsed cycles.
// It generalizes the teacher's ExecutionState from "SSA value bindings
// plus a Go-level heap" to "named registers plus ELF-backed and stack
// memory regions."
type PathState struct {
	Regs        *RegisterFile
	Mem         *Memory
	Constraints []Expr
	Cycles      uint64
	Status      Status
	Err         error

	// Inputs lists every array the driver should ask the solver for
	// concrete values of when reconstructing a witness for this path: the
	// memory regions the symbolic() intrinsic marked. Registers that read
	// back as fresh symbolic values, the entry's parameter registers among
	// them, are not listed, so a witness carries no value for them.
	Inputs []*Array
}

// NewPathState returns a fresh path with pc as the current program
// counter and mem as its initial (typically ELF-section-backed) address
// space.
func NewPathState(abi *ABI, mem *Memory, pc uint64) *PathState {
	regs := NewRegisterFile(abi)
	regs.SetPC(pc)
	if abi.LR != "" {
		regs.Set(abi.LR, NewConstantExpr(ReturnSentinel, abi.Width))
	}
	if abi.SP != "" {
		regs.Set(abi.SP, NewConstantExpr(DefaultStackTop, abi.Width))
	}
	return &PathState{
		Regs:   regs,
		Mem:    mem,
		Status: Running,
	}
}

// Fork returns a new path identical to s but with constraint appended to
// its path condition. The register file and memory are cloned, so a later
// RegisterFile.Set (which mutates in place) or Memory.Write on one path
// never reaches the other.
func (s *PathState) Fork(constraint Expr) *PathState {
	other := &PathState{
		Regs:        s.Regs.Clone(),
		Mem:         s.Mem.Clone(),
		Constraints: append(append([]Expr(nil), s.Constraints...), constraint),
		Cycles:      s.Cycles,
		Status:      s.Status,
		Inputs:      append([]*Array(nil), s.Inputs...),
	}
	return other
}

// AddConstraint appends constraint to the path condition in place. Used
// when a path has exactly one successor and no fork is needed.
func (s *PathState) AddConstraint(constraint Expr) {
	s.Constraints = append(s.Constraints, constraint)
}

// TrackInput records array as a value the driver must recover from the
// solver when producing this path's witness.
func (s *PathState) TrackInput(array *Array) {
	for _, a := range s.Inputs {
		if a.ID == array.ID {
			return
		}
	}
	s.Inputs = append(s.Inputs, array)
}

// Dump returns a human-readable snapshot of the path, in the teacher's
// section-per-heading style.
func (s *PathState) Dump() string {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "PATH STATE")
	fmt.Fprintln(&buf, "==========")
	fmt.Fprintf(&buf, "status=%s cycles=%d\n\n", s.Status, s.Cycles)
	fmt.Fprintln(&buf, "== REGISTERS")
	fmt.Fprint(&buf, s.Regs.String())
	fmt.Fprintln(&buf, "")
	fmt.Fprintln(&buf, "== MEMORY")
	fmt.Fprint(&buf, s.Mem.Dump())
	fmt.Fprintln(&buf, "")
	fmt.Fprintln(&buf, "== PATH CONDITION")
	for i, expr := range s.Constraints {
		fmt.Fprintf(&buf, "%d. %s\n", i, expr)
	}
	return buf.String()
}

// resolveOperand substitutes every RegisterOperand and MemoryOperand leaf
// in expr with its current value, reading registers directly and memory
// through the path's mapped regions. A MemoryOperand whose address is
// still symbolic after substitution is left in place: the executor
// resolves it via Solver.Solutions before the surrounding block's other
// effects are applied, since deciding which concrete addresses are
// feasible requires the path condition, which this pure substitution does
// not consult.
func resolveOperand(s *PathState, expr Expr) (Expr, error) {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr, nil
	case *RegisterOperand:
		return s.Regs.Get(expr.Name), nil
	case *MemoryOperand:
		addr, err := resolveOperand(s, expr.Addr)
		if err != nil {
			return nil, err
		}
		if c, ok := addr.(*ConstantExpr); ok {
			return s.Mem.Read(c, expr.Width)
		}
		return &MemoryOperand{Addr: addr, Width: expr.Width}, nil
	case *BinaryExpr:
		lhs, err := resolveOperand(s, expr.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := resolveOperand(s, expr.RHS)
		if err != nil {
			return nil, err
		}
		return NewBinaryExpr(expr.Op, lhs, rhs), nil
	case *CastExpr:
		src, err := resolveOperand(s, expr.Src)
		if err != nil {
			return nil, err
		}
		return NewCastExpr(src, expr.Width, expr.Signed), nil
	case *ConcatExpr:
		msb, err := resolveOperand(s, expr.MSB)
		if err != nil {
			return nil, err
		}
		lsb, err := resolveOperand(s, expr.LSB)
		if err != nil {
			return nil, err
		}
		return NewConcatExpr(msb, lsb), nil
	case *ExtractExpr:
		src, err := resolveOperand(s, expr.Expr)
		if err != nil {
			return nil, err
		}
		return NewExtractExpr(src, expr.Offset, expr.Width), nil
	case *NotExpr:
		src, err := resolveOperand(s, expr.Expr)
		if err != nil {
			return nil, err
		}
		return NewNotExpr(src), nil
	case *NotOptimizedExpr:
		src, err := resolveOperand(s, expr.Src)
		if err != nil {
			return nil, err
		}
		return NewNotOptimizedExpr(src), nil
	case *SelectExpr:
		index, err := resolveOperand(s, expr.Index)
		if err != nil {
			return nil, err
		}
		return NewSelectExpr(expr.Array, index), nil
	default:
		return nil, fmt.Errorf("symex: cannot resolve operand of type %T", expr)
	}
}
