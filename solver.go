package symex

// Solver is the SMT gateway used by the executor and driver to decide path
// feasibility and to enumerate concrete values for symbolic quantities
// (branch conditions, jump targets, load/store addresses, and witness
// inputs). A single Solver instance is not assumed thread-safe; a parallel
// driver gives each worker its own instance.
type Solver interface {
	// Push opens a new assumption frame. Constraints asserted after Push
	// are discarded by the matching Pop.
	Push() error

	// Pop discards the assumption frame most recently opened by Push,
	// along with every constraint asserted inside it.
	Pop() error

	// CheckSat reports whether constraints (conjoined with everything
	// still asserted from enclosing frames) are satisfiable.
	CheckSat(constraints []Expr) (bool, error)

	// Model returns a satisfying assignment for arrays, given the most
	// recent successful CheckSat's constraints. Undefined if CheckSat has
	// not been called or returned false since the last Push/Pop.
	Model(constraints []Expr, arrays []*Array) ([][]byte, error)

	// Solutions enumerates up to limit distinct satisfying values of expr
	// under constraints, by repeatedly solving and excluding prior
	// solutions. Used to bound the fan-out of symbolic jump targets and
	// symbolic load/store addresses. Returns fewer than limit results if
	// the solver proves no further solutions exist.
	Solutions(constraints []Expr, expr Expr, limit int) ([]*ConstantExpr, error)
}
