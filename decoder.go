package symex

import "fmt"

// Decoder translates the instruction at pc into its GA effects. Decoders
// are pure functions of the image and the address: they never see live
// register or memory state, which is why operand references inside the
// returned block are RegisterOperand/MemoryOperand leaves rather than
// concrete values.
type Decoder interface {
	Decode(image Image, pc uint64) (*GABlock, error)
	ABI() *ABI
}

// DecodeErrorKind classifies why a Decoder could not produce a GABlock.
type DecodeErrorKind int

const (
	// DecodeErrorUnimplemented means the opcode is architecturally valid
	// but this decoder's instruction coverage does not model it (e.g. a
	// DSP or VFP extension instruction outside the modeled subset).
	DecodeErrorUnimplemented DecodeErrorKind = iota
	// DecodeErrorInvalidEncoding means the bit pattern is not a valid
	// instruction of this architecture at all.
	DecodeErrorInvalidEncoding
)

func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeErrorUnimplemented:
		return "unimplemented"
	case DecodeErrorInvalidEncoding:
		return "invalid-encoding"
	default:
		return "unknown"
	}
}

// DecodeError is returned by a Decoder when it cannot produce a GABlock
// for the instruction at PC.
type DecodeError struct {
	PC     uint64
	Opcode uint32
	Kind   DecodeErrorKind
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("symex: decode error at pc=%#08x opcode=%#08x: %s", e.PC, e.Opcode, e.Kind)
}

// NewUnimplementedError returns a DecodeError for an architecturally valid
// but unmodeled opcode.
func NewUnimplementedError(pc uint64, opcode uint32) *DecodeError {
	return &DecodeError{PC: pc, Opcode: opcode, Kind: DecodeErrorUnimplemented}
}

// NewInvalidEncodingError returns a DecodeError for a bit pattern that is
// not a valid instruction.
func NewInvalidEncodingError(pc uint64, opcode uint32) *DecodeError {
	return &DecodeError{PC: pc, Opcode: opcode, Kind: DecodeErrorInvalidEncoding}
}

// BudgetExceededError is returned by the driver when a path or the overall
// search exhausts one of its configured budgets before reaching a
// terminal state.
type BudgetExceededError struct {
	Kind string // "steps", "paths", "fanout"
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("symex: budget exceeded: %s", e.Kind)
}
