// Package arch collects bit-field helpers and GA-block construction shared
// by the per-instruction-set decoder packages (rv32i, armv6m, armv7em).
// Nothing here is architecture-specific; it exists so each decoder's
// opcode-table code reads close to the bit diagrams in its reference
// manual instead of hand-rolled masking at every call site.
package arch

import symex "github.com/symex-project/symex"

// Bits extracts the inclusive [hi:lo] bit field from v.
func Bits(v uint32, hi, lo uint) uint32 {
	width := hi - lo + 1
	return (v >> lo) & ((1 << width) - 1)
}

// Bit extracts a single bit.
func Bit(v uint32, n uint) bool {
	return (v>>n)&1 != 0
}

// SignExtend sign-extends the low `width` bits of v to a full int64.
func SignExtend(v uint32, width uint) int64 {
	shift := 32 - width
	return int64(int32(v<<shift)) >> shift
}

// Reg builds a symex.RegisterOperand of the given width for name.
func Reg(name string, width uint) symex.Expr {
	return symex.NewRegisterOperand(name, width)
}

// Imm builds a concrete constant of the given width, truncating value to it.
func Imm(value int64, width uint) symex.Expr {
	return symex.NewConstantExpr(uint64(value)&((1<<width)-1), width)
}

// Mem builds a symex.MemoryOperand reading width bits from addr.
func Mem(addr symex.Expr, width uint) symex.Expr {
	return symex.NewMemoryOperand(addr, width)
}

// Block is a small ordered-append builder for a GABlock's Ops, used by
// every decoder so instruction-lowering code reads as a flat list of
// effects instead of manual slice append chains.
type Block struct {
	PC   uint64
	Size uint
	Ops  []symex.Op
}

func NewBlock(pc uint64, size uint) *Block {
	return &Block{PC: pc, Size: size}
}

func (b *Block) RegWrite(reg string, value symex.Expr) *Block {
	b.Ops = append(b.Ops, &symex.RegWrite{Reg: reg, Value: value})
	return b
}

func (b *Block) FlagWrite(flag string, value symex.Expr) *Block {
	b.Ops = append(b.Ops, &symex.FlagWrite{Flag: flag, Value: value})
	return b
}

func (b *Block) MemWrite(addr, value symex.Expr, width uint) *Block {
	b.Ops = append(b.Ops, &symex.MemWrite{Addr: addr, Value: value, Width: width})
	return b
}

func (b *Block) Branch(cond, target symex.Expr, takenCycles, notTakenCycles uint) *Block {
	b.Ops = append(b.Ops, &symex.Branch{Cond: cond, Target: target, TakenCycles: takenCycles, NotTakenCycles: notTakenCycles})
	return b
}

func (b *Block) Call(target symex.Expr) *Block {
	b.Ops = append(b.Ops, &symex.Call{Target: target})
	return b
}

func (b *Block) Intrinsic(name string, args ...symex.Expr) *Block {
	b.Ops = append(b.Ops, &symex.Intrinsic{Name: name, Args: args})
	return b
}

func (b *Block) Halt(reason string) *Block {
	b.Ops = append(b.Ops, &symex.Halt{Reason: reason})
	return b
}

// Build returns the finished GABlock, charging cycles for the whole block.
func (b *Block) Build(cycles uint) *symex.GABlock {
	return &symex.GABlock{PC: b.PC, Size: b.Size, Cycles: cycles, Ops: b.Ops}
}
