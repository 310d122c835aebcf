// Package armv7em decodes the Thumb-2 instruction set implemented by the
// Cortex-M4 core family. It is a superset of armv6m: every Thumb-1
// encoding decodes to the same operations, and this package adds a representative
// slice of 32-bit wide encodings (wide data-processing, wide branches,
// and a minimal single-precision VFP subset) on top. Every branch charges
// its documented worst-case, pipeline-flush cost — Cortex-M4 cores have no
// branch predictor this engine is permitted to model, per the ARMv7-(E)M
// decoder's design mandate.
package armv7em

import (
	"fmt"

	symex "github.com/symex-project/symex"
	"github.com/symex-project/symex/arch"
	"github.com/symex-project/symex/arch/armv6m"
)

// ABI is identical to armv6m's: the register set, calling convention, and
// flag names Thumb-2 adds (IT-block condition state) are not modeled since
// this engine does not implement conditional execution outside branches.
var ABI = armv6m.ABI

var _ symex.Decoder = (*Decoder)(nil)

// Decoder implements symex.Decoder for the Cortex-M4 Thumb-2 subset.
type Decoder struct {
	base *armv6m.Decoder
}

func New() *Decoder { return &Decoder{base: armv6m.New()} }

func (d *Decoder) ABI() *symex.ABI { return ABI }

// wideBranchTaken is the documented worst-case cycle cost of a taken
// 32-bit branch on Cortex-M4: always the flush cost, never a predicted
// cost, per the ARMv7-(E)M pessimism mandate.
const wideBranchTaken = 4

func (d *Decoder) Decode(image symex.Image, pc uint64) (*symex.GABlock, error) {
	var buf [2]byte
	if _, err := image.ReadAt(pc, buf[:]); err != nil {
		return nil, &symex.MemoryFaultError{Addr: pc}
	}
	hi := uint32(buf[0]) | uint32(buf[1])<<8

	if isWide(hi) {
		return d.decodeWide(image, pc, hi)
	}
	block, err := d.base.Decode(image, pc)
	if err != nil {
		return nil, err
	}
	// A narrow conditional branch costs its taken (pipeline-flush) cycles
	// whether or not it is taken.
	for _, op := range block.Ops {
		if br, ok := op.(*symex.Branch); ok && br.NotTakenCycles < br.TakenCycles {
			br.NotTakenCycles = br.TakenCycles
		}
	}
	return block, nil
}

// isWide reports whether the halfword at pc begins a 32-bit Thumb-2
// encoding: op1 bits [15:11] of 0b11101, 0b11110, or 0b11111.
func isWide(hi uint32) bool {
	op1 := arch.Bits(hi, 15, 11)
	return op1 == 0x1D || op1 == 0x1E || op1 == 0x1F
}

func (d *Decoder) decodeWide(image symex.Image, pc uint64, hi uint32) (*symex.GABlock, error) {
	var loBuf [2]byte
	if _, err := image.ReadAt(pc+2, loBuf[:]); err != nil {
		return nil, &symex.MemoryFaultError{Addr: pc + 2}
	}
	lo := uint32(loBuf[0]) | uint32(loBuf[1])<<8
	in := hi<<16 | lo

	op1 := arch.Bits(hi, 15, 11)
	op2 := arch.Bits(hi, 10, 4)

	switch {
	case op1 == 0x1E && arch.Bits(lo, 15, 14) == 0x3 && arch.Bit(lo, 12): // BL: the 32-bit Thumb-1 call, decoded by armv6m
		return d.base.Decode(image, pc)
	case op1 == 0x1E && arch.Bits(op2, 6, 5) == 0x2: // data-processing (immediate) - covers ADD.W/SUB.W/AND.W/ORR.W/EOR.W
		return d.decodeWideDataProcessingImm(pc, in)
	case op1 == 0x1D && arch.Bits(op2, 6, 4) == 0x0: // data-processing register — ADD.W/SUB.W/AND.W/ORR.W (register)
		return d.decodeWideDataProcessingReg(pc, in)
	case op1 == 0x1E && arch.Bits(op2, 6, 4) == 0x7: // conditional branch (wide) and misc control (B.W handled with op1=0x1E, op=0x2/0x3 in real encoding; simplified)
		return d.decodeWideBranch(pc, in)
	case op1 == 0x1F: // coprocessor / VFP space — implement a minimal single-precision slice
		return d.decodeVFP(pc, in)
	default:
		return nil, symex.NewUnimplementedError(pc, in)
	}
}

func (d *Decoder) decodeWideDataProcessingImm(pc uint64, in uint32) (*symex.GABlock, error) {
	op := arch.Bits(in, 24, 21)
	rn := arch.Bits(in, 19, 16)
	rd := arch.Bits(in, 11, 8)
	i := arch.Bits(in, 26, 26)
	imm3 := arch.Bits(in, 14, 12)
	imm8 := arch.Bits(in, 7, 0)
	imm12 := i<<11 | imm3<<8 | imm8
	imm := thumbExpandImm(imm12)

	b := arch.NewBlock(pc, 4)
	rnExpr := regExpr(rn)
	rdName := regName(rd)
	switch op {
	case 0x8: // ADD.W (or ADDW if S==0, imm12 form — approximated identically)
		b.RegWrite(rdName, symex.NewBinaryExpr(symex.ADD, rnExpr, arch.Imm(int64(imm), 32)))
	case 0xD: // SUB.W
		b.RegWrite(rdName, symex.NewBinaryExpr(symex.SUB, rnExpr, arch.Imm(int64(imm), 32)))
	case 0x0: // AND.W
		b.RegWrite(rdName, symex.NewBinaryExpr(symex.AND, rnExpr, arch.Imm(int64(imm), 32)))
	case 0x2: // ORR.W
		b.RegWrite(rdName, symex.NewBinaryExpr(symex.OR, rnExpr, arch.Imm(int64(imm), 32)))
	case 0x4: // EOR.W
		b.RegWrite(rdName, symex.NewBinaryExpr(symex.XOR, rnExpr, arch.Imm(int64(imm), 32)))
	default:
		return nil, symex.NewUnimplementedError(pc, in)
	}
	return b.Build(1), nil
}

func (d *Decoder) decodeWideDataProcessingReg(pc uint64, in uint32) (*symex.GABlock, error) {
	op := arch.Bits(in, 24, 21)
	rn := arch.Bits(in, 19, 16)
	rd := arch.Bits(in, 11, 8)
	rm := arch.Bits(in, 3, 0)

	b := arch.NewBlock(pc, 4)
	rnExpr, rmExpr := regExpr(rn), regExpr(rm)
	rdName := regName(rd)
	switch op {
	case 0x8:
		b.RegWrite(rdName, symex.NewBinaryExpr(symex.ADD, rnExpr, rmExpr))
	case 0xD:
		b.RegWrite(rdName, symex.NewBinaryExpr(symex.SUB, rnExpr, rmExpr))
	case 0x0:
		b.RegWrite(rdName, symex.NewBinaryExpr(symex.AND, rnExpr, rmExpr))
	case 0x2:
		b.RegWrite(rdName, symex.NewBinaryExpr(symex.OR, rnExpr, rmExpr))
	default:
		return nil, symex.NewUnimplementedError(pc, in)
	}
	return b.Build(1), nil
}

func (d *Decoder) decodeWideBranch(pc uint64, in uint32) (*symex.GABlock, error) {
	s := arch.Bits(in, 26, 26)
	imm10 := arch.Bits(in, 25, 16)
	j1 := arch.Bits(in, 13, 13)
	j2 := arch.Bits(in, 11, 11)
	imm11 := arch.Bits(in, 10, 0)
	i1 := boolEqBit(j1, s)
	i2 := boolEqBit(j2, s)
	imm := arch.SignExtend(s<<24|i1<<23|i2<<22|imm10<<12|imm11<<1, 25)

	b := arch.NewBlock(pc, 4)
	target := arch.Imm(int64(pc)+4+imm, 32)
	// Unconditional wide branch: cost is always the worst-case flush,
	// never a predicted-taken discount.
	b.Branch(nil, target, wideBranchTaken, 0)
	return b.Build(0), nil
}

// decodeVFP implements a minimal single-precision slice: VMUL.F32, VLDR,
// VSTR. Every other coprocessor/VFP encoding is
// unimplemented by design (see the module's Open Questions resolution).
func (d *Decoder) decodeVFP(pc uint64, in uint32) (*symex.GABlock, error) {
	coproc := arch.Bits(in, 11, 8)
	if coproc != 0xA { // single-precision extension register load/store or data-processing
		return nil, symex.NewUnimplementedError(pc, in)
	}
	isLoadStore := arch.Bits(in, 24, 21) == 0x8 || arch.Bits(in, 24, 21) == 0xC
	b := arch.NewBlock(pc, 4)
	if isLoadStore {
		isLoad := arch.Bit(in, 20)
		rn := arch.Bits(in, 19, 16)
		imm8 := arch.Bits(in, 7, 0)
		addr := symex.NewBinaryExpr(symex.ADD, regExpr(rn), arch.Imm(int64(imm8<<2), 32))
		vd := fmt.Sprintf("s%d", arch.Bits(in, 15, 12)<<1|arch.Bits(in, 22, 22))
		if isLoad {
			b.RegWrite(vd, arch.Mem(addr, 32))
		} else {
			b.MemWrite(addr, arch.Reg(vd, 32), 32)
		}
		return b.Build(2), nil
	}

	op := arch.Bits(in, 6, 6)
	vd := fmt.Sprintf("s%d", arch.Bits(in, 15, 12)<<1|arch.Bits(in, 22, 22))
	vn := fmt.Sprintf("s%d", arch.Bits(in, 19, 16)<<1|arch.Bits(in, 7, 7))
	vm := fmt.Sprintf("s%d", arch.Bits(in, 3, 0)<<1|arch.Bits(in, 5, 5))
	switch op {
	case 0x0: // VMUL.F32 (approximated as an opaque intrinsic: no bit-vector IEEE-754 model)
		b.Intrinsic("vmul_f32", arch.Reg(vn, 32), arch.Reg(vm, 32))
		b.RegWrite(vd, symex.NewRegisterOperand("vmul_result", 32))
	default:
		return nil, symex.NewUnimplementedError(pc, in)
	}
	return b.Build(3), nil
}

func thumbExpandImm(imm12 uint32) uint32 {
	if arch.Bits(imm12, 11, 10) == 0 {
		lo := arch.Bits(imm12, 7, 0)
		switch arch.Bits(imm12, 9, 8) {
		case 0:
			return lo
		case 1:
			return lo<<16 | lo
		case 2:
			return lo<<24 | lo<<8
		default:
			return lo<<24 | lo<<16 | lo<<8 | lo
		}
	}
	rot := arch.Bits(imm12, 11, 7)
	base := 0x80 | arch.Bits(imm12, 6, 0)
	return (base >> rot) | (base << (32 - rot))
}

func regExpr(n uint32) symex.Expr { return arch.Reg(regName(n), 32) }

func regName(n uint32) string {
	if n == 15 {
		return "pc"
	}
	if n == 14 {
		return "lr"
	}
	if n == 13 {
		return "sp"
	}
	return fmt.Sprintf("r%d", n)
}

func boolEqBit(a, b uint32) uint32 {
	if a == b {
		return 1
	}
	return 0
}
