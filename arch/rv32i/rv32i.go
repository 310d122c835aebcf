// Package rv32i decodes the RV32I base integer instruction set into
// General Assembly blocks. Every instruction costs exactly one cycle: the
// target is a single-issue, non-pipelined core (spec's Hippomenes-class
// RV32I core), so there is no cycle table to build, unlike the ARM
// decoders.
package rv32i

import (
	"fmt"

	symex "github.com/symex-project/symex"
	"github.com/symex-project/symex/arch"
)

// ABI names the 32 integer registers x0..x31, with x1 as the return
// address register (ra) and x2 as the stack pointer (sp), per the RISC-V
// calling convention. RV32I has no separate flag registers: comparisons
// materialize their boolean result directly into a general register.
var ABI = &symex.ABI{
	Name:           "rv32i",
	Registers:      registerNames(),
	PC:             "pc",
	SP:             "x2",
	LR:             "x1",
	Width:          32,
	IsLittleEndian: true,
	PanicSymbols:   []string{"rust_begin_unwind", "panic_bounds_check", "abort"},
	ArgRegs:        []string{"x10", "x11", "x12", "x13"}, // a0..a3
}

func registerNames() []string {
	names := make([]string, 32)
	for i := range names {
		names[i] = fmt.Sprintf("x%d", i)
	}
	return names
}

var _ symex.Decoder = (*Decoder)(nil)

// Decoder implements symex.Decoder for RV32I.
type Decoder struct{}

func New() *Decoder { return &Decoder{} }

func (d *Decoder) ABI() *symex.ABI { return ABI }

func (d *Decoder) Decode(image symex.Image, pc uint64) (*symex.GABlock, error) {
	var buf [4]byte
	if _, err := image.ReadAt(pc, buf[:]); err != nil {
		return nil, &symex.MemoryFaultError{Addr: pc}
	}
	in := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24

	opcode := arch.Bits(in, 6, 0)
	rd := arch.Bits(in, 11, 7)
	funct3 := arch.Bits(in, 14, 12)
	rs1 := arch.Bits(in, 19, 15)
	rs2 := arch.Bits(in, 24, 20)
	funct7 := arch.Bits(in, 31, 25)

	b := arch.NewBlock(pc, 4)
	rdName, rs1Name, rs2Name := reg(rd), reg(rs1), reg(rs2)

	switch opcode {
	case 0x37: // LUI
		imm := in & 0xFFFFF000
		if rd != 0 {
			b.RegWrite(rdName, arch.Imm(int64(imm), 32))
		}
		return b.Build(1), nil

	case 0x17: // AUIPC
		imm := int64(int32(in & 0xFFFFF000))
		if rd != 0 {
			b.RegWrite(rdName, arch.Imm(int64(pc)+imm, 32))
		}
		return b.Build(1), nil

	case 0x6F: // JAL
		imm := arch.SignExtend(
			arch.Bits(in, 31, 31)<<20|arch.Bits(in, 19, 12)<<12|arch.Bits(in, 20, 20)<<11|arch.Bits(in, 30, 21)<<1,
			21)
		target := arch.Imm(int64(pc)+imm, 32)
		if rd != 0 {
			b.RegWrite(rdName, arch.Imm(int64(pc)+4, 32))
		}
		b.Branch(nil, target, 1, 0)
		return b.Build(0), nil

	case 0x67: // JALR
		if funct3 != 0 {
			return nil, symex.NewInvalidEncodingError(pc, in)
		}
		imm := arch.SignExtend(arch.Bits(in, 31, 20), 12)
		target := symex.NewBinaryExpr(symex.AND,
			symex.NewBinaryExpr(symex.ADD, r(rs1Name), arch.Imm(imm, 32)),
			arch.Imm(^int64(1), 32))
		if rd != 0 {
			b.RegWrite(rdName, arch.Imm(int64(pc)+4, 32))
		}
		b.Branch(nil, target, 1, 0)
		return b.Build(0), nil

	case 0x63: // BRANCH
		imm := arch.SignExtend(
			arch.Bits(in, 31, 31)<<12|arch.Bits(in, 7, 7)<<11|arch.Bits(in, 30, 25)<<5|arch.Bits(in, 11, 8)<<1,
			13)
		target := arch.Imm(int64(pc)+imm, 32)
		cond, err := branchCond(funct3, rs1Name, rs2Name)
		if err != nil {
			return nil, symex.NewInvalidEncodingError(pc, in)
		}
		b.Branch(cond, target, 1, 1)
		return b.Build(0), nil

	case 0x03: // LOAD
		imm := arch.SignExtend(arch.Bits(in, 31, 20), 12)
		addr := symex.NewBinaryExpr(symex.ADD, r(rs1Name), arch.Imm(imm, 32))
		val, err := loadValue(funct3, addr)
		if err != nil {
			return nil, symex.NewInvalidEncodingError(pc, in)
		}
		if rd != 0 {
			b.RegWrite(rdName, val)
		}
		return b.Build(1), nil

	case 0x23: // STORE
		imm := arch.SignExtend(arch.Bits(in, 31, 25)<<5|arch.Bits(in, 11, 7), 12)
		addr := symex.NewBinaryExpr(symex.ADD, r(rs1Name), arch.Imm(imm, 32))
		width, err := storeWidth(funct3)
		if err != nil {
			return nil, symex.NewInvalidEncodingError(pc, in)
		}
		b.MemWrite(addr, r(rs2Name), width)
		return b.Build(1), nil

	case 0x13: // OP-IMM
		imm := arch.SignExtend(arch.Bits(in, 31, 20), 12)
		expr, err := opImm(funct3, funct7, rs1Name, imm, arch.Bits(in, 24, 20))
		if err != nil {
			return nil, symex.NewInvalidEncodingError(pc, in)
		}
		if rd != 0 {
			b.RegWrite(rdName, expr)
		}
		return b.Build(1), nil

	case 0x33: // OP
		expr, err := opReg(funct3, funct7, rs1Name, rs2Name)
		if err != nil {
			return nil, symex.NewInvalidEncodingError(pc, in)
		}
		if rd != 0 {
			b.RegWrite(rdName, expr)
		}
		return b.Build(1), nil

	case 0x0F: // MISC-MEM (FENCE) — no observable effect in this memory model
		return b.Build(1), nil

	case 0x73: // SYSTEM
		imm := arch.Bits(in, 31, 20)
		switch imm {
		case 0: // ECALL
			b.Intrinsic("ecall")
		case 1: // EBREAK
			b.Halt("ebreak")
		default:
			return nil, symex.NewUnimplementedError(pc, in)
		}
		return b.Build(1), nil

	default:
		return nil, symex.NewUnimplementedError(pc, in)
	}
}

func reg(n uint32) string { return fmt.Sprintf("x%d", n) }

// r reads register name, hardwiring x0 to the constant zero every real
// RV32I core gives it rather than letting the register file treat it as an
// ordinary unbound-and-therefore-symbolic register.
func r(name string) symex.Expr {
	if name == "x0" {
		return arch.Imm(0, 32)
	}
	return arch.Reg(name, 32)
}

func branchCond(funct3 uint32, rs1, rs2 string) (symex.Expr, error) {
	a, bexp := r(rs1), r(rs2)
	switch funct3 {
	case 0x0:
		return symex.NewBinaryExpr(symex.EQ, a, bexp), nil
	case 0x1:
		return symex.NewNotExpr(symex.NewBinaryExpr(symex.EQ, a, bexp)), nil
	case 0x4:
		return symex.NewBinaryExpr(symex.SLT, a, bexp), nil
	case 0x5:
		return symex.NewNotExpr(symex.NewBinaryExpr(symex.SLT, a, bexp)), nil
	case 0x6:
		return symex.NewBinaryExpr(symex.ULT, a, bexp), nil
	case 0x7:
		return symex.NewNotExpr(symex.NewBinaryExpr(symex.ULT, a, bexp)), nil
	default:
		return nil, fmt.Errorf("rv32i: bad branch funct3 %#x", funct3)
	}
}

func loadValue(funct3 uint32, addr symex.Expr) (symex.Expr, error) {
	switch funct3 {
	case 0x0: // LB
		return symex.NewCastExpr(arch.Mem(addr, 8), 32, true), nil
	case 0x1: // LH
		return symex.NewCastExpr(arch.Mem(addr, 16), 32, true), nil
	case 0x2: // LW
		return arch.Mem(addr, 32), nil
	case 0x4: // LBU
		return symex.NewCastExpr(arch.Mem(addr, 8), 32, false), nil
	case 0x5: // LHU
		return symex.NewCastExpr(arch.Mem(addr, 16), 32, false), nil
	default:
		return nil, fmt.Errorf("rv32i: bad load funct3 %#x", funct3)
	}
}

func storeWidth(funct3 uint32) (uint, error) {
	switch funct3 {
	case 0x0:
		return 8, nil
	case 0x1:
		return 16, nil
	case 0x2:
		return 32, nil
	default:
		return 0, fmt.Errorf("rv32i: bad store funct3 %#x", funct3)
	}
}

func opImm(funct3, funct7 uint32, rs1 string, imm int64, shamt uint32) (symex.Expr, error) {
	a := r(rs1)
	switch funct3 {
	case 0x0: // ADDI
		return symex.NewBinaryExpr(symex.ADD, a, arch.Imm(imm, 32)), nil
	case 0x2: // SLTI
		return symex.NewCastExpr(symex.NewBinaryExpr(symex.SLT, a, arch.Imm(imm, 32)), 32, false), nil
	case 0x3: // SLTIU
		return symex.NewCastExpr(symex.NewBinaryExpr(symex.ULT, a, arch.Imm(imm&0xFFFFFFFF, 32)), 32, false), nil
	case 0x4: // XORI
		return symex.NewBinaryExpr(symex.XOR, a, arch.Imm(imm, 32)), nil
	case 0x6: // ORI
		return symex.NewBinaryExpr(symex.OR, a, arch.Imm(imm, 32)), nil
	case 0x7: // ANDI
		return symex.NewBinaryExpr(symex.AND, a, arch.Imm(imm, 32)), nil
	case 0x1: // SLLI
		return symex.NewBinaryExpr(symex.SHL, a, arch.Imm(int64(shamt), 32)), nil
	case 0x5: // SRLI/SRAI
		if funct7 == 0x20 {
			return symex.NewBinaryExpr(symex.ASHR, a, arch.Imm(int64(shamt), 32)), nil
		}
		return symex.NewBinaryExpr(symex.LSHR, a, arch.Imm(int64(shamt), 32)), nil
	default:
		return nil, fmt.Errorf("rv32i: bad op-imm funct3 %#x", funct3)
	}
}

func opReg(funct3, funct7 uint32, rs1, rs2 string) (symex.Expr, error) {
	a, b := r(rs1), r(rs2)
	switch {
	case funct3 == 0x0 && funct7 == 0x00: // ADD
		return symex.NewBinaryExpr(symex.ADD, a, b), nil
	case funct3 == 0x0 && funct7 == 0x20: // SUB
		return symex.NewBinaryExpr(symex.SUB, a, b), nil
	case funct3 == 0x1: // SLL
		return symex.NewBinaryExpr(symex.SHL, a, b), nil
	case funct3 == 0x2: // SLT
		return symex.NewCastExpr(symex.NewBinaryExpr(symex.SLT, a, b), 32, false), nil
	case funct3 == 0x3: // SLTU
		return symex.NewCastExpr(symex.NewBinaryExpr(symex.ULT, a, b), 32, false), nil
	case funct3 == 0x4: // XOR
		return symex.NewBinaryExpr(symex.XOR, a, b), nil
	case funct3 == 0x5 && funct7 == 0x00: // SRL
		return symex.NewBinaryExpr(symex.LSHR, a, b), nil
	case funct3 == 0x5 && funct7 == 0x20: // SRA
		return symex.NewBinaryExpr(symex.ASHR, a, b), nil
	case funct3 == 0x6: // OR
		return symex.NewBinaryExpr(symex.OR, a, b), nil
	case funct3 == 0x7: // AND
		return symex.NewBinaryExpr(symex.AND, a, b), nil
	default:
		return nil, fmt.Errorf("rv32i: bad op funct3/funct7 %#x/%#x", funct3, funct7)
	}
}
