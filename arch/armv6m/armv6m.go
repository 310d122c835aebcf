// Package armv6m decodes the Thumb-1 instruction set implemented by the
// Cortex-M0/M0+ core family into General Assembly blocks, with cycle costs
// from the ARMv6-M Technical Reference Manual's instruction cycle-count
// table.
package armv6m

import (
	"fmt"

	symex "github.com/symex-project/symex"
	"github.com/symex-project/symex/arch"
)

// ABI names the 16 general registers r0..r15 (r13=SP, r14=LR, r15=PC) plus
// the four condition flags a Thumb-1 core exposes.
var ABI = &symex.ABI{
	Name:           "armv6m",
	Registers:      []string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc"},
	Flags:          []string{"N", "Z", "C", "V"},
	PC:             "pc",
	SP:             "sp",
	LR:             "lr",
	Width:          32,
	IsLittleEndian: true,
	PanicSymbols:   []string{"rust_begin_unwind", "DefaultHandler", "HardFault"},
	ArgRegs:        []string{"r0", "r1", "r2", "r3"},
}

var _ symex.Decoder = (*Decoder)(nil)

// Decoder implements symex.Decoder for the ARMv6-M Thumb-1 subset.
type Decoder struct{}

func New() *Decoder { return &Decoder{} }

func (d *Decoder) ABI() *symex.ABI { return ABI }

func (d *Decoder) Decode(image symex.Image, pc uint64) (*symex.GABlock, error) {
	var buf [2]byte
	if _, err := image.ReadAt(pc, buf[:]); err != nil {
		return nil, &symex.MemoryFaultError{Addr: pc}
	}
	in := uint32(buf[0]) | uint32(buf[1])<<8

	// BL is the sole 32-bit encoding ARMv6-M permits.
	if arch.Bits(in, 15, 11) == 0x1E {
		return decodeBL(image, pc, in)
	}

	b := arch.NewBlock(pc, 2)

	switch {
	case arch.Bits(in, 15, 13) == 0x0 && arch.Bits(in, 12, 11) != 0x3: // shift-by-immediate
		return decodeShiftImm(b, in)
	case arch.Bits(in, 15, 11) == 0x03: // ADD/SUB register or immediate3
		return decodeAddSub3(b, in)
	case arch.Bits(in, 15, 13) == 0x1: // MOV/CMP/ADD/SUB immediate8
		return decodeImm8(b, in)
	case arch.Bits(in, 15, 10) == 0x10: // data-processing register
		return decodeDataProcessing(b, in)
	case arch.Bits(in, 15, 10) == 0x11: // special data / branch-exchange
		return decodeSpecialAndBX(b, pc, in)
	case arch.Bits(in, 15, 11) == 0x09: // LDR (PC-relative literal)
		return decodeLdrLiteral(b, pc, in)
	case arch.Bits(in, 15, 12) == 0x5: // load/store register offset
		return decodeLoadStoreReg(b, in)
	case arch.Bits(in, 15, 13) == 0x3: // load/store word/byte immediate offset
		return decodeLoadStoreImm(b, in)
	case arch.Bits(in, 15, 12) == 0x8: // load/store halfword immediate offset
		return decodeLoadStoreHalfImm(b, in)
	case arch.Bits(in, 15, 12) == 0x9: // load/store SP-relative
		return decodeLoadStoreSP(b, in)
	case arch.Bits(in, 15, 12) == 0xA: // ADR / ADD Rd, SP, #imm
		return decodeAddPCorSP(b, pc, in)
	case arch.Bits(in, 15, 8) == 0xB0: // ADD/SUB SP, SP, #imm
		return decodeAddSubSP(b, in)
	case arch.Bits(in, 15, 12) == 0xB && arch.Bits(in, 10, 9) == 0x2: // PUSH/POP
		return decodePushPop(b, in)
	case arch.Bits(in, 15, 8) == 0xBE: // BKPT
		b.Halt("bkpt")
		return b.Build(1), nil
	case arch.Bits(in, 15, 12) == 0xD && arch.Bits(in, 11, 8) != 0xF: // conditional branch
		return decodeCondBranch(b, pc, in)
	case arch.Bits(in, 15, 8) == 0xDF: // SVC
		b.Intrinsic("svc")
		return b.Build(1), nil
	case arch.Bits(in, 15, 11) == 0x1C: // unconditional branch
		return decodeBranch(b, pc, in)
	default:
		return nil, symex.NewUnimplementedError(pc, in)
	}
}

func reg(n uint32) string {
	names := ABI.Registers
	return names[n]
}

func decodeShiftImm(b *arch.Block, in uint32) (*symex.GABlock, error) {
	op := arch.Bits(in, 12, 11)
	imm := arch.Bits(in, 10, 6)
	rm := arch.Reg(reg(arch.Bits(in, 5, 3)), 32)
	rd := reg(arch.Bits(in, 2, 0))
	var val symex.Expr
	switch op {
	case 0x0: // LSL
		val = symex.NewBinaryExpr(symex.SHL, rm, arch.Imm(int64(imm), 32))
	case 0x1: // LSR
		val = symex.NewBinaryExpr(symex.LSHR, rm, arch.Imm(int64(imm), 32))
	case 0x2: // ASR
		val = symex.NewBinaryExpr(symex.ASHR, rm, arch.Imm(int64(imm), 32))
	default:
		return nil, fmt.Errorf("armv6m: bad shift op %#x", op)
	}
	b.RegWrite(rd, val)
	setNZ(b, val)
	return b.Build(1), nil
}

func decodeAddSub3(b *arch.Block, in uint32) (*symex.GABlock, error) {
	isSub := arch.Bit(in, 9)
	isImm := arch.Bit(in, 10)
	rn := arch.Reg(reg(arch.Bits(in, 5, 3)), 32)
	rd := reg(arch.Bits(in, 2, 0))
	var operand symex.Expr
	if isImm {
		operand = arch.Imm(int64(arch.Bits(in, 8, 6)), 32)
	} else {
		operand = arch.Reg(reg(arch.Bits(in, 8, 6)), 32)
	}
	op := symex.ADD
	if isSub {
		op = symex.SUB
	}
	val := symex.NewBinaryExpr(op, rn, operand)
	b.RegWrite(rd, val)
	if isSub {
		setFlagsSub(b, rn, operand, val)
	} else {
		setFlagsAdd(b, rn, operand, val)
	}
	return b.Build(1), nil
}

func decodeImm8(b *arch.Block, in uint32) (*symex.GABlock, error) {
	op := arch.Bits(in, 12, 11)
	rd := reg(arch.Bits(in, 10, 8))
	imm := arch.Imm(int64(arch.Bits(in, 7, 0)), 32)
	rdExpr := arch.Reg(rd, 32)
	switch op {
	case 0x0: // MOV
		b.RegWrite(rd, imm)
		setNZ(b, imm)
	case 0x1: // CMP
		setFlagsSub(b, rdExpr, imm, symex.NewBinaryExpr(symex.SUB, rdExpr, imm))
	case 0x2: // ADD
		val := symex.NewBinaryExpr(symex.ADD, rdExpr, imm)
		b.RegWrite(rd, val)
		setFlagsAdd(b, rdExpr, imm, val)
	case 0x3: // SUB
		val := symex.NewBinaryExpr(symex.SUB, rdExpr, imm)
		b.RegWrite(rd, val)
		setFlagsSub(b, rdExpr, imm, val)
	}
	return b.Build(1), nil
}

func decodeDataProcessing(b *arch.Block, in uint32) (*symex.GABlock, error) {
	op := arch.Bits(in, 9, 6)
	rm := arch.Reg(reg(arch.Bits(in, 5, 3)), 32)
	rdn := reg(arch.Bits(in, 2, 0))
	a := arch.Reg(rdn, 32)
	var val symex.Expr
	write := true
	switch op {
	case 0x0:
		val = symex.NewBinaryExpr(symex.AND, a, rm)
	case 0x1:
		val = symex.NewBinaryExpr(symex.XOR, a, rm)
	case 0x2:
		val = symex.NewBinaryExpr(symex.SHL, a, rm)
	case 0x3:
		val = symex.NewBinaryExpr(symex.LSHR, a, rm)
	case 0x4:
		val = symex.NewBinaryExpr(symex.ASHR, a, rm)
	case 0x5:
		val = symex.NewBinaryExpr(symex.ADD, a, rm) // ADC approximated without carry-in
	case 0x6:
		val = symex.NewBinaryExpr(symex.SUB, a, rm) // SBC approximated without borrow-in
	case 0x8:
		val = symex.NewBinaryExpr(symex.AND, a, rm)
		write = false // TST
	case 0x9:
		val = symex.NewBinaryExpr(symex.SUB, arch.Imm(0, 32), rm) // NEG
	case 0xA:
		val = symex.NewBinaryExpr(symex.SUB, a, rm)
		write = false // CMP
	case 0xB:
		val = symex.NewBinaryExpr(symex.ADD, a, rm)
		write = false // CMN
	case 0xC:
		val = symex.NewBinaryExpr(symex.OR, a, rm)
	case 0xD:
		val = symex.NewBinaryExpr(symex.MUL, a, rm)
	case 0xE:
		val = symex.NewBinaryExpr(symex.AND, a, symex.NewNotExpr(rm)) // BIC
	case 0xF:
		val = symex.NewNotExpr(rm) // MVN
	default:
		return nil, fmt.Errorf("armv6m: bad ALU op %#x", op)
	}
	if write {
		b.RegWrite(rdn, val)
	}
	switch op {
	case 0x5, 0xB: // ADC, CMN
		setFlagsAdd(b, a, rm, val)
	case 0x6, 0xA: // SBC, CMP
		setFlagsSub(b, a, rm, val)
	case 0x9: // NEG
		setFlagsSub(b, arch.Imm(0, 32), rm, val)
	default:
		setNZ(b, val)
	}
	cycles := uint(1)
	if op == 0xD {
		cycles = 2 // MULS
	}
	return b.Build(cycles), nil
}

func decodeSpecialAndBX(b *arch.Block, pc uint64, in uint32) (*symex.GABlock, error) {
	op := arch.Bits(in, 9, 8)
	dn := arch.Bit(in, 7)
	rm := reg(arch.Bits(in, 6, 3))
	rdn := arch.Bits(in, 2, 0)
	if dn {
		rdn |= 0x8
	}
	rdnName := reg(rdn)

	switch op {
	case 0x0: // ADD (hi register)
		val := symex.NewBinaryExpr(symex.ADD, arch.Reg(rdnName, 32), arch.Reg(rm, 32))
		if rdn == 15 {
			b.Branch(nil, val, 3, 0)
			return b.Build(0), nil
		}
		b.RegWrite(rdnName, val)
		return b.Build(1), nil
	case 0x1: // CMP (hi register)
		setNZ(b, symex.NewBinaryExpr(symex.SUB, arch.Reg(rdnName, 32), arch.Reg(rm, 32)))
		return b.Build(1), nil
	case 0x2: // MOV (hi register)
		val := arch.Reg(rm, 32)
		if rdn == 15 {
			b.Branch(nil, val, 3, 0)
			return b.Build(0), nil
		}
		b.RegWrite(rdnName, val)
		return b.Build(1), nil
	case 0x3: // BX / BLX
		target := arch.Reg(rm, 32)
		if arch.Bit(in, 7) { // BLX
			b.RegWrite(ABI.LR, arch.Imm(int64(pc)+2, 32))
			b.Call(target)
			return b.Build(3), nil
		}
		b.Branch(nil, target, 3, 0)
		return b.Build(0), nil
	default:
		return nil, fmt.Errorf("armv6m: bad special data op %#x", op)
	}
}

func decodeLdrLiteral(b *arch.Block, pc uint64, in uint32) (*symex.GABlock, error) {
	rt := reg(arch.Bits(in, 10, 8))
	imm := arch.Bits(in, 7, 0) << 2
	base := (pc + 4) &^ 3
	addr := arch.Imm(int64(base+uint64(imm)), 32)
	b.RegWrite(rt, arch.Mem(addr, 32))
	return b.Build(2), nil
}

func decodeLoadStoreReg(b *arch.Block, in uint32) (*symex.GABlock, error) {
	opc := arch.Bits(in, 11, 9)
	rm := arch.Reg(reg(arch.Bits(in, 8, 6)), 32)
	rn := arch.Reg(reg(arch.Bits(in, 5, 3)), 32)
	rt := reg(arch.Bits(in, 2, 0))
	addr := symex.NewBinaryExpr(symex.ADD, rn, rm)
	switch opc {
	case 0x0: // STR
		b.MemWrite(addr, arch.Reg(rt, 32), 32)
	case 0x1: // STRH
		b.MemWrite(addr, arch.Reg(rt, 32), 16)
	case 0x2: // STRB
		b.MemWrite(addr, arch.Reg(rt, 32), 8)
	case 0x3: // LDRSB
		b.RegWrite(rt, symex.NewCastExpr(arch.Mem(addr, 8), 32, true))
	case 0x4: // LDR
		b.RegWrite(rt, arch.Mem(addr, 32))
	case 0x5: // LDRH
		b.RegWrite(rt, symex.NewCastExpr(arch.Mem(addr, 16), 32, false))
	case 0x6: // LDRB
		b.RegWrite(rt, symex.NewCastExpr(arch.Mem(addr, 8), 32, false))
	case 0x7: // LDRSH
		b.RegWrite(rt, symex.NewCastExpr(arch.Mem(addr, 16), 32, true))
	}
	return b.Build(2), nil
}

func decodeLoadStoreImm(b *arch.Block, in uint32) (*symex.GABlock, error) {
	isByte := arch.Bit(in, 12)
	isLoad := arch.Bit(in, 11)
	imm5 := arch.Bits(in, 10, 6)
	rn := arch.Reg(reg(arch.Bits(in, 5, 3)), 32)
	rt := reg(arch.Bits(in, 2, 0))
	width := uint(32)
	shift := uint32(2)
	if isByte {
		width, shift = 8, 0
	}
	addr := symex.NewBinaryExpr(symex.ADD, rn, arch.Imm(int64(imm5<<shift), 32))
	if isLoad {
		if isByte {
			b.RegWrite(rt, symex.NewCastExpr(arch.Mem(addr, width), 32, false))
		} else {
			b.RegWrite(rt, arch.Mem(addr, width))
		}
		return b.Build(2), nil
	}
	b.MemWrite(addr, arch.Reg(rt, 32), width)
	return b.Build(2), nil
}

func decodeLoadStoreHalfImm(b *arch.Block, in uint32) (*symex.GABlock, error) {
	isLoad := arch.Bit(in, 11)
	imm5 := arch.Bits(in, 10, 6)
	rn := arch.Reg(reg(arch.Bits(in, 5, 3)), 32)
	rt := reg(arch.Bits(in, 2, 0))
	addr := symex.NewBinaryExpr(symex.ADD, rn, arch.Imm(int64(imm5<<1), 32))
	if isLoad {
		b.RegWrite(rt, symex.NewCastExpr(arch.Mem(addr, 16), 32, false))
		return b.Build(2), nil
	}
	b.MemWrite(addr, arch.Reg(rt, 32), 16)
	return b.Build(2), nil
}

func decodeLoadStoreSP(b *arch.Block, in uint32) (*symex.GABlock, error) {
	isLoad := arch.Bit(in, 11)
	rt := reg(arch.Bits(in, 10, 8))
	imm := arch.Bits(in, 7, 0) << 2
	addr := symex.NewBinaryExpr(symex.ADD, arch.Reg(ABI.SP, 32), arch.Imm(int64(imm), 32))
	if isLoad {
		b.RegWrite(rt, arch.Mem(addr, 32))
		return b.Build(2), nil
	}
	b.MemWrite(addr, arch.Reg(rt, 32), 32)
	return b.Build(2), nil
}

func decodeAddPCorSP(b *arch.Block, pc uint64, in uint32) (*symex.GABlock, error) {
	usesSP := arch.Bit(in, 11)
	rd := reg(arch.Bits(in, 10, 8))
	imm := arch.Bits(in, 7, 0) << 2
	var base symex.Expr
	if usesSP {
		base = arch.Reg(ABI.SP, 32)
	} else {
		base = arch.Imm(int64((pc+4)&^3), 32)
	}
	b.RegWrite(rd, symex.NewBinaryExpr(symex.ADD, base, arch.Imm(int64(imm), 32)))
	return b.Build(1), nil
}

func decodeAddSubSP(b *arch.Block, in uint32) (*symex.GABlock, error) {
	isSub := arch.Bit(in, 7)
	imm := arch.Bits(in, 6, 0) << 2
	op := symex.ADD
	if isSub {
		op = symex.SUB
	}
	val := symex.NewBinaryExpr(op, arch.Reg(ABI.SP, 32), arch.Imm(int64(imm), 32))
	b.RegWrite(ABI.SP, val)
	return b.Build(1), nil
}

func decodePushPop(b *arch.Block, in uint32) (*symex.GABlock, error) {
	isPop := arch.Bit(in, 11)
	includeExtra := arch.Bit(in, 8) // LR for PUSH, PC for POP
	rlist := arch.Bits(in, 7, 0)

	count := popCount(rlist)
	if includeExtra {
		count++
	}
	sp := arch.Reg(ABI.SP, 32)

	if isPop {
		for i := 0; i < 8; i++ {
			if rlist&(1<<uint(i)) == 0 {
				continue
			}
			addr := symex.NewBinaryExpr(symex.ADD, sp, arch.Imm(0, 32))
			b.RegWrite(reg(uint32(i)), arch.Mem(addr, 32))
			sp = symex.NewBinaryExpr(symex.ADD, sp, arch.Imm(4, 32))
		}
		if includeExtra {
			// POP {..., pc} is a function return: the popped word becomes the
			// new PC, so it goes through Branch (resolveAddress's fork-on-
			// symbolic/multi-candidate machinery) exactly like BX Rm rather
			// than a plain RegWrite, which would either desync from the ABI's
			// return-detection or panic on a still-symbolic value.
			target := arch.Mem(sp, 32)
			sp = symex.NewBinaryExpr(symex.ADD, sp, arch.Imm(4, 32))
			b.RegWrite(ABI.SP, sp)
			b.Branch(nil, target, 1, 0)
			return b.Build(uint(1 + count)), nil
		}
		b.RegWrite(ABI.SP, sp)
		return b.Build(uint(1 + count)), nil
	}

	// PUSH: the lowest-numbered register goes to the lowest address and LR,
	// when present, to the highest, so POP reads them back in the same order.
	total := count * 4
	base := symex.NewBinaryExpr(symex.SUB, sp, arch.Imm(int64(total), 32))
	offset := uint32(0)
	for i := 0; i < 8; i++ {
		if rlist&(1<<uint(i)) == 0 {
			continue
		}
		b.MemWrite(symex.NewBinaryExpr(symex.ADD, base, arch.Imm(int64(offset), 32)), arch.Reg(reg(uint32(i)), 32), 32)
		offset += 4
	}
	if includeExtra {
		b.MemWrite(symex.NewBinaryExpr(symex.ADD, base, arch.Imm(int64(offset), 32)), arch.Reg(ABI.LR, 32), 32)
	}
	b.RegWrite(ABI.SP, base)
	return b.Build(uint(1 + count)), nil
}

func popCount(rlist uint32) uint {
	n := uint(0)
	for i := 0; i < 8; i++ {
		if rlist&(1<<uint(i)) != 0 {
			n++
		}
	}
	return n
}

func decodeCondBranch(b *arch.Block, pc uint64, in uint32) (*symex.GABlock, error) {
	cond := arch.Bits(in, 11, 8)
	imm := arch.SignExtend(arch.Bits(in, 7, 0)<<1, 9)
	target := arch.Imm(int64(pc)+4+imm, 32)
	condExpr, err := condition(cond)
	if err != nil {
		return nil, symex.NewInvalidEncodingError(pc, in)
	}
	b.Branch(condExpr, target, 3, 1)
	return b.Build(0), nil
}

func decodeBranch(b *arch.Block, pc uint64, in uint32) (*symex.GABlock, error) {
	imm := arch.SignExtend(arch.Bits(in, 10, 0)<<1, 12)
	target := arch.Imm(int64(pc)+4+imm, 32)
	b.Branch(nil, target, 3, 0)
	return b.Build(0), nil
}

func decodeBL(image symex.Image, pc uint64, hi uint32) (*symex.GABlock, error) {
	var lo [2]byte
	if _, err := image.ReadAt(pc+2, lo[:]); err != nil {
		return nil, &symex.MemoryFaultError{Addr: pc + 2}
	}
	lo16 := uint32(lo[0]) | uint32(lo[1])<<8
	s := arch.Bit(hi, 10)
	j1 := arch.Bit(lo16, 13)
	j2 := arch.Bit(lo16, 11)
	imm10 := arch.Bits(hi, 9, 0)
	imm11 := arch.Bits(lo16, 10, 0)
	i1 := boolToBit(!(j1 != s)) // I1 = NOT(J1 XOR S)
	i2 := boolToBit(!(j2 != s))
	imm32bits := (bit(s) << 24) | (i1 << 23) | (i2 << 22) | (imm10 << 12) | (imm11 << 1)
	imm := arch.SignExtend(imm32bits, 25)

	b := arch.NewBlock(pc, 4)
	target := arch.Imm(int64(pc)+4+imm, 32)
	b.RegWrite(ABI.LR, arch.Imm(int64(pc)+5, 32)) // odd: sets Thumb bit
	b.Call(target)
	return b.Build(4), nil
}

func bit(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

func boolToBit(v bool) uint32 { return bit(v) }

func condition(cond uint32) (symex.Expr, error) {
	n, z, c, v := arch.Reg("N", 1), arch.Reg("Z", 1), arch.Reg("C", 1), arch.Reg("V", 1)
	isSet := func(f symex.Expr) symex.Expr { return symex.NewBinaryExpr(symex.EQ, f, symex.NewBoolConstantExpr(true)) }
	isClear := func(f symex.Expr) symex.Expr { return symex.NewBinaryExpr(symex.EQ, f, symex.NewBoolConstantExpr(false)) }
	switch cond {
	case 0x0:
		return isSet(z), nil // BEQ
	case 0x1:
		return isClear(z), nil // BNE
	case 0x2:
		return isSet(c), nil // BCS
	case 0x3:
		return isClear(c), nil // BCC
	case 0x4:
		return isSet(n), nil // BMI
	case 0x5:
		return isClear(n), nil // BPL
	case 0x6:
		return isSet(v), nil // BVS
	case 0x7:
		return isClear(v), nil // BVC
	case 0x8: // BHI: C==1 && Z==0
		return symex.NewBinaryExpr(symex.AND, isSet(c), isClear(z)), nil
	case 0x9: // BLS: C==0 || Z==1
		return symex.NewBinaryExpr(symex.OR, isClear(c), isSet(z)), nil
	case 0xA: // BGE: N==V
		return symex.NewBinaryExpr(symex.EQ, n, v), nil
	case 0xB: // BLT: N!=V
		return symex.NewNotExpr(symex.NewBinaryExpr(symex.EQ, n, v)), nil
	case 0xC: // BGT: Z==0 && N==V
		return symex.NewBinaryExpr(symex.AND, isClear(z), symex.NewBinaryExpr(symex.EQ, n, v)), nil
	case 0xD: // BLE: Z==1 || N!=V
		return symex.NewBinaryExpr(symex.OR, isSet(z), symex.NewNotExpr(symex.NewBinaryExpr(symex.EQ, n, v))), nil
	default:
		return nil, fmt.Errorf("armv6m: bad condition %#x", cond)
	}
}

// setNZ appends flag-update ops for a result value, matching what every
// Thumb-1 data-processing and compare instruction does.
func setNZ(b *arch.Block, val symex.Expr) {
	b.FlagWrite("Z", symex.NewBinaryExpr(symex.EQ, val, arch.Imm(0, 32)))
	b.FlagWrite("N", symex.NewExtractExpr(val, 31, 1))
}

// setFlagsSub writes N, Z, C, V for a subtraction a-b producing result. C is
// the carry-out ARM defines for SUBS: set when the subtraction did not
// borrow, i.e. a >= b unsigned. V is the signed overflow: a and b have
// different signs and the result's sign matches b's rather than a's.
func setFlagsSub(b *arch.Block, a, bOperand, result symex.Expr) {
	setNZ(b, result)
	b.FlagWrite("C", symex.NewBinaryExpr(symex.UGE, a, bOperand))
	signsDiffer := symex.NewNotExpr(symex.NewBinaryExpr(symex.EQ,
		symex.NewExtractExpr(a, 31, 1), symex.NewExtractExpr(bOperand, 31, 1)))
	resultTookBSign := symex.NewBinaryExpr(symex.EQ,
		symex.NewExtractExpr(result, 31, 1), symex.NewExtractExpr(bOperand, 31, 1))
	b.FlagWrite("V", symex.NewBinaryExpr(symex.AND, signsDiffer, resultTookBSign))
}

// setFlagsAdd writes N, Z, C, V for an addition a+b producing result. C is
// unsigned carry-out, approximated as the sum wrapping below one of its
// operands. V is the signed overflow: a and b share a sign that the result
// does not.
func setFlagsAdd(b *arch.Block, a, bOperand, result symex.Expr) {
	setNZ(b, result)
	b.FlagWrite("C", symex.NewBinaryExpr(symex.ULT, result, a))
	signsMatch := symex.NewBinaryExpr(symex.EQ,
		symex.NewExtractExpr(a, 31, 1), symex.NewExtractExpr(bOperand, 31, 1))
	resultDiffers := symex.NewNotExpr(symex.NewBinaryExpr(symex.EQ,
		symex.NewExtractExpr(result, 31, 1), symex.NewExtractExpr(a, 31, 1)))
	b.FlagWrite("V", symex.NewBinaryExpr(symex.AND, signsMatch, resultDiffers))
}
