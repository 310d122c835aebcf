package symex

import (
	"bytes"
	"fmt"

	"github.com/benbjohnson/immutable"
)

// Memory represents the address space visible to a path: a set of
// byte-addressable regions keyed by base address, exactly as the teacher's
// heap keyed Go-level allocations by base address. Here each region is
// either an ELF section (pre-populated with concrete ConstantExpr byte
// updates read from the image) or the stack (an empty Array, so every
// unread byte comes back fresh-symbolic via Array.selectByte's fallback).
type Memory struct {
	regions        *immutable.SortedMap
	pointerWidth   uint
	isLittleEndian bool
}

// NewMemory returns an empty address space.
func NewMemory(pointerWidth uint, isLittleEndian bool) *Memory {
	return &Memory{
		regions:        immutable.NewSortedMap(&uint64Comparer{}),
		pointerWidth:   pointerWidth,
		isLittleEndian: isLittleEndian,
	}
}

// Clone returns a shallow copy of the address space. Safe to call after a
// fork since regions are copy-on-write Arrays.
func (m *Memory) Clone() *Memory {
	return &Memory{
		regions:        m.regions,
		pointerWidth:   m.pointerWidth,
		isLittleEndian: m.isLittleEndian,
	}
}

// MapRegion installs a region of size bytes at base. If initial is
// non-nil, its bytes are stored as concrete updates; otherwise the region
// starts fully symbolic.
func (m *Memory) MapRegion(id uint64, base uint64, size uint, initial []byte) {
	array := NewArray(id, size)
	if initial != nil {
		for i, b := range initial {
			array.storeByte(NewConstantExpr64(uint64(i)), NewConstantExpr8(uint64(b)))
		}
	}
	m.regions = m.regions.Set(base, array)
}

// SetReadOnly marks the region based at base as read-only. A later Write
// into it reports a ReadOnlyFaultError instead of mutating it, matching how
// a store to a flash-backed .text or .rodata section faults on real
// hardware rather than silently succeeding.
func (m *Memory) SetReadOnly(base uint64) {
	v, ok := m.regions.Get(base)
	if !ok {
		return
	}
	array := v.(*Array).Clone()
	array.ReadOnly = true
	m.regions = m.regions.Set(base, array)
}

// MarkSymbolic replaces the contents of the region containing addr with a
// fresh array of the same size, discarding any concrete initializer. Used
// by the symbolic() intrinsic to widen an input beyond what a path has
// already constrained.
func (m *Memory) MarkSymbolic(id uint64, addr *ConstantExpr) (*Array, error) {
	base, array, err := m.find(addr)
	if err != nil {
		return nil, err
	}
	fresh := NewArray(id, array.Size)
	m.regions = m.regions.Set(base, fresh)
	return fresh, nil
}

// IsSymbolic reports whether any byte in the region containing addr is
// symbolic. Used by the is_symbolic() intrinsic.
func (m *Memory) IsSymbolic(addr *ConstantExpr) (bool, error) {
	_, array, err := m.find(addr)
	if err != nil {
		return false, err
	}
	return array.IsSymbolic(), nil
}

// find returns the base address and array of the region containing addr.
func (m *Memory) find(addr *ConstantExpr) (uint64, *Array, error) {
	itr := m.regions.Iterator()
	if itr.Seek(addr.Value); itr.Done() {
		itr.Last()
	}
	for !itr.Done() {
		k, v := itr.Prev()
		base, array := k.(uint64), v.(*Array)
		if addr.Value >= base && addr.Value < base+uint64(array.Size) {
			return base, array, nil
		} else if addr.Value > base+uint64(array.Size) {
			break
		}
	}
	return 0, nil, &MemoryFaultError{Addr: addr.Value}
}

// Read returns the width-bit value at addr. addr must already be resolved
// to a concrete address; symbolic addresses are handled by the executor
// via Solver.Solutions before Read is ever called.
func (m *Memory) Read(addr *ConstantExpr, width uint) (Expr, error) {
	base, array, err := m.find(addr)
	if err != nil {
		return nil, err
	}
	offset := NewBinaryExpr(SUB, addr, NewConstantExpr(base, ExprWidth(addr)))
	return array.Select(offset, width, m.isLittleEndian)
}

// Write stores value at addr, returning the updated address space. Rejects
// a write that straddles the end of its region or lands in a read-only
// region instead of mutating it.
func (m *Memory) Write(addr *ConstantExpr, value Expr) (*Memory, error) {
	base, array, err := m.find(addr)
	if err != nil {
		return nil, err
	}
	offset := NewBinaryExpr(SUB, addr, NewConstantExpr(base, ExprWidth(addr)))
	updated, err := array.Store(offset, value, m.isLittleEndian)
	if err != nil {
		if fault, ok := err.(*ReadOnlyFaultError); ok {
			fault.Addr = addr.Value
		}
		return nil, err
	}
	other := m.Clone()
	other.regions = other.regions.Set(base, updated)
	return other, nil
}

// RegionAt returns the array backing the region based at base, if any.
func (m *Memory) RegionAt(base uint64) (*Array, bool) {
	v, ok := m.regions.Get(base)
	if !ok {
		return nil, false
	}
	return v.(*Array), true
}

// Dump returns a human-readable listing of every mapped region.
func (m *Memory) Dump() string {
	var buf bytes.Buffer
	itr := m.regions.Iterator()
	for {
		k, v := itr.Next()
		if k == nil {
			return buf.String()
		}
		array := v.(*Array)
		fmt.Fprintf(&buf, "%#08x %s\n", k.(uint64), array.String())
	}
}

// MemoryFaultError is returned when an access falls outside every mapped
// region.
type MemoryFaultError struct {
	Addr uint64
}

func (e *MemoryFaultError) Error() string {
	return fmt.Sprintf("symex: memory fault: unmapped address %#08x", e.Addr)
}

// ReadOnlyFaultError is returned when a write targets a region marked
// read-only via Memory.SetReadOnly. Array.Store detects the fault and fills
// in ArrayID; Memory.Write fills in Addr once it knows which access
// triggered it.
type ReadOnlyFaultError struct {
	Addr    uint64
	ArrayID uint64
}

func (e *ReadOnlyFaultError) Error() string {
	return fmt.Sprintf("symex: memory fault: write to read-only address %#08x", e.Addr)
}

// uint64Comparer compares two 64-bit unsigned integers. Implements immutable.Comparer.
type uint64Comparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b, and
// returns 0 if a is equal to b.
func (c *uint64Comparer) Compare(a, b interface{}) int {
	if i, j := a.(uint64), b.(uint64); i < j {
		return -1
	} else if i > j {
		return 1
	}
	return 0
}
