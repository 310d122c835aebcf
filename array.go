package symex

import (
	"fmt"
)

// Array represents a byte-addressable memory region: an ELF section's
// backing bytes, or a stack frame's storage. Bytes with no update entry
// read back as fresh symbolic values, which is what gives an
// uninitialized stack region "unconstrained on first read" semantics for
// free, without any special-casing in the executor.
type Array struct {
	ID      uint64       // unique id
	Size    uint         // width, in bytes
	Updates *ArrayUpdate // linked list of symbolic updates

	// ReadOnly marks a region backed by non-writable storage, e.g. an ELF
	// .text or .rodata section mapped without SHF_WRITE. Store refuses to
	// write to such a region and returns a ReadOnlyFaultError instead.
	ReadOnly bool
}

// NewArray returns a new Array of the given size.
func NewArray(id uint64, size uint) *Array {
	return &Array{
		ID:   id,
		Size: size,
	}
}

// String returns a string representation of the array.
func (a *Array) String() string {
	suffix := ""
	if a.ReadOnly {
		suffix = " ro"
	}
	if a.ID != 0 {
		return fmt.Sprintf("(array #%d %d%s)", a.ID, a.Size, suffix)
	}
	return fmt.Sprintf("(array %d%s)", a.Size, suffix)
}

// Clone returns a copy of the array.
func (a *Array) Clone() *Array {
	return &Array{
		ID:       a.ID,
		Size:     a.Size,
		Updates:  a.Updates,
		ReadOnly: a.ReadOnly,
	}
}

// zero initializes all bytes to zero in-place. Panic if updates already exist.
func (a *Array) zero() {
	assert(a.Updates == nil, "symex.Array: cannot zero-initialize array with updates")
	for i := uint((0)); i < a.Size; i++ {
		if err := a.storeByte(NewConstantExpr64(uint64(i)), NewConstantExpr(0, 8)); err != nil {
			panic(err) // i < a.Size by construction; cannot happen
		}
	}
}

// Select reads a value from the array. Unlike storeByte's bounds check,
// a symbolic offset can't be range-checked up front: it is only caught once
// resolveAddress has narrowed it to concrete candidates, so a read that
// straddles the end of the region surfaces here as an ArrayBoundsError
// rather than fabricating a fresh byte for whatever comes after it. Real
// firmware addresses aren't fully controlled the way a synthetic test
// program's heap is, so an out-of-range access is a fault to route back to
// the path as Errored, not a condition to assert away.
func (a *Array) Select(offset Expr, width uint, isLittleEndian bool) (Expr, error) {
	assert(width > 0, "select: invalid width")

	offset = newZExtExpr(offset, Width64)

	if width == WidthBool {
		b, err := a.selectByte(offset)
		if err != nil {
			return nil, err
		}
		return NewExtractExpr(b, 0, WidthBool), nil
	}

	// Handle read byte-by-byte.
	var result Expr
	for i, n := uint64(0), uint64(width)/8; i != n; i++ {
		byteOffset := i
		if !isLittleEndian {
			byteOffset = (n - i - 1)
		}

		value, err := a.selectByte(NewBinaryExpr(ADD, offset, NewConstantExpr64(byteOffset)))
		if err != nil {
			return nil, err
		}
		if i == 0 {
			result = value
		} else {
			result = NewConcatExpr(value, result)
		}
	}
	return result, nil
}

// selectByte reads a single byte from the array.
//
// Attempts to find a concrete value by traversing the array update history.
// Falls back to a select expression if either the selected index or an update's
// index is symbolic.
func (a *Array) selectByte(index Expr) (Expr, error) {
	assert(ExprWidth(index) == 64, "selectByte: invalid array index width: %d", ExprWidth(index))
	if c, ok := index.(*ConstantExpr); ok && c.Value >= uint64(a.Size) {
		return nil, &ArrayBoundsError{ArrayID: a.ID, Index: c.Value, Size: a.Size}
	}
	for upd := a.Updates; upd != nil; upd = upd.Next {
		cond, ok := NewBinaryExpr(EQ, index, upd.Index).(*ConstantExpr)
		if !ok {
			break // found symbolic index, exit
		} else if cond.IsTrue() {
			return upd.Value, nil
		}
	}
	return NewSelectExpr(a, index), nil
}

// Store writes a value at an offset, returning a new copy of the array.
// Fails on a region marked ReadOnly (an ELF .text/.rodata section mapped
// without SHF_WRITE) or on a write that would land outside the region,
// mirroring Select's fault instead of silently discarding the write.
func (a *Array) Store(offset, value Expr, isLittleEndian bool) (*Array, error) {
	if a.ReadOnly {
		return nil, &ReadOnlyFaultError{ArrayID: a.ID}
	}

	other := a.Clone()

	offset = newZExtExpr(offset, Width64)

	// Treat bool specially, it is the only non-byte sized write we allow.
	width := ExprWidth(value)
	assert(width > 0, "store: invalid width")
	if width == WidthBool {
		if err := other.storeByte(offset, value); err != nil {
			return nil, err
		}
		return other, nil
	}

	// Otherwise, follow the slow general case.
	for i, n := uint64(0), uint64(width)/8; i != n; i++ {
		byteOffset := i
		if !isLittleEndian {
			byteOffset = (n - i - 1)
		}

		if err := other.storeByte(NewBinaryExpr(ADD, offset, NewConstantExpr64(uint64(byteOffset))), NewExtractExpr(value, uint(i*8), Width8)); err != nil {
			return nil, err
		}
	}
	return other, nil
}

// storeByte writes a single byte to the array.
func (a *Array) storeByte(index, value Expr) error {
	assert(ExprWidth(index) == 64, "storeByte: invalid array index width: %d", ExprWidth(index))

	// Verify constant is not out of bounds.
	if index, ok := index.(*ConstantExpr); ok && index.Value >= uint64(a.Size) {
		return &ArrayBoundsError{ArrayID: a.ID, Index: index.Value, Size: a.Size}
	}

	// Add update to the head of the chain.
	a.Updates = NewArrayUpdate(index, value, a.Updates)

	// Remove any previous updates to the index from the chain.
	if index, ok := index.(*ConstantExpr); ok {
		prev := a.Updates
		for upd := prev.Next; upd != nil; upd = upd.Next {
			if updIndex, ok := upd.Index.(*ConstantExpr); !ok {
				break // symbolic index
			} else if index.Value == updIndex.Value {
				prev.Next = upd.Next // matching index, remove
			} else {
				// No matching index: copy the node before relinking past it,
				// since the chain may be shared with the array this one was
				// cloned from.
				cp := *upd
				prev.Next = &cp
				prev = &cp
			}
		}
	}
	return nil
}

// IsSymbolic returns true if any bytes in the array are symbolic.
func (a *Array) IsSymbolic() bool {
	// Mark all bytes with concrete values.
	bytes := make([]bool, a.Size)
	for upd := a.Updates; upd != nil; upd = upd.Next {
		if index, ok := upd.Index.(*ConstantExpr); !ok {
			return true // found symbolic index
		} else if _, ok := upd.Value.(*ConstantExpr); ok {
			bytes[index.Value] = true // index & value are concrete
		}
	}

	for _, isConcrete := range bytes {
		if !isConcrete {
			return true
		}
	}
	return false
}

// Equal returns a boolean expression stating if a is equal to other. Two
// regions of identical bytes but differing ReadOnly compare unequal: a
// .rodata section and a stack scratch buffer that happen to hold the same
// bytes are not interchangeable for WCET path comparison, since a later
// write is legal against one and faults against the other.
func (a *Array) Equal(other *Array) Expr {
	// Length and permissions are known at runtime so verify first.
	if a.Size != other.Size || a.ReadOnly != other.ReadOnly {
		return NewBoolConstantExpr(false)
	} else if a.Size == 0 {
		return NewBoolConstantExpr(true)
	}

	// Check equality for every byte.
	// Exit early if any concrete byte is unequal.
	var cond Expr
	for i := uint(0); i < a.Size; i++ {
		// Select one at index from each array. i < a.Size == other.Size, so
		// these are always in bounds.
		index := NewConstantExpr64(uint64(i))
		x, err := a.selectByte(index)
		if err != nil {
			panic(err)
		}
		y, err := other.selectByte(index)
		if err != nil {
			panic(err)
		}

		// Compare bytes, exit if known false.
		expr := newEqExpr(x, y)
		if IsConstantFalse(expr) {
			return NewBoolConstantExpr(false)
		}

		// Initialize or join to existing constraint set.
		if i == 0 {
			cond = expr
		} else {
			cond = newAndExpr(cond, expr)
		}
	}
	return cond
}

// NotEqual returns a boolean expression stating if a is not equal to other.
func (a *Array) NotEqual(other *Array) Expr {
	// Length and permissions are known at runtime so verify first.
	if a.Size != other.Size || a.ReadOnly != other.ReadOnly {
		return NewBoolConstantExpr(true)
	} else if a.Size == 0 {
		return NewBoolConstantExpr(false)
	}

	// Check inequality for every byte.
	// Exit early if any concrete byte is unequal.
	var cond Expr
	for i := uint(0); i < a.Size; i++ {
		// Select one at index from each array. i < a.Size == other.Size, so
		// these are always in bounds.
		index := NewConstantExpr64(uint64(i))
		x, err := a.selectByte(index)
		if err != nil {
			panic(err)
		}
		y, err := other.selectByte(index)
		if err != nil {
			panic(err)
		}

		// Compare bytes, exit if known inequality.
		expr := NewNotExpr(newEqExpr(x, y))
		if IsConstantTrue(expr) {
			return NewBoolConstantExpr(true)
		}

		// Initialize or join to existing constraint set.
		if i == 0 {
			cond = expr
		} else {
			cond = newOrExpr(cond, expr)
		}
	}
	return cond
}

// CompareArray returns an integer comparing two arrays.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareArray(a, b *Array) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == nil && b == nil {
		return 0
	}

	if a.ID < b.ID {
		return -1
	} else if a.ID > b.ID {
		return 1
	}

	if a.Size < b.Size {
		return -1
	} else if a.Size > b.Size {
		return 1
	}

	return CompareArrayUpdate(a.Updates, b.Updates)
}

// ArrayBoundsError is returned by Select or Store when an access — after
// accounting for the width being read or written — would land at or past
// the end of the array. A single out-of-range byte in the middle of a
// multi-byte access is caught here even though the access's starting index
// is in bounds, since Memory only validates the start address before
// dispatching to the region's Array.
type ArrayBoundsError struct {
	ArrayID uint64
	Index   uint64
	Size    uint
}

func (e *ArrayBoundsError) Error() string {
	return fmt.Sprintf("symex: array #%d: index %d out of bounds for size %d", e.ArrayID, e.Index, e.Size)
}

// ArrayUpdate represents a symbolic update to an array.
type ArrayUpdate struct {
	Index Expr // byte index of update
	Value Expr // byte value to update

	Next *ArrayUpdate // linked list of next update
}

// NewArrayUpdate returns a new instance of ArrayUpdate.
func NewArrayUpdate(index, value Expr, next *ArrayUpdate) *ArrayUpdate {
	return &ArrayUpdate{
		Index: newZExtExpr(index, Width64),
		Value: newZExtExpr(value, Width8),
		Next:  next,
	}
}

// CompareArrayUpdate returns an integer comparing two array updates.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareArrayUpdate(a, b *ArrayUpdate) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == nil && b == nil {
		return 0
	}

	if cmp := CompareExpr(a.Index, b.Index); cmp != 0 {
		return cmp
	} else if cmp := CompareExpr(a.Value, b.Value); cmp != 0 {
		return cmp
	}
	return CompareArrayUpdate(a.Next, b.Next)
}
