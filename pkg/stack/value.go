// Package stack implements the VM's tagged value stack.
package stack

import (
	"math/big"

	"github.com/basso-labs/tvm-go/pkg/cell"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	// KindNaN marks the distinct not-a-number state distinguished from a
	// held integer: a stack slot holding an integer never holds NaN
	// simultaneously.
	KindNaN Kind = iota
	KindInt
	KindCell
	KindSlice
	KindBuilder
	KindCont
	KindTuple
)

// IntBound: integers are signed and fit in [-2^256, 2^256), i.e. 257 bits
// including sign.
var (
	IntMax = new(big.Int).Lsh(big.NewInt(1), 256)                      // 2^256, exclusive upper bound
	IntMin = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 256))    // -2^256, inclusive lower bound
)

// Continuation is implemented by pkg/cont.Continuation; declared here as an
// interface to avoid an import cycle between stack and cont (a continuation
// may carry a saved Stack, and a Stack may hold a continuation value).
type Continuation interface {
	IsContinuation()
}

// Tuple is an ordered sequence of stack values, itself storable on the
// stack.
type Tuple []Value

// Value is a single tagged stack slot.
type Value struct {
	kind   Kind
	i      *big.Int
	c      *cell.Cell
	s      *cell.Slice
	b      *cell.Builder
	cont   Continuation
	tuple  Tuple
}

// Kind reports the value's variant tag.
func (v Value) Kind() Kind { return v.kind }

// NaN returns the NaN value.
func NaN() Value { return Value{kind: KindNaN} }

// Int wraps x as an integer value. Int itself does no range check;
// Stack.PushRawInt enforces the 257-bit bound when the value is pushed.
func Int(x *big.Int) Value { return Value{kind: KindInt, i: x} }

// IntFromInt64 is a convenience wrapper around Int.
func IntFromInt64(x int64) Value { return Int(big.NewInt(x)) }

// CellValue wraps a *cell.Cell as a stack value.
func CellValue(c *cell.Cell) Value { return Value{kind: KindCell, c: c} }

// SliceValue wraps a *cell.Slice as a stack value.
func SliceValue(s *cell.Slice) Value { return Value{kind: KindSlice, s: s} }

// BuilderValue wraps a *cell.Builder as a stack value.
func BuilderValue(b *cell.Builder) Value { return Value{kind: KindBuilder, b: b} }

// ContValue wraps a Continuation as a stack value.
func ContValue(c Continuation) Value { return Value{kind: KindCont, cont: c} }

// TupleValue wraps a Tuple as a stack value.
func TupleValue(t Tuple) Value { return Value{kind: KindTuple, tuple: t} }

// Int returns the held integer and true, or (nil, false) if this value is
// not an integer (including when it is NaN).
func (v Value) Int() (*big.Int, bool) {
	if v.kind != KindInt {
		return nil, false
	}
	return v.i, true
}

// IsNaN reports whether this value is the NaN variant.
func (v Value) IsNaN() bool { return v.kind == KindNaN }

// Cell returns the held cell and true, or (nil, false) otherwise.
func (v Value) Cell() (*cell.Cell, bool) {
	if v.kind != KindCell {
		return nil, false
	}
	return v.c, true
}

// Slice returns the held slice and true, or (nil, false) otherwise.
func (v Value) Slice() (*cell.Slice, bool) {
	if v.kind != KindSlice {
		return nil, false
	}
	return v.s, true
}

// Builder returns the held builder and true, or (nil, false) otherwise.
func (v Value) Builder() (*cell.Builder, bool) {
	if v.kind != KindBuilder {
		return nil, false
	}
	return v.b, true
}

// Cont returns the held continuation and true, or (nil, false) otherwise.
func (v Value) Cont() (Continuation, bool) {
	if v.kind != KindCont {
		return nil, false
	}
	return v.cont, true
}

// InRange reports whether x fits the 257-bit signed stack-integer bound.
func InRange(x *big.Int) bool {
	return x.Cmp(IntMin) >= 0 && x.Cmp(IntMax) < 0
}
