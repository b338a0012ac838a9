package stack

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrUnderflow is returned by operations that need more items than the
// stack currently holds.
var ErrUnderflow = errors.New("stack: underflow")

// ErrTypeCheck is returned when a popped value does not have the kind the
// caller needed.
var ErrTypeCheck = errors.New("stack: type check")

// ErrIntegerOverflow is returned when pushing an integer outside the
// 257-bit signed bound in strict (non-quiet) mode.
var ErrIntegerOverflow = errors.New("stack: integer overflow")

// Stack is an ordered sequence of tagged values, top at the end.
type Stack struct {
	items []Value
}

// Depth reports the number of items on the stack.
func (s *Stack) Depth() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Push appends v to the top of the stack.
func (s *Stack) Push(v Value) { s.items = append(s.items, v) }

// Pop removes and returns the top value.
func (s *Stack) Pop() (Value, error) {
	if len(s.items) == 0 {
		return Value{}, ErrUnderflow
	}
	v := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return v, nil
}

// Top returns the top value without removing it.
func (s *Stack) Top() (Value, error) {
	if len(s.items) == 0 {
		return Value{}, ErrUnderflow
	}
	return s.items[len(s.items)-1], nil
}

// PushInt pushes x as an integer value in strict (non-quiet) mode. Every
// int64 lies inside the 257-bit signed range, so the bound never rejects it.
func (s *Stack) PushInt(x int64) error {
	return s.PushRawInt(IntFromInt64(x), false)
}

// PushRawInt pushes the big.Int-backed value v, enforcing the 257-bit
// bound: out of range pushes NaN when quiet, else fails with
// ErrIntegerOverflow.
func (s *Stack) PushRawInt(v Value, quiet bool) error {
	n, ok := v.Int()
	if !ok {
		// Already NaN: pushing NaN is always fine regardless of quiet.
		s.Push(v)
		return nil
	}
	if !InRange(n) {
		if quiet {
			s.Push(NaN())
			return nil
		}
		return ErrIntegerOverflow
	}
	s.Push(v)
	return nil
}

// PushNaN pushes the NaN value.
func (s *Stack) PushNaN() { s.Push(NaN()) }

// PopIntOrNaN pops the top value, returning (value, true) if it is an
// integer, (zero, false) if it is NaN, or an error if it is neither or the
// stack is empty.
func (s *Stack) PopIntOrNaN() (Value, bool, error) {
	v, err := s.Pop()
	if err != nil {
		return Value{}, false, err
	}
	if v.IsNaN() {
		return Value{}, false, nil
	}
	if v.Kind() != KindInt {
		return Value{}, false, ErrTypeCheck
	}
	return v, true, nil
}

// PopInt pops the top value and requires it to be an integer (not NaN).
func (s *Stack) PopInt() (Value, error) {
	v, ok, err := s.PopIntOrNaN()
	if err != nil {
		return Value{}, err
	}
	if !ok {
		return Value{}, ErrTypeCheck
	}
	return v, nil
}

// SplitTop removes and returns the top n items, in their original order.
func (s *Stack) SplitTop(n int) ([]Value, error) {
	if n < 0 || n > len(s.items) {
		return nil, ErrUnderflow
	}
	idx := len(s.items) - n
	out := make([]Value, n)
	copy(out, s.items[idx:])
	s.items = s.items[:idx]
	return out, nil
}

// DropBottom removes the bottom n items, keeping the top of the stack
// intact.
func (s *Stack) DropBottom(n int) error {
	if n < 0 || n > len(s.items) {
		return ErrUnderflow
	}
	s.items = append([]Value(nil), s.items[n:]...)
	return nil
}

// MoveFrom moves the top n items of src onto the top of s, preserving
// order, removing them from src.
func (s *Stack) MoveFrom(src *Stack, n int) error {
	items, err := src.SplitTop(n)
	if err != nil {
		return err
	}
	s.items = append(s.items, items...)
	return nil
}

// Clone returns a deep-enough copy of s: a new backing array; Values
// themselves are copied by value and share any pointed-to cell/slice data,
// a clone-on-write discipline for the stack spine that leaves leaf values'
// own sharing semantics alone.
func (s *Stack) Clone() *Stack {
	if s == nil {
		return &Stack{}
	}
	items := make([]Value, len(s.items))
	copy(items, s.items)
	return &Stack{items: items}
}

// Handle is a reference-counted, copy-on-write handle to a Stack: handlers
// clone the pointer on the hot path and only deep-copy when they are about
// to mutate a Stack some other Handle still observes.
type Handle struct {
	ptr *Stack
	rc  *int32
}

// NewHandle wraps a fresh, uniquely-owned Stack.
func NewHandle(s *Stack) Handle {
	if s == nil {
		s = &Stack{}
	}
	one := int32(1)
	return Handle{ptr: s, rc: &one}
}

// Empty returns a fresh empty, uniquely-owned handle.
func Empty() Handle { return NewHandle(&Stack{}) }

// Get returns the underlying Stack for read-only use.
func (h Handle) Get() *Stack { return h.ptr }

// Share increments the refcount and returns another handle to the same
// underlying Stack (the cheap, non-cloning path).
func (h Handle) Share() Handle {
	atomic.AddInt32(h.rc, 1)
	return h
}

// MakeUnique returns a handle guaranteed to be the sole owner of its
// underlying Stack, cloning it first if other handles are sharing it.
func (h Handle) MakeUnique() Handle {
	if atomic.LoadInt32(h.rc) == 1 {
		return h
	}
	atomic.AddInt32(h.rc, -1)
	one := int32(1)
	return Handle{ptr: h.ptr.Clone(), rc: &one}
}
