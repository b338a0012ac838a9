// Package cont implements the VM's continuation and control-register
// model: the suspended-computation values (Ordinary, Quit, ExcQuit) and
// their Jump transitions. Call, Ret and the stack-shaping jump forms live in
// pkg/vm.
package cont

import (
	"github.com/basso-labs/tvm-go/pkg/cell"
	"github.com/basso-labs/tvm-go/pkg/stack"
)

// Runner is implemented by the VM state so that a Continuation can resume
// execution without cont importing the vm package (which itself depends on
// cont), mirroring the Rust source's `VmState` receiver on `Cont::jump`.
type Runner interface {
	SetCodeSlice(s *cell.Slice, cp uint16) error
	StackHandle() stack.Handle
	SetStack(stack.Handle)
	ControlRegs() *ControlRegs
	Quit0() Continuation
	Quit1() Continuation
}

// Continuation is a suspended computation that can be resumed by
// installing its code into the cursor and transferring control. All
// variants implement stack.Continuation so a Continuation can itself be
// stored as a stack value.
type Continuation interface {
	stack.Continuation
	// Jump transfers control to this continuation: installs its code (if
	// any) into r's cursor and merges its saved control registers.
	Jump(r Runner) (int32, error)
	// ControlData returns this continuation's control data, or nil if it
	// carries none, distinguishing continuations with control data from
	// plain ones like Quit/ExcQuit.
	ControlData() *ControlData
}

// SaveCr is a bitmask of which control registers a call/extract operation
// should capture into a continuation's save list, mirroring the Rust
// source's `SaveCr` bitflags.
type SaveCr uint8

const (
	SaveC0 SaveCr = 1 << iota
	SaveC1
	SaveC2
)

const SaveC0C1 = SaveC0 | SaveC1
const SaveFull = SaveC0C1 | SaveC2

// ControlRegs holds registers c0..c3 (continuations), c4/c5 (data/actions
// cells) and c7 (context tuple).
type ControlRegs struct {
	C  [4]Continuation
	D  [2]*cell.Cell
	C7 stack.Tuple
}

// Preclear clears every slot in r that is set in mask, making room for a
// continuation to overwrite only the slots it declares.
func (r *ControlRegs) Preclear(mask *ControlRegs) {
	if mask == nil {
		return
	}
	for i := range r.C {
		if mask.C[i] != nil {
			r.C[i] = nil
		}
	}
	for i := range r.D {
		if mask.D[i] != nil {
			r.D[i] = nil
		}
	}
	if mask.C7 != nil {
		r.C7 = nil
	}
}

// Merge adopts, for every slot set in src, src's value if our own slot is
// currently empty.
func (r *ControlRegs) Merge(src *ControlRegs) {
	if src == nil {
		return
	}
	for i := range r.C {
		if r.C[i] == nil && src.C[i] != nil {
			r.C[i] = src.C[i]
		}
	}
	for i := range r.D {
		if r.D[i] == nil && src.D[i] != nil {
			r.D[i] = src.D[i]
		}
	}
	if r.C7 == nil && src.C7 != nil {
		r.C7 = src.C7
	}
}

// ControlData is the payload an Ordinary continuation carries: optional
// argument-count requirement, optional saved stack, partial saved control
// registers, and an optional codepage override.
type ControlData struct {
	Nargs *uint16
	Stack *stack.Handle
	Save  ControlRegs
	CP    *uint16
}

// HasStack reports whether this control data carries a non-nil saved
// stack, regardless of whether that stack is itself empty.
func (cd *ControlData) HasStack() bool { return cd != nil && cd.Stack != nil }
