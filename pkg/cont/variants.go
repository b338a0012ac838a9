package cont

import (
	"github.com/basso-labs/tvm-go/pkg/cell"
)

// Ordinary is a continuation over a code slice, carrying optional saved
// stack, registers and argument count.
type Ordinary struct {
	Code *cell.Slice
	Data ControlData
}

var _ Continuation = (*Ordinary)(nil)

// NewOrdinarySimple builds an Ordinary continuation over code in codepage
// cp with no saved stack, registers, or nargs — the common case used for
// JMPREF targets and for return continuations built from the current code
// cursor.
func NewOrdinarySimple(code *cell.Slice, cp uint16) *Ordinary {
	return &Ordinary{Code: code, Data: ControlData{CP: &cp}}
}

// IsContinuation implements stack.Continuation.
func (o *Ordinary) IsContinuation() {}

// ControlData implements Continuation.
func (o *Ordinary) ControlData() *ControlData { return &o.Data }

// Jump implements Continuation: installs the continuation's code into the
// runner's cursor, at its declared codepage, and merges in any saved
// control registers over the runner's current ones.
func (o *Ordinary) Jump(r Runner) (int32, error) {
	cp := uint16(0)
	if o.Data.CP != nil {
		cp = *o.Data.CP
	}
	if err := r.SetCodeSlice(o.Code, cp); err != nil {
		return 0, err
	}
	r.ControlRegs().Merge(&o.Data.Save)
	return 0, nil
}

// Quit is a continuation that terminates the VM run with a fixed exit
// code.
type Quit struct {
	ExitCode int32
}

var _ Continuation = (*Quit)(nil)

// IsContinuation implements stack.Continuation.
func (q *Quit) IsContinuation() {}

// ControlData implements Continuation: Quit carries none.
func (q *Quit) ControlData() *ControlData { return nil }

// Jump implements Continuation: Quit never resumes execution, it returns
// its exit code directly to the step loop.
func (q *Quit) Jump(r Runner) (int32, error) {
	return q.ExitCode, nil
}

// ExcQuit is a continuation that rethrows whatever exception is currently
// propagating. It is used as the default c2 installed before a handler
// ever has a chance to set its own exception handler.
type ExcQuit struct{}

var _ Continuation = (*ExcQuit)(nil)

// IsContinuation implements stack.Continuation.
func (e *ExcQuit) IsContinuation() {}

// ControlData implements Continuation: ExcQuit carries none.
func (e *ExcQuit) ControlData() *ControlData { return nil }

// Jump implements Continuation. ExcQuit is only ever reached from
// VmState.throwException, which has already placed the exception code on
// the stack; rethrowing simply means surfacing it as the run's exit code,
// so Jump returns a Fatal-style negative result the caller propagates.
func (e *ExcQuit) Jump(r Runner) (int32, error) {
	return -1, nil
}
