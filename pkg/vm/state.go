// Package vm implements the VM state machine: the code cursor, stack,
// control registers, gas meter, codepage, and step counter, plus the
// control-flow operations (step, run, jump, call, ret, throw_exception,
// try_commit) that drive them.
package vm

import (
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/basso-labs/tvm-go/pkg/cell"
	"github.com/basso-labs/tvm-go/pkg/cont"
	"github.com/basso-labs/tvm-go/pkg/dispatch"
	"github.com/basso-labs/tvm-go/pkg/exception"
	"github.com/basso-labs/tvm-go/pkg/gas"
	"github.com/basso-labs/tvm-go/pkg/stack"
)

// MaxDataDepth is the maximum representation depth a committed c4/c5 cell
// may have.
const MaxDataDepth = 512

// CommittedState holds the post-state snapshot taken by TryCommit.
type CommittedState struct {
	C4, C5 *cell.Cell
}

// State is a running (or freshly built) VM instance. It is not
// goroutine-safe; a single goroutine owns and drives one State.
type State struct {
	code *cell.Slice
	cp   uint16

	stackHandle stack.Handle
	cr          cont.ControlRegs

	committed *CommittedState
	steps     uint64

	gasMeter *gas.Meter
	gasCtx   *gas.Context

	quit0, quit1 cont.Continuation

	debug  io.Writer
	logger hclog.Logger
}

var _ cont.Runner = (*State)(nil)
var _ dispatch.Context = (*State)(nil)

// Steps reports the number of steps executed so far.
func (s *State) Steps() uint64 { return s.steps }

// Committed returns the last committed {c4, c5} state, or nil if the VM has
// never committed.
func (s *State) Committed() *CommittedState { return s.committed }

// Stack returns the current stack for in-place mutation by an instruction
// handler, making it uniquely owned first (copy-on-write).
func (s *State) Stack() *stack.Stack {
	s.stackHandle = s.stackHandle.MakeUnique()
	return s.stackHandle.Get()
}

// StackHandle implements cont.Runner.
func (s *State) StackHandle() stack.Handle { return s.stackHandle }

// SetStack implements cont.Runner.
func (s *State) SetStack(h stack.Handle) { s.stackHandle = h }

// ControlRegs implements cont.Runner.
func (s *State) ControlRegs() *cont.ControlRegs { return &s.cr }

// Quit0 implements cont.Runner.
func (s *State) Quit0() cont.Continuation { return s.quit0 }

// Quit1 implements cont.Runner.
func (s *State) Quit1() cont.Continuation { return s.quit1 }

// GasMeter returns the VM's gas meter.
func (s *State) GasMeter() *gas.Meter { return s.gasMeter }

// AdvanceCode implements dispatch.Context.
func (s *State) AdvanceCode(bits uint16) error {
	return s.code.Advance(bits, 0)
}

// RemainingCodeBits implements dispatch.Context.
func (s *State) RemainingCodeBits() uint16 {
	return s.code.BitsLeft()
}

// PeekCodeBits implements dispatch.Context.
func (s *State) PeekCodeBits(n uint16) (uint64, error) {
	return s.code.GetUint(0, n)
}

// LoadCodeRaw advances past n bits of code and returns them big-endian
// packed, for Ext handlers that read their own payload (e.g. PUSHINT's
// extended form).
func (s *State) LoadCodeRaw(n uint16) ([]byte, error) {
	return s.code.LoadRaw(n)
}

// SetCodeSlice implements cont.Runner: installs slice as the code cursor
// and switches to codepage cp.
func (s *State) SetCodeSlice(sl *cell.Slice, cp uint16) error {
	s.code = sl
	return s.forceCP(cp)
}

func (s *State) forceCP(cp uint16) error {
	if _, ok := dispatch.Lookup(cp); !ok {
		return exception.ErrInvalidOpcode
	}
	s.cp = cp
	return nil
}

// debugf writes a formatted line to the debug sink, if one was configured.
func (s *State) debugf(format string, args ...interface{}) {
	if s.debug == nil {
		return
	}
	_, _ = fmt.Fprintf(s.debug, format+"\n", args...)
}

// Builder constructs a State.
type Builder struct {
	code         *cell.Slice
	data         *cell.Cell
	initialStack []stack.Value
	c7           stack.Tuple
	sameC3       bool
	withoutPush0 bool
	debug        io.Writer
	limits       gas.Limits
	codepage     uint16
	logger       hclog.Logger
}

// NewBuilder returns a Builder with an empty code slice and default (zero)
// gas limits.
func NewBuilder() *Builder {
	return &Builder{code: cell.NewSlice(cell.Empty())}
}

// WithCode sets the initial code slice.
func (b *Builder) WithCode(s *cell.Slice) *Builder { b.code = s; return b }

// WithData installs data as c4.
func (b *Builder) WithData(data *cell.Cell) *Builder { b.data = data; return b }

// WithStack sets the initial stack contents, bottom first.
func (b *Builder) WithStack(values []stack.Value) *Builder { b.initialStack = values; return b }

// WithC7 sets the c7 context tuple.
func (b *Builder) WithC7(c7 stack.Tuple) *Builder { b.c7 = c7; return b }

// WithSameC3 toggles installing the code itself as c3, so ordinary dispatch
// originates from it.
func (b *Builder) WithSameC3(v bool) *Builder { b.sameC3 = v; return b }

// WithoutPush0 toggles suppressing the implicit PUSHINT 0 prologue
// otherwise pushed when SameC3 is set.
func (b *Builder) WithoutPush0(v bool) *Builder { b.withoutPush0 = v; return b }

// WithDebugSink installs a write-only text stream for per-step tracing.
func (b *Builder) WithDebugSink(w io.Writer) *Builder { b.debug = w; return b }

// WithGasLimits sets the host-supplied gas limits.
func (b *Builder) WithGasLimits(l gas.Limits) *Builder { b.limits = l; return b }

// WithCodepage selects the initial codepage id (default 0).
func (b *Builder) WithCodepage(cp uint16) *Builder { b.codepage = cp; return b }

// WithLogger installs the ambient structured logger used for Run's
// exception-handling and commit-failure diagnostics (distinct from the debug
// sink, which is a plain per-step trace stream per the exposed Builder
// contract).
func (b *Builder) WithLogger(l hclog.Logger) *Builder { b.logger = l; return b }

// Build produces a ready State.
func (b *Builder) Build() (*State, error) {
	if _, ok := dispatch.Lookup(b.codepage); !ok {
		return nil, errors.Errorf("vm: codepage %d is not registered", b.codepage)
	}

	logger := b.logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	items := append([]stack.Value(nil), b.initialStack...)
	if b.sameC3 && !b.withoutPush0 {
		items = append(items, stack.IntFromInt64(0))
	}

	data := b.data
	if data == nil {
		data = cell.Empty()
	}

	var c3 cont.Continuation
	if b.sameC3 {
		c3 = cont.NewOrdinarySimple(b.code.Clone(), b.codepage)
	} else {
		c3 = &cont.Quit{ExitCode: exception.Unknown.ExitCode()}
	}

	s := &State{
		code: b.code,
		cp:   b.codepage,
		cr: cont.ControlRegs{
			C:  [4]cont.Continuation{cont.Quit0, cont.Quit1, cont.ExcQuit0, c3},
			D:  [2]*cell.Cell{data, cell.Empty()},
			C7: b.c7,
		},
		stackHandle: stack.NewHandle(&stack.Stack{}),
		quit0:       cont.Quit0,
		quit1:       cont.Quit1,
		debug:       b.debug,
		logger:      logger,
	}
	for _, v := range items {
		s.Stack().Push(v)
	}

	s.gasMeter = gas.NewMeter(b.limits)
	s.gasCtx = gas.NewContext(s.gasMeter)
	return s, nil
}
