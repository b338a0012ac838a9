package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/basso-labs/tvm-go/pkg/cell"
	"github.com/basso-labs/tvm-go/pkg/cont"
	"github.com/basso-labs/tvm-go/pkg/dispatch"
	"github.com/basso-labs/tvm-go/pkg/exception"
	"github.com/basso-labs/tvm-go/pkg/gas"
)

const testCodepage uint16 = 0

func init() {
	dispatch.Register(dispatch.NewOpcodes(testCodepage).Build())
}

func buildState(t *testing.T, code *cell.Slice) *State {
	t.Helper()
	s, err := NewBuilder().
		WithCode(code).
		WithCodepage(testCodepage).
		WithGasLimits(gas.Limits{Remaining: 1_000_000}).
		Build()
	require.NoError(t, err)
	return s
}

func emptySlice() *cell.Slice { return cell.NewSlice(cell.Empty()) }

func codeWithBits(t *testing.T, n uint) *cell.Slice {
	t.Helper()
	var b cell.Builder
	require.NoError(t, b.StoreUint(0, n))
	c, err := b.Finalize(nil)
	require.NoError(t, err)
	return cell.NewSlice(c)
}

func TestStepEmptyCodeImplicitRet(t *testing.T) {
	s := buildState(t, emptySlice())
	res, err := s.Step()
	require.NoError(t, err)
	require.EqualValues(t, 0, res) // Quit0's exit code, via implicit RET
}

func TestRunReturnsExplicitQuit1(t *testing.T) {
	s := buildState(t, emptySlice())
	s.ControlRegs().C[0] = cont.Quit1
	require.EqualValues(t, 1, s.Run())
}

func TestJumpToOrdinaryInstallsCode(t *testing.T) {
	s := buildState(t, codeWithBits(t, 8))
	callee := codeWithBits(t, 16)

	res, err := s.Jump(cont.NewOrdinarySimple(callee, testCodepage))
	require.NoError(t, err)
	require.EqualValues(t, 0, res)
	require.EqualValues(t, 16, s.RemainingCodeBits())
}

func TestCallThenRetRestoresCaller(t *testing.T) {
	s := buildState(t, codeWithBits(t, 8))
	callee := codeWithBits(t, 16)

	_, err := s.Call(cont.NewOrdinarySimple(callee, testCodepage))
	require.NoError(t, err)
	require.EqualValues(t, 16, s.RemainingCodeBits())

	_, err = s.Ret()
	require.NoError(t, err)
	require.EqualValues(t, 8, s.RemainingCodeBits())
}

func TestCallExtNoControlDataKeepsFullStackForCallee(t *testing.T) {
	s := buildState(t, codeWithBits(t, 8))
	require.NoError(t, s.Stack().PushInt(1))
	require.NoError(t, s.Stack().PushInt(2))
	require.NoError(t, s.Stack().PushInt(3))

	_, err := s.CallExt(cont.Quit1, nil, nil)
	require.NoError(t, err)

	// With no pass_args, the callee keeps the full stack it was called
	// with, and the synthesized return continuation saves an empty one.
	require.EqualValues(t, 3, s.Stack().Depth())

	ret, ok := s.ControlRegs().C[0].(*cont.Ordinary)
	require.True(t, ok)
	require.NotNil(t, ret.Data.Stack)
	require.EqualValues(t, 0, ret.Data.Stack.Get().Depth())
}

func TestJumpExtUnderflowOnExcessNargs(t *testing.T) {
	s := buildState(t, codeWithBits(t, 8))
	nargs := uint16(3)
	callee := &cont.Ordinary{
		Code: codeWithBits(t, 16),
		Data: cont.ControlData{Nargs: &nargs},
	}
	_, err := s.Jump(callee)
	require.Error(t, err)
}

func TestThrowExceptionNoHandlerIsFatal(t *testing.T) {
	s := buildState(t, emptySlice())
	s.ControlRegs().C[2] = nil
	_, err := s.ThrowException(int32(exception.RangeCheckError))
	require.ErrorIs(t, err, ErrNoExceptionHandler)
}

func TestThrowExceptionJumpsToHandler(t *testing.T) {
	s := buildState(t, emptySlice())
	handler := codeWithBits(t, 8)
	s.ControlRegs().C[2] = cont.NewOrdinarySimple(handler, testCodepage)

	_, err := s.ThrowException(int32(exception.RangeCheckError))
	require.NoError(t, err)
	require.EqualValues(t, 8, s.RemainingCodeBits())

	top, err := s.Stack().Pop()
	require.NoError(t, err)
	n, ok := top.Int()
	require.True(t, ok)
	require.EqualValues(t, exception.RangeCheckError, n.Int64())
}

func TestTryCommitRequiresBothCells(t *testing.T) {
	s := buildState(t, emptySlice())
	s.ControlRegs().D[0] = nil
	s.ControlRegs().D[1] = cell.Empty()
	require.False(t, s.TryCommit())
}

func TestTryCommitSucceedsForShallowCells(t *testing.T) {
	s := buildState(t, emptySlice())
	s.ControlRegs().D[0] = cell.Empty()
	s.ControlRegs().D[1] = cell.Empty()
	require.True(t, s.TryCommit())
	require.Equal(t, s.ControlRegs().D[0], s.Committed().C4)
}

func TestTryCommitFailsPastMaxDataDepth(t *testing.T) {
	s := buildState(t, emptySlice())

	c := cell.Empty()
	for i := 0; i < MaxDataDepth+1; i++ {
		var b cell.Builder
		require.NoError(t, b.StoreRef(c))
		next, err := b.Finalize(nil)
		require.NoError(t, err)
		c = next
	}

	s.ControlRegs().D[0] = c
	s.ControlRegs().D[1] = cell.Empty()
	require.False(t, s.TryCommit())
}

func TestForceCommitFailsWithCellOverflow(t *testing.T) {
	s := buildState(t, emptySlice())
	s.ControlRegs().D[0] = nil
	s.ControlRegs().D[1] = nil
	err := s.ForceCommit()
	require.Equal(t, exception.CellOverflow, exception.FromError(err))
}

func TestGasMonotonicallyDecreasesAcrossSteps(t *testing.T) {
	// No handlers are registered for testCodepage, so any non-empty code
	// dispatches into the gap-filled Dummy entry; gas is charged before
	// Dispatch inspects the entry kind, so the charge still lands even
	// though the step itself fails with an invalid-opcode error.
	s := buildState(t, codeWithBits(t, 16))
	before := s.GasMeter().Remaining
	_, err := s.Step()
	require.Error(t, err)
	require.Less(t, s.GasMeter().Remaining, before)
}
