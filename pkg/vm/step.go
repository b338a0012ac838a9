package vm

import (
	"github.com/basso-labs/tvm-go/pkg/cell"
	"github.com/basso-labs/tvm-go/pkg/cont"
	"github.com/basso-labs/tvm-go/pkg/dispatch"
	"github.com/basso-labs/tvm-go/pkg/exception"
	"github.com/basso-labs/tvm-go/pkg/gas"
	"github.com/basso-labs/tvm-go/pkg/stack"
)

// Step executes exactly one dispatch step: dispatch the next opcode if
// data bits remain, else perform an implicit JMPREF if a reference
// remains, else perform an implicit RET.
func (s *State) Step() (int32, error) {
	s.steps++

	if s.code.BitsLeft() > 0 {
		table, ok := dispatch.Lookup(s.cp)
		if !ok {
			return 0, exception.ErrInvalidOpcode
		}
		return table.Dispatch(s, s.gasMeter.ChargeInstruction)
	}

	// Implicit JMPREF and implicit RET are charged the base instruction rate.
	if err := s.gasMeter.TryConsume(gas.BaseInstructionGas); err != nil {
		return 0, err
	}

	if s.code.RefsLeft() > 0 {
		s.debugf("vm: implicit JMPREF")
		next, err := s.code.GetReference(0)
		if err != nil {
			return 0, err
		}
		loaded, err := s.gasCtx.LoadCell(next, gas.LoadFull)
		if err != nil {
			return 0, err
		}
		c := cont.NewOrdinarySimple(cell.NewSlice(loaded), s.cp)
		return s.Jump(c)
	}

	s.debugf("vm: implicit RET")
	return s.Ret()
}

// Run repeatedly invokes Step until it returns a non-zero result. Errors
// raised by a handler are caught once and translated into a VM exception
// that re-enters dispatch via c2; a second error during that handling is
// fatal.
func (s *State) Run() int32 {
	for {
		res, err := s.Step()
		if err != nil {
			s.steps++
			code := exception.FromError(err)
			s.logger.Debug("handling exception", "code", code, "steps", s.steps)
			res2, err2 := s.throwException(code.ExitCode())
			if err2 != nil {
				fatal := exception.FromError(err2)
				s.logger.Debug("double exception, terminating", "code", fatal)
				return fatal.ExitCode()
			}
			res = res2
		}

		if res != 0 {
			// Try commit exactly when res | 1 == -1, matching the Rust
			// source bit-for-bit.
			if res|1 == -1 && !s.TryCommit() {
				s.logger.Debug("automatic commit failed")
				zero := &stack.Stack{}
				zero.Push(stack.IntFromInt64(0))
				s.stackHandle = stack.NewHandle(zero)
				return exception.CellOverflow.ExitCode()
			}
			return res
		}
	}
}
