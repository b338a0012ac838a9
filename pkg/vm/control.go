package vm

import (
	"github.com/pkg/errors"

	"github.com/basso-labs/tvm-go/pkg/cell"
	"github.com/basso-labs/tvm-go/pkg/cont"
	"github.com/basso-labs/tvm-go/pkg/gas"
	"github.com/basso-labs/tvm-go/pkg/stack"
)

// gasBaseInstruction is the exception-gas charge levied by throwException
// before jumping to c2. No dedicated rate is defined for it, so it charges
// the same base rate as every other instruction.
func gasBaseInstruction() uint64 { return gas.BaseInstructionGas }

// ErrNoExceptionHandler is the fatal error raised when throwException finds
// no handler installed in c2.
var ErrNoExceptionHandler = errors.New("vm: no exception handler installed")

// Jump transfers control to cont: continuations that declare a saved stack
// or nargs go through JumpExt; all others run directly, since nothing about
// the current stack needs to change.
func (s *State) Jump(c cont.Continuation) (int32, error) {
	if cd := c.ControlData(); cd != nil && (cd.HasStack() || cd.Nargs != nil) {
		return s.JumpExt(c, nil)
	}
	return c.Jump(s)
}

// JumpExt transfers control to cont, shaping the stack first. When passArgs
// is non-nil, at most that many of the current stack's top items are made
// available to the continuation.
func (s *State) JumpExt(c cont.Continuation, passArgs *uint16) (int32, error) {
	cd := c.ControlData()
	if cd != nil {
		currentDepth := uint16(s.stackHandle.Get().Depth())

		var passArgsVal, nargsVal uint16
		if passArgs != nil {
			passArgsVal = *passArgs
		}
		if cd.Nargs != nil {
			nargsVal = *cd.Nargs
		}
		if (passArgs != nil && passArgsVal > currentDepth) || (cd.Nargs != nil && nargsVal > currentDepth) {
			return 0, stack.ErrUnderflow
		}
		if passArgs != nil && cd.Nargs != nil && nargsVal > passArgsVal {
			return 0, stack.ErrUnderflow
		}

		s.ControlRegs().Preclear(&cd.Save)

		nextDepth := currentDepth
		if cd.Nargs != nil {
			nextDepth = nargsVal
		} else if passArgs != nil {
			nextDepth = passArgsVal
		}

		switch {
		case cd.HasStack() && cd.Stack.Get().Depth() > 0:
			// The continuation carries a non-empty saved stack: move the
			// top next_depth items of the current stack onto it,
			// preserving order, and make it the active stack.
			dst := cd.Stack.MakeUnique()
			if err := dst.Get().MoveFrom(s.Stack(), int(nextDepth)); err != nil {
				return 0, err
			}
			s.SetStack(dst)
		case nextDepth < currentDepth:
			if err := s.Stack().DropBottom(int(currentDepth - nextDepth)); err != nil {
				return 0, err
			}
		default:
			// leave the current stack untouched
		}
	} else if passArgs != nil {
		depth := s.stackHandle.Get().Depth()
		if int(*passArgs) > depth {
			return 0, stack.ErrUnderflow
		}
		if diff := depth - int(*passArgs); diff > 0 {
			if err := s.Stack().DropBottom(diff); err != nil {
				return 0, err
			}
		}
	}

	return c.Jump(s)
}

// Call invokes cont as a subroutine: builds a return continuation over the
// current code cursor, installs it as c0, and transfers control.
func (s *State) Call(c cont.Continuation) (int32, error) {
	if cd := c.ControlData(); cd != nil {
		if cd.Save.C[0] != nil {
			return s.Jump(c)
		}
		if cd.HasStack() || cd.Nargs != nil {
			return s.CallExt(c, nil, nil)
		}
	}

	ret := cont.NewOrdinarySimple(s.code, s.cp)
	ret.Data.Save.C[0] = s.cr.C[0]
	s.cr.C[0] = ret

	return c.Jump(s)
}

// CallExt is the call form that shapes argument lists identically to
// JumpExt, additionally recording retArgs on the synthesized return
// continuation.
func (s *State) CallExt(c cont.Continuation, passArgs, retArgs *uint16) (int32, error) {
	cd := c.ControlData()
	if cd != nil && cd.Save.C[0] != nil {
		return s.Jump(c)
	}

	if cd != nil {
		depth := uint16(s.stackHandle.Get().Depth())
		var passArgsVal, nargsVal uint16
		if passArgs != nil {
			passArgsVal = *passArgs
		}
		if cd.Nargs != nil {
			nargsVal = *cd.Nargs
		}
		if (passArgs != nil && passArgsVal > depth) || (cd.Nargs != nil && nargsVal > depth) {
			return 0, stack.ErrUnderflow
		}
		if passArgs != nil && cd.Nargs != nil && nargsVal > passArgsVal {
			return 0, stack.ErrUnderflow
		}

		oldC0 := s.cr.C[0]
		s.cr.C[0] = nil
		s.ControlRegs().Preclear(&cd.Save)

		nextDepth := depth
		if cd.Nargs != nil {
			nextDepth = nargsVal
		} else if passArgs != nil {
			nextDepth = passArgsVal
		}

		// Build the return continuation over the current code, saving the
		// piece of the current stack the callee does not receive.
		var keepForReturn *stack.Stack
		switch {
		case cd.HasStack() && cd.Stack.Get().Depth() > 0:
			// Symmetric to JumpExt's analogous branch.
			remainder, err := s.Stack().SplitTop(s.stackHandle.Get().Depth())
			if err != nil {
				return 0, err
			}
			keepForReturn = &stack.Stack{}
			if int(nextDepth) <= len(remainder) {
				toCallee := remainder[len(remainder)-int(nextDepth):]
				for _, v := range remainder[:len(remainder)-int(nextDepth)] {
					keepForReturn.Push(v)
				}
				dst := cd.Stack.MakeUnique()
				for _, v := range toCallee {
					dst.Get().Push(v)
				}
				s.SetStack(dst)
			}
		case nextDepth < depth:
			items, err := s.Stack().SplitTop(int(depth))
			if err != nil {
				return 0, err
			}
			keepForReturn = &stack.Stack{}
			for _, v := range items[:depth-nextDepth] {
				keepForReturn.Push(v)
			}
			cur := s.Stack()
			for _, v := range items[depth-nextDepth:] {
				cur.Push(v)
			}
		default:
			keepForReturn = &stack.Stack{}
		}

		ret := &cont.Ordinary{
			Code: s.code,
			Data: cont.ControlData{
				Nargs: retArgs,
				Stack: ptrHandle(stack.NewHandle(keepForReturn)),
				CP:    cpPtr(s.cp),
			},
		}
		ret.Data.Save.C[0] = oldC0
		s.cr.C[0] = ret

		return c.Jump(s)
	}

	// Simple case without continuation data: shape by pass_args alone. With
	// no pass_args, the callee keeps the full current stack and the return
	// continuation saves an empty one; with pass_args, the callee gets the
	// top passArgs items and the return continuation saves what remains.
	var calleeHandle, returnHandle stack.Handle
	if passArgs != nil {
		depth := s.stackHandle.Get().Depth()
		if int(*passArgs) > depth {
			return 0, stack.ErrUnderflow
		}
		top, err := s.Stack().SplitTop(int(*passArgs))
		if err != nil {
			return 0, err
		}
		calleeStack := &stack.Stack{}
		for _, v := range top {
			calleeStack.Push(v)
		}
		calleeHandle = stack.NewHandle(calleeStack)
		returnHandle = s.stackHandle
	} else {
		calleeHandle = s.stackHandle
		returnHandle = stack.NewHandle(&stack.Stack{})
	}

	s.stackHandle = calleeHandle

	ret := &cont.Ordinary{
		Code: s.code,
		Data: cont.ControlData{
			Nargs: retArgs,
			Stack: ptrHandle(returnHandle),
			CP:    cpPtr(s.cp),
		},
	}
	ret.Data.Save.C[0] = s.cr.C[0]
	s.cr.C[0] = ret

	return c.Jump(s)
}

// Ret returns via c0: takes cr.c[0], substitutes back the stored quit0, and
// jumps to the taken continuation.
func (s *State) Ret() (int32, error) {
	c, err := s.takeC0()
	if err != nil {
		return 0, err
	}
	return s.Jump(c)
}

// RetExt returns via c0, passing exactly n arguments.
func (s *State) RetExt(n *uint16) (int32, error) {
	c, err := s.takeC0()
	if err != nil {
		return 0, err
	}
	return s.JumpExt(c, n)
}

// RetAlt returns via c1.
func (s *State) RetAlt() (int32, error) {
	c, err := s.takeC1()
	if err != nil {
		return 0, err
	}
	return s.Jump(c)
}

// RetAltExt returns via c1, passing exactly n arguments.
func (s *State) RetAltExt(n *uint16) (int32, error) {
	c, err := s.takeC1()
	if err != nil {
		return 0, err
	}
	return s.JumpExt(c, n)
}

func (s *State) takeC0() (cont.Continuation, error) {
	c := s.cr.C[0]
	s.cr.C[0] = s.quit0
	if c == nil {
		return nil, errExceptionMissing
	}
	return c, nil
}

func (s *State) takeC1() (cont.Continuation, error) {
	c := s.cr.C[1]
	s.cr.C[1] = s.quit1
	if c == nil {
		return nil, errExceptionMissing
	}
	return c, nil
}

var errExceptionMissing = errors.New("vm: invalid opcode: no continuation installed")

// ThrowException raises VM exception n: replaces the stack with [0, n],
// clears the code cursor, and jumps to c2.
func (s *State) ThrowException(n int32) (int32, error) {
	return s.throwException(n)
}

func (s *State) throwException(n int32) (int32, error) {
	st := &stack.Stack{}
	st.Push(stack.IntFromInt64(0))
	st.Push(stack.IntFromInt64(int64(n)))
	s.stackHandle = stack.NewHandle(st)
	s.code = cell.NewSlice(cell.Empty())

	if err := s.gasMeter.TryConsume(gasBaseInstruction()); err != nil {
		return 0, err
	}

	c2 := s.cr.C[2]
	if c2 == nil {
		return 0, ErrNoExceptionHandler
	}
	return s.Jump(c2)
}

// ThrowExceptionWithArg raises VM exception n with arg left under it on
// the stack instead of the default 0.
func (s *State) ThrowExceptionWithArg(n int32, arg stack.Value) (int32, error) {
	st := &stack.Stack{}
	st.Push(arg)
	st.Push(stack.IntFromInt64(int64(n)))
	s.stackHandle = stack.NewHandle(st)
	s.code = cell.NewSlice(cell.Empty())

	if err := s.gasMeter.TryConsume(gasBaseInstruction()); err != nil {
		return 0, err
	}

	c2 := s.cr.C[2]
	if c2 == nil {
		return 0, ErrNoExceptionHandler
	}
	return s.Jump(c2)
}

func ptrHandle(h stack.Handle) *stack.Handle { return &h }

func cpPtr(cp uint16) *uint16 { return &cp }
