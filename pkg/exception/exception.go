// Package exception defines the VM's stable exception taxonomy and the
// translation from Go errors raised by instruction handlers into exception
// codes.
package exception

import (
	"errors"

	"github.com/basso-labs/tvm-go/pkg/cell"
	"github.com/basso-labs/tvm-go/pkg/gas"
	"github.com/basso-labs/tvm-go/pkg/stack"
)

// Code is a stable VM exception code, used both as the argument pushed
// ahead of THROW-style exceptions and as the process exit code when an
// exception escapes uncaught.
type Code int32

// The stable exception codes.
const (
	NormalTermination      Code = 0
	AlternativeTermination Code = 1
	StackUnderflow         Code = 2
	StackOverflow          Code = 3
	IntegerOverflow        Code = 4
	RangeCheckError        Code = 5
	InvalidOpcode          Code = 6
	TypeCheckError         Code = 7
	CellOverflow           Code = 8
	CellUnderflow          Code = 9
	DictError              Code = 10
	Unknown                Code = 11
	Fatal                  Code = 12
	OutOfGas               Code = 13
)

// FromError maps an error raised by a handler or by the dispatch/cell
// layers to its stable exception code. Unrecognized errors
// map to Unknown.
func FromError(err error) Code {
	var ce codeError
	switch {
	case err == nil:
		return NormalTermination
	case errorsAsCodeError(err, &ce):
		return Code(ce)
	case errors.Is(err, gas.ErrOutOfGas):
		return OutOfGas
	case errors.Is(err, stack.ErrUnderflow):
		return StackUnderflow
	case errors.Is(err, stack.ErrIntegerOverflow):
		return IntegerOverflow
	case errors.Is(err, stack.ErrTypeCheck):
		return TypeCheckError
	case errors.Is(err, cell.ErrUnderflow):
		return CellUnderflow
	case errors.Is(err, cell.ErrOverflow):
		return CellOverflow
	case errors.Is(err, ErrInvalidOpcode):
		return InvalidOpcode
	default:
		return Unknown
	}
}

// ErrInvalidOpcode is raised by dummy dispatch entries and by handlers that
// reject a malformed opcode word.
var ErrInvalidOpcode = errors.New("exception: invalid opcode")

// ExitCode is the i32 process/run exit code corresponding to c.
func (c Code) ExitCode() int32 { return int32(c) }

// codeError adapts a Code to the plain error interface so callers outside
// a handler (e.g. ForceCommit) can return it through ordinary Go error
// plumbing.
type codeError Code

func (e codeError) Error() string { return Code(e).String() }

func errorsAsCodeError(err error, target *codeError) bool {
	return errors.As(err, target)
}

// AsError wraps c as an error whose FromError mapping round-trips back to
// c, for every code.
func (c Code) AsError() error { return codeError(c) }

// String names the exception code for logging and error messages.
func (c Code) String() string {
	switch c {
	case NormalTermination:
		return "normal termination"
	case AlternativeTermination:
		return "alternative termination"
	case StackUnderflow:
		return "stack underflow"
	case StackOverflow:
		return "stack overflow"
	case IntegerOverflow:
		return "integer overflow"
	case RangeCheckError:
		return "range check error"
	case InvalidOpcode:
		return "invalid opcode"
	case TypeCheckError:
		return "type check error"
	case CellOverflow:
		return "cell overflow"
	case CellUnderflow:
		return "cell underflow"
	case DictError:
		return "dict error"
	case Fatal:
		return "fatal"
	case OutOfGas:
		return "out of gas"
	default:
		return "unknown exception"
	}
}
