// Package arith implements the arithmetic instruction family: integer
// constant pushes and binary/unary arithmetic over the VM's
// arbitrary-precision stack integers. It is the one instruction family this
// module implements in full, as the representative of the pattern every
// other family (cell, tuple, dictionary, ...) would follow.
//
// Grounded on Arithops in original_source/src/instr/arithops.rs; each
// handler below is a direct port of the matching exec_* function there,
// adapted from Rc<Stack>/BigInt to this module's stack.Handle/math.Big
// model.
package arith

import (
	"math/big"

	"github.com/hashicorp/go-multierror"
	"github.com/holiman/uint256"

	"github.com/basso-labs/tvm-go/pkg/dispatch"
	"github.com/basso-labs/tvm-go/pkg/exception"
	"github.com/basso-labs/tvm-go/pkg/stack"
)

// execContext is the slice of *vm.State every handler in this family
// needs. It is declared here rather than imported from pkg/vm so that
// arith depends on vm only through this narrow seam (vm never depends on
// arith, so there is no cycle either way, but keeping the seam explicit
// matches the small, handler-local interface style used elsewhere in this
// codebase, e.g. cont.Runner).
type execContext interface {
	dispatch.Context
	Stack() *stack.Stack
	LoadCodeRaw(n uint16) ([]byte, error)
}

func ctxOf(c dispatch.Context) execContext {
	// Every Handler registered by this package is only ever invoked by
	// dispatch.Table.Dispatch with the live *vm.State as ctx (see
	// pkg/vm/step.go), which satisfies execContext. A mismatch here is a
	// wiring bug in the caller, not a runtime condition handlers need to
	// recover from.
	return c.(execContext)
}

// Init registers the whole arithmetic instruction family against o,
// mirroring Arithops::init_int_const_ext plus the per-method #[instr]
// registrations in arithops.rs. Overlap errors from every registration are
// aggregated via multierror instead of stopping at the first one, which is
// useful while a family is still being filled in and several opcode ranges
// may collide — overlap is a build-time check per registration, and
// aggregating lets a caller see every conflict at once.
func Init(o *dispatch.Opcodes) error {
	var errs *multierror.Error

	add := func(err error) {
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	// === Int constants ===
	add(o.AddFixed(0x7, 4, 4, execPushNibble))
	add(o.AddFixed(0x80, 8, 8, execPush8))
	add(o.AddFixed(0x81, 8, 16, execPush16))
	add(o.AddExtRange(0x82<<5, (0x82<<5)+32, 13, execPushIntExt))

	add(o.AddFixedRange(0x8300, 0x83ff, 16, 8, execPushPow2))
	add(o.AddSimple(0x83ff, 16, execPushNaN))
	add(o.AddFixed(0x84, 8, 8, execPushPow2Dec))
	add(o.AddFixed(0x85, 8, 8, execPushNegPow2))

	// === Simple math instructions ===
	add(o.AddSimple(0xa0, 8, binOp(opAdd, false)))
	add(o.AddSimple(0xb7a0, 16, binOp(opAdd, true)))

	add(o.AddSimple(0xa1, 8, binOp(opSub, false)))
	add(o.AddSimple(0xb7a1, 16, binOp(opSub, true)))

	add(o.AddSimple(0xa2, 8, binOp(opSubr, false)))
	add(o.AddSimple(0xb7a2, 16, binOp(opSubr, true)))

	add(o.AddSimple(0xa3, 8, unOp(opNegate, false)))
	add(o.AddSimple(0xb7a3, 16, unOp(opNegate, true)))

	add(o.AddSimple(0xa4, 8, unOp(opInc, false)))
	add(o.AddSimple(0xb7a4, 16, unOp(opInc, true)))

	add(o.AddSimple(0xa5, 8, unOp(opDec, false)))
	add(o.AddSimple(0xb7a5, 16, unOp(opDec, true)))

	add(o.AddFixed(0xa6, 8, 8, immOp(opAddInt, false)))
	add(o.AddFixed(0xb7a6, 16, 8, immOp(opAddInt, true)))

	add(o.AddFixed(0xa7, 8, 8, immOp(opMulInt, false)))
	add(o.AddFixed(0xb7a7, 16, 8, immOp(opMulInt, true)))

	add(o.AddSimple(0xa8, 8, binOp(opMul, false)))
	add(o.AddSimple(0xb7a8, 16, binOp(opMul, true)))

	return errs.ErrorOrNil()
}

// === Integer constant handlers ===

// execPushNibble implements "7x" (PUSHINT x): x = ((args+5) mod 16) - 5.
func execPushNibble(ctx dispatch.Context, arg uint32, bits uint16) (int32, error) {
	x := int64((int32(arg)+5)&0xf) - 5
	return 0, ctxOf(ctx).Stack().PushInt(x)
}

// execPush8 implements "80xx": x is the signed 8-bit argument.
func execPush8(ctx dispatch.Context, arg uint32, bits uint16) (int32, error) {
	x := int64(int8(arg))
	return 0, ctxOf(ctx).Stack().PushInt(x)
}

// execPush16 implements "81xxxx": x is the signed 16-bit argument.
func execPush16(ctx dispatch.Context, arg uint32, bits uint16) (int32, error) {
	x := int64(int16(arg))
	return 0, ctxOf(ctx).Stack().PushInt(x)
}

// execPushIntExt implements the extended PUSHINT: opcode prefix 0x82 plus
// a 5-bit length field l; payload length is
// 3+8*(l+2) bits, read as unsigned big-endian and right-shifted by
// (8 - payload_bits mod 8) mod 8.
//
// This is an Ext handler: dispatch does not auto-advance the cursor, so
// arg is always zero here (see dispatch.Table.Dispatch) and the handler
// re-reads the opcode word itself to recover l before advancing past the
// 13-bit prefix+length field and then the payload.
func execPushIntExt(ctx dispatch.Context, _ uint32, bits uint16) (int32, error) {
	c := ctxOf(ctx)
	word, err := c.PeekCodeBits(bits)
	if err != nil {
		return 0, exception.ErrInvalidOpcode
	}
	l := uint16(word) & 0x1f
	valueLen := 3 + (l+2)*8

	if c.RemainingCodeBits() < bits+valueLen {
		return 0, exception.ErrInvalidOpcode
	}
	if err := c.AdvanceCode(bits); err != nil {
		return 0, exception.ErrInvalidOpcode
	}
	raw, err := c.LoadCodeRaw(valueLen)
	if err != nil {
		return 0, err
	}

	n := decodePayload(raw, valueLen)
	return 0, c.Stack().PushRawInt(stack.Int(n), false)
}

// decodePayload interprets raw as an unsigned big-endian value of valueLen
// bits and right-shifts it by the padding left over from byte-alignment.
// Payloads up to 256 bits stage through a fixed-width uint256.Int to avoid
// an intermediate heap-allocating big.Int for the common case of decoding
// ordinary-size literals; wider payloads (l close to its 31 maximum, up to
// 267 bits) fall back to big.Int directly since they don't fit a 256-bit
// word.
func decodePayload(raw []byte, valueLen uint16) *big.Int {
	shift := uint((8 - valueLen%8) % 8)
	if valueLen <= 256 {
		var w uint256.Int
		w.SetBytes(raw)
		if shift != 0 {
			w.Rsh(&w, shift)
		}
		return w.ToBig()
	}
	n := new(big.Int).SetBytes(raw)
	if shift != 0 {
		n.Rsh(n, shift)
	}
	return n
}

// execPushPow2 implements "83xx" for x in [1,255] (PUSHPOW2): x =
// (arg&0xff)+1; pushes 1<<x. Opcode 0x83ff is carved out as PUSHNAN
// (registered separately, see Init).
func execPushPow2(ctx dispatch.Context, arg uint32, bits uint16) (int32, error) {
	x := uint((arg & 0xff) + 1)
	v := new(big.Int).Lsh(big.NewInt(1), x)
	return 0, ctxOf(ctx).Stack().PushRawInt(stack.Int(v), false)
}

// execPushNaN implements the reserved "83ff" opcode (PUSHNAN).
func execPushNaN(ctx dispatch.Context, _ uint32, _ uint16) (int32, error) {
	ctxOf(ctx).Stack().PushNaN()
	return 0, nil
}

// execPushPow2Dec implements "84xx" (PUSHPOW2DEC): pushes (1<<x)-1 for
// x = (arg&0xff)+1.
func execPushPow2Dec(ctx dispatch.Context, arg uint32, bits uint16) (int32, error) {
	x := uint((arg & 0xff) + 1)
	v := new(big.Int).Lsh(big.NewInt(1), x)
	v.Sub(v, big.NewInt(1))
	return 0, ctxOf(ctx).Stack().PushRawInt(stack.Int(v), false)
}

// execPushNegPow2 implements "85xx" (PUSHNEGPOW2): pushes -(1<<x) for
// x = (arg&0xff)+1.
func execPushNegPow2(ctx dispatch.Context, arg uint32, bits uint16) (int32, error) {
	x := uint((arg & 0xff) + 1)
	v := new(big.Int).Lsh(big.NewInt(1), x)
	v.Neg(v)
	return 0, ctxOf(ctx).Stack().PushRawInt(stack.Int(v), false)
}

// === Binary/unary arithmetic ===

func opAdd(x, y *big.Int) *big.Int  { return new(big.Int).Add(x, y) }
func opSub(x, y *big.Int) *big.Int  { return new(big.Int).Sub(x, y) }
func opSubr(x, y *big.Int) *big.Int { return new(big.Int).Sub(y, x) }
func opMul(x, y *big.Int) *big.Int  { return new(big.Int).Mul(x, y) }

func opNegate(x *big.Int) *big.Int { return new(big.Int).Neg(x) }
func opInc(x *big.Int) *big.Int    { return new(big.Int).Add(x, big.NewInt(1)) }
func opDec(x *big.Int) *big.Int    { return new(big.Int).Sub(x, big.NewInt(1)) }

func opAddInt(x *big.Int, y int64) *big.Int { return new(big.Int).Add(x, big.NewInt(y)) }
func opMulInt(x *big.Int, y int64) *big.Int { return new(big.Int).Mul(x, big.NewInt(y)) }

// binOp builds the handler for a two-operand instruction (ADD/SUB/SUBR/MUL
// and their Q-prefixed quiet counterparts): pop y then x, apply op(x, y),
// push the result. If either operand is NaN, strict mode fails with
// IntegerOverflow and quiet mode pushes NaN, matching exec_add et al. in
// arithops.rs.
func binOp(op func(x, y *big.Int) *big.Int, quiet bool) dispatch.Handler {
	return func(ctx dispatch.Context, _ uint32, _ uint16) (int32, error) {
		s := ctxOf(ctx).Stack()
		y, yOk, err := s.PopIntOrNaN()
		if err != nil {
			return 0, err
		}
		x, xOk, err := s.PopIntOrNaN()
		if err != nil {
			return 0, err
		}
		if !xOk || !yOk {
			if quiet {
				s.PushNaN()
				return 0, nil
			}
			return 0, stack.ErrIntegerOverflow
		}
		xi, _ := x.Int()
		yi, _ := y.Int()
		return 0, s.PushRawInt(stack.Int(op(xi, yi)), quiet)
	}
}

// unOp builds the handler for a one-operand instruction (NEGATE/INC/DEC
// and their quiet counterparts).
func unOp(op func(x *big.Int) *big.Int, quiet bool) dispatch.Handler {
	return func(ctx dispatch.Context, _ uint32, _ uint16) (int32, error) {
		s := ctxOf(ctx).Stack()
		x, ok, err := s.PopIntOrNaN()
		if err != nil {
			return 0, err
		}
		if !ok {
			if quiet {
				s.PushNaN()
				return 0, nil
			}
			return 0, stack.ErrIntegerOverflow
		}
		xi, _ := x.Int()
		return 0, s.PushRawInt(stack.Int(op(xi)), quiet)
	}
}

// immOp builds the handler for ADDINT/MULINT and their quiet counterparts:
// pop x, apply op(x, immediate), push the result. The immediate is encoded
// as a signed 8-bit in-opcode argument ("ADDINT y (a6yy)", "MULINT y
// (a7yy)").
func immOp(op func(x *big.Int, y int64) *big.Int, quiet bool) dispatch.Handler {
	return func(ctx dispatch.Context, arg uint32, _ uint16) (int32, error) {
		y := int64(int8(arg))
		s := ctxOf(ctx).Stack()
		x, ok, err := s.PopIntOrNaN()
		if err != nil {
			return 0, err
		}
		if !ok {
			if quiet {
				s.PushNaN()
				return 0, nil
			}
			return 0, stack.ErrIntegerOverflow
		}
		xi, _ := x.Int()
		return 0, s.PushRawInt(stack.Int(op(xi, y)), quiet)
	}
}
