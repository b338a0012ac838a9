package arith

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/basso-labs/tvm-go/pkg/cell"
	"github.com/basso-labs/tvm-go/pkg/dispatch"
	"github.com/basso-labs/tvm-go/pkg/gas"
	"github.com/basso-labs/tvm-go/pkg/stack"
	"github.com/basso-labs/tvm-go/pkg/vm"
)

const testCodepage = 0

func init() {
	o := dispatch.NewOpcodes(testCodepage)
	if err := Init(o); err != nil {
		panic(err)
	}
	dispatch.Register(o.Build())
}

func newState(t *testing.T, b *cell.Builder) *vm.State {
	t.Helper()
	code, err := b.Finalize(nil)
	require.NoError(t, err)
	s, err := vm.NewBuilder().
		WithCode(cell.NewSlice(code)).
		WithCodepage(testCodepage).
		WithGasLimits(gas.Limits{Remaining: 1_000_000}).
		Build()
	require.NoError(t, err)
	return s
}

func topInt(t *testing.T, s *vm.State) int64 {
	t.Helper()
	v, err := s.Stack().Pop()
	require.NoError(t, err)
	n, ok := v.Int()
	require.True(t, ok)
	return n.Int64()
}

func TestPushNibble(t *testing.T) {
	var b cell.Builder
	require.NoError(t, b.StoreUint(0x7, 4))
	require.NoError(t, b.StoreUint(9, 4)) // (9+5)&0xf - 5 = 9
	s := newState(t, &b)

	_, err := s.Step()
	require.NoError(t, err)
	require.EqualValues(t, 9, topInt(t, s))
}

func TestPush8Negative(t *testing.T) {
	var b cell.Builder
	require.NoError(t, b.StoreUint(0x80, 8))
	require.NoError(t, b.StoreUint(0xfb, 8)) // -5 as int8
	s := newState(t, &b)

	_, err := s.Step()
	require.NoError(t, err)
	require.EqualValues(t, -5, topInt(t, s))
}

func TestPushIntExt(t *testing.T) {
	var b cell.Builder
	// l=0: valueLen = 3 + (0+2)*8 = 19 bits.
	require.NoError(t, b.StoreUint(uint64(0x82<<5), 13))
	require.NoError(t, b.StoreUint(100000, 19))
	s := newState(t, &b)

	_, err := s.Step()
	require.NoError(t, err)
	require.EqualValues(t, 100000, topInt(t, s))
}

func TestPushPow2(t *testing.T) {
	var b cell.Builder
	require.NoError(t, b.StoreUint(0x83, 8))
	require.NoError(t, b.StoreUint(9, 8)) // x = 9+1 = 10, pushes 1<<10
	s := newState(t, &b)

	_, err := s.Step()
	require.NoError(t, err)
	require.EqualValues(t, 1024, topInt(t, s))
}

func TestPushNaN(t *testing.T) {
	var b cell.Builder
	require.NoError(t, b.StoreUint(0x83ff, 16))
	s := newState(t, &b)

	_, err := s.Step()
	require.NoError(t, err)
	top, err := s.Stack().Top()
	require.NoError(t, err)
	require.True(t, top.IsNaN())
}

func TestAdd(t *testing.T) {
	var b cell.Builder
	require.NoError(t, b.StoreUint(0x7, 4))
	require.NoError(t, b.StoreUint(8, 4)) // pushes 8: (8+5)&0xf-5
	require.NoError(t, b.StoreUint(0x7, 4))
	require.NoError(t, b.StoreUint(7, 4)) // pushes 7
	require.NoError(t, b.StoreUint(0xa0, 8))
	s := newState(t, &b)

	for i := 0; i < 3; i++ {
		_, err := s.Step()
		require.NoError(t, err)
	}
	require.EqualValues(t, 15, topInt(t, s))
}

func TestQuietAddNaNOperand(t *testing.T) {
	var b cell.Builder
	require.NoError(t, b.StoreUint(0x83ff, 16)) // NaN
	require.NoError(t, b.StoreUint(0x7, 4))
	require.NoError(t, b.StoreUint(5, 4)) // pushes 5
	require.NoError(t, b.StoreUint(0xb7a0, 16))
	s := newState(t, &b)

	for i := 0; i < 3; i++ {
		_, err := s.Step()
		require.NoError(t, err)
	}
	top, err := s.Stack().Top()
	require.NoError(t, err)
	require.True(t, top.IsNaN())
}

func TestStrictAddNaNOperandFails(t *testing.T) {
	var b cell.Builder
	require.NoError(t, b.StoreUint(0x83ff, 16)) // NaN
	require.NoError(t, b.StoreUint(0x7, 4))
	require.NoError(t, b.StoreUint(5, 4)) // pushes 5
	require.NoError(t, b.StoreUint(0xa0, 8))
	s := newState(t, &b)

	_, err := s.Step()
	require.NoError(t, err)
	_, err = s.Step()
	require.NoError(t, err)
	_, err = s.Step()
	require.Error(t, err)
}

func TestQuietAddOverflowProducesNaN(t *testing.T) {
	var b cell.Builder
	require.NoError(t, b.StoreUint(0xb7a0, 16)) // quiet ADD
	s := newState(t, &b)

	half := new(big.Int).Lsh(big.NewInt(1), 255) // 2^255
	require.NoError(t, s.Stack().PushRawInt(stack.Int(half), false))
	require.NoError(t, s.Stack().PushRawInt(stack.Int(half), false))

	// 2^255 + 2^255 == 2^256, outside the [-2^256, 2^256) range: quiet
	// mode clamps the result to NaN instead of failing.
	_, err := s.Step()
	require.NoError(t, err)
	top, err := s.Stack().Top()
	require.NoError(t, err)
	require.True(t, top.IsNaN())
}

func TestStrictAddOverflowFails(t *testing.T) {
	var b cell.Builder
	require.NoError(t, b.StoreUint(0xa0, 8)) // strict ADD
	s := newState(t, &b)

	half := new(big.Int).Lsh(big.NewInt(1), 255) // 2^255
	require.NoError(t, s.Stack().PushRawInt(stack.Int(half), false))
	require.NoError(t, s.Stack().PushRawInt(stack.Int(half), false))

	_, err := s.Step()
	require.ErrorIs(t, err, stack.ErrIntegerOverflow)
}

func TestAddInt(t *testing.T) {
	var b cell.Builder
	require.NoError(t, b.StoreUint(0x7, 4))
	require.NoError(t, b.StoreUint(8, 4)) // pushes 8
	require.NoError(t, b.StoreUint(0xa6, 8))
	require.NoError(t, b.StoreUint(0xfb, 8)) // imm = -5
	s := newState(t, &b)

	for i := 0; i < 2; i++ {
		_, err := s.Step()
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, topInt(t, s))
}

func TestNegate(t *testing.T) {
	var b cell.Builder
	require.NoError(t, b.StoreUint(0x7, 4))
	require.NoError(t, b.StoreUint(8, 4)) // pushes 8
	require.NoError(t, b.StoreUint(0xa3, 8))
	s := newState(t, &b)

	for i := 0; i < 2; i++ {
		_, err := s.Step()
		require.NoError(t, err)
	}
	require.EqualValues(t, -8, topInt(t, s))
}
