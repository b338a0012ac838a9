package stack

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushPopOrder(t *testing.T) {
	var s Stack
	require.NoError(t, s.PushInt(3))
	require.NoError(t, s.PushInt(4))
	require.Equal(t, 2, s.Depth())

	top, err := s.Pop()
	require.NoError(t, err)
	n, ok := top.Int()
	require.True(t, ok)
	require.EqualValues(t, 4, n.Int64())
}

func TestPopUnderflow(t *testing.T) {
	var s Stack
	_, err := s.Pop()
	require.ErrorIs(t, err, ErrUnderflow)
}

func TestPushRawIntBoundStrict(t *testing.T) {
	var s Stack
	tooBig := new(big.Int).Set(IntMax)
	err := s.PushRawInt(Int(tooBig), false)
	require.ErrorIs(t, err, ErrIntegerOverflow)
	require.Equal(t, 0, s.Depth())
}

func TestPushRawIntBoundQuiet(t *testing.T) {
	var s Stack
	tooBig := new(big.Int).Set(IntMax)
	require.NoError(t, s.PushRawInt(Int(tooBig), true))
	top, err := s.Top()
	require.NoError(t, err)
	require.True(t, top.IsNaN())
}

func TestInRangeBounds(t *testing.T) {
	require.True(t, InRange(new(big.Int).Sub(IntMax, big.NewInt(1))))
	require.False(t, InRange(IntMax))
	require.True(t, InRange(IntMin))
	require.False(t, InRange(new(big.Int).Sub(IntMin, big.NewInt(1))))
}

func TestPopIntOrNaN(t *testing.T) {
	var s Stack
	s.PushNaN()
	_, ok, err := s.PopIntOrNaN()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.PushInt(1))
	_, ok, err = s.PopIntOrNaN()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSplitTopAndDropBottom(t *testing.T) {
	var s Stack
	for i := int64(0); i < 5; i++ {
		require.NoError(t, s.PushInt(i))
	}
	top, err := s.SplitTop(2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	n0, _ := top[0].Int()
	n1, _ := top[1].Int()
	require.EqualValues(t, 3, n0.Int64())
	require.EqualValues(t, 4, n1.Int64())
	require.Equal(t, 3, s.Depth())

	require.NoError(t, s.DropBottom(1))
	require.Equal(t, 2, s.Depth())
	rest, err := s.SplitTop(2)
	require.NoError(t, err)
	n0, _ = rest[0].Int()
	n1, _ = rest[1].Int()
	require.EqualValues(t, 1, n0.Int64())
	require.EqualValues(t, 2, n1.Int64())
}

func TestMoveFromPreservesOrder(t *testing.T) {
	var src, dst Stack
	require.NoError(t, src.PushInt(1))
	require.NoError(t, src.PushInt(2))
	require.NoError(t, src.PushInt(3))

	require.NoError(t, dst.MoveFrom(&src, 2))
	require.Equal(t, 1, src.Depth())
	require.Equal(t, 2, dst.Depth())

	top, err := dst.Top()
	require.NoError(t, err)
	n, _ := top.Int()
	require.EqualValues(t, 3, n.Int64())
}

func TestHandleCopyOnWrite(t *testing.T) {
	h1 := NewHandle(&Stack{})
	h1.Get().Push(IntFromInt64(1))

	h2 := h1.Share()
	require.Equal(t, h1.Get(), h2.Get())

	unique := h2.MakeUnique()
	unique.Get().Push(IntFromInt64(2))

	require.Equal(t, 1, h1.Get().Depth())
	require.Equal(t, 2, unique.Get().Depth())
}
