package cell

import (
	"math/big"

	"github.com/pkg/errors"
)

// ErrOverflow is returned when a Builder write would exceed MaxBits or
// MaxRefs.
var ErrOverflow = errors.New("cell: builder overflow")

// FinalizeContext is consumed by Builder.Finalize and is the seam the gas
// meter hooks into: it builds a cell from a sequence of bits and
// references with an injected finalization context. A nil context
// finalizes for free.
type FinalizeContext interface {
	FinalizeCell(numBits uint16, numRefs int) error
}

// Builder accumulates bits and references for a single cell.
type Builder struct {
	bits []byte
	n    uint16
	refs []*Cell
}

// NumBits reports bits written so far.
func (b *Builder) NumBits() uint16 { return b.n }

// NumRefs reports references appended so far.
func (b *Builder) NumRefs() int { return len(b.refs) }

// StoreUint appends the low bits of v, most-significant-bit first.
func (b *Builder) StoreUint(v uint64, bits uint) error {
	if bits == 0 {
		return nil
	}
	if uint(b.n)+bits > MaxBits {
		return ErrOverflow
	}
	for i := int(bits) - 1; i >= 0; i-- {
		b.appendBit((v >> uint(i)) & 1)
	}
	return nil
}

// StoreBigUint appends an unsigned big.Int's value using exactly bits bits,
// most-significant-bit first, zero-padded on the left.
func (b *Builder) StoreBigUint(v *big.Int, bits uint) error {
	if uint(b.n)+bits > MaxBits {
		return ErrOverflow
	}
	for i := int(bits) - 1; i >= 0; i-- {
		b.appendBit(uint64(v.Bit(i)))
	}
	return nil
}

// StoreRaw appends raw big-endian bits from data, most-significant-bit
// first, taking exactly bits bits from it.
func (b *Builder) StoreRaw(data []byte, bits uint) error {
	if uint(b.n)+bits > MaxBits {
		return ErrOverflow
	}
	for i := uint(0); i < bits; i++ {
		byteIdx := i / 8
		bitIdx := 7 - (i % 8)
		var bit uint64
		if byteIdx < uint(len(data)) {
			bit = uint64((data[byteIdx] >> bitIdx) & 1)
		}
		b.appendBit(bit)
	}
	return nil
}

// StoreRef appends a reference to a child cell.
func (b *Builder) StoreRef(c *Cell) error {
	if len(b.refs) >= MaxRefs {
		return ErrOverflow
	}
	b.refs = append(b.refs, c)
	return nil
}

func (b *Builder) appendBit(bit uint64) {
	byteIdx := int(b.n) / 8
	for byteIdx >= len(b.bits) {
		b.bits = append(b.bits, 0)
	}
	if bit != 0 {
		b.bits[byteIdx] |= 1 << uint(7-(int(b.n)%8))
	}
	b.n++
}

// Finalize produces an immutable Cell from the builder's contents. If ctx
// is non-nil, it is charged via FinalizeCell before the cell is built,
// mirroring the Rust source's injected CellContext.
func (b *Builder) Finalize(ctx FinalizeContext) (*Cell, error) {
	if ctx != nil {
		if err := ctx.FinalizeCell(b.n, len(b.refs)); err != nil {
			return nil, errors.Wrap(err, "cell: finalize")
		}
	}
	bits := make([]byte, len(b.bits))
	copy(bits, b.bits)
	refs := make([]*Cell, len(b.refs))
	copy(refs, b.refs)
	c := &Cell{bits: bits, n: b.n, refs: refs}
	c.hash = computeHash(c.bits, c.n, c.refs)
	return c, nil
}

func (b *Builder) mustFinalize() *Cell {
	c, err := b.Finalize(nil)
	if err != nil {
		panic(err)
	}
	return c
}
