// Package dispatch implements the opcode dispatch table: a compiled mapping
// from the 24-bit opcode space to instruction handlers, built with overlap
// detection and gap-filling dummy entries.
package dispatch

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/basso-labs/tvm-go/pkg/exception"
)

// MaxOpcodeBits is the width of the opcode space.
const MaxOpcodeBits = 24

// MaxOpcode is the exclusive upper bound of the opcode space, 2^24.
const MaxOpcode uint32 = 1 << MaxOpcodeBits

// Handler executes one instruction. arg carries the in-opcode argument for
// Simple/Fixed handlers (zero for Ext/Dummy, which read their own operands).
// bits is the handler's declared total_bits.
type Handler func(ctx Context, arg uint32, bits uint16) (int32, error)

// Context is the minimal surface a Handler needs from the VM: reading and
// advancing the code cursor is owned by the dispatch loop itself for
// Simple/Fixed handlers, but Ext handlers advance the cursor themselves, so
// they still need it.
type Context interface {
	AdvanceCode(bits uint16) error
	RemainingCodeBits() uint16
	// PeekCodeBits returns the top n bits at the code cursor (n <= 24)
	// without advancing it.
	PeekCodeBits(n uint16) (uint64, error)
}

// kind distinguishes the four handler variants.
type kind int

const (
	kindSimple kind = iota
	kindFixed
	kindExt
	kindDummy
)

// entry is one compiled dispatch-table row.
type entry struct {
	min, max  uint32
	totalBits uint16
	argBits   uint16
	kind      kind
	handler   Handler
}

// ErrOverlapWithNext is returned when a newly registered range would
// overlap the next-higher already-registered range.
var ErrOverlapWithNext = errors.New("dispatch: overlaps with next-higher entry")

// ErrOverlapWithPrev is returned when a newly registered range would
// overlap the next-lower already-registered range.
var ErrOverlapWithPrev = errors.New("dispatch: overlaps with next-lower entry")

// Table is an immutable, gap-free mapping from the opcode space to
// handlers, identified by a codepage id.
type Table struct {
	id      uint16
	entries []entry // sorted by min, ascending; entries[0].min == 0
}

// ID returns the codepage id this table was built for.
func (t *Table) ID() uint16 { return t.id }

// lookup returns the entry whose range covers opcode: the one with the
// largest min <= opcode.
func (t *Table) lookup(opcode uint32) entry {
	// Binary search for the greatest index i with entries[i].min <= opcode.
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].min > opcode
	}) - 1
	if i < 0 {
		i = 0
	}
	return t.entries[i]
}

// Dispatch extracts the next opcode from ctx's remaining code bits, looks
// up its handler, pre-charges gas via charge, and invokes the handler per
// its variant's cursor-advance rule.
func (t *Table) Dispatch(ctx Context, charge func(totalBits uint16) error) (int32, error) {
	opcode, bits := readOpcode(ctx)
	e := t.lookup(opcode)

	if err := charge(e.totalBits); err != nil {
		return 0, err
	}

	switch e.kind {
	case kindDummy:
		return 0, exception.ErrInvalidOpcode
	case kindExt:
		if bits < e.totalBits {
			return 0, exception.ErrInvalidOpcode
		}
		return e.handler(ctx, 0, e.totalBits)
	default: // kindSimple, kindFixed
		if bits < e.totalBits {
			return 0, exception.ErrInvalidOpcode
		}
		if err := ctx.AdvanceCode(e.totalBits); err != nil {
			return 0, exception.ErrInvalidOpcode
		}
		var arg uint32
		if e.argBits > 0 {
			// Right-align the in-opcode argument so it occupies the low
			// bits. opcode is left-aligned to 24 bits, so shift the word
			// down by the unused low bits beyond total_bits.
			arg = (opcode >> (MaxOpcodeBits - e.totalBits)) & ((uint32(1) << e.argBits) - 1)
		}
		return e.handler(ctx, arg, e.totalBits)
	}
}

// readOpcode reads up to 24 bits from ctx's remaining code (fewer if less
// remains), left-aligned into a 24-bit word. It returns the word and how
// many bits were actually available, so a short read still compares
// correctly against a Dummy entry's range and is rejected as InvalidOpcode
// once the handler checks bits < total_bits.
func readOpcode(ctx Context) (word uint32, bits uint16) {
	avail := ctx.RemainingCodeBits()
	if avail > MaxOpcodeBits {
		avail = MaxOpcodeBits
	}
	if avail == 0 {
		return 0, 0
	}
	raw, err := ctx.PeekCodeBits(avail)
	if err != nil {
		return 0, avail
	}
	return uint32(raw) << (MaxOpcodeBits - avail), avail
}
