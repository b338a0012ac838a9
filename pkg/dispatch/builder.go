package dispatch

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/basso-labs/tvm-go/pkg/exception"
)

// Opcodes is a DispatchTable builder: it accepts handler registrations and
// produces an immutable Table with full coverage of the opcode space.
type Opcodes struct {
	id      uint16
	entries []entry // unsorted as inserted; sorted and gap-filled by Build
}

// NewOpcodes starts a builder for the codepage identified by id.
func NewOpcodes(id uint16) *Opcodes {
	return &Opcodes{id: id}
}

// AddSimple registers a fixed opcode prefix of prefixBits bits that carries
// no in-opcode argument. The range is derived as
// [opcode<<(24-bits), (opcode+1)<<(24-bits)).
func (o *Opcodes) AddSimple(opcode uint32, prefixBits uint16, h Handler) error {
	shift := MaxOpcodeBits - prefixBits
	return o.add(entry{
		min: opcode << shift, max: (opcode + 1) << shift,
		totalBits: prefixBits, argBits: 0, kind: kindSimple, handler: h,
	})
}

// AddFixed registers a fixed opcode prefix plus an argBits-wide in-opcode
// argument.
func (o *Opcodes) AddFixed(opcode uint32, prefixBits, argBits uint16, h Handler) error {
	shift := MaxOpcodeBits - prefixBits
	return o.add(entry{
		min: opcode << shift, max: (opcode + 1) << shift,
		totalBits: prefixBits + argBits, argBits: argBits, kind: kindFixed, handler: h,
	})
}

// AddFixedRange registers a discontiguous-value range [min, max) aligned to
// totalBits.
func (o *Opcodes) AddFixedRange(min, max uint32, totalBits, argBits uint16, h Handler) error {
	shift := MaxOpcodeBits - totalBits
	return o.add(entry{
		min: min << shift, max: max << shift,
		totalBits: totalBits, argBits: argBits, kind: kindFixed, handler: h,
	})
}

// AddExt registers an extended handler that declares total bits but is
// responsible for advancing the cursor itself.
func (o *Opcodes) AddExt(opcode uint32, prefixBits, argBits uint16, h Handler) error {
	shift := MaxOpcodeBits - prefixBits
	return o.add(entry{
		min: opcode << shift, max: (opcode + 1) << shift,
		totalBits: prefixBits + argBits, kind: kindExt, handler: h,
	})
}

// AddExtRange registers an extended handler over a discontiguous-value
// range aligned to totalBits.
func (o *Opcodes) AddExtRange(min, max uint32, totalBits uint16, h Handler) error {
	shift := MaxOpcodeBits - totalBits
	return o.add(entry{
		min: min << shift, max: max << shift,
		totalBits: totalBits, kind: kindExt, handler: h,
	})
}

// add inserts e after checking it for overlap with the next-higher and
// next-lower entries already inserted; if either range overlaps the new
// range, registration fails. Ranges that only touch (one ends where the
// other begins) are accepted.
func (o *Opcodes) add(e entry) error {
	if e.min >= e.max || e.max > MaxOpcode {
		return errors.Errorf("dispatch: invalid range [%06x, %06x)", e.min, e.max)
	}

	i := sort.Search(len(o.entries), func(i int) bool { return o.entries[i].min >= e.min })

	if i < len(o.entries) && e.max > o.entries[i].min {
		return ErrOverlapWithNext
	}
	if i > 0 && o.entries[i-1].max > e.min {
		return ErrOverlapWithPrev
	}

	o.entries = append(o.entries, entry{})
	copy(o.entries[i+1:], o.entries[i:])
	o.entries[i] = e
	return nil
}

// Build finalizes the table: entries are already kept in ascending min
// order by add; this walks them once, inserting a Dummy gap-filler between
// consecutive entries and after the last one so the final table is
// gap-free over [0, 2^24).
func (o *Opcodes) Build() *Table {
	var out []entry
	var upto uint32
	for _, e := range o.entries {
		if e.min > upto {
			out = append(out, dummyEntry(upto, e.min))
		}
		out = append(out, e)
		upto = e.max
	}
	if upto < MaxOpcode {
		out = append(out, dummyEntry(upto, MaxOpcode))
	}
	if len(out) == 0 {
		out = []entry{dummyEntry(0, MaxOpcode)}
	}
	return &Table{id: o.id, entries: out}
}

func dummyEntry(min, max uint32) entry {
	return entry{
		min: min, max: max, totalBits: MaxOpcodeBits, kind: kindDummy,
		handler: func(ctx Context, arg uint32, bits uint16) (int32, error) {
			return 0, exception.ErrInvalidOpcode // unreachable: Dispatch special-cases kindDummy
		},
	}
}
