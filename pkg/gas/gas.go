// Package gas implements the VM's gas meter and the cell-loading context
// that wraps it.
package gas

import (
	"github.com/pkg/errors"

	"github.com/basso-labs/tvm-go/pkg/cell"
)

// Rates, calibrated for the per-instruction and per-cell charges below.
const (
	BaseInstructionGas uint64 = 10
	BitGas             uint64 = 1
	BuildCellGas       uint64 = 500
	NewCellGas         uint64 = 100
	OldCellGas         uint64 = 25
)

// ErrOutOfGas is raised when a charge would drive remaining gas negative.
var ErrOutOfGas = errors.New("gas: out of gas")

// Limits are the host-supplied gas parameters for a single run.
type Limits struct {
	Max     uint64
	Limit   uint64
	Credit  uint64
	Remaining uint64
}

// Meter tracks remaining gas and the set of cell hashes already charged at
// the "new" rate.
type Meter struct {
	Limits
	loaded map[cell.Hash]struct{}
}

// NewMeter constructs a Meter with the given limits and an empty loaded set.
func NewMeter(l Limits) *Meter {
	return &Meter{Limits: l, loaded: make(map[cell.Hash]struct{})}
}

// TryConsume subtracts amount from remaining gas, failing with ErrOutOfGas
// on underflow. remaining never goes negative.
func (m *Meter) TryConsume(amount uint64) error {
	if amount > m.Remaining {
		m.Remaining = 0
		return ErrOutOfGas
	}
	m.Remaining -= amount
	return nil
}

// ChargeInstruction charges the standard per-instruction pre-charge:
// base_instruction_gas + total_bits * bit_gas.
func (m *Meter) ChargeInstruction(totalBits uint16) error {
	return m.TryConsume(BaseInstructionGas + uint64(totalBits)*BitGas)
}

// LoadMode selects whether a cell load should be gas-accounted.
type LoadMode int

const (
	// LoadFull charges the cell-load rate.
	LoadFull LoadMode = iota
	// LoadNoGas skips gas accounting, used for introspection that must not
	// affect the charged state (e.g. disassembly tooling).
	LoadNoGas
)

// Context wraps a Meter with cell-loading bookkeeping: new cells (by hash)
// are charged NewCellGas and inserted into the loaded set; previously-seen
// cells are charged the cheaper OldCellGas.
type Context struct {
	meter *Meter
}

// NewContext returns a Context around m.
func NewContext(m *Meter) *Context {
	return &Context{meter: m}
}

var _ cell.FinalizeContext = (*Context)(nil)

// LoadCell charges for loading c under mode and returns c unchanged (the
// cell graph library would instead materialize the cell's contents here;
// this module's minimal Cell type already holds them).
func (c *Context) LoadCell(cl *cell.Cell, mode LoadMode) (*cell.Cell, error) {
	if mode == LoadFull {
		h := cl.RepHash()
		var rate uint64
		if _, seen := c.meter.loaded[h]; seen {
			rate = OldCellGas
		} else {
			c.meter.loaded[h] = struct{}{}
			rate = NewCellGas
		}
		if err := c.meter.TryConsume(rate); err != nil {
			return nil, err
		}
	}
	return cl, nil
}

// FinalizeCell implements cell.FinalizeContext, charging BuildCellGas per
// finalized cell.
func (c *Context) FinalizeCell(numBits uint16, numRefs int) error {
	return c.meter.TryConsume(BuildCellGas)
}

// Meter returns the underlying Meter.
func (c *Context) Meter() *Meter { return c.meter }
