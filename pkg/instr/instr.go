// Package instr wires the implemented instruction families into codepage
// dispatch tables and registers them with pkg/dispatch's process-wide
// registry.
//
// Only the arithmetic family is implemented; every other opcode in
// codepage 0 falls through to the builder's gap-filling Dummy entries.
package instr

import (
	"github.com/basso-labs/tvm-go/pkg/dispatch"
	"github.com/basso-labs/tvm-go/pkg/instr/arith"
)

// Codepage0 is the id of the ordinary TVM codepage.
const Codepage0 uint16 = 0

// BuildCodepage0 builds and returns the codepage-0 dispatch table with
// every implemented instruction family registered.
func BuildCodepage0() (*dispatch.Table, error) {
	o := dispatch.NewOpcodes(Codepage0)
	if err := arith.Init(o); err != nil {
		return nil, err
	}
	return o.Build(), nil
}

// RegisterDefaults builds codepage 0 and installs it in the process-wide
// dispatch registry, so a vm.Builder can select it by id.
func RegisterDefaults() error {
	t, err := BuildCodepage0()
	if err != nil {
		return err
	}
	dispatch.Register(t)
	return nil
}
