package vm

import "github.com/basso-labs/tvm-go/pkg/exception"

// TryCommit snapshots {c4, c5} as the externally observable post-state if
// both are set, have cell level 0, and have representation depth no more
// than MaxDataDepth. It returns whether the commit succeeded.
func (s *State) TryCommit() bool {
	c4, c5 := s.cr.D[0], s.cr.D[1]
	if c4 == nil || c5 == nil {
		return false
	}
	if c4.Level() != 0 || c5.Level() != 0 {
		return false
	}
	if c4.RepDepth() > MaxDataDepth || c5.RepDepth() > MaxDataDepth {
		return false
	}
	s.committed = &CommittedState{C4: c4, C5: c5}
	return true
}

// ForceCommit calls TryCommit and fails with CellOverflow if it did not
// succeed.
func (s *State) ForceCommit() error {
	if s.TryCommit() {
		return nil
	}
	return exception.CellOverflow.AsError()
}
