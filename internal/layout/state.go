package layout

import "fmt"

// NodeState is where a node is in the drag-and-save lifecycle.
type NodeState int

// Node states. A node without an override is StateComputed.
const (
	StateComputed NodeState = iota
	StateDragging
	StatePendingSave
	StateSaved
)

// String returns the state's wire name.
func (s NodeState) String() string {
	switch s {
	case StateComputed:
		return "computed"
	case StateDragging:
		return "dragging"
	case StatePendingSave:
		return "pending_save"
	case StateSaved:
		return "saved"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s NodeState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *NodeState) UnmarshalText(text []byte) error {
	for _, candidate := range []NodeState{StateComputed, StateDragging, StatePendingSave, StateSaved} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown node state %q", text)
}
