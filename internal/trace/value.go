package trace

// AbstractRepr is the placeholder label carried by stack entries that exist
// only in static simulation, where no real value is available.
const AbstractRepr = "·"

// ValueDescriptor describes one operand-stack entry. Abstract entries carry
// only the placeholder label; concrete entries carry a type name and a
// bounded-length representation of the captured value.
type ValueDescriptor struct {
	TypeName string
	Repr     string
	Abstract bool
}

// AbstractValue returns the placeholder descriptor used by static simulation.
func AbstractValue() ValueDescriptor {
	return ValueDescriptor{Repr: AbstractRepr, Abstract: true}
}

// Snapshot is an ordered view of a frame's operand stack, bottom first.
type Snapshot []ValueDescriptor

// Depth returns the number of entries in the snapshot.
func (s Snapshot) Depth() int { return len(s) }

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}
