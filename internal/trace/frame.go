package trace

// Frame is one activation record observed during a run or a simulation pass.
// ParentID is a back-reference only, never an ownership edge: the trace owns
// every frame record by id for the lifetime of the whole trace.
type Frame struct {
	ID       uint64
	ParentID uint64 // 0 for the outermost frame
	Name     string
	QualName string
	File     string
	Depth    int // outermost frame has depth 0
}
