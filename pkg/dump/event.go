package dump

// Event is one decoded record of a profiler debug dump, in trace order.
type Event interface {
	event()
}

// MapEvent reports a new file mapping in a process address space.
type MapEvent struct {
	Pid      int
	Start    uint64
	End      uint64
	Filename string
}

// ForkEvent reports that Pid was forked from PPid.
type ForkEvent struct {
	Pid  int
	PPid int
}

// SampleEvent reports one unwinding attempt: the unwinder outcome plus the
// primary and the joiner-corrected call chains, not yet resolved against the
// address space.
type SampleEvent struct {
	Pid      int
	Tid      int
	Outcome  *Outcome
	Original RawChain
	Joined   RawChain
}

func (MapEvent) event()    {}
func (ForkEvent) event()   {}
func (SampleEvent) event() {}

// RawChain is a call chain as dumped: per-frame register pairs and the
// matched-length symbol triples.
type RawChain struct {
	Pid       int
	Tid       int
	IPs       []uint64
	SPs       []uint64
	Functions []string
	Filenames []string
	Offsets   []uint64
}

func (c RawChain) Len() int {
	return len(c.IPs)
}
