package unwind

import (
	"github.com/maxgio92/unwindreport/pkg/addrspace"
	"github.com/maxgio92/unwindreport/pkg/dump"
)

// CallChainNode is one frame of a resolved call chain. MapStart and MapEnd
// are zero when the instruction pointer fell outside every known mapping,
// which is a regular outcome and not an error.
type CallChainNode struct {
	IP           uint64 `json:"ip"`
	SP           uint64 `json:"sp"`
	Filename     string `json:"filename"`
	OffsetInFile uint64 `json:"offset_in_file"`
	Function     string `json:"function_name"`
	MapStart     uint64 `json:"map_start"`
	MapEnd       uint64 `json:"map_end"`
}

// ResolveChain resolves a raw chain against the current address-space state.
// Frame order and length are preserved.
func ResolveChain(registry *addrspace.Registry, raw dump.RawChain) []CallChainNode {
	nodes := make([]CallChainNode, 0, raw.Len())
	for i := 0; i < raw.Len(); i++ {
		node := CallChainNode{
			IP:           raw.IPs[i],
			SP:           raw.SPs[i],
			Filename:     raw.Filenames[i],
			OffsetInFile: raw.Offsets[i],
			Function:     raw.Functions[i],
		}
		if rng, ok := registry.Find(raw.Pid, raw.IPs[i]); ok {
			node.MapStart = rng.Start
			node.MapEnd = rng.End
		}
		nodes = append(nodes, node)
	}

	return nodes
}

// SampleResult is the resolved unwinding result of one sample.
type SampleResult struct {
	Pid       int             `json:"pid"`
	Tid       int             `json:"tid"`
	Outcome   *dump.Outcome   `json:"unwinding_result"`
	CallChain []CallChainNode `json:"callchain"`
}

// Anchor returns the frame at which the unwinder stopped: the last node of
// the chain as dumped, whatever the stack direction.
func (s *SampleResult) Anchor() CallChainNode {
	return s.CallChain[len(s.CallChain)-1]
}
