package unwind

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/maxgio92/unwindreport/pkg/addrspace"
)

const ReportFileName = "unwindreport.json"

// Report is the final result of a run: timing statistics, the end-of-trace
// address spaces, and the retained samples grouped by shared library,
// function and stop reason. Rendering is deterministic for a given input.
type Report struct {
	Times         TimingStats               `json:"unwinding_times"`
	AddressSpaces map[int][]addrspace.Range `json:"process_maps"`
	Files         map[string]*FileResult    `json:"file_results"`
}

// Write renders the report as text.
func (r *Report) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Unwinding time info:\n")
	fmt.Fprintf(bw, "  total time: %f ms\n", float64(r.Times.TotalNs)/1e6)
	fmt.Fprintf(bw, "  unwinding count: %d\n", r.Times.Count)
	if r.Times.Count > 0 {
		fmt.Fprintf(bw, "  average time: %f us\n", r.Times.AvgNs()/1e3)
	}
	fmt.Fprintf(bw, "  max time: %f us\n", float64(r.Times.MaxNs)/1e3)

	fmt.Fprintf(bw, "Process maps:\n")
	for _, pid := range sortedPids(r.AddressSpaces) {
		fmt.Fprintf(bw, "  pid %d\n", pid)
		for _, rng := range r.AddressSpaces[pid] {
			fmt.Fprintf(bw, "    map [%x-%x] %s\n", rng.Start, rng.End, rng.Filename)
		}
	}

	for _, filename := range sortedKeys(r.Files) {
		fmt.Fprintf(bw, "filename %s\n", filename)
		file := r.Files[filename]
		for _, function := range sortedKeys(file.Functions) {
			fmt.Fprintf(bw, "  function %s\n", function)
			results := file.Functions[function].SampleResults
			for _, reason := range sortedKeys(results) {
				for _, sample := range results[reason] {
					writeSample(bw, sample)
				}
			}
			fmt.Fprintf(bw, "\n")
		}
		fmt.Fprintf(bw, "\n")
	}

	return bw.Flush()
}

func writeSample(w io.Writer, sample *SampleResult) {
	fmt.Fprintf(w, "  pid: %d\n", sample.Pid)
	fmt.Fprintf(w, "  tid: %d\n", sample.Tid)
	for _, key := range sample.Outcome.Keys() {
		value, _ := sample.Outcome.Get(key)
		fmt.Fprintf(w, "  %s: %s\n", key, value)
	}
	for i, node := range sample.CallChain {
		fmt.Fprintf(w, "  node %d: ip 0x%x, sp 0x%x, %s (%s[+%x]), map [%x-%x]\n",
			i, node.IP, node.SP, node.Function, node.Filename, node.OffsetInFile,
			node.MapStart, node.MapEnd)
	}
}

// WriteJSON renders the report as JSON for machine consumption.
func (r *Report) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)

	return encoder.Encode(r)
}

func sortedPids(m map[int][]addrspace.Range) []int {
	pids := make([]int, 0, len(m))
	for pid := range m {
		pids = append(pids, pid)
	}
	sort.Ints(pids)

	return pids
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}
