package unwind

import (
	"strings"
)

// Paths marking code that does not live in a file-backed mapping: the JIT
// code cache and anonymous mappings. Unwinding through them is expected to
// fail and is not informative.
var inMemoryCodeMarkers = []string{
	"/dev/ashmem/dalvik-jit-code-cache",
	"//anon",
}

const libcName = "libc.so"

var threadEntrySymbols = []string{"__libc_init", "__start_thread"}

// chainComplete reports whether the chain reached a well-known thread entry
// in libc, meaning the unwinder made it all the way to the stack root.
func chainComplete(chain []CallChainNode) bool {
	for _, node := range chain {
		if !strings.HasSuffix(node.Filename, libcName) {
			continue
		}
		for _, symbol := range threadEntrySymbols {
			if node.Function == symbol {
				return true
			}
		}
	}

	return false
}

// shouldOmit decides whether a sample is kept out of the report. The checks
// short-circuit in a fixed priority order: in-memory code first, then a
// complete primary chain, then a chain the joiner fixed.
func (a *Analyzer) shouldOmit(sample *SampleResult, joined []CallChainNode) bool {
	anchor := sample.Anchor()
	for _, marker := range inMemoryCodeMarkers {
		if strings.Contains(anchor.Filename, marker) {
			return true
		}
	}
	if chainComplete(sample.CallChain) {
		return true
	}
	if a.omitFixedByJoiner && chainComplete(joined) {
		return true
	}

	return false
}
