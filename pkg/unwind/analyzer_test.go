package unwind_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/unwindreport/pkg/dump"
	"github.com/maxgio92/unwindreport/pkg/unwind"
)

type frame struct {
	ip, sp   uint64
	function string
	filename string
	offset   uint64
}

func rawChain(pid, tid int, frames []frame) dump.RawChain {
	chain := dump.RawChain{Pid: pid, Tid: tid}
	for _, f := range frames {
		chain.IPs = append(chain.IPs, f.ip)
		chain.SPs = append(chain.SPs, f.sp)
		chain.Functions = append(chain.Functions, f.function)
		chain.Filenames = append(chain.Filenames, f.filename)
		chain.Offsets = append(chain.Offsets, f.offset)
	}

	return chain
}

func sampleEvent(pid, tid int, usedTime, reason string, original, joined []frame) dump.SampleEvent {
	outcome := dump.NewOutcome()
	outcome.Set("time", "1000")
	outcome.Set("used_time", usedTime)
	outcome.Set("stop_reason", reason)

	return dump.SampleEvent{
		Pid:      pid,
		Tid:      tid,
		Outcome:  outcome,
		Original: rawChain(pid, tid, original),
		Joined:   rawChain(pid, tid, joined),
	}
}

var (
	brokenFrames = []frame{
		{ip: 0x1800, sp: 0x100, function: "foo", filename: "/lib/libfoo.so", offset: 0x10},
		{ip: 0x1900, sp: 0x200, function: "bar", filename: "/lib/libfoo.so", offset: 0x20},
	}
	completeFrames = []frame{
		{ip: 0x1800, sp: 0x100, function: "foo", filename: "/lib/libfoo.so", offset: 0x10},
		{ip: 0x2800, sp: 0x200, function: "__libc_init", filename: "/lib/libc.so", offset: 0x30},
	}
)

func TestAnalyzerTimingCountsAllSamples(t *testing.T) {
	analyzer := unwind.NewAnalyzer()

	require.NoError(t, analyzer.Apply(sampleEvent(100, 100, "2000", "ACCESS_MEM_FAILED", brokenFrames, brokenFrames)))
	require.NoError(t, analyzer.Apply(sampleEvent(100, 100, "3000", "ACCESS_MEM_FAILED", completeFrames, completeFrames)))

	report := analyzer.Report()
	require.Equal(t, int64(2), report.Times.Count, "omitted samples still count for timing")
	require.Equal(t, int64(5000), report.Times.TotalNs)
	require.Equal(t, int64(3000), report.Times.MaxNs)

	// Only the broken chain is listed.
	require.Len(t, report.Files, 1)
	require.Contains(t, report.Files, "/lib/libfoo.so")
}

func TestAnalyzerDeduplicatesByAnchorOffset(t *testing.T) {
	analyzer := unwind.NewAnalyzer()

	require.NoError(t, analyzer.Apply(sampleEvent(100, 100, "2000", "ACCESS_MEM_FAILED", brokenFrames, brokenFrames)))
	// Different pid/tid/time, same anchor offset: a duplicate.
	require.NoError(t, analyzer.Apply(sampleEvent(300, 301, "9000", "ACCESS_MEM_FAILED", brokenFrames, brokenFrames)))

	report := analyzer.Report()
	samples := report.Files["/lib/libfoo.so"].Functions["bar"].SampleResults["ACCESS_MEM_FAILED"]
	require.Len(t, samples, 1)
	require.Equal(t, 100, samples[0].Pid, "the first sample seen survives")
}

func TestAnalyzerCapsSamplesPerStopReason(t *testing.T) {
	analyzer := unwind.NewAnalyzer()

	for i := 0; i < 11; i++ {
		frames := []frame{
			{ip: 0x1800, sp: 0x100, function: "foo", filename: "/lib/libfoo.so", offset: 0x10},
			{ip: 0x1900 + uint64(i), sp: 0x200, function: "bar", filename: "/lib/libfoo.so", offset: 0x20 + uint64(i)},
		}
		require.NoError(t, analyzer.Apply(sampleEvent(100, 100, "2000", "ACCESS_MEM_FAILED", frames, frames)))
	}

	report := analyzer.Report()
	samples := report.Files["/lib/libfoo.so"].Functions["bar"].SampleResults["ACCESS_MEM_FAILED"]
	require.Len(t, samples, 10)
}

func TestAnalyzerOmitsInMemoryCode(t *testing.T) {
	for _, marker := range []string{"/dev/ashmem/dalvik-jit-code-cache", "//anon"} {
		t.Run(marker, func(t *testing.T) {
			analyzer := unwind.NewAnalyzer()

			frames := []frame{
				{ip: 0x1800, sp: 0x100, function: "foo", filename: "/lib/libfoo.so", offset: 0x10},
				{ip: 0x1900, sp: 0x200, function: "jit", filename: fmt.Sprintf("%s (deleted)", marker), offset: 0x20},
			}
			require.NoError(t, analyzer.Apply(sampleEvent(100, 100, "2000", "ACCESS_MEM_FAILED", frames, frames)))

			report := analyzer.Report()
			require.Empty(t, report.Files)
			require.Equal(t, int64(1), report.Times.Count)
		})
	}
}

func TestAnalyzerOmitsCompleteChains(t *testing.T) {
	analyzer := unwind.NewAnalyzer()

	require.NoError(t, analyzer.Apply(sampleEvent(100, 100, "2000", "ACCESS_MEM_FAILED", completeFrames, completeFrames)))

	report := analyzer.Report()
	require.Empty(t, report.Files)
}

func TestAnalyzerOmitsChainsFixedByJoiner(t *testing.T) {
	analyzer := unwind.NewAnalyzer(
		unwind.WithAnalyzerOmitFixedByJoiner(true),
	)
	require.NoError(t, analyzer.Apply(sampleEvent(100, 100, "2000", "ACCESS_MEM_FAILED", brokenFrames, completeFrames)))
	require.Empty(t, analyzer.Report().Files)

	// Without the option the still-broken primary chain is reported.
	analyzer = unwind.NewAnalyzer()
	require.NoError(t, analyzer.Apply(sampleEvent(100, 100, "2000", "ACCESS_MEM_FAILED", brokenFrames, completeFrames)))
	require.Contains(t, analyzer.Report().Files, "/lib/libfoo.so")
}

func TestAnalyzerResolvesAgainstCurrentState(t *testing.T) {
	analyzer := unwind.NewAnalyzer()

	require.NoError(t, analyzer.Apply(dump.MapEvent{Pid: 100, Start: 0x1000, End: 0x2000, Filename: "/lib/libfoo.so"}))
	require.NoError(t, analyzer.Apply(sampleEvent(100, 100, "2000", "ACCESS_MEM_FAILED", brokenFrames, brokenFrames)))

	// Remap the same region before the second sample.
	require.NoError(t, analyzer.Apply(dump.MapEvent{Pid: 100, Start: 0x1800, End: 0x3000, Filename: "/lib/libbar.so"}))
	frames := []frame{
		{ip: 0x1800, sp: 0x100, function: "foo", filename: "/lib/libbar.so", offset: 0x10},
		{ip: 0x9000, sp: 0x200, function: "baz", filename: "/lib/libbar.so", offset: 0x99},
	}
	require.NoError(t, analyzer.Apply(sampleEvent(100, 100, "2000", "OTHER_REASON", frames, frames)))

	report := analyzer.Report()

	first := report.Files["/lib/libfoo.so"].Functions["bar"].SampleResults["ACCESS_MEM_FAILED"][0]
	require.Equal(t, uint64(0x1000), first.CallChain[0].MapStart)
	require.Equal(t, uint64(0x2000), first.CallChain[0].MapEnd)

	second := report.Files["/lib/libbar.so"].Functions["baz"].SampleResults["OTHER_REASON"][0]
	require.Equal(t, uint64(0x1800), second.CallChain[0].MapStart)
	require.Equal(t, uint64(0x3000), second.CallChain[0].MapEnd)

	// An instruction pointer outside every mapping is not an error: it
	// resolves to zero map bounds.
	require.Zero(t, second.CallChain[1].MapStart)
	require.Zero(t, second.CallChain[1].MapEnd)
}

func TestAnalyzerForkCopiesParentMaps(t *testing.T) {
	analyzer := unwind.NewAnalyzer()

	require.NoError(t, analyzer.Apply(dump.MapEvent{Pid: 100, Start: 0x1000, End: 0x2000, Filename: "/lib/libfoo.so"}))
	require.NoError(t, analyzer.Apply(dump.ForkEvent{Pid: 200, PPid: 100}))

	event := sampleEvent(200, 201, "2000", "ACCESS_MEM_FAILED", brokenFrames, brokenFrames)
	require.NoError(t, analyzer.Apply(event))

	report := analyzer.Report()
	sample := report.Files["/lib/libfoo.so"].Functions["bar"].SampleResults["ACCESS_MEM_FAILED"][0]
	require.Equal(t, uint64(0x1000), sample.CallChain[0].MapStart)
}

func TestAnalyzerInvalidUsedTime(t *testing.T) {
	analyzer := unwind.NewAnalyzer()

	err := analyzer.Apply(sampleEvent(100, 100, "not-a-number", "ACCESS_MEM_FAILED", brokenFrames, brokenFrames))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid used_time")
}

func TestAnalyzerProcessedCounter(t *testing.T) {
	analyzer := unwind.NewAnalyzer()
	require.Zero(t, analyzer.Processed())

	require.NoError(t, analyzer.Apply(dump.MapEvent{Pid: 100, Start: 0x1000, End: 0x2000, Filename: "/lib/libfoo.so"}))
	require.NoError(t, analyzer.Apply(dump.ForkEvent{Pid: 200, PPid: 100}))

	require.Equal(t, uint64(2), analyzer.Processed())
}
