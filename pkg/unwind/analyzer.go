package unwind

import (
	"strconv"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/maxgio92/unwindreport/pkg/addrspace"
	"github.com/maxgio92/unwindreport/pkg/dump"
)

// Analyzer consumes dump events strictly in trace order and folds them into
// the address-space registry and the per-file aggregation. The registry is
// never rolled back: a sample's chains are resolved against exactly the
// mappings seen before it in the trace.
type Analyzer struct {
	registry  *addrspace.Registry
	times     TimingStats
	files     map[string]*FileResult
	processed uint64

	*AnalyzerOptions
}

func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	analyzer := &Analyzer{
		registry:        addrspace.NewRegistry(),
		files:           make(map[string]*FileResult),
		AnalyzerOptions: NewAnalyzerOptions(),
	}
	for _, opt := range opts {
		opt(analyzer)
	}

	return analyzer
}

// Apply folds one event into the analysis.
func (a *Analyzer) Apply(evt dump.Event) error {
	defer atomic.AddUint64(&a.processed, 1)

	switch e := evt.(type) {
	case dump.MapEvent:
		a.registry.Insert(e.Pid, addrspace.Range{Start: e.Start, End: e.End, Filename: e.Filename})
	case dump.ForkEvent:
		a.registry.Fork(e.Pid, e.PPid)
	case dump.SampleEvent:
		return a.applySample(e)
	default:
		return errors.Errorf("unknown event type %T", evt)
	}

	return nil
}

func (a *Analyzer) applySample(e dump.SampleEvent) error {
	// Both chains of a sample see the same address-space state.
	sample := &SampleResult{
		Pid:       e.Pid,
		Tid:       e.Tid,
		Outcome:   e.Outcome,
		CallChain: ResolveChain(a.registry, e.Original),
	}
	joined := ResolveChain(a.registry, e.Joined)

	usedTime, _ := e.Outcome.Get("used_time")
	usedNs, err := strconv.ParseInt(usedTime, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid used_time for pid %d tid %d", e.Pid, e.Tid)
	}
	a.times.AddTime(usedNs)

	if a.shouldOmit(sample, joined) {
		a.logger.Debug().
			Int("pid", sample.Pid).
			Int("tid", sample.Tid).
			Str("filename", sample.Anchor().Filename).
			Msg("sample omitted")

		return nil
	}

	filename := sample.Anchor().Filename
	file := a.files[filename]
	if file == nil {
		file = NewFileResult()
		a.files[filename] = file
	}
	file.add(sample)

	return nil
}

// Processed returns how many events have been applied so far. Safe to call
// from a status printer while Apply runs on another goroutine.
func (a *Analyzer) Processed() uint64 {
	return atomic.LoadUint64(&a.processed)
}

// Report builds the read-only view over everything applied so far.
func (a *Analyzer) Report() *Report {
	return &Report{
		Times:         a.times,
		AddressSpaces: a.registry.Snapshot(),
		Files:         a.files,
	}
}
