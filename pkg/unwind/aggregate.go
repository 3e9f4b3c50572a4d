package unwind

// maxSamplesPerReason bounds how many samples are kept per
// (file, function, stop reason). Traces can carry thousands of samples with
// the same failure signature; the report's value is exemplars per distinct
// failure, not volume. Discovery order decides which samples survive.
const maxSamplesPerReason = 10

// FunctionResult groups the retained samples of one function by the reason
// the unwinder stopped.
type FunctionResult struct {
	SampleResults map[string][]*SampleResult `json:"sample_results"`
}

func NewFunctionResult() *FunctionResult {
	return &FunctionResult{
		SampleResults: make(map[string][]*SampleResult),
	}
}

func (f *FunctionResult) add(sample *SampleResult) {
	reason, _ := sample.Outcome.Get("stop_reason")
	list := f.SampleResults[reason]
	for _, existing := range list {
		if existing.Anchor().OffsetInFile == sample.Anchor().OffsetInFile {
			// Same failure signature already represented.
			return
		}
	}
	if len(list) < maxSamplesPerReason {
		f.SampleResults[reason] = append(list, sample)
	}
}

// FileResult groups the unwinding failures of one shared library by the
// function the unwinder stopped in.
type FileResult struct {
	Functions map[string]*FunctionResult `json:"functions"`
}

func NewFileResult() *FileResult {
	return &FileResult{
		Functions: make(map[string]*FunctionResult),
	}
}

func (f *FileResult) add(sample *SampleResult) {
	name := sample.Anchor().Function
	function := f.Functions[name]
	if function == nil {
		function = NewFunctionResult()
		f.Functions[name] = function
	}
	function.add(sample)
}
