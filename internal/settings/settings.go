package settings

const (
	CmdName = "unwindreport"

	// DefaultInputFile is the conventional name of the profiler debug dump.
	DefaultInputFile = "perf.data.dump"
)
