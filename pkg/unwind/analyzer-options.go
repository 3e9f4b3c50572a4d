package unwind

import (
	log "github.com/rs/zerolog"
)

type AnalyzerOptions struct {
	omitFixedByJoiner bool

	logger log.Logger
}

type AnalyzerOption func(*Analyzer)

func NewAnalyzerOptions() *AnalyzerOptions {
	return &AnalyzerOptions{
		logger: log.Nop(),
	}
}

// WithAnalyzerOmitFixedByJoiner omits incomplete callchains that the
// callchain joiner managed to complete, so only chains still broken after
// correction are reported.
func WithAnalyzerOmitFixedByJoiner(omit bool) AnalyzerOption {
	return func(a *Analyzer) {
		a.omitFixedByJoiner = omit
	}
}

func WithAnalyzerLogger(logger log.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		a.logger = logger
	}
}
