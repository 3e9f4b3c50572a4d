package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/maxgio92/unwindreport/internal/output"
	"github.com/maxgio92/unwindreport/internal/settings"
	"github.com/maxgio92/unwindreport/pkg/dump"
	"github.com/maxgio92/unwindreport/pkg/unwind"
)

const logLevelInfo = "info"

type Options struct {
	input             string
	omitFixedByJoiner bool

	logLevel string
	report   bool
	status   bool

	*CommonOptions
}

func NewRootCmd(opts *CommonOptions) *cobra.Command {
	o := new(Options)
	o.CommonOptions = opts

	cmd := &cobra.Command{
		Use:   settings.CmdName,
		Short: fmt.Sprintf("%s reports the stack unwinding results of a sampling profiler", settings.CmdName),
		Long: fmt.Sprintf(`%s analyzes the debug dump of a sampling profiler's offline stack unwinder.
It reconstructs each process address space from the mapping and fork records,
resolves every sample's call chains against it, and reports the samples whose
chains could not be unwound, grouped by shared library, function and stop
reason, together with unwinding time statistics.`, settings.CmdName),
		DisableAutoGenTag: true,
		RunE:              o.Run,
	}
	cmd.Flags().StringVarP(&o.input, "input", "i", settings.DefaultInputFile, "Path to the profiler debug dump to report")
	cmd.Flags().BoolVar(&o.omitFixedByJoiner, "omit-callchains-fixed-by-joiner", false, "Don't show incomplete callchains fixed by the callchain joiner")

	cmd.Flags().StringVar(&o.logLevel, "log-level", logLevelInfo, "Log level (trace, debug, info, warn, error, fatal, panic)")
	cmd.Flags().BoolVar(&o.report, "report", false, fmt.Sprintf("Also write the report as JSON (as %s)", unwind.ReportFileName))
	cmd.Flags().BoolVar(&o.status, "status", false, "Print a progress line while analyzing")

	return cmd
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(
		log.ConsoleWriter{Out: os.Stderr},
	).With().Timestamp().Logger()

	opts := NewCommonOptions(
		WithContext(ctx),
		WithLogger(logger),
	)

	if err := NewRootCmd(opts).Execute(); err != nil {
		os.Exit(1)
	}
}

func (o *Options) Run(cmd *cobra.Command, _ []string) error {
	logLevel, err := log.ParseLevel(o.logLevel)
	if err != nil {
		o.Logger.Fatal().Err(err).Msg("invalid log level")
	}
	o.Logger = o.Logger.Level(logLevel)

	f, err := os.Open(o.input)
	if err != nil {
		return errors.Wrapf(err, "failed to open dump file %s", o.input)
	}
	defer f.Close()

	parser := dump.NewParser(dump.WithParserLogger(o.Logger))
	events, err := parser.Parse(f)
	if err != nil {
		return errors.Wrapf(err, "failed to parse dump %s", o.input)
	}
	o.Logger.Debug().Int("events", len(events)).Str("input", o.input).Msg("dump decoded")

	analyzer := unwind.NewAnalyzer(
		unwind.WithAnalyzerOmitFixedByJoiner(o.omitFixedByJoiner),
		unwind.WithAnalyzerLogger(o.Logger),
	)

	statusCtx, stopStatus := context.WithCancel(o.Ctx)
	defer stopStatus()
	if o.status && len(events) > 0 {
		go output.StatusBar(statusCtx, time.Second, func() {
			done := analyzer.Processed()
			output.PrintRight(output.PrettyAnalysisStatus(
				int(done*100/uint64(len(events))),
				done,
			))
		})
	}

	for _, evt := range events {
		if err := analyzer.Apply(evt); err != nil {
			return errors.Wrap(err, "failed to apply event")
		}
	}
	stopStatus()

	report := analyzer.Report()
	if err := report.Write(cmd.OutOrStdout()); err != nil {
		return errors.Wrap(err, "failed to write report")
	}

	if o.report {
		rf, err := os.Create(unwind.ReportFileName)
		if err != nil {
			return errors.Wrapf(err, "failed to create %s", unwind.ReportFileName)
		}
		defer rf.Close()
		if err := report.WriteJSON(rf); err != nil {
			return errors.Wrap(err, "failed to write JSON report")
		}
		o.Logger.Info().Str("file", unwind.ReportFileName).Msg("report written")
	}

	return nil
}
