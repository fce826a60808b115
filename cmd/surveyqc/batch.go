package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/config"
	qcio "github.com/idlab-discover/surveyqc-cli/internal/io"
	"github.com/idlab-discover/surveyqc-cli/internal/ipm"
	"github.com/idlab-discover/surveyqc-cli/internal/qc"
	"github.com/idlab-discover/surveyqc-cli/internal/scanner"
	"github.com/idlab-discover/surveyqc-cli/internal/ui"
)

var batchCmd = &cobra.Command{
	Use:   "batch INPUT|DIR...",
	Short: "Run one QC test over many survey files in parallel",
	Long:  "Runs the selected test on every input file, or every json/yaml request under a directory, with a bounded worker pool. Each result is written to --output-dir as <input>.<test>.<format>.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logLevel("batch")
		if err != nil {
			return err
		}
		wireLoggers(level, cmd.ErrOrStderr())

		testID := viper.GetString("batch.test")
		if testID == "" {
			return apperr.User("--test is required")
		}
		reg := qc.NewRegistry(settings())
		test, err := reg.Lookup(testID)
		if err != nil {
			return err
		}
		id := test.Info().ID

		model, err := loadModel(viper.GetString("batch.ipm"))
		if err != nil {
			return err
		}
		format := viper.GetString("batch.format")
		if format == "" || strings.EqualFold(format, qcio.FormatAuto) {
			format = qcio.FormatJSON
		}
		outDir := viper.GetString("batch.output-dir")

		inputs, err := scanner.Inputs(args)
		if err != nil {
			return err
		}
		if len(inputs) == 0 {
			return apperr.User("no survey request files found")
		}

		display := ui.NewBatchUI(cmd.ErrOrStderr(), level == "quiet")
		display.StartWorkflow(id, inputs)
		sum, err := runBatch(cmd.Context(), reg, id, inputs, model, outDir, format, config.Workers(viper.GetViper()), display)
		display.FinishWorkflow()
		if err != nil {
			return err
		}
		display.PrintSummary(sum.passed, sum.failed, sum.errored)
		if sum.errored > 0 {
			return fmt.Errorf("%d of %d input(s) could not be evaluated", sum.errored, len(inputs))
		}
		return nil
	},
}

type batchSummary struct {
	mu                      sync.Mutex
	passed, failed, errored int
}

func (s *batchSummary) record(valid bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		s.errored++
	case valid:
		s.passed++
	default:
		s.failed++
	}
}

// runBatch evaluates every input with at most workers in flight. Per-input
// errors are recorded, not returned; only cancellation aborts the batch.
func runBatch(ctx context.Context, reg *qc.Registry, id string, inputs []string, model *ipm.Model, outDir, format string, workers int, display *ui.BatchUI) (*batchSummary, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	sum := &batchSummary{}

	for i, in := range inputs {
		if ctx.Err() != nil {
			display.SkipInput(i, "cancelled")
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				display.SkipInput(i, "cancelled")
				return apperr.ErrCancelled
			}
			valid, out, err := evaluateFile(ctx, reg, id, in, model, outDir, format, display, i)
			if errors.Is(err, apperr.ErrCancelled) {
				display.SkipInput(i, "cancelled")
				return err
			}
			sum.record(valid, err)
			if err != nil {
				display.FailInput(i, err)
				return nil
			}
			display.CompleteInput(i, valid, out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}
	if ctx.Err() != nil {
		return sum, apperr.ErrCancelled
	}
	return sum, nil
}

func evaluateFile(ctx context.Context, reg *qc.Registry, id, input string, model *ipm.Model, outDir, format string, display *ui.BatchUI, idx int) (bool, string, error) {
	req, model, err := resolveRequest(input, qcio.FormatAuto, model)
	if err != nil {
		return false, "", err
	}
	display.StartInput(idx, len(req.Surveys))
	res, err := evaluate(ctx, reg, id, req, model)
	if err != nil {
		return false, "", err
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	out := filepath.Join(outDir, fmt.Sprintf("%s.%s.%s", base, strings.ToLower(id), format))
	env := qcio.Envelope{RunID: uuid.NewString(), Test: id, Result: res}
	if err := qcio.WriteResult(env, out, format); err != nil {
		return false, "", err
	}
	return res.IsValid, out, nil
}

var (
	batchTest      string
	batchIPM       string
	batchOutputDir string
	batchFormat    string
	batchWorkers   int
	batchLogLevel  string
)

func init() {
	batchCmd.Flags().StringVarP(&batchTest, "test", "t", "", "Test id (see 'surveyqc tests')")
	batchCmd.Flags().StringVar(&batchIPM, "ipm", "", "IPM file applied to every input (overrides inline ipm)")
	batchCmd.Flags().StringVarP(&batchOutputDir, "output-dir", "o", "results", "Directory for result files")
	batchCmd.Flags().StringVarP(&batchFormat, "format", "f", "", "Result format: json|yaml")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "Parallel workers (default number of CPUs)")
	batchCmd.Flags().StringVar(&batchLogLevel, "log-level", "", "Log level: quiet|standard|debug")

	viper.BindPFlag("batch.test", batchCmd.Flags().Lookup("test"))
	viper.BindPFlag("batch.ipm", batchCmd.Flags().Lookup("ipm"))
	viper.BindPFlag("batch.output-dir", batchCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("batch.format", batchCmd.Flags().Lookup("format"))
	viper.BindPFlag("batch.workers", batchCmd.Flags().Lookup("workers"))
	viper.BindPFlag("batch.log-level", batchCmd.Flags().Lookup("log-level"))
}
