package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idlab-discover/surveyqc-cli/internal/correction"
	qcio "github.com/idlab-discover/surveyqc-cli/internal/io"
	"github.com/idlab-discover/surveyqc-cli/internal/mse"
	"github.com/idlab-discover/surveyqc-cli/internal/qc"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
	"github.com/idlab-discover/surveyqc-cli/internal/ui"
)

// correctionOutput is the result body of the correct command.
type correctionOutput struct {
	Parameters correction.Parameters `json:"parameters" yaml:"parameters"`
	Surveys    []survey.Station      `json:"corrected_surveys" yaml:"corrected_surveys"`
	Estimation *qc.Result            `json:"estimation,omitempty" yaml:"estimation,omitempty"`
}

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Estimate sensor errors and write corrected surveys",
	Long:  "Runs the multi-station estimator on the request and writes the corrected stations. With --params the given error terms are applied instead and no estimation runs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logLevel("correct")
		if err != nil {
			return err
		}
		wireLoggers(level, cmd.ErrOrStderr())

		input := viper.GetString("correct.input")
		format := viper.GetString("correct.format")
		out := correctionOutput{}
		runID := uuid.NewString()

		if paramsPath := viper.GetString("correct.params"); paramsPath != "" {
			req, err := qcio.ReadRequest(input, format)
			if err != nil {
				return err
			}
			if err := qcio.ReadInto(paramsPath, qcio.FormatAuto, &out.Parameters); err != nil {
				return err
			}
			for i, st := range req.Surveys {
				c, err := correction.Apply(st, out.Parameters)
				if err != nil {
					return fmt.Errorf("station %d (%s): %w", i, st.Label(), err)
				}
				out.Surveys = append(out.Surveys, c)
			}
		} else {
			req, model, err := loadRequest(input, format, viper.GetString("correct.ipm"))
			if err != nil {
				return err
			}
			stations := req.Surveys
			spin := ui.NewSimpleSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Estimating sensor errors over %d station(s)", len(stations)))
			if level != "quiet" {
				spin.Start()
			}
			res, err := qc.MSE{Settings: settings()}.EvaluateContext(cmd.Context(), stations, model)
			if err != nil {
				spin.Stop(false, err.Error())
				return err
			}
			est := res.Estimation
			spin.Stop(est.Failure == nil, fmt.Sprintf("%d iteration(s), geometry %s", est.Iterations, est.GeometryQuality))
			out.Parameters = correction.FromEstimates(est.ParameterNames, values(est.Parameters))
			out.Surveys = est.CorrectedSurveys
			out.Estimation = res
			render(resultView(runID, res), level, viper.GetBool("correct.plain-summary"))
		}

		env := qcio.Envelope{RunID: runID, Test: "CORRECT", Result: out}
		return emit(cmd.OutOrStdout(), env, viper.GetString("correct.output"), format)
	},
}

func values(ps []mse.Parameter) []float64 {
	out := make([]float64, len(ps))
	for i, p := range ps {
		out[i] = p.Value
	}
	return out
}

var (
	correctInput        string
	correctIPM          string
	correctParams       string
	correctOutput       string
	correctFormat       string
	correctLogLevel     string
	correctPlainSummary bool
)

func init() {
	correctCmd.Flags().StringVarP(&correctInput, "input", "i", "", "Survey request file (json/yaml)")
	correctCmd.Flags().StringVar(&correctIPM, "ipm", "", "IPM file (overrides the request's inline ipm)")
	correctCmd.Flags().StringVar(&correctParams, "params", "", "Apply these error terms (json/yaml) instead of estimating")
	correctCmd.Flags().StringVarP(&correctOutput, "output", "o", "", "Result file (default stdout)")
	correctCmd.Flags().StringVarP(&correctFormat, "format", "f", "", "Format: json|yaml|auto")
	correctCmd.Flags().StringVar(&correctLogLevel, "log-level", "", "Log level: quiet|standard|debug")
	correctCmd.Flags().BoolVar(&correctPlainSummary, "plain-summary", false, "Print a plain summary (no styling)")

	viper.BindPFlag("correct.input", correctCmd.Flags().Lookup("input"))
	viper.BindPFlag("correct.ipm", correctCmd.Flags().Lookup("ipm"))
	viper.BindPFlag("correct.params", correctCmd.Flags().Lookup("params"))
	viper.BindPFlag("correct.output", correctCmd.Flags().Lookup("output"))
	viper.BindPFlag("correct.format", correctCmd.Flags().Lookup("format"))
	viper.BindPFlag("correct.log-level", correctCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("correct.plain-summary", correctCmd.Flags().Lookup("plain-summary"))
}
