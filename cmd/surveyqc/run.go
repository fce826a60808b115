package cmd

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	qcio "github.com/idlab-discover/surveyqc-cli/internal/io"
	"github.com/idlab-discover/surveyqc-cli/internal/qc"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one QC test on a survey request",
	Long:  "Reads surveys (json/yaml) and an IPM, runs the selected test and writes the result envelope to --output or stdout. A styled summary goes to stderr.",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logLevel("run")
		if err != nil {
			return err
		}
		wireLoggers(level, cmd.ErrOrStderr())

		testID := viper.GetString("run.test")
		if testID == "" {
			return apperr.User("--test is required")
		}
		req, model, err := loadRequest(viper.GetString("run.input"), viper.GetString("run.format"), viper.GetString("run.ipm"))
		if err != nil {
			return err
		}

		reg := qc.NewRegistry(settings())
		res, err := evaluate(cmd.Context(), reg, testID, req, model)
		if err != nil {
			return err
		}

		env := qcio.Envelope{RunID: uuid.NewString(), Test: res.TestName, Result: res}
		if err := emit(cmd.OutOrStdout(), env, viper.GetString("run.output"), viper.GetString("run.format")); err != nil {
			return err
		}
		render(resultView(env.RunID, res), level, viper.GetBool("run.plain-summary"))
		if viper.GetBool("run.fail-on-invalid") && !res.IsValid {
			return apperr.Invalid(res.TestName)
		}
		return nil
	},
}

var (
	runTest          string
	runInput         string
	runIPM           string
	runOutput        string
	runFormat        string
	runLogLevel      string
	runPlainSummary  bool
	runFailOnInvalid bool
)

func init() {
	runCmd.Flags().StringVarP(&runTest, "test", "t", "", "Test id (see 'surveyqc tests')")
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "Survey request file (json/yaml)")
	runCmd.Flags().StringVar(&runIPM, "ipm", "", "IPM file (overrides the request's inline ipm)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Result file (default stdout)")
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "", "Format: json|yaml|auto")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "", "Log level: quiet|standard|debug")
	runCmd.Flags().BoolVar(&runPlainSummary, "plain-summary", false, "Print a plain summary (no styling)")
	runCmd.Flags().BoolVar(&runFailOnInvalid, "fail-on-invalid", false, "Exit with status 2 when the result is invalid")

	viper.BindPFlag("run.test", runCmd.Flags().Lookup("test"))
	viper.BindPFlag("run.input", runCmd.Flags().Lookup("input"))
	viper.BindPFlag("run.ipm", runCmd.Flags().Lookup("ipm"))
	viper.BindPFlag("run.output", runCmd.Flags().Lookup("output"))
	viper.BindPFlag("run.format", runCmd.Flags().Lookup("format"))
	viper.BindPFlag("run.log-level", runCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("run.plain-summary", runCmd.Flags().Lookup("plain-summary"))
	viper.BindPFlag("run.fail-on-invalid", runCmd.Flags().Lookup("fail-on-invalid"))
}
