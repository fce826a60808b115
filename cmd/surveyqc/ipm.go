package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	"github.com/idlab-discover/surveyqc-cli/internal/completeness"
	qcio "github.com/idlab-discover/surveyqc-cli/internal/io"
	"github.com/idlab-discover/surveyqc-cli/internal/qc"
	"github.com/idlab-discover/surveyqc-cli/internal/ui"
)

var ipmCmd = &cobra.Command{
	Use:   "ipm",
	Short: "Inspect an IPM file",
	Long:  "Parses an IPM and lists its terms in raw and internal units. --check reports the terms a test needs that the model lacks; --rewrite prints the normalised IPM text. --coverage scores the model against every registered test.",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logLevel("ipm")
		if err != nil {
			return err
		}
		wireLoggers(level, cmd.ErrOrStderr())

		path := viper.GetString("ipm.file")
		if path == "" {
			return apperr.User("--ipm is required")
		}
		model, err := qcio.ReadIPM(path)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if viper.GetBool("ipm.rewrite") {
			_, err := model.WriteTo(out)
			return err
		}

		if viper.GetBool("ipm.coverage") {
			report := completeness.Check(model, qc.NewRegistry(settings()))
			completeness.PrintReport(report)
			if f := viper.GetString("ipm.format"); f != "" {
				return qcio.Encode(out, report, f)
			}
			cui := ui.NewCoverageUI(out, level == "quiet")
			if viper.GetBool("ipm.plain-summary") {
				cui.PrintSimpleReport(coverageView(report))
			} else {
				cui.PrintReport(coverageView(report))
			}
			return nil
		}

		if check := viper.GetString("ipm.check"); check != "" {
			missing, err := qc.NewRegistry(settings()).Compatibility(check, model)
			if err != nil {
				return err
			}
			test := strings.ToUpper(strings.TrimSpace(check))
			if len(missing) == 0 {
				fmt.Fprintf(out, "%s %s has every term %s needs\n", ui.CheckMark, path, test)
				return nil
			}
			fmt.Fprintf(out, "%s %s lacks %s term(s): %s\n", ui.WarnMark, path, test, strings.Join(missing, ", "))
			return nil
		}

		rows := make([][]string, 0, model.Len())
		for _, t := range model.Terms {
			rows = append(rows, []string{
				t.Name, t.Vector, t.TieOn, t.Unit,
				strconv.FormatFloat(t.Value, 'g', -1, 64),
				strconv.FormatFloat(t.ValueSI, 'g', 6, 64) + " " + t.SIUnit(),
			})
		}
		title := model.ShortName
		if title == "" {
			title = path
		}
		ui.NewReportUI(out, level == "quiet").PrintTable(title, []string{"Term", "Vector", "Tie-on", "Unit", "Value", "Internal"}, rows)
		return nil
	},
}

var (
	ipmFile     string
	ipmCheck    string
	ipmRewrite  bool
	ipmCoverage bool
	ipmFormat   string
	ipmPlain    bool
	ipmLogLevel string
)

func init() {
	ipmCmd.Flags().StringVar(&ipmFile, "ipm", "", "IPM file")
	ipmCmd.Flags().StringVar(&ipmCheck, "check", "", "Report terms of this test missing from the model")
	ipmCmd.Flags().BoolVar(&ipmRewrite, "rewrite", false, "Print the normalised IPM text")
	ipmCmd.Flags().BoolVar(&ipmCoverage, "coverage", false, "Score the model against every registered test")
	ipmCmd.Flags().StringVar(&ipmFormat, "format", "", "Coverage output format: json|yaml (default: styled report)")
	ipmCmd.Flags().BoolVar(&ipmPlain, "plain-summary", false, "Print an unstyled coverage summary")
	ipmCmd.Flags().StringVar(&ipmLogLevel, "log-level", "", "Log level: quiet|standard|debug")

	viper.BindPFlag("ipm.file", ipmCmd.Flags().Lookup("ipm"))
	viper.BindPFlag("ipm.check", ipmCmd.Flags().Lookup("check"))
	viper.BindPFlag("ipm.rewrite", ipmCmd.Flags().Lookup("rewrite"))
	viper.BindPFlag("ipm.coverage", ipmCmd.Flags().Lookup("coverage"))
	viper.BindPFlag("ipm.format", ipmCmd.Flags().Lookup("format"))
	viper.BindPFlag("ipm.plain-summary", ipmCmd.Flags().Lookup("plain-summary"))
	viper.BindPFlag("ipm.log-level", ipmCmd.Flags().Lookup("log-level"))
}
