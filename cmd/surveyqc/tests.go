package cmd

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	qcio "github.com/idlab-discover/surveyqc-cli/internal/io"
	"github.com/idlab-discover/surveyqc-cli/internal/qc"
	"github.com/idlab-discover/surveyqc-cli/internal/ui"
)

var testsCmd = &cobra.Command{
	Use:   "tests",
	Short: "List the supported QC tests",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos := qc.NewRegistry(settings()).Supported()
		if f := viper.GetString("tests.format"); f != "" {
			actual, err := qcio.ResolveFormat("", f)
			if err != nil {
				return err
			}
			return qcio.Encode(cmd.OutOrStdout(), infos, actual)
		}
		rows := make([][]string, 0, len(infos))
		for _, in := range infos {
			rows = append(rows, []string{in.ID, in.Name, in.Kind, strconv.Itoa(in.MinStations), in.Description})
		}
		ui.NewReportUI(cmd.OutOrStdout(), false).PrintTable("Supported tests", []string{"ID", "Name", "Kind", "Min", "Description"}, rows)
		return nil
	},
}

var testsFormat string

func init() {
	testsCmd.Flags().StringVarP(&testsFormat, "format", "f", "", "Emit json|yaml instead of a table")
	viper.BindPFlag("tests.format", testsCmd.Flags().Lookup("format"))
}
