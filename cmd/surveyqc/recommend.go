package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idlab-discover/surveyqc-cli/internal/recommend"
	"github.com/idlab-discover/surveyqc-cli/internal/ui"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend QC tests for a survey stage and sensor",
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := recommend.For(recommend.Request{
			Stage:       viper.GetString("recommend.stage"),
			Sensor:      viper.GetString("recommend.sensor"),
			DualDepth:   viper.GetBool("recommend.dual-depth"),
			Rotation:    viper.GetBool("recommend.rotation"),
			Estimate:    viper.GetBool("recommend.estimate"),
			Independent: viper.GetBool("recommend.independent"),
			InOut:       viper.GetBool("recommend.in-out"),
		})
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(rec.Tests))
		for _, id := range rec.Tests {
			rows = append(rows, []string{id, rec.Reasons[id]})
		}
		ui.NewReportUI(cmd.OutOrStdout(), false).PrintTable("Recommended tests", []string{"Test", "Why"}, rows)
		return nil
	},
}

var (
	recommendStage       string
	recommendSensor      string
	recommendDualDepth   bool
	recommendRotation    bool
	recommendEstimate    bool
	recommendIndependent bool
	recommendInOut       bool
)

func init() {
	recommendCmd.Flags().StringVar(&recommendStage, "stage", "station", "Survey stage: station|section")
	recommendCmd.Flags().StringVar(&recommendSensor, "sensor", "magnetic", "Sensor package: magnetic|gyro")
	recommendCmd.Flags().BoolVar(&recommendDualDepth, "dual-depth", false, "Pipe and wireline depths are available")
	recommendCmd.Flags().BoolVar(&recommendRotation, "rotation", false, "Data includes a rotation shot set")
	recommendCmd.Flags().BoolVar(&recommendEstimate, "estimate", false, "Include joint estimation for magnetic sections")
	recommendCmd.Flags().BoolVar(&recommendIndependent, "independent", false, "A second, independent survey is available")
	recommendCmd.Flags().BoolVar(&recommendInOut, "in-out", false, "Both in-run and out-run surveys are available")

	viper.BindPFlag("recommend.stage", recommendCmd.Flags().Lookup("stage"))
	viper.BindPFlag("recommend.sensor", recommendCmd.Flags().Lookup("sensor"))
	viper.BindPFlag("recommend.dual-depth", recommendCmd.Flags().Lookup("dual-depth"))
	viper.BindPFlag("recommend.rotation", recommendCmd.Flags().Lookup("rotation"))
	viper.BindPFlag("recommend.estimate", recommendCmd.Flags().Lookup("estimate"))
	viper.BindPFlag("recommend.independent", recommendCmd.Flags().Lookup("independent"))
	viper.BindPFlag("recommend.in-out", recommendCmd.Flags().Lookup("in-out"))
}
