package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
	qcio "github.com/idlab-discover/surveyqc-cli/internal/io"
	"github.com/idlab-discover/surveyqc-cli/internal/survey"
)

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Generate synthetic survey stations",
	Long:  "Emits a request with one station per inclination/azimuth/toolface triple. Raw channels are consistent with the reference fields, plus any injected sensor errors from --errors.",
	RunE: func(cmd *cobra.Command, args []string) error {
		incs, azs, tfs := synthInc, synthAz, synthTf
		if len(incs) == 0 || len(incs) != len(azs) || len(incs) != len(tfs) {
			return apperr.User("--inc, --az and --tf need the same, non-zero number of values")
		}

		var errs survey.SensorErrors
		if p := viper.GetString("synth.errors"); p != "" {
			if err := qcio.ReadInto(p, qcio.FormatAuto, &errs); err != nil {
				return err
			}
		}
		field := &survey.GeomagneticField{
			TotalField:  viper.GetFloat64("synth.total-field"),
			Dip:         viper.GetFloat64("synth.dip"),
			Declination: survey.Float(viper.GetFloat64("synth.declination")),
		}
		lat := viper.GetFloat64("synth.latitude")
		depth := viper.GetFloat64("synth.depth")
		step := viper.GetFloat64("synth.step")

		req := qcio.Request{}
		for i := range incs {
			st := survey.Synthesize(survey.Synthetic{
				Depth:       depth + step*float64(i),
				Inclination: incs[i],
				Azimuth:     azs[i],
				Toolface:    tfs[i],
				Field:       field,
				Latitude:    &lat,
				Errors:      errs,
			})
			st.ID = fmt.Sprintf("SYN%03d", i+1)
			req.Surveys = append(req.Surveys, st)
		}

		format := viper.GetString("synth.format")
		if out := viper.GetString("synth.output"); out != "" {
			return qcio.WriteResult(req, out, format)
		}
		actual, err := qcio.ResolveFormat("", format)
		if err != nil {
			return err
		}
		return qcio.Encode(cmd.OutOrStdout(), req, actual)
	},
}

var (
	synthInc, synthAz, synthTf []float64
	synthTotalField            float64
	synthDip                   float64
	synthDeclination           float64
	synthLatitude              float64
	synthDepth, synthStep      float64
	synthErrors                string
	synthOutput, synthFormat   string
)

func init() {
	synthCmd.Flags().Float64SliceVar(&synthInc, "inc", nil, "Inclinations in degrees")
	synthCmd.Flags().Float64SliceVar(&synthAz, "az", nil, "True azimuths in degrees")
	synthCmd.Flags().Float64SliceVar(&synthTf, "tf", nil, "Gravity toolfaces in degrees")
	synthCmd.Flags().Float64Var(&synthTotalField, "total-field", 50000, "Reference total field in nT")
	synthCmd.Flags().Float64Var(&synthDip, "dip", 66, "Reference dip in degrees")
	synthCmd.Flags().Float64Var(&synthDeclination, "declination", 0, "Declination in degrees")
	synthCmd.Flags().Float64Var(&synthLatitude, "latitude", 52, "Latitude in degrees")
	synthCmd.Flags().Float64Var(&synthDepth, "depth", 1000, "Depth of the first station in metres")
	synthCmd.Flags().Float64Var(&synthStep, "step", 30, "Depth step between stations in metres")
	synthCmd.Flags().StringVar(&synthErrors, "errors", "", "Sensor errors to inject (json/yaml)")
	synthCmd.Flags().StringVarP(&synthOutput, "output", "o", "", "Output file (default stdout)")
	synthCmd.Flags().StringVarP(&synthFormat, "format", "f", "", "Format: json|yaml|auto")

	for _, name := range []string{"total-field", "dip", "declination", "latitude", "depth", "step", "errors", "output", "format"} {
		viper.BindPFlag("synth."+name, synthCmd.Flags().Lookup(name))
	}
}
