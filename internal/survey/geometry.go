package survey

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Quadrant returns the 90° bin (0..3) an angle in degrees falls in.
func Quadrant(angle float64) int {
	return int(Wrap360(angle)/90) % 4
}

// QuadrantDistribution counts angles per 90° bin.
func QuadrantDistribution(angles []float64) [4]int {
	var q [4]int
	for _, a := range angles {
		q[Quadrant(a)]++
	}
	return q
}

// Covered counts non-empty quadrants.
func Covered(q [4]int) int {
	n := 0
	for _, c := range q {
		if c > 0 {
			n++
		}
	}
	return n
}

// Range returns max-min, or 0 for fewer than two values.
func Range(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}

// CircularRange returns the smallest arc in degrees containing every angle.
func CircularRange(angles []float64) float64 {
	if len(angles) < 2 {
		return 0
	}
	a := make([]float64, len(angles))
	for i, v := range angles {
		a[i] = Wrap360(v)
	}
	sort.Float64s(a)
	maxGap := a[0] + 360 - a[len(a)-1]
	for i := 1; i < len(a); i++ {
		maxGap = math.Max(maxGap, a[i]-a[i-1])
	}
	return 360 - maxGap
}

// Geometry summarises the geometric diversity of a station set.
type Geometry struct {
	Stations             int     `json:"stations" yaml:"stations"`
	QuadrantDistribution [4]int  `json:"quadrant_distribution" yaml:"quadrant_distribution"`
	QuadrantsCovered     int     `json:"quadrants_covered" yaml:"quadrants_covered"`
	InclinationSpread    float64 `json:"inclination_spread" yaml:"inclination_spread"`
	InclinationMean      float64 `json:"inclination_mean" yaml:"inclination_mean"`
	InclinationStdDev    float64 `json:"inclination_std_dev" yaml:"inclination_std_dev"`
	AzimuthSpread        float64 `json:"azimuth_spread" yaml:"azimuth_spread"`
	Quality              string  `json:"quality,omitempty" yaml:"quality,omitempty"`
}

// Diagnose computes geometry diagnostics from resolved orientations. Stations
// without a toolface or azimuth do not contribute to those statistics.
func Diagnose(orients []Orientation) Geometry {
	g := Geometry{Stations: len(orients)}
	var incs, tfs, azs []float64
	for _, o := range orients {
		incs = append(incs, o.Inclination)
		if o.Toolface != nil {
			tfs = append(tfs, *o.Toolface)
		}
		if o.Azimuth != nil {
			azs = append(azs, *o.Azimuth)
		}
	}
	g.QuadrantDistribution = QuadrantDistribution(tfs)
	g.QuadrantsCovered = Covered(g.QuadrantDistribution)
	g.InclinationSpread = Range(incs)
	if len(incs) > 0 {
		g.InclinationMean = stat.Mean(incs, nil)
	}
	if len(incs) > 1 {
		g.InclinationStdDev = stat.StdDev(incs, nil)
	}
	g.AzimuthSpread = CircularRange(azs)
	return g
}

// Geometry quality grades, best first.
const (
	QualityExcellent = "excellent"
	QualityGood      = "good"
	QualityFair      = "fair"
	QualityPoor      = "poor"
)

// Grade classifies diversity by inclination spread, azimuth spread and
// toolface quadrant coverage.
func (g Geometry) Grade() string {
	switch {
	case g.InclinationSpread >= 45 && g.AzimuthSpread >= 45 && g.QuadrantsCovered >= 4:
		return QualityExcellent
	case g.InclinationSpread >= 30 && g.AzimuthSpread >= 30 && g.QuadrantsCovered >= 3:
		return QualityGood
	case g.InclinationSpread >= 15 && g.AzimuthSpread >= 15 && g.QuadrantsCovered >= 2:
		return QualityFair
	}
	return QualityPoor
}
