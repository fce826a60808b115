// Package regression solves weighted linear least-squares problems through
// the normal equations and reports parameter covariance and correlation.
package regression

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/idlab-discover/surveyqc-cli/internal/apperr"
)

var (
	ErrDimensionMismatch = errors.New("regression: dimension mismatch")
	ErrNonFinite         = errors.New("regression: non-finite input")
	ErrNoParameters      = errors.New("regression: no parameters")
)

// RankTolerance is the smallest accepted ratio between the smallest and largest
// singular value of the column-equilibrated weighted design matrix.
const RankTolerance = 1e-8

// ConfoundedThreshold is the |correlation| above which a parameter pair of a
// singular problem is reported as confounded.
const ConfoundedThreshold = 0.95

// Problem is one weighted least-squares problem. Rows are observations,
// columns are parameters. Nil Weights means unit weights.
type Problem struct {
	Params  []string
	Design  *mat.Dense
	Obs     []float64
	Weights []float64
}

// Solution holds the estimates of a solved Problem.
type Solution struct {
	Params      []string
	Estimates   []float64
	StdDevs     []float64
	Covariance  [][]float64
	Correlation [][]float64
	Residuals   []float64

	WeightedSSR    float64
	VarianceFactor float64
	DOF            int

	MaxNondiagonal float64
	MaxPair        [2]string
}

// Index returns the column of the named parameter or -1.
func (s *Solution) Index(name string) int {
	for i, p := range s.Params {
		if p == name {
			return i
		}
	}
	return -1
}

// Solve estimates the parameters of p. Underdetermined problems return an
// *apperr.GeometryError and rank-deficient ones an *apperr.SingularMatrixError
// naming the confounded parameters; neither panics.
//
// The covariance is the inverse normal matrix scaled by the a posteriori
// variance factor when that factor exceeds one.
func Solve(p Problem) (*Solution, error) {
	if p.Design == nil {
		return nil, ErrNoParameters
	}
	n, k := p.Design.Dims()
	if k == 0 || len(p.Params) != k {
		return nil, fmt.Errorf("%w: %d params for %d columns", ErrDimensionMismatch, len(p.Params), k)
	}
	if len(p.Obs) != n || (p.Weights != nil && len(p.Weights) != n) {
		return nil, fmt.Errorf("%w: %d rows, %d observations, %d weights", ErrDimensionMismatch, n, len(p.Obs), len(p.Weights))
	}
	if n < k {
		return nil, &apperr.GeometryError{Quality: "underdetermined", Reason: fmt.Sprintf("%d observations for %d parameters", n, k)}
	}

	// Weighted, column-equilibrated system: xs = sqrt(W)·X·D⁻¹, ys = sqrt(W)·y.
	xs := mat.NewDense(n, k, nil)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		w := 1.0
		if p.Weights != nil {
			w = p.Weights[i]
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) || math.IsNaN(p.Obs[i]) || math.IsInf(p.Obs[i], 0) {
			return nil, fmt.Errorf("%w: row %d", ErrNonFinite, i)
		}
		sw := math.Sqrt(w)
		ys[i] = sw * p.Obs[i]
		for j := 0; j < k; j++ {
			v := p.Design.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: design[%d][%d]", ErrNonFinite, i, j)
			}
			xs.Set(i, j, sw*v)
		}
	}
	scale := make([]float64, k)
	col := make([]float64, n)
	for j := 0; j < k; j++ {
		mat.Col(col, j, xs)
		scale[j] = floats.Norm(col, 2)
		if scale[j] == 0 {
			return nil, &apperr.SingularMatrixError{Confounded: [][2]string{{p.Params[j], "(unobservable)"}}}
		}
		for i := 0; i < n; i++ {
			xs.Set(i, j, xs.At(i, j)/scale[j])
		}
	}

	var svd mat.SVD
	if !svd.Factorize(xs, mat.SVDNone) {
		return nil, &apperr.SingularMatrixError{Confounded: confounded(xs, p.Params)}
	}
	sv := svd.Values(nil)
	if sv[len(sv)-1] <= RankTolerance*sv[0] {
		logf("rank deficient: condition %.3g", sv[0]/sv[len(sv)-1])
		return nil, &apperr.SingularMatrixError{Confounded: confounded(xs, p.Params)}
	}

	normal := mat.NewSymDense(k, nil)
	normal.SymOuterK(1, xs.T())
	var chol mat.Cholesky
	if !chol.Factorize(normal) {
		return nil, &apperr.SingularMatrixError{Confounded: confounded(xs, p.Params)}
	}
	var rhs, beta mat.VecDense
	rhs.MulVec(xs.T(), mat.NewVecDense(n, ys))
	if err := chol.SolveVecTo(&beta, &rhs); err != nil {
		return nil, &apperr.SingularMatrixError{Confounded: confounded(xs, p.Params)}
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, &apperr.SingularMatrixError{Confounded: confounded(xs, p.Params)}
	}

	sol := &Solution{
		Params:    append([]string(nil), p.Params...),
		Estimates: make([]float64, k),
		StdDevs:   make([]float64, k),
		Residuals: make([]float64, n),
		DOF:       n - k,
	}
	for j := 0; j < k; j++ {
		sol.Estimates[j] = beta.AtVec(j) / scale[j]
	}
	for i := 0; i < n; i++ {
		pred := 0.0
		for j := 0; j < k; j++ {
			pred += p.Design.At(i, j) * sol.Estimates[j]
		}
		r := p.Obs[i] - pred
		sol.Residuals[i] = r
		w := 1.0
		if p.Weights != nil {
			w = p.Weights[i]
		}
		sol.WeightedSSR += w * r * r
	}
	sol.VarianceFactor = 1
	if sol.DOF > 0 {
		sol.VarianceFactor = math.Max(1, sol.WeightedSSR/float64(sol.DOF))
	}

	sol.Covariance = make([][]float64, k)
	for i := 0; i < k; i++ {
		sol.Covariance[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			sol.Covariance[i][j] = sol.VarianceFactor * inv.At(i, j) / (scale[i] * scale[j])
		}
		sol.StdDevs[i] = math.Sqrt(math.Max(sol.Covariance[i][i], 0))
	}
	sol.Correlation = Correlation(sol.Covariance)
	sol.MaxNondiagonal, sol.MaxPair = maxNondiagonal(sol.Correlation, sol.Params)
	return sol, nil
}

// Correlation normalises a covariance matrix.
func Correlation(cov [][]float64) [][]float64 {
	k := len(cov)
	out := make([][]float64, k)
	for i := range cov {
		out[i] = make([]float64, k)
		for j := range cov[i] {
			d := math.Sqrt(cov[i][i] * cov[j][j])
			if d > 0 {
				out[i][j] = cov[i][j] / d
			}
		}
		out[i][i] = 1
	}
	return out
}

func maxNondiagonal(corr [][]float64, names []string) (float64, [2]string) {
	var best float64
	var pair [2]string
	for i := range corr {
		for j := i + 1; j < len(corr); j++ {
			if a := math.Abs(corr[i][j]); a > best {
				best = a
				pair = [2]string{names[i], names[j]}
			}
		}
	}
	return best, pair
}

// confounded derives the parameter pairs a singular problem cannot separate
// from a ridge-regularised covariance of the equilibrated design.
func confounded(xs *mat.Dense, names []string) [][2]string {
	_, k := xs.Dims()
	normal := mat.NewSymDense(k, nil)
	normal.SymOuterK(1, xs.T())
	ridge := 1e-9 * math.Max(mat.Trace(normal)/float64(k), 1)
	for i := 0; i < k; i++ {
		normal.SetSym(i, i, normal.At(i, i)+ridge)
	}
	var chol mat.Cholesky
	if !chol.Factorize(normal) {
		return nil
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil
	}
	cov := make([][]float64, k)
	for i := 0; i < k; i++ {
		cov[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			cov[i][j] = inv.At(i, j)
		}
	}
	corr := Correlation(cov)

	var pairs [][2]string
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			if math.Abs(corr[i][j]) >= ConfoundedThreshold {
				pairs = append(pairs, [2]string{names[i], names[j]})
			}
		}
	}
	if len(pairs) == 0 {
		if _, pair := maxNondiagonal(corr, names); pair[0] != "" {
			pairs = append(pairs, pair)
		}
	}
	return pairs
}
