package stats

import (
	"errors"
	"fmt"
	"math"

	"github.com/sartorproj/pricecast/timeseries"
)

// minADFObservations is the shortest series the ADF regression accepts.
const minADFObservations = 10

// ErrDegenerateSeries is returned when a test statistic cannot be computed
// because the series is constant or its regression matrix is singular.
var ErrDegenerateSeries = errors.New("degenerate series")

// ADFResult represents the result of an Augmented Dickey-Fuller test.
type ADFResult struct {
	Statistic    float64
	PValue       float64 // rounded to 3 decimals
	Lags         int     // lagged differences used in the regression
	NObs         int     // observations in the final regression
	CriticalVals map[string]float64
	IsStationary bool // PValue <= 0.05
}

// ADF performs the Augmented Dickey-Fuller unit-root test with a constant.
// The null hypothesis is that the series has a unit root.
//
// When maxLag <= 0 the lag length is selected by AIC among 0..12*(n/100)^(1/4),
// with every candidate regressed on the same sample.
func ADF(series *timeseries.Series, maxLag int) (*ADFResult, error) {
	n := series.Len()
	if n < minADFObservations {
		return nil, timeseries.Insufficient("adf", minADFObservations, n)
	}
	if series.IsConstant() {
		return nil, fmt.Errorf("adf: %w: constant series", ErrDegenerateSeries)
	}

	autolag := maxLag <= 0
	if autolag {
		maxLag = int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	}
	// Leave at least as many rows as columns in the widest regression.
	maxLag = min(maxLag, n/2-2)
	if maxLag < 0 {
		return nil, timeseries.Insufficient("adf", minADFObservations, n)
	}

	x := series.Values
	diff := series.Diff().Values

	lags := maxLag
	if autolag {
		best := math.Inf(1)
		for l := 0; l <= maxLag; l++ {
			y, design := adfDesign(x, diff, l, maxLag)
			fit, err := olsRegression(design, y)
			if err != nil {
				continue
			}
			if aic := fit.aic(); !math.IsNaN(aic) && aic < best {
				best = aic
				lags = l
			}
		}
		if math.IsInf(best, 1) {
			return nil, fmt.Errorf("adf: %w: lag selection failed", ErrDegenerateSeries)
		}
	}

	y, design := adfDesign(x, diff, lags, lags)
	fit, err := olsRegression(design, y)
	if err != nil {
		return nil, fmt.Errorf("adf: %w", err)
	}
	if fit.stdErrors[1] == 0 {
		return nil, fmt.Errorf("adf: %w: zero standard error", ErrDegenerateSeries)
	}

	stat := fit.coeffs[1] / fit.stdErrors[1]
	if math.IsNaN(stat) || math.IsInf(stat, 0) {
		return nil, fmt.Errorf("adf: %w: non-finite statistic", ErrDegenerateSeries)
	}
	pValue := Round(mackinnonPValue(stat), 3)

	return &ADFResult{
		Statistic: stat,
		PValue:    pValue,
		Lags:      lags,
		NObs:      len(y),
		CriticalVals: map[string]float64{
			"1%":  -3.43,
			"5%":  -2.86,
			"10%": -2.57,
		},
		IsStationary: pValue <= SignificanceLevel,
	}, nil
}

// PValue returns the rounded ADF p-value of series with automatic lag selection.
func PValue(series *timeseries.Series) (float64, error) {
	res, err := ADF(series, 0)
	if err != nil {
		return 0, err
	}
	return res.PValue, nil
}

// adfDesign builds the regression
//
//	dy_t = alpha + beta*y_{t-1} + sum_{i=1..lags} gamma_i*dy_{t-i}
//
// over the rows that have skip lagged differences available, so regressions
// with different lag counts share a sample.
func adfDesign(x, diff []float64, lags, skip int) ([]float64, [][]float64) {
	rows := len(diff) - skip
	y := make([]float64, rows)
	design := make([][]float64, rows)

	for i := 0; i < rows; i++ {
		t := i + skip
		y[i] = diff[t]

		row := make([]float64, 2+lags)
		row[0] = 1
		row[1] = x[t]
		for j := 1; j <= lags; j++ {
			row[1+j] = diff[t-j]
		}
		design[i] = row
	}

	return y, design
}

type olsFit struct {
	coeffs    []float64
	stdErrors []float64
	sse       float64
	nobs      int
}

// aic matches the Gaussian log-likelihood AIC of an OLS fit.
func (f *olsFit) aic() float64 {
	n := float64(f.nobs)
	llf := -n / 2 * (math.Log(2*math.Pi) + math.Log(f.sse/n) + 1)
	return -2*llf + 2*float64(len(f.coeffs))
}

// olsRegression performs ordinary least squares via the normal equations.
func olsRegression(x [][]float64, y []float64) (*olsFit, error) {
	n := len(y)
	if n == 0 || len(x) != n {
		return nil, errors.New("ols: empty or mismatched design")
	}

	k := len(x[0])
	if n <= k {
		return nil, timeseries.Insufficient("ols", k+1, n)
	}

	xtx := make([][]float64, k)
	for i := range xtx {
		xtx[i] = make([]float64, k)
	}
	xty := make([]float64, k)

	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			xty[j] += x[i][j] * y[i]
			for l := 0; l < k; l++ {
				xtx[j][l] += x[i][j] * x[i][l]
			}
		}
	}

	xtxInv := invertMatrix(xtx)
	if xtxInv == nil {
		return nil, fmt.Errorf("ols: %w: singular design matrix", ErrDegenerateSeries)
	}

	coeffs := make([]float64, k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			coeffs[i] += xtxInv[i][j] * xty[j]
		}
	}

	sse := 0.0
	for i := 0; i < n; i++ {
		pred := 0.0
		for j := 0; j < k; j++ {
			pred += coeffs[j] * x[i][j]
		}
		r := y[i] - pred
		sse += r * r
	}

	s2 := sse / float64(n-k)
	stdErrors := make([]float64, k)
	for i := 0; i < k; i++ {
		stdErrors[i] = math.Sqrt(math.Max(s2*xtxInv[i][i], 0))
	}

	return &olsFit{coeffs: coeffs, stdErrors: stdErrors, sse: sse, nobs: n}, nil
}

// invertMatrix inverts a square matrix using Gauss-Jordan elimination with
// partial pivoting. It returns nil for a singular matrix.
func invertMatrix(m [][]float64) [][]float64 {
	n := len(m)
	if n == 0 {
		return nil
	}

	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, 2*n)
		copy(aug[i][:n], m[i])
		aug[i][n+i] = 1
	}

	for i := 0; i < n; i++ {
		maxRow := i
		for k := i + 1; k < n; k++ {
			if math.Abs(aug[k][i]) > math.Abs(aug[maxRow][i]) {
				maxRow = k
			}
		}
		aug[i], aug[maxRow] = aug[maxRow], aug[i]

		if math.Abs(aug[i][i]) < 1e-10 {
			return nil
		}

		pivot := aug[i][i]
		for j := 0; j < 2*n; j++ {
			aug[i][j] /= pivot
		}

		for k := 0; k < n; k++ {
			if k == i {
				continue
			}
			factor := aug[k][i]
			for j := 0; j < 2*n; j++ {
				aug[k][j] -= factor * aug[i][j]
			}
		}
	}

	result := make([][]float64, n)
	for i := 0; i < n; i++ {
		result[i] = make([]float64, n)
		copy(result[i], aug[i][n:])
	}
	return result
}

// MacKinnon (1994) response-surface coefficients for the constant-only
// regression with a single series.
var (
	tauMax    = 2.74
	tauMin    = -18.83
	tauStar   = -1.61
	tauSmallP = []float64{2.1659, 1.4412, 0.038269}
	tauLargeP = []float64{1.7339, 0.93202, -0.12745, -0.010368}
)

// mackinnonPValue approximates the asymptotic p-value of an ADF statistic.
func mackinnonPValue(stat float64) float64 {
	switch {
	case stat > tauMax:
		return 1
	case stat < tauMin:
		return 0
	}

	coef := tauLargeP
	if stat <= tauStar {
		coef = tauSmallP
	}

	z := 0.0
	for i := len(coef) - 1; i >= 0; i-- {
		z = z*stat + coef[i]
	}
	return normalCDF(z)
}

func normalCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}
