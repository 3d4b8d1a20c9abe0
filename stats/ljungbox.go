package stats

import (
	"math"

	"github.com/sartorproj/pricecast/timeseries"
)

// LjungBoxResult represents the result of a Ljung-Box test.
type LjungBoxResult struct {
	Statistic float64
	PValue    float64
	Lags      int
	DOF       int
}

// LjungBox tests residuals for autocorrelation up to lags. fitdf is the number
// of estimated ARMA parameters and is subtracted from the degrees of freedom.
// A p-value above 0.05 means the residuals look like white noise.
// It returns nil when the series is too short or has zero variance.
func LjungBox(residuals *timeseries.Series, lags, fitdf int) *LjungBoxResult {
	n := residuals.Len()
	if n < 10 || lags < 1 {
		return nil
	}
	lags = min(lags, n-1)

	acf := ACF(residuals, lags)
	if acf == nil {
		return nil
	}

	q := 0.0
	for k := 1; k <= lags; k++ {
		q += acf[k] * acf[k] / float64(n-k)
	}
	q *= float64(n) * float64(n+2)

	dof := max(lags-fitdf, 1)

	return &LjungBoxResult{
		Statistic: q,
		PValue:    1 - chiSquaredCDF(q, dof),
		Lags:      lags,
		DOF:       dof,
	}
}

// chiSquaredCDF is the regularized lower incomplete gamma P(k/2, x/2).
func chiSquaredCDF(x float64, k int) float64 {
	if x <= 0 {
		return 0
	}
	return regularizedGammaP(float64(k)/2, x/2)
}

// regularizedGammaP evaluates P(a, x) by its series expansion below a+1 and
// by Lentz's continued fraction for Q(a, x) above it.
func regularizedGammaP(a, x float64) float64 {
	const (
		maxIter = 500
		eps     = 1e-14
		tiny    = 1e-300
	)

	lg, _ := math.Lgamma(a)
	prefix := math.Exp(a*math.Log(x) - x - lg)

	if x < a+1 {
		sum := 1 / a
		term := sum
		for n := 1; n < maxIter; n++ {
			term *= x / (a + float64(n))
			sum += term
			if math.Abs(term) < math.Abs(sum)*eps {
				break
			}
		}
		return math.Min(sum*prefix, 1)
	}

	b := x + 1 - a
	c := 1 / tiny
	d := 1 / b
	h := d
	for n := 1; n < maxIter; n++ {
		an := -float64(n) * (float64(n) - a)
		b += 2
		d = an*d + b
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = b + an/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		delta := d * c
		h *= delta
		if math.Abs(delta-1) < eps {
			break
		}
	}
	return math.Max(1-prefix*h, 0)
}
