package services

import (
	"math"

	"gonum.org/v1/gonum/mathext"

	"github.com/astrokit/lightcurve-go/internal/utils"
)

// DefaultMassTolerance is the accepted error on the probability mass
// enclosed by a computed interval.
const DefaultMassTolerance = 1e-6

// DefaultMaxIterations caps every bisection loop inside the estimator.
const DefaultMaxIterations = 200

// densityFloor is how far (in log density) below the posterior mode the
// level search may start when the density at S=0 is zero or negligible.
// exp(-60) of the peak leaves no measurable mass outside the bracket.
const densityFloor = 60.0

// BayesInterval is a confidence interval on the Poisson source-count
// parameter S, together with its posterior mean.
type BayesInterval struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// BayesianRateEstimator computes Bayesian confidence intervals for Poisson
// source counts in the presence of a known background, following Kraft,
// Burrows & Nousek (1991, ApJ 374, 344). The posterior is
//
//	p(S|N,B) = C exp(-(S+B)) (S+B)^N / N!,  S >= 0
//
// and the reported interval is the minimal-width (equal posterior ordinate)
// region containing the requested probability mass, clamped to Smin = 0
// whenever the data are consistent with zero source counts at that
// confidence.
type BayesianRateEstimator struct {
	MassTolerance float64 // accepted error on the enclosed probability mass
	MaxIterations int     // iteration cap per bisection loop
}

// NewBayesianRateEstimator creates an estimator with the default tolerances.
func NewBayesianRateEstimator() *BayesianRateEstimator {
	return &BayesianRateEstimator{
		MassTolerance: DefaultMassTolerance,
		MaxIterations: DefaultMaxIterations,
	}
}

// posterior bundles the quantities every evaluation needs. All factorial and
// gamma terms are kept in log space or expressed through the regularized
// incomplete gamma function so arbitrary count scales stay finite.
type posterior struct {
	n       float64 // total counts in the source region
	b       float64 // expected background counts
	norm    float64 // normalization Q(N+1, B), upper regularized gamma
	lgammaN float64 // ln Gamma(N+1) = ln N!
}

// logDensity returns the unnormalized log posterior density at s. The
// normalization cancels in every ordinate comparison the estimator makes.
func (p *posterior) logDensity(s float64) float64 {
	t := s + p.b
	lp := -t - p.lgammaN
	if p.n > 0 {
		lp += p.n * math.Log(t)
	}
	return lp
}

// cdf returns the posterior probability mass on [0, s]. With t = S+B the
// posterior integrates to a ratio of upper regularized gamma functions.
func (p *posterior) cdf(s float64) float64 {
	return (p.norm - mathext.GammaIncRegComp(p.n+1, p.b+s)) / p.norm
}

// mean returns the posterior expectation of S:
// ((N+1) Q(N+2,B) - B Q(N+1,B)) / Q(N+1,B).
func (p *posterior) mean() float64 {
	return ((p.n+1)*mathext.GammaIncRegComp(p.n+2, p.b) - p.b*p.norm) / p.norm
}

// Interval computes the KBN confidence interval and posterior mean for the
// source-count parameter given counts total counts in the source region,
// background expected background counts and conf in the open interval (0,1).
// The enclosed probability mass is accurate to MassTolerance; failure to
// converge is a NumericalError.
func (e *BayesianRateEstimator) Interval(counts int64, background, conf float64) (BayesInterval, error) {
	if counts < 0 {
		return BayesInterval{}, utils.NewInvalidArgumentErrorf("total counts must be non-negative, got %d", counts)
	}
	if background < 0 || math.IsNaN(background) || math.IsInf(background, 0) {
		return BayesInterval{}, utils.NewInvalidArgumentErrorf("background counts must be a non-negative finite number, got %g", background)
	}
	if !(conf > 0 && conf < 1) {
		return BayesInterval{}, utils.NewInvalidArgumentErrorf("confidence level must lie in the open interval (0,1), got %g", conf)
	}

	n := float64(counts)
	lg, _ := math.Lgamma(n + 1)
	post := &posterior{
		n:       n,
		b:       background,
		norm:    mathext.GammaIncRegComp(n+1, background),
		lgammaN: lg,
	}
	if post.norm == 0 {
		return BayesInterval{}, utils.NewNumericalErrorf("posterior normalization underflowed for counts=%d background=%g", counts, background)
	}

	mode := n - background
	if mode < 0 {
		mode = 0
	}

	hi, err := e.upperBracket(post, mode, conf)
	if err != nil {
		return BayesInterval{}, err
	}

	// With the mode at S=0 the density decreases monotonically and the
	// minimal interval is one-sided by construction.
	if mode == 0 {
		smax, err := e.invertCDF(post, conf, hi)
		if err != nil {
			return BayesInterval{}, err
		}
		return BayesInterval{Min: 0, Max: smax, Mean: post.mean()}, nil
	}

	logPeak := post.logDensity(mode)
	logZero := post.logDensity(0)

	// When the density at S=0 is non-negligible, check whether the
	// equal-ordinate interval down to that level already holds conf. If it
	// does not, the minimal interval touches zero and the one-sided
	// formulation applies.
	levelLo := logZero
	if math.IsInf(logZero, -1) || logZero < logPeak-densityFloor {
		levelLo = logPeak - densityFloor
	} else {
		s2 := e.solveDensityFalling(post, logZero, mode, hi)
		if post.cdf(s2) < conf {
			smax, err := e.invertCDF(post, conf, hi)
			if err != nil {
				return BayesInterval{}, err
			}
			return BayesInterval{Min: 0, Max: smax, Mean: post.mean()}, nil
		}
	}

	smin, smax, err := e.equalOrdinateInterval(post, conf, levelLo, logPeak, mode, hi)
	if err != nil {
		return BayesInterval{}, err
	}
	return BayesInterval{Min: smin, Max: smax, Mean: post.mean()}, nil
}

// upperBracket expands an upper bound on S until it safely encloses both the
// requested mass and the density levels the interval search will probe.
func (e *BayesianRateEstimator) upperBracket(post *posterior, mode, conf float64) (float64, error) {
	hi := mode + 10*math.Sqrt(post.n+post.b+1) + 10
	floor := post.logDensity(mode) - densityFloor
	for i := 0; i < e.MaxIterations; i++ {
		if post.cdf(hi) >= (1+conf)/2 && post.logDensity(hi) < floor {
			return hi, nil
		}
		hi *= 2
	}
	return 0, utils.NewNumericalErrorf("failed to bracket the posterior upper tail for counts=%g background=%g", post.n, post.b)
}

// invertCDF finds s with cdf(s) == target by bisection on [0, hi].
func (e *BayesianRateEstimator) invertCDF(post *posterior, target, hi float64) (float64, error) {
	lo := 0.0
	for i := 0; i < e.MaxIterations; i++ {
		mid := 0.5 * (lo + hi)
		mass := post.cdf(mid)
		if math.Abs(mass-target) <= e.MassTolerance {
			return mid, nil
		}
		if mass < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0, utils.NewNumericalErrorf("cdf inversion did not reach tolerance %g within %d iterations (counts=%g background=%g target=%g)",
		e.MassTolerance, e.MaxIterations, post.n, post.b, target)
}

// solveDensityRising finds s in [0, mode] with logDensity(s) == level on the
// rising branch of the posterior.
func (e *BayesianRateEstimator) solveDensityRising(post *posterior, level, mode float64) float64 {
	lo, hi := 0.0, mode
	for i := 0; i < e.MaxIterations; i++ {
		mid := 0.5 * (lo + hi)
		if post.logDensity(mid) < level {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi)
}

// solveDensityFalling finds s in [mode, hi] with logDensity(s) == level on
// the falling branch of the posterior.
func (e *BayesianRateEstimator) solveDensityFalling(post *posterior, level, mode, hi float64) float64 {
	lo := mode
	for i := 0; i < e.MaxIterations; i++ {
		mid := 0.5 * (lo + hi)
		if post.logDensity(mid) > level {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi)
}

// equalOrdinateInterval bisects on the posterior ordinate between levelLo
// and the peak until the equal-density endpoints enclose exactly conf.
// The enclosed mass decreases monotonically as the level rises, which makes
// plain bisection sufficient.
func (e *BayesianRateEstimator) equalOrdinateInterval(post *posterior, conf, levelLo, levelHi, mode, hi float64) (float64, float64, error) {
	for i := 0; i < e.MaxIterations; i++ {
		level := 0.5 * (levelLo + levelHi)
		s1 := e.solveDensityRising(post, level, mode)
		s2 := e.solveDensityFalling(post, level, mode, hi)
		mass := post.cdf(s2) - post.cdf(s1)
		if math.Abs(mass-conf) <= e.MassTolerance {
			return s1, s2, nil
		}
		if mass > conf {
			levelLo = level
		} else {
			levelHi = level
		}
	}
	return 0, 0, utils.NewNumericalErrorf("equal-ordinate interval search did not reach tolerance %g within %d iterations (counts=%g background=%g conf=%g)",
		e.MassTolerance, e.MaxIterations, post.n, post.b, conf)
}
