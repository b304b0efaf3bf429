package resize

import (
	"math"
)

// DetectorConfig parameterizes the run-length model
// Observations within a regime are modeled as Gaussian with known noise Sigma around
// an unknown regime mean drawn from Normal(PriorMean, PriorStd²)
type DetectorConfig struct {
	HazardLambda float64 // expected run length; hazard is 1/HazardLambda per observation
	Sigma        float64 // observation noise within a regime
	PriorMean    float64 // prior regime mean
	PriorStd     float64 // prior spread of regime means
	MaxRun       int     // run-length posterior is truncated beyond this length
}

// Observation is the detector verdict after one update
type Observation struct {
	T        int     // 1-based observation index
	MAP      int     // most probable run length, counting the current observation
	PChange  float64 // posterior probability that the current observation starts a new run
	Change   bool    // a new regime boundary was reported at this step
	Boundary int     // index of the first observation of the new regime when Change
}

// Detector is a bounded Bayesian online change-point detector
// The posterior over run length is kept in the log domain; entry i is run length i+1
type Detector struct {
	cfg DetectorConfig

	logH   float64
	log1mH float64
	sigma2 float64
	prec0  float64

	logR []float64 // log run-length posterior
	sums []float64 // sum of observations per run hypothesis
	n    int       // valid hypotheses

	nextR []float64
	nextS []float64

	t            int
	prevMAP      int
	lastBoundary int
	boundaries   []int
}

// NewDetector creates a detector, replacing invalid parameters with usable minimums
func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.HazardLambda < 1 {
		cfg.HazardLambda = 1
	}
	if cfg.Sigma <= 0 {
		cfg.Sigma = 1
	}
	if cfg.PriorStd <= 0 {
		cfg.PriorStd = 1
	}
	if cfg.MaxRun < 2 {
		cfg.MaxRun = 2
	}

	h := 1 / cfg.HazardLambda
	d := &Detector{
		cfg:    cfg,
		logH:   math.Log(h),
		log1mH: math.Log1p(-h),
		sigma2: cfg.Sigma * cfg.Sigma,
		prec0:  1 / (cfg.PriorStd * cfg.PriorStd),
		logR:   make([]float64, cfg.MaxRun),
		sums:   make([]float64, cfg.MaxRun),
		nextR:  make([]float64, cfg.MaxRun),
		nextS:  make([]float64, cfg.MaxRun),
	}
	if h >= 1 {
		d.log1mH = math.Inf(-1)
	}
	return d
}

// Config returns the effective parameters
func (d *Detector) Config() DetectorConfig { return d.cfg }

// Reset forgets all observations and reported boundaries
func (d *Detector) Reset() {
	d.n = 0
	d.t = 0
	d.prevMAP = 0
	d.lastBoundary = 0
	d.boundaries = d.boundaries[:0]
}

// Observe folds x into the posterior
// A boundary is reported when the MAP run length stops growing and the implied
// start of the current run lies after the last reported boundary
func (d *Detector) Observe(x float64) Observation {
	d.t++

	if d.n == 0 {
		d.logR[0] = 0
		d.sums[0] = x
		d.n = 1
		d.prevMAP = 1
		d.lastBoundary = d.t
		return Observation{T: d.t, MAP: 1, PChange: 1}
	}

	maxRun := d.cfg.MaxRun

	// New run: the posterior sums to one so the change mass is H * p0(x)
	d.nextR[0] = d.logH + d.logPredictive(x, 0, 0)
	d.nextS[0] = x

	m := 1
	for i := 0; i < d.n && i+1 < maxRun; i++ {
		run := i + 1
		d.nextR[i+1] = d.logR[i] + d.log1mH + d.logPredictive(x, run, d.sums[i])
		d.nextS[i+1] = d.sums[i] + x
		m = i + 2
	}

	norm := logSumExp(d.nextR[:m])
	for i := 0; i < m; i++ {
		d.nextR[i] -= norm
	}
	d.logR, d.nextR = d.nextR, d.logR
	d.sums, d.nextS = d.nextS, d.sums
	d.n = m

	mapRun := d.MAPRunLength()
	obs := Observation{T: d.t, MAP: mapRun, PChange: math.Exp(d.logR[0])}

	if mapRun < min(d.prevMAP+1, maxRun) {
		b := d.t - mapRun + 1
		if b > d.lastBoundary {
			d.lastBoundary = b
			d.boundaries = append(d.boundaries, b)
			obs.Change = true
			obs.Boundary = b
		}
	}
	d.prevMAP = mapRun
	return obs
}

// posterior returns the mean and variance of the regime mean after n observations summing to sum
func (d *Detector) posterior(n int, sum float64) (mean, variance float64) {
	prec := d.prec0 + float64(n)/d.sigma2
	mean = (d.prec0*d.cfg.PriorMean + sum/d.sigma2) / prec
	return mean, 1 / prec
}

// logPredictive is the log density of x given a run of n prior observations
func (d *Detector) logPredictive(x float64, n int, sum float64) float64 {
	mean, variance := d.posterior(n, sum)
	return logNormal(x, mean, variance+d.sigma2)
}

// MAPRunLength returns the most probable run length, 0 before any observation
func (d *Detector) MAPRunLength() int {
	best := 0
	bestLog := math.Inf(-1)
	for i := 0; i < d.n; i++ {
		if d.logR[i] > bestLog {
			bestLog = d.logR[i]
			best = i + 1
		}
	}
	return best
}

// Posterior returns the run-length distribution; entry i is the probability of run length i+1
func (d *Detector) Posterior() []float64 {
	out := make([]float64, d.n)
	for i := 0; i < d.n; i++ {
		out[i] = math.Exp(d.logR[i])
	}
	return out
}

// PBelow returns the posterior mass of run hypotheses whose estimated regime mean is below threshold
func (d *Detector) PBelow(threshold float64) float64 {
	p := 0.0
	for i := 0; i < d.n; i++ {
		if mean, _ := d.posterior(i+1, d.sums[i]); mean < threshold {
			p += math.Exp(d.logR[i])
		}
	}
	return p
}

// ExpectedMean returns the posterior expected regime mean, the prior mean before any observation
func (d *Detector) ExpectedMean() float64 {
	if d.n == 0 {
		return d.cfg.PriorMean
	}
	e := 0.0
	for i := 0; i < d.n; i++ {
		mean, _ := d.posterior(i+1, d.sums[i])
		e += math.Exp(d.logR[i]) * mean
	}
	return e
}

// Boundaries returns every reported regime boundary, ascending
func (d *Detector) Boundaries() []int {
	out := make([]int, len(d.boundaries))
	copy(out, d.boundaries)
	return out
}

// Count returns the number of observations since the last reset
func (d *Detector) Count() int { return d.t }

func logNormal(x, mean, variance float64) float64 {
	diff := x - mean
	return -0.5*math.Log(2*math.Pi*variance) - diff*diff/(2*variance)
}

func logSumExp(xs []float64) float64 {
	hi := math.Inf(-1)
	for _, x := range xs {
		if x > hi {
			hi = x
		}
	}
	if math.IsInf(hi, -1) {
		return hi
	}
	s := 0.0
	for _, x := range xs {
		s += math.Exp(x - hi)
	}
	return hi + math.Log(s)
}
