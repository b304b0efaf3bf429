package resize

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitDetectorConfig() DetectorConfig {
	return DetectorConfig{
		HazardLambda: 250,
		Sigma:        1,
		PriorMean:    0,
		PriorStd:     5,
		MaxRun:       400,
	}
}

func TestDetectorFindsTwoBoundaries(t *testing.T) {
	const k1, k2, tolerance = 101, 201, 2

	for seed := uint64(1); seed <= 8; seed++ {
		rng := rand.New(rand.NewPCG(seed, 99))
		d := NewDetector(unitDetectorConfig())

		for i := 1; i <= 300; i++ {
			mean := 0.0
			switch {
			case i >= k2:
				mean = -6
			case i >= k1:
				mean = 8
			}
			d.Observe(mean + rng.NormFloat64())
		}

		b := d.Boundaries()
		assert.True(t, hasNear(b, k1, tolerance), "seed %d: no boundary near %d in %v", seed, k1, b)
		assert.True(t, hasNear(b, k2, tolerance), "seed %d: no boundary near %d in %v", seed, k2, b)
		assert.LessOrEqual(t, len(b), 4, "seed %d: too many boundaries %v", seed, b)
	}
}

func TestDetectorFalsePositiveRate(t *testing.T) {
	const trials, length = 200, 200
	rng := rand.New(rand.NewPCG(2024, 7))

	falsePositives := 0
	for trial := 0; trial < trials; trial++ {
		d := NewDetector(unitDetectorConfig())
		for i := 0; i < length; i++ {
			d.Observe(rng.NormFloat64())
		}
		if len(d.Boundaries()) > 0 {
			falsePositives++
		}
	}
	rate := float64(falsePositives) / trials
	assert.Less(t, rate, 0.10, "false positive rate %.3f", rate)
}

func TestDetectorPosteriorNormalized(t *testing.T) {
	d := NewDetector(DetectorConfig{HazardLambda: 20, Sigma: 1, PriorStd: 3, MaxRun: 16})
	rng := rand.New(rand.NewPCG(3, 3))

	for i := 0; i < 100; i++ {
		obs := d.Observe(rng.NormFloat64())
		post := d.Posterior()
		require.LessOrEqual(t, len(post), 16, "posterior truncated at MaxRun")

		sum := 0.0
		for _, p := range post {
			sum += p
		}
		require.InDelta(t, 1.0, sum, 1e-9)
		require.InDelta(t, post[0], obs.PChange, 1e-12)
		require.Equal(t, d.MAPRunLength(), obs.MAP)
	}
	assert.Equal(t, 100, d.Count())
}

func TestDetectorMAPGrowsOnConstantData(t *testing.T) {
	d := NewDetector(unitDetectorConfig())
	for i := 1; i <= 50; i++ {
		obs := d.Observe(0.5)
		require.Equal(t, i, obs.MAP)
		require.False(t, obs.Change)
	}
	assert.Empty(t, d.Boundaries())
}

func TestDetectorReportsBoundaryOnce(t *testing.T) {
	d := NewDetector(unitDetectorConfig())
	for i := 0; i < 30; i++ {
		d.Observe(0)
	}
	obs := d.Observe(20)
	require.True(t, obs.Change)
	assert.Equal(t, 31, obs.Boundary)
	assert.Equal(t, 1, obs.MAP)

	for i := 0; i < 10; i++ {
		assert.False(t, d.Observe(20).Change)
	}
	assert.Equal(t, []int{31}, d.Boundaries())
}

func TestDetectorPBelowAndReset(t *testing.T) {
	d := NewDetector(unitDetectorConfig())
	for i := 0; i < 20; i++ {
		d.Observe(-3)
	}
	assert.Greater(t, d.PBelow(0), 0.99)
	assert.Less(t, d.PBelow(-5), 0.01)
	assert.InDelta(t, -3, d.ExpectedMean(), 0.2)

	d.Observe(40)
	require.NotEmpty(t, d.Boundaries())

	d.Reset()
	assert.Empty(t, d.Boundaries())
	assert.Zero(t, d.MAPRunLength())
	assert.Zero(t, d.Count())
	assert.Equal(t, 0.0, d.ExpectedMean())
}

func TestDetectorSanitizesConfig(t *testing.T) {
	d := NewDetector(DetectorConfig{})
	cfg := d.Config()
	assert.Equal(t, 1.0, cfg.HazardLambda)
	assert.Equal(t, 2, cfg.MaxRun)

	// Hazard of one means every observation starts a new run
	for i := 0; i < 5; i++ {
		obs := d.Observe(float64(i))
		assert.Equal(t, 1, obs.MAP)
		assert.False(t, math.IsNaN(obs.PChange))
	}
}

func hasNear(bs []int, k, tol int) bool {
	for _, b := range bs {
		if b >= k-tol && b <= k+tol {
			return true
		}
	}
	return false
}
