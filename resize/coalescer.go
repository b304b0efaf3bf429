package resize

import (
	"fmt"
	"math"
	"time"
)

// Size is a terminal dimension in cells
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// Regime classifies the current resize event stream
type Regime uint8

const (
	RegimeSteady Regime = iota // isolated resizes
	RegimeBurst                // interactive drag producing rapid events
)

func (r Regime) String() string {
	if r == RegimeBurst {
		return "burst"
	}
	return "steady"
}

// Action tells the caller what to do with a decision
type Action uint8

const (
	ActionNone   Action = iota // keep buffering
	ActionCommit               // apply Decision.Size
)

// Reason explains why a commit happened
type Reason uint8

const (
	ReasonNone         Reason = iota
	ReasonQuiescent           // no event for the regime's quiescence delay
	ReasonDeadline            // hard deadline since the first buffered event expired
	ReasonRegimeChange        // burst ended, the burst's final size commits
)

func (r Reason) String() string {
	switch r {
	case ReasonQuiescent:
		return "quiescent"
	case ReasonDeadline:
		return "deadline"
	case ReasonRegimeChange:
		return "regime_change"
	default:
		return "none"
	}
}

// Decision is the coalescer output for one Observe or Tick
type Decision struct {
	Action    Action
	Size      Size
	Reason    Reason
	Regime    Regime
	Coalesced int // raw events folded into this commit
}

// Commit reports whether the decision carries a size to apply
func (d Decision) Commit() bool { return d.Action == ActionCommit }

// Stats counts coalescer activity since creation or the last Reset
type Stats struct {
	Events        int // distinct-size events buffered
	Duplicates    int // identical consecutive sizes ignored
	Commits       int
	Coalesced     int // events discarded in favor of a later size of the same regime
	RegimeChanges int
	Deadlines     int // commits forced by the hard deadline
}

// Config tunes the coalescer; zero durations disable the corresponding rule
type Config struct {
	SteadyDelay    time.Duration // quiescence before committing in the steady regime
	BurstDelay     time.Duration // quiescence before committing during a burst
	HardDeadline   time.Duration // maximum wait since the first buffered event while steady, 0 disables
	BurstInterval  time.Duration // inter-arrival mean below which the stream is a burst
	BurstPosterior float64       // posterior mass below BurstInterval needed to enter the burst regime
	Detector       DetectorConfig
}

// DefaultConfig returns the documented defaults
// The detector models ln(inter-arrival ms); its prior is centered between burst and steady rates
func DefaultConfig() Config {
	return Config{
		SteadyDelay:    16 * time.Millisecond,
		BurstDelay:     60 * time.Millisecond,
		HardDeadline:   250 * time.Millisecond,
		BurstInterval:  50 * time.Millisecond,
		BurstPosterior: 0.5,
		Detector: DetectorConfig{
			HazardLambda: 50,
			Sigma:        0.5,
			PriorMean:    math.Log(60),
			PriorStd:     1.5,
			MaxRun:       256,
		},
	}
}

// Coalescer folds a raw resize stream into at most one commit per regime
// A lone pending event waits at least BurstInterval, since the second event of a drag
// is the first gap the detector can classify. Bursts have no hard deadline: they end on
// BurstDelay quiescence or a regime change
// Not safe for concurrent use; the session goroutine owns it
type Coalescer struct {
	cfg      Config
	detector *Detector

	regime Regime

	lastSeen    Size
	hasSeen     bool
	committed   Size
	hasCommit   bool
	lastArrival time.Time
	hasArrival  bool

	pending      Size
	hasPending   bool
	pendingSince time.Time
	lastEvent    time.Time
	batch        int

	stats Stats
}

// NewCoalescer creates a coalescer in the steady regime
func NewCoalescer(cfg Config) *Coalescer {
	if cfg.BurstPosterior <= 0 || cfg.BurstPosterior > 1 {
		cfg.BurstPosterior = 0.5
	}
	return &Coalescer{cfg: cfg, detector: NewDetector(cfg.Detector)}
}

// Config returns the coalescer configuration
func (c *Coalescer) Config() Config { return c.cfg }

// SetInitial records the size the session started with, so a first event of the same size is a no-op
func (c *Coalescer) SetInitial(s Size) {
	c.lastSeen, c.hasSeen = s, true
	c.committed, c.hasCommit = s, true
}

// Regime returns the current classification
func (c *Coalescer) Regime() Regime { return c.regime }

// Pending returns the buffered size awaiting commit
func (c *Coalescer) Pending() (Size, bool) { return c.pending, c.hasPending }

// Committed returns the last committed size
func (c *Coalescer) Committed() (Size, bool) { return c.committed, c.hasCommit }

// Stats returns activity counters
func (c *Coalescer) Stats() Stats { return c.stats }

// Detector exposes the change-point detector for diagnostics
func (c *Coalescer) Detector() *Detector { return c.detector }

// Reset reinitializes resize tracking, dropping any pending size and the detector state
func (c *Coalescer) Reset() {
	cfg := c.cfg
	d := c.detector
	d.Reset()
	*c = Coalescer{cfg: cfg, detector: d}
}

// Supersede records a size applied outside the coalescer
// The pending size is dropped; the detector and regime keep their history
func (c *Coalescer) Supersede(s Size) {
	c.hasPending = false
	c.batch = 0
	c.lastSeen, c.hasSeen = s, true
	c.committed, c.hasCommit = s, true
}

// Observe buffers a raw resize event received at the given instant
// Returns a commit only when the event ends a burst that still had a pending size
func (c *Coalescer) Observe(at time.Time, s Size) Decision {
	if c.hasSeen && s == c.lastSeen {
		c.stats.Duplicates++
		return Decision{Regime: c.regime}
	}
	c.lastSeen, c.hasSeen = s, true
	c.stats.Events++

	var out Decision
	if c.hasArrival {
		prev := c.regime
		c.regime = c.classify(at.Sub(c.lastArrival))
		if c.regime != prev {
			c.stats.RegimeChanges++
			if prev == RegimeBurst && c.hasPending {
				out = c.commit(ReasonRegimeChange, prev)
			}
		}
	}
	c.lastArrival, c.hasArrival = at, true

	if c.hasCommit && s == c.committed && !c.hasPending {
		// Returned to the committed size, nothing to redo
		return out
	}

	if !c.hasPending {
		c.hasPending = true
		c.pendingSince = at
		c.batch = 0
	}
	c.pending = s
	c.lastEvent = at
	c.batch++
	if out.Action == ActionNone {
		out.Regime = c.regime
	}
	return out
}

// classify feeds the log inter-arrival time to the detector and reads the regime off the posterior
func (c *Coalescer) classify(gap time.Duration) Regime {
	c.detector.Observe(logMillis(gap))
	if c.detector.PBelow(logMillis(c.cfg.BurstInterval)) >= c.cfg.BurstPosterior {
		return RegimeBurst
	}
	return RegimeSteady
}

// Tick commits the pending size once its quiescence delay or the hard deadline has passed
func (c *Coalescer) Tick(now time.Time) Decision {
	if !c.hasPending {
		return Decision{Regime: c.regime}
	}
	if !now.Before(c.lastEvent.Add(c.quiescence())) {
		return c.commit(ReasonQuiescent, c.regime)
	}
	if hard, ok := c.hardDeadline(); ok && !now.Before(hard) {
		c.stats.Deadlines++
		return c.commit(ReasonDeadline, c.regime)
	}
	return Decision{Regime: c.regime}
}

// Deadline returns the earliest instant at which Tick may commit, false when nothing is pending
func (c *Coalescer) Deadline() (time.Time, bool) {
	if !c.hasPending {
		return time.Time{}, false
	}
	at := c.lastEvent.Add(c.quiescence())
	if hard, ok := c.hardDeadline(); ok && hard.Before(at) {
		at = hard
	}
	return at, true
}

func (c *Coalescer) hardDeadline() (time.Time, bool) {
	if c.cfg.HardDeadline <= 0 || c.regime == RegimeBurst {
		return time.Time{}, false
	}
	return c.pendingSince.Add(c.cfg.HardDeadline), true
}

// Flush commits any pending size immediately
func (c *Coalescer) Flush() Decision {
	if !c.hasPending {
		return Decision{Regime: c.regime}
	}
	return c.commit(ReasonQuiescent, c.regime)
}

func (c *Coalescer) quiescence() time.Duration {
	if c.regime == RegimeBurst {
		return c.cfg.BurstDelay
	}
	if c.batch == 1 {
		return max(c.cfg.SteadyDelay, c.cfg.BurstInterval)
	}
	return c.cfg.SteadyDelay
}

func (c *Coalescer) commit(reason Reason, regime Regime) Decision {
	d := Decision{
		Action:    ActionCommit,
		Size:      c.pending,
		Reason:    reason,
		Regime:    regime,
		Coalesced: c.batch,
	}
	c.committed, c.hasCommit = c.pending, true
	c.hasPending = false
	c.stats.Commits++
	c.stats.Coalesced += c.batch - 1
	c.batch = 0
	return d
}

// logMillis maps a duration to ln(ms), clamped to keep the detector finite
func logMillis(d time.Duration) float64 {
	ms := float64(d) / float64(time.Millisecond)
	ms = math.Min(math.Max(ms, 0.1), 60_000)
	return math.Log(ms)
}
