// Package metrics exports frame pipeline counters to Prometheus
//
// A Recorder satisfies both terminal.Observer and engine.Observer, so one value plugs into the
// presenter and the session. Each Recorder owns a private registry; nothing is registered
// globally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lixenwraith/framekit/engine"
	"github.com/lixenwraith/framekit/layout"
	"github.com/lixenwraith/framekit/resize"
	"github.com/lixenwraith/framekit/terminal"
)

const namespace = "framekit"

var (
	_ terminal.Observer = (*Recorder)(nil)
	_ engine.Observer   = (*Recorder)(nil)
)

// Recorder holds the pipeline collectors
type Recorder struct {
	registry *prometheus.Registry

	framesPresented prometheus.Counter
	framesSkipped   prometheus.Counter
	framesAborted   prometheus.Counter
	framesFull      prometheus.Counter
	bytesWritten    prometheus.Counter
	spansWritten    prometheus.Counter
	cellsWritten    prometheus.Counter
	syncFallbacks   prometheus.Counter
	writeDuration   prometheus.Histogram

	resizeEvents  *prometheus.CounterVec
	resizeCommits *prometheus.CounterVec
	coalesced     prometheus.Counter

	layoutRecomputed prometheus.Counter
	layoutReused     prometheus.Counter
	layoutVisited    prometheus.Counter

	frameDuration prometheus.Histogram
	generation    prometheus.Gauge
}

// NewRecorder creates a recorder with its collectors registered on a fresh registry
func NewRecorder() *Recorder {
	counter := func(subsystem, name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		})
	}

	r := &Recorder{
		registry: prometheus.NewRegistry(),

		framesPresented: counter("present", "frames_total", "Frames written to the terminal"),
		framesSkipped:   counter("present", "frames_skipped_total", "Frames with an empty diff, nothing written"),
		framesAborted:   counter("present", "frames_aborted_total", "Frames dropped before open or interrupted mid-write"),
		framesFull:      counter("present", "frames_full_total", "Frames redrawn in full"),
		bytesWritten:    counter("present", "bytes_total", "Bytes written to the terminal"),
		spansWritten:    counter("present", "spans_total", "Row spans emitted"),
		cellsWritten:    counter("present", "cells_total", "Cells emitted"),
		syncFallbacks:   counter("present", "sync_fallbacks_total", "Frames bracketed by cursor hide/show instead of synchronized output"),
		writeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "present", Name: "write_seconds",
			Help:    "Time spent writing one frame",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),

		resizeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "resize", Name: "events_total",
			Help: "Raw resize notifications by regime after classification",
		}, []string{"regime"}),
		resizeCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "resize", Name: "commits_total",
			Help: "Sizes applied to the layout by commit reason",
		}, []string{"reason"}),
		coalesced: counter("resize", "coalesced_total", "Raw events folded into commits"),

		layoutRecomputed: counter("layout", "recomputed_total", "Layout nodes whose solver ran"),
		layoutReused:     counter("layout", "reused_total", "Dirty layout nodes that kept their cached output"),
		layoutVisited:    counter("layout", "visited_total", "Dirty layout nodes examined"),

		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "session", Name: "frame_seconds",
			Help:    "Time from layout recompute to frame flush",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "session", Name: "generation",
			Help: "Generation of the last completed frame",
		}),
	}

	r.registry.MustRegister(
		r.framesPresented, r.framesSkipped, r.framesAborted, r.framesFull,
		r.bytesWritten, r.spansWritten, r.cellsWritten, r.syncFallbacks, r.writeDuration,
		r.resizeEvents, r.resizeCommits, r.coalesced,
		r.layoutRecomputed, r.layoutReused, r.layoutVisited,
		r.frameDuration, r.generation,
	)
	return r
}

// Registry returns the private registry for exposition
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ===== PRESENTER =====

func (r *Recorder) FramePresented(st terminal.PresentStats) {
	if st.Skipped {
		r.framesSkipped.Inc()
		return
	}
	r.framesPresented.Inc()
	if st.Full {
		r.framesFull.Inc()
	}
	r.bytesWritten.Add(float64(st.Bytes))
	r.spansWritten.Add(float64(st.Spans))
	r.cellsWritten.Add(float64(st.Cells))
	r.writeDuration.Observe(st.Duration.Seconds())
}

func (r *Recorder) FrameAborted() { r.framesAborted.Inc() }

func (r *Recorder) SyncFallback() { r.syncFallbacks.Inc() }

// ===== SESSION =====

func (r *Recorder) ResizeObserved(regime resize.Regime) {
	r.resizeEvents.WithLabelValues(regime.String()).Inc()
}

func (r *Recorder) ResizeCommitted(d resize.Decision) {
	reason := d.Reason.String()
	if d.Reason == resize.ReasonNone {
		reason = "explicit"
	}
	r.resizeCommits.WithLabelValues(reason).Inc()
	if d.Coalesced > 1 {
		r.coalesced.Add(float64(d.Coalesced - 1))
	}
}

func (r *Recorder) LayoutRecomputed(st layout.Stats) {
	r.layoutRecomputed.Add(float64(st.Recomputed))
	r.layoutReused.Add(float64(st.Reused))
	r.layoutVisited.Add(float64(st.Visited))
}

func (r *Recorder) FrameCompleted(generation uint64, elapsed time.Duration) {
	r.generation.Set(float64(generation))
	r.frameDuration.Observe(elapsed.Seconds())
}
