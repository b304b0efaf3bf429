package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/framekit/layout"
	"github.com/lixenwraith/framekit/resize"
	"github.com/lixenwraith/framekit/terminal"
)

func TestRecorderPresenterEvents(t *testing.T) {
	r := NewRecorder()

	r.FramePresented(terminal.PresentStats{Bytes: 120, Spans: 3, Cells: 40, Full: true, Duration: time.Millisecond})
	r.FramePresented(terminal.PresentStats{Bytes: 30, Spans: 1, Cells: 5})
	r.FramePresented(terminal.PresentStats{Skipped: true})
	r.FrameAborted()
	r.SyncFallback()
	r.SyncFallback()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.framesPresented))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.framesSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.framesFull))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.framesAborted))
	assert.Equal(t, 150.0, testutil.ToFloat64(r.bytesWritten))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.spansWritten))
	assert.Equal(t, 45.0, testutil.ToFloat64(r.cellsWritten))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.syncFallbacks))
}

func TestRecorderSessionEvents(t *testing.T) {
	r := NewRecorder()

	r.ResizeObserved(resize.RegimeSteady)
	r.ResizeObserved(resize.RegimeBurst)
	r.ResizeObserved(resize.RegimeBurst)
	r.ResizeCommitted(resize.Decision{Action: resize.ActionCommit, Reason: resize.ReasonQuiescent, Coalesced: 20})
	r.ResizeCommitted(resize.Decision{Action: resize.ActionCommit})
	r.LayoutRecomputed(layout.Stats{Visited: 5, Recomputed: 3, Reused: 2})
	r.FrameCompleted(7, 2*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.resizeEvents.WithLabelValues("burst")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.resizeEvents.WithLabelValues("steady")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.resizeCommits.WithLabelValues("quiescent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.resizeCommits.WithLabelValues("explicit")))
	assert.Equal(t, 19.0, testutil.ToFloat64(r.coalesced))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.layoutRecomputed))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.layoutReused))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.generation))
}

func TestHandlerRoutes(t *testing.T) {
	r := NewRecorder()
	r.FrameAborted()
	h := NewHandler(r)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "framekit_present_frames_aborted_total 1")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeListenerStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeListener(ctx, ln, NewRecorder(), log.New(io.Discard)) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
