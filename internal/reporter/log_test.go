package reporter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLogReporterLevelsAndFormat(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(&buf)

	r.ServerStarted(ServerStartedSummary{Port: "7", ClipCount: 2, SlotCount: 4, MaxCacheFrames: 8, CacheBehind: 2})
	r.ClipReady(ClipReadySummary{Index: 0, Name: "pattern", Width: 64, Height: 32, FrameCount: 100, Planar: true})
	r.CacheStatus(CacheSnapshot{ClipIndex: 0, CacheLen: 3, MaxCacheFrames: 8, CacheStart: 5, LastRequested: 6})
	r.ClipError(ClipErrorSummary{ClipIndex: 1, Message: "decode failed"})
	r.Warning("slot collision")
	r.ShutdownComplete(ShutdownSummary{Elapsed: 90 * time.Second, ClipCount: 2})

	out := buf.String()
	require.Contains(t, out, "[INFO] Port: 7, clips: 2, slots/clip: 4")
	require.Contains(t, out, "[INFO] clip 0 (pattern): 64x32, 100 frames, planar YUV")
	require.Contains(t, out, "[DEBUG] clip 0: cache [5,8) of max 8, last requested 6")
	require.Contains(t, out, "[ERROR] clip 1: sticky upstream error: decode failed")
	require.Contains(t, out, "[WARN] slot collision")
	require.Contains(t, out, "=== SHUTDOWN === 2 clips, 1:30")
}

func TestLogReporterErrorContextAndSuggestion(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(&buf)

	r.Error(ReporterError{Title: "channel init", Message: "mmap failed", Context: "port 7", Suggestion: "check /dev/shm"})

	out := buf.String()
	require.Contains(t, out, "[ERROR] channel init: mmap failed")
	require.Contains(t, out, "Context: port 7")
	require.Contains(t, out, "Suggestion: check /dev/shm")
}

// recordingReporter counts method invocations for composite fan-out tests.
type recordingReporter struct {
	events []string
}

func (r *recordingReporter) Hardware(HardwareSummary)           { r.events = append(r.events, "hardware") }
func (r *recordingReporter) ServerStarted(ServerStartedSummary) { r.events = append(r.events, "started") }
func (r *recordingReporter) ClipReady(ClipReadySummary)         { r.events = append(r.events, "ready") }
func (r *recordingReporter) CacheStatus(CacheSnapshot)          { r.events = append(r.events, "cache") }
func (r *recordingReporter) ClipError(ClipErrorSummary)         { r.events = append(r.events, "cliperr") }
func (r *recordingReporter) ClientConnected(ClientSummary)      { r.events = append(r.events, "client") }
func (r *recordingReporter) ShutdownComplete(ShutdownSummary)   { r.events = append(r.events, "shutdown") }
func (r *recordingReporter) Warning(string)                     { r.events = append(r.events, "warning") }
func (r *recordingReporter) Error(ReporterError)                { r.events = append(r.events, "error") }
func (r *recordingReporter) OperationComplete(string)           { r.events = append(r.events, "complete") }
func (r *recordingReporter) Verbose(string)                     { r.events = append(r.events, "verbose") }

func TestCompositeReporterFansOut(t *testing.T) {
	a := &recordingReporter{}
	b := &recordingReporter{}
	c := NewCompositeReporter(a, nil, b)

	c.ServerStarted(ServerStartedSummary{})
	c.Warning("w")
	c.ShutdownComplete(ShutdownSummary{})

	want := []string{"started", "warning", "shutdown"}
	require.Equal(t, want, a.events)
	require.Equal(t, want, b.events)
}

func TestNullReporterIsInert(t *testing.T) {
	var r Reporter = NullReporter{}
	r.ServerStarted(ServerStartedSummary{})
	r.Error(ReporterError{Title: "ignored"})
	r.Verbose(strings.Repeat("x", 10))
}
