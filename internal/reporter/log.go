package reporter

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/five82/splitproc/internal/util"
)

// LogReporter writes channel lifecycle events to a log file.
type LogReporter struct {
	w  io.Writer
	mu sync.Mutex
}

// NewLogReporter creates a new log reporter that writes to the given writer.
func NewLogReporter(w io.Writer) *LogReporter {
	return &LogReporter{w: w}
}

func (r *LogReporter) log(level, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(r.w, "%s [%s] %s\n", timestamp, level, msg)
}

func (r *LogReporter) Hardware(summary HardwareSummary) {
	r.log("INFO", "=== HARDWARE ===")
	r.log("INFO", "Hostname: %s, CPUs: %d", summary.Hostname, summary.NumCPU)
}

func (r *LogReporter) ServerStarted(summary ServerStartedSummary) {
	r.log("INFO", "=== CHANNEL ===")
	r.log("INFO", "Port: %s, clips: %d, slots/clip: %d", summary.Port, summary.ClipCount, summary.SlotCount)
	r.log("INFO", "Cache: max_cache_frames=%d cache_behind=%d", summary.MaxCacheFrames, summary.CacheBehind)
}

func (r *LogReporter) ClipReady(summary ClipReadySummary) {
	format := "Y8"
	if summary.Planar {
		format = "planar YUV"
	}
	r.log("INFO", "clip %d (%s): %dx%d, %d frames, %s", summary.Index, summary.Name, summary.Width, summary.Height, summary.FrameCount, format)
}

func (r *LogReporter) CacheStatus(s CacheSnapshot) {
	r.log("DEBUG", "clip %d: cache [%d,%d) of max %d, last requested %d",
		s.ClipIndex, s.CacheStart, s.CacheStart+s.CacheLen, s.MaxCacheFrames, s.LastRequested)
}

func (r *LogReporter) ClipError(s ClipErrorSummary) {
	r.log("ERROR", "clip %d: sticky upstream error: %s", s.ClipIndex, s.Message)
}

func (r *LogReporter) ClientConnected(s ClientSummary) {
	state := "connected"
	if !s.Connected {
		state = "disconnected"
	}
	r.log("INFO", "client for clip %d %s", s.ClipIndex, state)
}

func (r *LogReporter) ShutdownComplete(s ShutdownSummary) {
	r.log("INFO", "=== SHUTDOWN === %d clips, %s", s.ClipCount, util.FormatDurationFromSecs(int64(s.Elapsed.Seconds())))
}

func (r *LogReporter) Warning(message string) {
	r.log("WARN", "%s", message)
}

func (r *LogReporter) Error(err ReporterError) {
	r.log("ERROR", "%s: %s", err.Title, err.Message)
	if err.Context != "" {
		r.log("ERROR", "  Context: %s", err.Context)
	}
	if err.Suggestion != "" {
		r.log("ERROR", "  Suggestion: %s", err.Suggestion)
	}
}

func (r *LogReporter) OperationComplete(message string) {
	r.log("INFO", "=== COMPLETE === %s", message)
}

func (r *LogReporter) Verbose(message string) {
	r.log("DEBUG", "%s", message)
}
