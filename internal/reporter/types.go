// Package reporter defines the progress-reporting contract a splitproc
// server or client reports through, and the TerminalReporter/LogReporter
// implementations that render it.
package reporter

import "time"

// Reporter receives lifecycle events from a running server or client
// proxy. Every method must tolerate being called from any goroutine:
// server construction, the CLI's periodic cache-status ticker and
// shutdown all report through the same Reporter.
type Reporter interface {
	Hardware(summary HardwareSummary)
	ServerStarted(summary ServerStartedSummary)
	ClipReady(summary ClipReadySummary)
	CacheStatus(snapshot CacheSnapshot)
	ClipError(summary ClipErrorSummary)
	ClientConnected(summary ClientSummary)
	ShutdownComplete(summary ShutdownSummary)
	Warning(message string)
	Error(err ReporterError)
	OperationComplete(message string)
	Verbose(message string)
}

// HardwareSummary describes the host the server is running on.
type HardwareSummary struct {
	Hostname string
	NumCPU   int
}

// ServerStartedSummary describes a freshly constructed channel before the
// dispatcher starts accepting requests.
type ServerStartedSummary struct {
	Port           string
	ClipCount      int
	SlotCount      int
	MaxCacheFrames int
	CacheBehind    int
}

// ClipReadySummary reports one clip's resolved metadata once the fetcher
// has populated its video info.
type ClipReadySummary struct {
	Index      int
	Name       string
	Width      int
	Height     int
	FrameCount int
	Planar     bool
}

// CacheSnapshot reports one clip's current cache occupancy, used to drive
// the terminal gauge and periodic log lines.
type CacheSnapshot struct {
	ClipIndex      int
	CacheLen       int
	MaxCacheFrames int
	CacheStart     int
	LastRequested  int
}

// ClipErrorSummary reports a clip transitioning to its terminal errored
// state.
type ClipErrorSummary struct {
	ClipIndex int
	Message   string
}

// ClientSummary reports a proxy attaching to or detaching from a running
// channel.
type ClientSummary struct {
	ClipIndex int
	Connected bool
}

// ShutdownSummary reports how teardown went.
type ShutdownSummary struct {
	Elapsed    time.Duration
	ClipCount  int
}

// ReporterError is a structured error report with optional context and a
// suggested remedy.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}
