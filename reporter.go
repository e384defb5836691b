// Package splitproc re-exports the internal Reporter interface and
// associated types to allow callers to receive all channel lifecycle
// events directly.

package splitproc

import "github.com/five82/splitproc/internal/reporter"

// Reporter defines the interface for progress reporting during server and
// client operation. Implement this interface to receive detailed events.
type Reporter = reporter.Reporter

// NullReporter is a no-op reporter that discards all updates.
type NullReporter = reporter.NullReporter

// CompositeReporter fans events out to multiple reporters at once.
type CompositeReporter = reporter.CompositeReporter

// HardwareSummary contains hardware information.
type HardwareSummary = reporter.HardwareSummary

// ServerStartedSummary describes a channel's fixed configuration.
type ServerStartedSummary = reporter.ServerStartedSummary

// ClipReadySummary describes one clip's resolved metadata.
type ClipReadySummary = reporter.ClipReadySummary

// CacheSnapshot reports one clip's current cache occupancy.
type CacheSnapshot = reporter.CacheSnapshot

// ClipErrorSummary reports a clip's sticky upstream error.
type ClipErrorSummary = reporter.ClipErrorSummary

// ClientSummary reports a proxy connecting or disconnecting.
type ClientSummary = reporter.ClientSummary

// ShutdownSummary reports teardown timing.
type ShutdownSummary = reporter.ShutdownSummary

// ReporterError contains error information.
type ReporterError = reporter.ReporterError

// NewTerminalReporter and NewTerminalReporterVerbose construct the
// terminal Reporter implementation.
var (
	NewTerminalReporter        = reporter.NewTerminalReporter
	NewTerminalReporterVerbose = reporter.NewTerminalReporterVerbose
	NewLogReporter             = reporter.NewLogReporter
	NewCompositeReporter       = reporter.NewCompositeReporter
)
