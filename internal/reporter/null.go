package reporter

// NullReporter discards every event. It is the default when a caller
// constructs a server without supplying a Reporter.
type NullReporter struct{}

func (NullReporter) Hardware(HardwareSummary)             {}
func (NullReporter) ServerStarted(ServerStartedSummary)   {}
func (NullReporter) ClipReady(ClipReadySummary)           {}
func (NullReporter) CacheStatus(CacheSnapshot)            {}
func (NullReporter) ClipError(ClipErrorSummary)           {}
func (NullReporter) ClientConnected(ClientSummary)        {}
func (NullReporter) ShutdownComplete(ShutdownSummary)     {}
func (NullReporter) Warning(string)                       {}
func (NullReporter) Error(ReporterError)                  {}
func (NullReporter) OperationComplete(string)             {}
func (NullReporter) Verbose(string)                       {}
