package reporter

// CompositeReporter fans every event out to each of its members in order,
// used by the CLI to send the same events to both the terminal and the
// log file.
type CompositeReporter struct {
	reporters []Reporter
}

// NewCompositeReporter builds a Reporter that forwards to every non-nil
// reporter in rs.
func NewCompositeReporter(rs ...Reporter) *CompositeReporter {
	c := &CompositeReporter{}
	for _, r := range rs {
		if r != nil {
			c.reporters = append(c.reporters, r)
		}
	}
	return c
}

func (c *CompositeReporter) Hardware(s HardwareSummary) {
	for _, r := range c.reporters {
		r.Hardware(s)
	}
}

func (c *CompositeReporter) ServerStarted(s ServerStartedSummary) {
	for _, r := range c.reporters {
		r.ServerStarted(s)
	}
}

func (c *CompositeReporter) ClipReady(s ClipReadySummary) {
	for _, r := range c.reporters {
		r.ClipReady(s)
	}
}

func (c *CompositeReporter) CacheStatus(s CacheSnapshot) {
	for _, r := range c.reporters {
		r.CacheStatus(s)
	}
}

func (c *CompositeReporter) ClipError(s ClipErrorSummary) {
	for _, r := range c.reporters {
		r.ClipError(s)
	}
}

func (c *CompositeReporter) ClientConnected(s ClientSummary) {
	for _, r := range c.reporters {
		r.ClientConnected(s)
	}
}

func (c *CompositeReporter) ShutdownComplete(s ShutdownSummary) {
	for _, r := range c.reporters {
		r.ShutdownComplete(s)
	}
}

func (c *CompositeReporter) Warning(msg string) {
	for _, r := range c.reporters {
		r.Warning(msg)
	}
}

func (c *CompositeReporter) Error(err ReporterError) {
	for _, r := range c.reporters {
		r.Error(err)
	}
}

func (c *CompositeReporter) OperationComplete(msg string) {
	for _, r := range c.reporters {
		r.OperationComplete(msg)
	}
}

func (c *CompositeReporter) Verbose(msg string) {
	for _, r := range c.reporters {
		r.Verbose(msg)
	}
}
