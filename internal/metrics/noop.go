package metrics

// NoopSink discards every metric.
type NoopSink struct{}

func (NoopSink) EventReceived(string) {}
func (NoopSink) EventDropped(string) {}
func (NoopSink) QueueRemaining(int) {}
func (NoopSink) IngestorConnected(bool) {}
func (NoopSink) IngestorReconnect() {}
func (NoopSink) Submission(string) {}
func (NoopSink) Resolution(string) {}
func (NoopSink) RegistrySize(int) {}

var _ Sink = NoopSink{}
