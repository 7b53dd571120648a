package metrics

// Sink records service metrics. Implementations must not block or return
// errors to the caller.
type Sink interface {
	// Ingestor
	EventReceived(kind string)
	EventDropped(reason string)
	QueueRemaining(n int)
	IngestorConnected(connected bool)
	IngestorReconnect()

	// Submission and resolution
	Submission(outcome string)
	Resolution(outcome string)
	RegistrySize(n int)
}

// Event kinds.
const (
	EventKindJobStatus = "job_status"
	EventKindQueue     = "queue"
	EventKindIgnored   = "ignored"
)

// Drop reasons.
const (
	DropUnknownStatus = "unknown_status"
	DropMissingPrompt = "missing_prompt_id"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
	OutcomePending = "pending"
	OutcomeCached  = "cached"
	OutcomeUnknown = "unknown_job"
)
