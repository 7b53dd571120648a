package domain

// JobStatus enumerates the lifecycle states reported for a generation job.
type JobStatus string

const (
	JobStatusSubmitted        JobStatus = "Submitted"
	JobStatusStatus           JobStatus = "Status"
	JobStatusExecutionStart   JobStatus = "ExecutionStart"
	JobStatusExecutionCached  JobStatus = "ExecutionCached"
	JobStatusExecuting        JobStatus = "Executing"
	JobStatusProgress         JobStatus = "Progress"
	JobStatusExecuted         JobStatus = "Executed"
	JobStatusExecutionSuccess JobStatus = "ExecutionSuccess"
	JobStatusExecutionFailed  JobStatus = "ExecutionFailed"
)

// upstreamStatus maps the status codes sent on the remote event stream.
// "submited" is the spelling the remote emits.
var upstreamStatus = map[string]JobStatus{
	"submited":          JobStatusSubmitted,
	"submitted":         JobStatusSubmitted,
	"execution_start":   JobStatusExecutionStart,
	"execution_cached":  JobStatusExecutionCached,
	"executing":         JobStatusExecuting,
	"progress":          JobStatusProgress,
	"executed":          JobStatusExecuted,
	"execution_success": JobStatusExecutionSuccess,
	"execution_failed":  JobStatusExecutionFailed,
}

// ParseUpstreamStatus resolves an event-stream status code. The match is
// exact; ok is false for codes this build does not know about.
func ParseUpstreamStatus(code string) (JobStatus, bool) {
	s, ok := upstreamStatus[code]
	return s, ok
}

// ParseJobStatus resolves a stored status name such as "Executing".
func ParseJobStatus(name string) (JobStatus, bool) {
	switch s := JobStatus(name); s {
	case JobStatusSubmitted, JobStatusStatus, JobStatusExecutionStart, JobStatusExecutionCached,
		JobStatusExecuting, JobStatusProgress, JobStatusExecuted, JobStatusExecutionSuccess, JobStatusExecutionFailed:
		return s, true
	}
	return "", false
}

// IsTerminal reports whether no further progress is expected.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusExecutionSuccess || s == JobStatusExecutionFailed
}

func (s JobStatus) String() string {
	return string(s)
}
