package domain

import "testing"

func TestParseUpstreamStatus(t *testing.T) {
	tests := []struct {
		code string
		want JobStatus
		ok   bool
	}{
		{code: "submited", want: JobStatusSubmitted, ok: true},
		{code: "execution_start", want: JobStatusExecutionStart, ok: true},
		{code: "execution_cached", want: JobStatusExecutionCached, ok: true},
		{code: "executing", want: JobStatusExecuting, ok: true},
		{code: "progress", want: JobStatusProgress, ok: true},
		{code: "executed", want: JobStatusExecuted, ok: true},
		{code: "execution_success", want: JobStatusExecutionSuccess, ok: true},
		{code: "execution_failed", want: JobStatusExecutionFailed, ok: true},
		{code: "frobnicated"},
		{code: "EXECUTING"},
		{code: ""},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			got, ok := ParseUpstreamStatus(tc.code)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("ParseUpstreamStatus(%q) = %q, %v; want %q, %v", tc.code, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	terminal := map[JobStatus]bool{
		JobStatusExecutionSuccess: true,
		JobStatusExecutionFailed:  true,
	}
	all := []JobStatus{
		JobStatusSubmitted, JobStatusStatus, JobStatusExecutionStart, JobStatusExecutionCached,
		JobStatusExecuting, JobStatusProgress, JobStatusExecuted, JobStatusExecutionSuccess, JobStatusExecutionFailed,
	}
	for _, s := range all {
		if s.IsTerminal() != terminal[s] {
			t.Fatalf("%s.IsTerminal() = %v", s, s.IsTerminal())
		}
	}
}

func TestParseJobStatus(t *testing.T) {
	if s, ok := ParseJobStatus("ExecutionSuccess"); !ok || s != JobStatusExecutionSuccess {
		t.Fatalf("ParseJobStatus(ExecutionSuccess) = %q, %v", s, ok)
	}
	for _, name := range []string{"", "execution_success", "Done"} {
		if _, ok := ParseJobStatus(name); ok {
			t.Fatalf("ParseJobStatus(%q) accepted", name)
		}
	}
}
