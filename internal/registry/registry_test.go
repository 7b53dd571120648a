package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagine/internal/domain"
)

func TestGetBeforeAndAfterSet(t *testing.T) {
	r := New()

	_, ok := r.Get("job-1")
	assert.False(t, ok)

	prev, existed := r.Set("job-1", domain.JobStatusSubmitted)
	assert.False(t, existed)
	assert.Equal(t, domain.JobStatus(""), prev)

	got, ok := r.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusSubmitted, got)

	prev, existed = r.Set("job-1", domain.JobStatusExecuting)
	assert.True(t, existed)
	assert.Equal(t, domain.JobStatusSubmitted, prev)
	assert.Equal(t, 1, r.Len())
}

func TestSetUnlessTerminal(t *testing.T) {
	r := New()

	cur, applied := r.SetUnlessTerminal("new", domain.JobStatusExecutionSuccess)
	assert.True(t, applied)
	assert.Equal(t, domain.JobStatusExecutionSuccess, cur)

	r.Set("running", domain.JobStatusExecuting)
	cur, applied = r.SetUnlessTerminal("running", domain.JobStatusExecutionSuccess)
	assert.True(t, applied)
	assert.Equal(t, domain.JobStatusExecutionSuccess, cur)

	r.Set("failed", domain.JobStatusExecutionFailed)
	cur, applied = r.SetUnlessTerminal("failed", domain.JobStatusExecutionSuccess)
	assert.False(t, applied)
	assert.Equal(t, domain.JobStatusExecutionFailed, cur)

	got, _ := r.Get("failed")
	assert.Equal(t, domain.JobStatusExecutionFailed, got)
}

func TestConcurrentWriters(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("job-%d", i%8)
			for j := 0; j < 100; j++ {
				r.Set(id, domain.JobStatusProgress)
				r.Get(id)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, r.Len())
}

type recordingMirror struct {
	mu     sync.Mutex
	writes []string
	err    error
}

func (m *recordingMirror) SaveStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, jobID+"="+status.String())
	return m.err
}

func TestMirrorReceivesAppliedWrites(t *testing.T) {
	m := &recordingMirror{}
	r := New(WithMirror(m))

	r.Set("a", domain.JobStatusSubmitted)
	r.SetUnlessTerminal("a", domain.JobStatusExecutionFailed)
	r.SetUnlessTerminal("a", domain.JobStatusExecutionSuccess)
	require.NoError(t, r.Close(context.Background()))

	assert.Equal(t, []string{"a=Submitted", "a=ExecutionFailed"}, m.writes)
}

func TestMirrorFailureDoesNotFailWrite(t *testing.T) {
	r := New(WithMirror(&recordingMirror{err: errors.New("db down")}))
	r.Set("a", domain.JobStatusSubmitted)
	require.NoError(t, r.Close(context.Background()))
	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusSubmitted, got)
}

func TestRestoreKeepsLiveEntries(t *testing.T) {
	r := New()
	r.Set("live", domain.JobStatusExecuting)

	n := r.Restore(map[string]domain.JobStatus{
		"live": domain.JobStatusSubmitted,
		"old":  domain.JobStatusExecutionSuccess,
	})
	assert.Equal(t, 1, n)

	got, _ := r.Get("live")
	assert.Equal(t, domain.JobStatusExecuting, got)
	got, _ = r.Get("old")
	assert.Equal(t, domain.JobStatusExecutionSuccess, got)
}

// gatedMirror blocks the first save until release is closed.
type gatedMirror struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once

	mu     sync.Mutex
	stored map[string]domain.JobStatus
}

func (m *gatedMirror) SaveStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	first := false
	m.once.Do(func() { first = true })
	if first {
		close(m.entered)
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored[jobID] = status
	return nil
}

func TestMirrorFollowsMemoryOrder(t *testing.T) {
	m := &gatedMirror{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		stored:  make(map[string]domain.JobStatus),
	}
	r := New(WithMirror(m))

	r.Set("job-1", domain.JobStatusExecuting)
	select {
	case <-m.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("mirror never received the first write")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.SetUnlessTerminal("job-1", domain.JobStatusExecutionSuccess)
		r.Set("job-2", domain.JobStatusSubmitted)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writes blocked behind a slow mirror")
	}

	close(m.release)
	require.NoError(t, r.Close(context.Background()))

	for _, id := range []string{"job-1", "job-2"} {
		mem, ok := r.Get(id)
		require.True(t, ok)
		assert.Equal(t, mem, m.stored[id], "mirror diverged for %s", id)
	}
	assert.Equal(t, domain.JobStatusExecutionSuccess, m.stored["job-1"])
}

func TestCloseWithoutMirror(t *testing.T) {
	r := New()
	r.Set("a", domain.JobStatusSubmitted)
	require.NoError(t, r.Close(context.Background()))
}

func TestCloseHonorsContext(t *testing.T) {
	m := &gatedMirror{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		stored:  make(map[string]domain.JobStatus),
	}
	r := New(WithMirror(m))
	r.Set("a", domain.JobStatusSubmitted)
	<-m.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Close(ctx), context.DeadlineExceeded)

	close(m.release)
	require.NoError(t, r.Close(context.Background()))
}
