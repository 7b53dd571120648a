package repo

import (
	"context"
	"errors"
	"fmt"

	"imagine/internal/domain"
	"imagine/internal/infra"
	"imagine/internal/sqlinline"
)

// JobStatusRepository persists the latest status of every job so the
// registry survives restarts.
type JobStatusRepository struct {
	db infra.SQLExecutor
}

// NewJobStatusRepository creates a repository on top of a marker-checked SQL executor.
func NewJobStatusRepository(db infra.SQLExecutor) *JobStatusRepository {
	return &JobStatusRepository{db: db}
}

// EnsureSchema creates the status table when it does not exist yet.
func (r *JobStatusRepository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return errors.New("job status repository not configured")
	}
	if _, err := r.db.Exec(ctx, sqlinline.QJobStatusEnsureTable); err != nil {
		return fmt.Errorf("ensure job_statuses: %w", err)
	}
	return nil
}

// SaveStatus upserts the status of jobID.
func (r *JobStatusRepository) SaveStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	if r == nil || r.db == nil {
		return errors.New("job status repository not configured")
	}
	_, err := r.db.Exec(ctx, sqlinline.QJobStatusUpsert, jobID, string(status))
	return err
}

// LoadAll returns every stored status. Rows whose status is not a known
// value are skipped.
func (r *JobStatusRepository) LoadAll(ctx context.Context) (map[string]domain.JobStatus, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("job status repository not configured")
	}
	rows, err := r.db.Query(ctx, sqlinline.QJobStatusSelectAll)
	if err != nil {
		return nil, fmt.Errorf("load job statuses: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.JobStatus)
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("scan job status: %w", err)
		}
		if s, ok := domain.ParseJobStatus(status); ok {
			out[id] = s
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job statuses: %w", err)
	}
	return out, nil
}
