package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/wealthflow/internal/jobs"
)

// DefaultRetention is how many refresh jobs are kept per user.
const DefaultRetention = 50

// Store keeps refresh jobs in memory, indexed by id and by owner. Once a
// user has more than the retention limit, their oldest finished jobs are
// dropped; pending and running jobs are never dropped.
type Store struct {
	mu        sync.RWMutex
	byID      map[string]*jobs.RefreshPricesJob
	byUser    map[string][]string // job ids in save order
	retention int
	now       func() time.Time
}

// NewStore creates a job store with DefaultRetention.
func NewStore() *Store {
	return NewStoreWithRetention(DefaultRetention)
}

// NewStoreWithRetention creates a job store keeping up to retention jobs
// per user. Non-positive values keep everything.
func NewStoreWithRetention(retention int) *Store {
	return &Store{
		byID:      make(map[string]*jobs.RefreshPricesJob),
		byUser:    make(map[string][]string),
		retention: retention,
		now:       time.Now,
	}
}

func cloneJob(j *jobs.RefreshPricesJob) *jobs.RefreshPricesJob {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func finished(status jobs.JobStatus) bool {
	return status == jobs.JobStatusCompleted || status == jobs.JobStatusFailed
}

// SaveJob stores the job, replacing an earlier save with the same id.
func (s *Store) SaveJob(_ context.Context, job *jobs.RefreshPricesJob) error {
	if job.JobID == "" {
		return errors.New("SaveJob: job id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, known := s.byID[job.JobID]
	s.byID[job.JobID] = cloneJob(job)
	if !known {
		s.byUser[job.UserID] = append(s.byUser[job.UserID], job.JobID)
		s.pruneLocked(job.UserID)
	}
	return nil
}

// pruneLocked drops the user's oldest finished jobs beyond the retention.
func (s *Store) pruneLocked(userID string) {
	ids := s.byUser[userID]
	excess := len(ids) - s.retention
	if s.retention <= 0 || excess <= 0 {
		return
	}

	kept := ids[:0]
	for _, id := range ids {
		if excess > 0 && finished(s.byID[id].Status) {
			delete(s.byID, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.byUser[userID] = kept
}

// GetJob returns a copy of the job.
func (s *Store) GetJob(_ context.Context, jobID string) (*jobs.RefreshPricesJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.byID[jobID]
	if !ok {
		return nil, fmt.Errorf("GetJob: %w: %s", jobs.ErrJobNotFound, jobID)
	}
	return cloneJob(job), nil
}

// ListJobs returns matching jobs, newest first, then applies offset and limit.
func (s *Store) ListJobs(_ context.Context, filter jobs.JobFilter) ([]*jobs.RefreshPricesJob, error) {
	s.mu.RLock()
	var candidates []*jobs.RefreshPricesJob
	if filter.UserID != "" {
		for _, id := range s.byUser[filter.UserID] {
			candidates = append(candidates, s.byID[id])
		}
	} else {
		for _, job := range s.byID {
			candidates = append(candidates, job)
		}
	}

	result := make([]*jobs.RefreshPricesJob, 0, len(candidates))
	for _, job := range candidates {
		if filter.Status == "" || job.Status == filter.Status {
			result = append(result, cloneJob(job))
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].JobID < result[j].JobID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.RefreshPricesJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateJobStatus moves the job to status. Entering running stamps
// StartedAt and entering a finished state stamps CompletedAt, unless they
// are already set.
func (s *Store) UpdateJobStatus(_ context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byID[jobID]
	if !ok {
		return fmt.Errorf("UpdateJobStatus: %w: %s", jobs.ErrJobNotFound, jobID)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	now := s.now()
	switch {
	case status == jobs.JobStatusRunning && job.StartedAt == nil:
		job.StartedAt = &now
	case finished(status) && job.CompletedAt == nil:
		job.CompletedAt = &now
	}

	if finished(status) {
		s.pruneLocked(job.UserID)
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
