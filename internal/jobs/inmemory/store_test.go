package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/wealthflow/internal/jobs"
)

func TestStoreListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	seed := []jobs.RefreshPricesJob{
		{JobID: "a", UserID: "alice", Status: jobs.JobStatusCompleted, CreatedAt: base},
		{JobID: "b", UserID: "alice", Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Minute)},
		{JobID: "c", UserID: "bob", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range seed {
		if err := store.SaveJob(ctx, &seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"c", "b", "a"}},
		{"by user", jobs.JobFilter{UserID: "alice"}, []string{"b", "a"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusCompleted}, []string{"c", "a"}},
		{"limit", jobs.JobFilter{Limit: 1}, []string{"c"}},
		{"offset", jobs.JobFilter{Offset: 2}, []string{"a"}},
		{"offset past end", jobs.JobFilter{Offset: 5}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListJobs returned %d jobs, want %d", len(got), len(tt.want))
			}
			for i, job := range got {
				if job.JobID != tt.want[i] {
					t.Errorf("job[%d] = %s, want %s", i, job.JobID, tt.want[i])
				}
			}
		})
	}
}

func TestStoreGetJobNotFound(t *testing.T) {
	store := NewStore()
	if _, err := store.GetJob(context.Background(), "missing"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
	if err := store.UpdateJobStatus(context.Background(), "missing", jobs.JobStatusFailed, ""); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	job := &jobs.RefreshPricesJob{JobID: "a", UserID: "alice", Status: jobs.JobStatusPending}
	_ = store.SaveJob(ctx, job)

	job.Status = jobs.JobStatusRunning
	got, _ := store.GetJob(ctx, "a")
	if got.Status != jobs.JobStatusPending {
		t.Fatalf("stored job mutated through caller pointer: %s", got.Status)
	}

	if err := store.UpdateJobStatus(ctx, "a", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetJob(ctx, "a")
	if got.Status != jobs.JobStatusFailed || got.Error != "boom" {
		t.Fatalf("after update = %+v", got)
	}
}

func TestStoreRetentionDropsOldestFinishedJobs(t *testing.T) {
	store := NewStoreWithRetention(2)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	seed := []jobs.RefreshPricesJob{
		{JobID: "running", UserID: "alice", Status: jobs.JobStatusRunning, CreatedAt: base},
		{JobID: "old", UserID: "alice", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(time.Minute)},
		{JobID: "bob", UserID: "bob", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(time.Minute)},
		{JobID: "new", UserID: "alice", Status: jobs.JobStatusPending, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range seed {
		if err := store.SaveJob(ctx, &seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := store.GetJob(ctx, "old"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("oldest finished job kept, err = %v", err)
	}
	for _, id := range []string{"running", "new", "bob"} {
		if _, err := store.GetJob(ctx, id); err != nil {
			t.Errorf("GetJob(%s) = %v", id, err)
		}
	}

	got, _ := store.ListJobs(ctx, jobs.JobFilter{UserID: "alice"})
	if len(got) != 2 || got[0].JobID != "new" || got[1].JobID != "running" {
		t.Errorf("alice jobs = %v", got)
	}
}

func TestStoreUpdateJobStatusStampsTimes(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.SaveJob(ctx, &jobs.RefreshPricesJob{JobID: "a", UserID: "alice", Status: jobs.JobStatusPending})

	if err := store.UpdateJobStatus(ctx, "a", jobs.JobStatusRunning, ""); err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Minute)
	if err := store.UpdateJobStatus(ctx, "a", jobs.JobStatusCompleted, ""); err != nil {
		t.Fatal(err)
	}

	got, _ := store.GetJob(ctx, "a")
	if got.StartedAt == nil || !got.StartedAt.Equal(now.Add(-time.Minute)) {
		t.Errorf("StartedAt = %v", got.StartedAt)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v", got.CompletedAt)
	}

	*got.CompletedAt = time.Time{}
	again, _ := store.GetJob(ctx, "a")
	if !again.CompletedAt.Equal(now) {
		t.Error("stored CompletedAt mutated through returned copy")
	}
}
