package jobs

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
)

type recordingPublisher struct {
	jobs []*RefreshPricesJob
	fail map[string]bool
}

func (p *recordingPublisher) PublishRefreshPrices(_ context.Context, job *RefreshPricesJob) error {
	if p.fail[job.UserID] {
		return errors.New("queue full")
	}
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestSchedulerPublishAll(t *testing.T) {
	pub := &recordingPublisher{fail: map[string]bool{"bob": true}}
	s := NewScheduler(pub, func() []string { return []string{"alice", "bob", "carol"} }, "@every 1h", zerolog.New(io.Discard))

	if got := s.PublishAll(context.Background()); got != 2 {
		t.Fatalf("PublishAll = %d, want 2", got)
	}
	for _, job := range pub.jobs {
		if job.Trigger != TriggerSchedule {
			t.Errorf("job %s trigger = %q", job.UserID, job.Trigger)
		}
	}
	if pub.jobs[0].UserID != "alice" || pub.jobs[1].UserID != "carol" {
		t.Errorf("published users = %s, %s", pub.jobs[0].UserID, pub.jobs[1].UserID)
	}
}

func TestSchedulerPublishAllNoUsers(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewScheduler(pub, func() []string { return nil }, "@every 1h", zerolog.New(io.Discard))
	if got := s.PublishAll(context.Background()); got != 0 {
		t.Fatalf("PublishAll = %d, want 0", got)
	}
}

func TestSchedulerStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&recordingPublisher{}, func() []string { return nil }, "every so often", zerolog.New(io.Discard))
	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(&recordingPublisher{}, func() []string { return nil }, "@every 1h", zerolog.New(io.Discard))
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-s.Stop().Done()
}

type stubRefresher struct {
	updated int
	err     error
	users   []string
}

func (r *stubRefresher) RefreshUser(_ context.Context, userID string) (int, error) {
	r.users = append(r.users, userID)
	return r.updated, r.err
}

func TestRefreshHandler(t *testing.T) {
	r := &stubRefresher{updated: 3}
	handler := NewRefreshHandler(r, zerolog.New(io.Discard))

	job := &RefreshPricesJob{JobID: "j1", UserID: "alice"}
	if err := handler(context.Background(), job); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if job.Updated != 3 {
		t.Errorf("Updated = %d, want 3", job.Updated)
	}

	r.err = errors.New("backend down")
	if err := handler(context.Background(), job); !errors.Is(err, r.err) {
		t.Errorf("handler err = %v, want wrapped backend error", err)
	}
}
