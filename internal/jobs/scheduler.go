package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// UserLister returns the users whose prices a scheduled run refreshes.
type UserLister func() []string

// Scheduler publishes a RefreshPricesJob per user on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	publisher Publisher
	users     UserLister
	schedule  string
	log       zerolog.Logger
}

// NewScheduler creates a scheduler. schedule accepts standard five field
// cron specs and descriptors such as "@every 30m".
func NewScheduler(publisher Publisher, users UserLister, schedule string, log zerolog.Logger) *Scheduler {
	cronLog := log.With().Str("component", "cron").Logger()
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(&cronLog))))

	return &Scheduler{
		cron:      c,
		publisher: publisher,
		users:     users,
		schedule:  schedule,
		log:       log,
	}
}

// Start registers the refresh job and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.PublishAll(context.Background()) }); err != nil {
		return fmt.Errorf("Scheduler.Start: scheduling price refresh %q: %w", s.schedule, err)
	}
	s.log.Info().Str("schedule", s.schedule).Msg("Scheduled price refresh job")

	s.cron.Start()
	return nil
}

// Stop stops the scheduler. The returned context is done once running
// jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// PublishAll enqueues one refresh job per listed user and returns how many
// were published.
func (s *Scheduler) PublishAll(ctx context.Context) int {
	users := s.users()
	if len(users) == 0 {
		s.log.Debug().Msg("No users to refresh")
		return 0
	}

	published := 0
	for _, userID := range users {
		job := &RefreshPricesJob{UserID: userID, Trigger: TriggerSchedule}
		if err := s.publisher.PublishRefreshPrices(ctx, job); err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to publish price refresh job")
			continue
		}
		published++
	}

	s.log.Info().Int("users", len(users)).Int("published", published).Msg("Scheduled price refresh published")
	return published
}
