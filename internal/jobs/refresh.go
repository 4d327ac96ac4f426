package jobs

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// PriceRefresher refreshes the holding prices of one user and reports how
// many holdings changed.
type PriceRefresher interface {
	RefreshUser(ctx context.Context, userID string) (int, error)
}

// NewRefreshHandler returns the JobHandler that executes RefreshPricesJobs.
func NewRefreshHandler(refresher PriceRefresher, log zerolog.Logger) JobHandler {
	return func(ctx context.Context, job Job) error {
		refresh, ok := job.(*RefreshPricesJob)
		if !ok {
			return fmt.Errorf("unsupported job type: %s", job.GetType())
		}

		jobLog := log.With().
			Str("job_id", refresh.JobID).
			Str("user_id", refresh.UserID).
			Str("trigger", string(refresh.Trigger)).
			Int("attempt", refresh.RetryCount+1).
			Logger()

		jobLog.Info().Msg("Refreshing holding prices")

		updated, err := refresher.RefreshUser(ctx, refresh.UserID)
		if err != nil {
			jobLog.Error().Err(err).Msg("Price refresh failed")
			return fmt.Errorf("refreshing prices for %s: %w", refresh.UserID, err)
		}

		refresh.Updated = updated
		jobLog.Info().Int("updated", updated).Msg("Price refresh completed")
		return nil
	}
}
