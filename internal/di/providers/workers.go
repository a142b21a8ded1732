package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/pageturnapp/pageturn-server/internal/config"
	"github.com/pageturnapp/pageturn-server/internal/logger"
	"github.com/pageturnapp/pageturn-server/internal/service"
)

// StatsAggregationJob runs periodic reading statistics aggregation.
type StatsAggregationJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *StatsAggregationJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideStatsAggregationJob provides the periodic reading statistics job.
func ProvideStatsAggregationJob(i do.Injector) (*StatsAggregationJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	statsService := do.MustInvoke[*service.StatsService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(cfg.Stats.AggregationInterval)
		defer ticker.Stop()

		// Initial aggregation on startup
		if err := statsService.RunAggregation(ctx); err != nil {
			log.Warn("Initial stats aggregation failed", "error", err)
		}

		for {
			select {
			case <-ticker.C:
				if err := statsService.RunAggregation(ctx); err != nil {
					log.Warn("Stats aggregation failed", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Stats aggregation job started", "interval", cfg.Stats.AggregationInterval)

	return &StatsAggregationJob{cancel: cancel}, nil
}
