package templates

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/info-creator-nilreb/dpp-sub002/pkg/async"
)

// CountByStatus returns the number of templates per lifecycle status. It is
// an internal reporting helper and is not permission checked.
func (s *Service) CountByStatus(ctx context.Context) (map[Status]int, error) {
	var counts map[Status]int
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		counts, err = tx.CountByStatus(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count templates: %w", err)
	}
	return counts, nil
}

// RefreshStatusMetrics publishes the per-status template counts
func (s *Service) RefreshStatusMetrics(ctx context.Context) error {
	counts, err := s.CountByStatus(ctx)
	if err != nil {
		return err
	}
	for _, status := range []Status{StatusDraft, StatusActive, StatusArchived} {
		s.metrics.SetTemplateCount(string(status), counts[status])
	}
	return nil
}

// StartStatusReporter refreshes the status gauges on a cron schedule such as
// "@every 1m", plus once right away so the gauges are set before the first
// tick. Callers stop the returned scheduler on shutdown.
func StartStatusReporter(s *Service, schedule string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.RefreshStatusMetrics(ctx); err != nil {
			s.logger.WithError(err).Warn("failed to refresh template status metrics")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid status refresh schedule %q: %w", schedule, err)
	}
	c.Start()
	async.SafeGo(context.Background(), 30*time.Second, "initial template status refresh", s.RefreshStatusMetrics)
	return c, nil
}
