package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SweepStore is the narrow store surface the sweeper needs.
type SweepStore interface {
	DeactivateStaleDevices(ctx context.Context, seenBefore time.Time) (int64, error)
}

// StaleDeviceSweeper deactivates devices that have not validated within the
// idle window, freeing their quota slots for abandoned installs. Rows are
// kept; a swept device re-registers through the bounded path when it next
// comes online. The sweep is idempotent.
type StaleDeviceSweeper struct {
	store SweepStore
	idle  time.Duration
	log   *logrus.Logger
}

func NewStaleDeviceSweeper(store SweepStore, idle time.Duration, log *logrus.Logger) *StaleDeviceSweeper {
	if idle <= 0 {
		idle = 30 * 24 * time.Hour
	}
	if log == nil {
		log = logrus.New()
	}
	return &StaleDeviceSweeper{store: store, idle: idle, log: log}
}

// Run implements cron.Job.
func (s *StaleDeviceSweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := s.store.DeactivateStaleDevices(ctx, time.Now().Add(-s.idle))
	if err != nil {
		s.log.WithError(err).Error("stale device sweep failed")
		return
	}
	if n > 0 {
		s.log.WithField("deactivated", n).Info("stale device sweep")
	}
}

// Schedule registers the sweep on the given cron at the given spec.
func (s *StaleDeviceSweeper) Schedule(c *cron.Cron, spec string) error {
	_, err := c.AddJob(spec, s)
	return err
}
