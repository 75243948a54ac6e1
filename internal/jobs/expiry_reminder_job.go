// README: Cron job that warns paid providers shortly before their subscription renews.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"homeserve/internal/logger"
	"homeserve/internal/modules/provider"
	"homeserve/internal/types"
)

// RenewalSource lists subscriptions renewing within a window.
type RenewalSource interface {
	ListRenewalDue(ctx context.Context, now time.Time, window time.Duration) ([]*provider.Provider, error)
}

type ExpiryNotifier interface {
	ExpiringSoon(providerID types.ID, daysLeft int)
}

type ExpiryReminderJob struct {
	source   RenewalSource
	notifier ExpiryNotifier
	spec     string
	cron     *cron.Cron
	log      logger.Logger
	now      func() time.Time
}

func NewExpiryReminderJob(source RenewalSource, notifier ExpiryNotifier, spec string, log logger.Logger) *ExpiryReminderJob {
	return &ExpiryReminderJob{
		source:   source,
		notifier: notifier,
		spec:     spec,
		cron:     cron.New(),
		log:      logger.OrNop(log),
		now:      time.Now,
	}
}

// RunOnce notifies every provider whose renewal is 1 to 3 days away and returns how
// many were notified.
func (j *ExpiryReminderJob) RunOnce(ctx context.Context) (int, error) {
	now := j.now()
	due, err := j.source.ListRenewalDue(ctx, now, provider.ExpiryNoticeDays*24*time.Hour)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, p := range due {
		days, ok := provider.DaysUntilExpiry(p, now)
		if !ok || days <= 0 || days > provider.ExpiryNoticeDays {
			continue
		}
		j.notifier.ExpiringSoon(p.ID, days)
		sent++
	}
	return sent, nil
}

func (j *ExpiryReminderJob) Start() error {
	_, err := j.cron.AddFunc(j.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := j.RunOnce(ctx)
		if err != nil {
			j.log.Errorf("expiry reminder job failed: %v", err)
			return
		}
		j.log.Infof("expiry reminder job notified %d providers", n)
	})
	if err != nil {
		return fmt.Errorf("schedule expiry reminder %q: %w", j.spec, err)
	}
	j.cron.Start()
	j.log.Infof("expiry reminder job started (%s)", j.spec)
	return nil
}

// Stop waits for a running invocation to finish.
func (j *ExpiryReminderJob) Stop() {
	<-j.cron.Stop().Done()
	j.log.Infof("expiry reminder job stopped")
}
