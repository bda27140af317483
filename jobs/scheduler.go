package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"food-share-server/config"
	applog "food-share-server/logger"
)

const (
	limiterCleanupSchedule = "@every 10m"
	limiterMaxIdle         = time.Hour
)

// ListingMaintainer is the part of the listing service the jobs drive
type ListingMaintainer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
	SendPickupReminders(ctx context.Context, now time.Time, lead time.Duration) (int, error)
}

// LimiterJanitor drops idle rate limiter entries
type LimiterJanitor interface {
	Cleanup(maxIdle time.Duration) int
}

// Scheduler runs periodic listing maintenance on cron schedules
type Scheduler struct {
	cron     *cron.Cron
	cfg      config.JobsConfig
	listings ListingMaintainer
	limiter  LimiterJanitor
	now      func() time.Time
}

func NewScheduler(cfg config.JobsConfig, listings ListingMaintainer, limiter LimiterJanitor) *Scheduler {
	logger := cron.PrintfLogger(applog.Log)
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		cfg:      cfg,
		listings: listings,
		limiter:  limiter,
		now:      time.Now,
	}
}

// Start registers the jobs and starts the cron runner
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.ExpirationSchedule, s.ExpireListings); err != nil {
		return fmt.Errorf("invalid expiration schedule %q: %w", s.cfg.ExpirationSchedule, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.ReminderSchedule, s.SendReminders); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", s.cfg.ReminderSchedule, err)
	}
	if s.limiter != nil {
		if _, err := s.cron.AddFunc(limiterCleanupSchedule, s.CleanupLimiters); err != nil {
			return err
		}
	}

	s.cron.Start()
	applog.Log.Info("🚀 Listing jobs started")
	return nil
}

// Stop waits for running jobs to finish or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	applog.Log.Info("🛑 Listing jobs stopped")
}

// ExpireListings marks available listings past their expiry as expired
func (s *Scheduler) ExpireListings() {
	expired, err := s.listings.ExpireOverdue(context.Background(), s.now())
	if err != nil {
		applog.Log.WithError(err).Error("❌ Error expiring listings")
		return
	}
	if expired > 0 {
		applog.Log.Infof("⏰ Expired %d listings", expired)
	}
}

// SendReminders notifies claimants whose pickup is coming up
func (s *Scheduler) SendReminders() {
	sent, err := s.listings.SendPickupReminders(context.Background(), s.now(), s.cfg.ReminderLead)
	if err != nil {
		applog.Log.WithError(err).Error("❌ Error sending pickup reminders")
		return
	}
	if sent > 0 {
		applog.Log.Infof("🔔 Sent %d pickup reminders", sent)
	}
}

func (s *Scheduler) CleanupLimiters() {
	if removed := s.limiter.Cleanup(limiterMaxIdle); removed > 0 {
		applog.Log.Debugf("🧹 Dropped %d idle rate limiters", removed)
	}
}
