package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"marketplace/internal/domain"
	"marketplace/pkg/logger"
)

// CronMaintenanceScheduler prunes old notifications on the instance holding
// leadership.
type CronMaintenanceScheduler struct {
	cron           *cron.Cron
	schedule       string
	retention      time.Duration
	notifications  *NotificationService
	leaderElection domain.LeaderElection
	instanceID     string
	clock          func() time.Time
	log            logger.Logger
}

func NewCronMaintenanceScheduler(
	schedule string,
	retention time.Duration,
	notifications *NotificationService,
	leaderElection domain.LeaderElection,
	instanceID string,
	log logger.Logger,
) *CronMaintenanceScheduler {
	return &CronMaintenanceScheduler{
		cron:           cron.New(cron.WithSeconds()),
		schedule:       schedule,
		retention:      retention,
		notifications:  notifications,
		leaderElection: leaderElection,
		instanceID:     instanceID,
		clock:          time.Now,
		log:            log,
	}
}

func (s *CronMaintenanceScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting maintenance scheduler", "schedule", s.schedule)

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *CronMaintenanceScheduler) Stop() error {
	s.log.Info("Stopping maintenance scheduler")
	<-s.cron.Stop().Done()
	return nil
}

// RunOnce performs one pruning pass if this instance is or becomes the leader.
func (s *CronMaintenanceScheduler) RunOnce(ctx context.Context) {
	if !s.ensureLeader(ctx) {
		return
	}

	removed, err := s.notifications.Prune(ctx, s.clock(), s.retention)
	if err != nil {
		s.log.Error("Failed to prune notifications", "error", err)
		return
	}
	s.log.Info("Pruned notifications", "removed", removed, "retention", s.retention.String())
}

func (s *CronMaintenanceScheduler) ensureLeader(ctx context.Context) bool {
	if s.leaderElection == nil {
		return true
	}

	isLeader, err := s.leaderElection.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Leader check failed", "error", err)
		return false
	}
	if isLeader {
		return true
	}

	acquired, err := s.leaderElection.BecomeLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Leader election failed", "error", err)
		return false
	}
	if !acquired {
		s.log.Debug("Skipping maintenance, not leader", "instance_id", s.instanceID)
	}
	return acquired
}
