package service

import (
	"context"
	"fmt"
	"time"

	"alarm-planner/internal/logx"
	"alarm-planner/internal/model"
	"alarm-planner/internal/repository"
)

const maintenanceTimeout = 2 * time.Minute

// MaintenanceService runs housekeeping outside the alarm tick: retention
// cleanup of past tasks and backup snapshots.
type MaintenanceService struct {
	taskRepo      *repository.TaskRepository
	retentionDays int
	loc           *time.Location
	log           logx.Logger
	now           func() time.Time
}

func NewMaintenanceService(taskRepo *repository.TaskRepository, retentionDays int, loc *time.Location, log logx.Logger) *MaintenanceService {
	if loc == nil {
		loc = time.Local
	}
	return &MaintenanceService{
		taskRepo:      taskRepo,
		retentionDays: retentionDays,
		loc:           loc,
		log:           log.With(logx.String("component", "maintenance")),
		now:           time.Now,
	}
}

// Cleanup deletes tasks due before the retention cutoff. With retention
// disabled it does nothing.
func (s *MaintenanceService) Cleanup(ctx context.Context) (int64, error) {
	if s.retentionDays <= 0 {
		return 0, nil
	}
	cutoff, _ := model.SplitMoment(s.now().In(s.loc).AddDate(0, 0, -s.retentionDays))
	n, err := s.taskRepo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.log.Info("old tasks removed", logx.String("before", cutoff), logx.Int64("count", n))
	return n, nil
}

// Backup copies every task into the backup table.
func (s *MaintenanceService) Backup(ctx context.Context) (int64, error) {
	n, err := s.taskRepo.Backup(ctx, s.now().In(s.loc))
	if err != nil {
		return 0, err
	}
	s.log.Info("tasks backed up", logx.Int64("count", n))
	return n, nil
}

// Register schedules the daily jobs. Empty times skip the job.
func (s *MaintenanceService) Register(sched *SchedulerService, cleanupAt, backupAt string) error {
	if s.retentionDays > 0 && cleanupAt != "" {
		if _, err := sched.ScheduleDaily(cleanupAt, s.job("cleanup", s.Cleanup)); err != nil {
			return fmt.Errorf("schedule cleanup: %w", err)
		}
	}
	if backupAt != "" {
		if _, err := sched.ScheduleDaily(backupAt, s.job("backup", s.Backup)); err != nil {
			return fmt.Errorf("schedule backup: %w", err)
		}
	}
	return nil
}

func (s *MaintenanceService) job(name string, fn func(context.Context) (int64, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
		defer cancel()
		if _, err := fn(ctx); err != nil {
			s.log.Error("maintenance job failed", logx.String("job", name), logx.Err(err))
		}
	}
}
