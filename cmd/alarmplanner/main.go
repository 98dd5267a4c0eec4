package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"alarm-planner/internal/bot"
	"alarm-planner/internal/config"
	"alarm-planner/internal/logx"
	"alarm-planner/internal/repository"
	"alarm-planner/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "alarmplanner: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logx.New(logx.Config{Level: cfg.LogLevel, Console: true, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Close()

	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	ownerRepo := repository.NewOwnerRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	taskSvc := service.NewTaskService(taskRepo, cfg.Recurrences, cfg.Location)
	agendaSvc := service.NewAgendaService(taskRepo, cfg.Location)
	maintSvc := service.NewMaintenanceService(taskRepo, cfg.RetentionDays, cfg.Location, log)

	scheduler := service.NewSchedulerService(cfg.Location, log)

	var telegramBot *bot.Bot
	var sink service.AlarmSink = service.NewLogSink(log)
	if cfg.TelegramToken != "" {
		telegramBot, err = bot.New(cfg.TelegramToken, ownerRepo, taskSvc, agendaSvc, maintSvc, &cfg, log)
		if err != nil {
			return fmt.Errorf("bot: %w", err)
		}
		sink = telegramBot
	} else {
		log.Warn("TELEGRAM_TOKEN not set, alarms go to the log only")
	}

	dispatcher := service.NewDispatcher(sink, service.DispatcherOptions{
		QueueSize:  cfg.SinkQueueSize,
		RatePerSec: cfg.SinkRatePerSec,
	}, log)
	// Detached from ctx so Stop can drain what the last tick queued.
	dispatcher.Start(context.Background())

	alarm := service.NewAlarmService(taskRepo, dispatcher, scheduler, service.AlarmOptions{
		Interval:    cfg.PollInterval,
		Location:    cfg.Location,
		Advance:     cfg.AdvanceRecurring,
		Recurrences: cfg.Recurrences,
	}, log)

	if err := maintSvc.Register(scheduler, cfg.CleanupAt, cfg.BackupAt); err != nil {
		return err
	}

	if telegramBot != nil && cfg.ReportInterval > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.ReportInterval, func() {
			jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDigest(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("digest failed", logx.Err(err))
			}
		}); err != nil {
			return fmt.Errorf("schedule digest: %w", err)
		}
	}

	if err := alarm.Start(ctx); err != nil {
		return err
	}

	if cfg.ConfigFile != "" {
		go func() {
			err := config.Watch(ctx, cfg.ConfigFile, log, func(next config.Config) {
				alarm.SetAdvance(next.AdvanceRecurring)
				alarm.SetRecurrences(next.Recurrences)
				if err := alarm.SetInterval(next.PollInterval); err != nil {
					log.Warn("apply poll interval", logx.Err(err))
				}
				log.Info("config reloaded",
					logx.Duration("poll_interval", next.PollInterval),
					logx.Bool("advance", next.AdvanceRecurring),
				)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("config watch stopped", logx.Err(err))
			}
		}()
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debug("sd_notify ready", logx.Err(err))
	} else if ok {
		log.Debug("notified systemd")
	}

	log.Info("alarm planner started", logx.String("db", cfg.DatabaseURL), logx.Bool("telegram", telegramBot != nil))
	if telegramBot != nil {
		if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("bot stopped with error", logx.Err(err))
		}
	} else {
		<-ctx.Done()
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	alarm.Stop()
	if err := scheduler.StopContext(shutdownCtx); err != nil {
		log.Warn("scheduler jobs still running at shutdown", logx.Err(err))
	}
	dispatcher.Stop(shutdownCtx)

	log.Info("shutdown complete",
		logx.Uint64("delivered", dispatcher.Delivered()),
		logx.Uint64("failed", dispatcher.Failed()),
		logx.Uint64("dropped", dispatcher.Dropped()),
	)
	return nil
}
