package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"task-list/internal/api"
	"task-list/internal/auth"
	"task-list/internal/blob"
	"task-list/internal/bot"
	"task-list/internal/config"
	"task-list/internal/logging"
	"task-list/internal/repository"
	"task-list/internal/service"
)

const jobTimeout = 2 * time.Minute

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	log := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		log.Error(ctx, "config", "err", err)
		return err
	}

	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error(ctx, "db", "err", err)
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	log.Info(ctx, "database ready", "dialect", repository.DialectFor(cfg.DatabaseURL))

	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		log.Error(ctx, "blob store", "err", err)
		return err
	}

	entryRepo := repository.NewEntryRepository(db)
	categorySvc := service.NewCategoryService(cfg.EntryTypes)
	entrySvc := service.NewEntryService(entryRepo, categorySvc)
	exportSvc := service.NewExportService(entryRepo, blobs, log.With("component", "export"))
	reportSvc := service.NewReportService(entryRepo)

	gate, err := auth.NewGate(cfg.AdminEmail, cfg.AdminPassword, []byte(cfg.JWTSecret), cfg.TokenTTL)
	if err != nil {
		log.Error(ctx, "auth", "err", err)
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler := api.New(api.Options{
		Entries:  entrySvc,
		Exports:  exportSvc,
		Gate:     gate,
		Types:    categorySvc.List(),
		PageSize: cfg.PageSize,
		Log:      log.With("component", "http"),
		Registry: reg,
	})

	var telegramBot *bot.Bot
	if cfg.TelegramToken != "" {
		telegramBot, err = bot.New(cfg.TelegramToken, bot.Deps{
			Entries:  entrySvc,
			Exports:  exportSvc,
			Reports:  reportSvc,
			Types:    categorySvc.List(),
			AdminIDs: cfg.TelegramAdminIDs,
			PageSize: cfg.PageSize,
			Log:      log.With("component", "bot"),
		})
		if err != nil {
			log.Error(ctx, "bot", "err", err)
			return err
		}
	}

	scheduler := service.NewSchedulerService(time.Local, log.With("component", "scheduler"))
	if cfg.ExportDailyAt != "" {
		if _, err := scheduler.ScheduleDaily(ctx, "export-snapshot", cfg.ExportDailyAt, func(ctx context.Context) error {
			jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()
			if _, err := exportSvc.Snapshot(jobCtx); err != nil {
				return err
			}
			if cfg.ExportRetention > 0 {
				_, err := exportSvc.Prune(jobCtx, time.Now().Add(-cfg.ExportRetention))
				return err
			}
			return nil
		}); err != nil {
			log.Error(ctx, "schedule export snapshot", "err", err)
			return err
		}
	}
	if cfg.ReportInterval > 0 {
		if telegramBot == nil {
			log.Warn(ctx, "REPORT_INTERVAL_HOURS set without TELEGRAM_TOKEN, reports disabled")
		} else if _, err := scheduler.ScheduleInterval(ctx, "report", cfg.ReportInterval, func(ctx context.Context) error {
			jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()
			return telegramBot.SendReports(jobCtx)
		}); err != nil {
			log.Error(ctx, "schedule reports", "err", err)
			return err
		}
	}
	if scheduler.Len() > 0 {
		scheduler.Start()
		defer scheduler.Stop()
	}

	if telegramBot != nil {
		go func() {
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error(ctx, "bot stopped with error", "err", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "http server listening", "addr", cfg.HTTPAddr, "blob", blobs.Driver())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error(ctx, "http server", "err", err)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "http shutdown", "err", err)
	}
	log.Info(shutdownCtx, "shutdown complete")
	return nil
}
