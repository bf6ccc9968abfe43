package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gameguyr/tempest/internal/config"
	"github.com/gameguyr/tempest/internal/db"
	"github.com/gameguyr/tempest/internal/httpapi"
	"github.com/gameguyr/tempest/internal/migrate"
	"github.com/gameguyr/tempest/internal/modules/alerts"
	"github.com/gameguyr/tempest/internal/modules/alerts/evaluator"
	alertsrepo "github.com/gameguyr/tempest/internal/modules/alerts/repository"
	"github.com/gameguyr/tempest/internal/modules/alerts/scheduler"
	"github.com/gameguyr/tempest/internal/modules/alerts/seed"
	"github.com/gameguyr/tempest/internal/modules/weather"
	weatherrepo "github.com/gameguyr/tempest/internal/modules/weather/repository"
	"github.com/gameguyr/tempest/internal/mqtt"
)

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"dbDriver", cfg.DBDriver,
		"sqlitePath", cfg.SQLitePath,
		"dbMaxOpenConns", cfg.DBMaxOpenConns,
		"dbMaxIdleConns", cfg.DBMaxIdleConns,
		"dbConnMaxLifetime", cfg.DBConnMaxLifetime,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
		"sweepSchedule", cfg.SweepSchedule,
		"cleanupSchedule", cfg.CleanupSchedule,
		"historyRetention", cfg.HistoryRetention,
		"smtpEnabled", cfg.SMTPHost != "",
		"twilioEnabled", cfg.TwilioEnabled,
	)

	dbConn, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	if _, err := migrate.Run(ctx, dbConn, logger); err != nil {
		return err
	}
	logger.Info("database ready")

	weatherRepo := weatherrepo.NewRepository(dbConn)
	alertRepo := alertsrepo.NewAlertRepository(dbConn)
	historyRepo := alertsrepo.NewHistoryRepository(dbConn)

	alertEvaluator := evaluator.New(alertRepo, historyRepo, NewDispatcher(cfg, logger), logger)

	mux := httpapi.NewMux(dbConn)
	weatherService := weather.RegisterFeature(mux, weatherRepo, alertEvaluator, logger)
	alertService := alerts.RegisterFeature(mux, alertRepo, historyRepo, weatherRepo, logger)

	if cfg.AlertsFile != "" {
		f, err := seed.Load(cfg.AlertsFile)
		if err != nil {
			return err
		}
		res, err := seed.Apply(ctx, alertService, f, logger)
		if err != nil {
			return err
		}
		logger.Info("alerts seeded", "file", cfg.AlertsFile, "created", res.Created, "skipped", res.Skipped)
	}

	jobs, err := scheduler.New(scheduler.Config{
		SweepSchedule:   cfg.SweepSchedule,
		SweepWindow:     cfg.SweepWindow,
		CleanupSchedule: cfg.CleanupSchedule,
		Retention:       cfg.HistoryRetention,
	}, weatherRepo, alertEvaluator, historyRepo, logger)
	if err != nil {
		return err
	}
	jobs.Start(ctx)

	// Handler is set at construction so the subscription made on CONNACK
	// delivers straight into ingestion.
	subscriber := mqtt.NewSubscriber(cfg, weatherService.HandleTelemetry, logger)

	// Short timeout so a missing broker does not block startup.
	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	err = subscriber.Connect(connectCtx)
	connectCancel()
	if err != nil {
		logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
	}

	srv := httpapi.NewServer(cfg, mux, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("mqtt disconnecting")
	subscriber.Disconnect()

	logger.Info("scheduler stopping")
	if err := jobs.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler stop", "error", err)
	}

	if serveErr != nil {
		if errors.Is(serveErr, http.ErrServerClosed) {
			return nil
		}
		return serveErr
	}

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
