// Package main provides the entry point for the long-running engine service.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridiron-edge/internal/config"
	"github.com/yourusername/gridiron-edge/internal/engine"
	"github.com/yourusername/gridiron-edge/internal/health"
	"github.com/yourusername/gridiron-edge/internal/logger"
	"github.com/yourusername/gridiron-edge/internal/metrics"
	"github.com/yourusername/gridiron-edge/internal/scheduler"
)

// Build information - set via ldflags
var Version = "dev"

// completedLookback is how far back each completed game sweep looks
const completedLookback = 72 * time.Hour

func main() {
	configPath := os.Getenv("GRIDIRON_EDGE_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Load AWS secrets if enabled
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			log.Fatalf("AWS_REGION and AWS_SECRET_NAME environment variables must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(context.Background(), cfg, region, secretName); err != nil {
			log.Fatalf("Failed to load secrets: %v", err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := config.ValidateEnvironment(cfg); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}

	appLog := logger.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"leagues":     cfg.App.Leagues,
		"version":     Version,
	}).Info("Gridiron Edge engine starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.InitRegistry()

	rt, err := engine.NewFromConfig(ctx, cfg, appLog)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to build engine")
	}
	defer rt.Close()
	eng := rt.Engine

	hs := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Port:        cfg.Health.Port,
		Logger:      appLog,
		Sources:     eng.Tracker(),
	})
	if rt.DB != nil {
		hs.AddCheck("database", rt.DB.Ping)
	}
	if rt.Stream != nil {
		hs.AddCheck("odds_stream", func(context.Context) error {
			if !rt.Stream.IsConnected() {
				return errors.New("odds stream disconnected")
			}
			return nil
		})
	}
	if err := hs.Start(ctx); err != nil {
		appLog.WithError(err).Fatal("Failed to start health server")
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsServer = &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			appLog.WithField("port", cfg.Metrics.Port).Info("Metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLog.WithError(err).Error("Metrics server error")
			}
		}()
	}

	sched := scheduler.NewScheduler(appLog)
	window := time.Duration(cfg.Calibration.WindowDays) * 24 * time.Hour
	if err := sched.ScheduleDeferredReplay(cfg.Schedule.DeferredReplay, eng); err != nil {
		appLog.WithError(err).Fatal("Failed to schedule deferred replay")
	}
	if err := sched.ScheduleCalibrationSweep(cfg.Schedule.CalibrationSweep, cfg.App.Leagues, window, eng); err != nil {
		appLog.WithError(err).Fatal("Failed to schedule calibration sweep")
	}
	if err := sched.ScheduleSourceSnapshot(cfg.Schedule.SourceSnapshot, eng); err != nil {
		appLog.WithError(err).Fatal("Failed to schedule source snapshot")
	}
	if cfg.Schedule.CompletedGames != "" && len(cfg.SourcesOfType("games")) > 0 {
		if err := sched.ScheduleCompletedGames(cfg.Schedule.CompletedGames, cfg.App.Leagues, completedLookback, eng); err != nil {
			appLog.WithError(err).Fatal("Failed to schedule completed game sweep")
		}
	}
	if err := sched.Start(); err != nil {
		appLog.WithError(err).Fatal("Failed to start scheduler")
	}

	streamDone := make(chan struct{})
	if rt.Stream != nil {
		go func() {
			defer close(streamDone)
			if err := rt.Stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				appLog.WithError(err).Error("Odds stream stopped")
			}
		}()
	} else {
		close(streamDone)
	}

	hs.SetReady(true)
	appLog.WithField("jobs", sched.Jobs()).Info("Engine running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	appLog.WithField("signal", sig).Info("Shutdown signal received")

	hs.SetReady(false)
	cancel()

	if err := sched.Stop(); err != nil {
		appLog.WithError(err).Error("Error stopping scheduler")
	}
	<-streamDone

	persistCtx, persistCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := eng.Persist(persistCtx); err != nil {
		appLog.WithError(err).Error("Failed to persist source quality on shutdown")
	}
	persistCancel()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLog.WithError(err).Error("Metrics server shutdown failed")
		}
		shutdownCancel()
	}

	appLog.Info("Gridiron Edge engine shut down")
}
