// sensorvision runs the fleet aggregation and rule-evaluation service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	api "github.com/sensorvision/sensorvision-go/internal/api/v2"
	"github.com/sensorvision/sensorvision-go/internal/conf"
	"github.com/sensorvision/sensorvision-go/internal/datastore"
	"github.com/sensorvision/sensorvision-go/internal/datastore/repository"
	"github.com/sensorvision/sensorvision-go/internal/fleet"
	"github.com/sensorvision/sensorvision-go/internal/logger"
	"github.com/sensorvision/sensorvision-go/internal/notification"
)

const shutdownTimeout = 10 * time.Second

func main() {
	root := &cobra.Command{
		Use:   "sensorvision",
		Short: "Fleet telemetry aggregation and rule evaluation service",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and rule evaluation sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(serve)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	settings, err := conf.Load()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	log := logger.NewSlogLogger(os.Stdout, parseLogLevel(settings.LogLevel), []logger.Field{
		logger.String("service", "sensorvision"),
	})

	manager, err := datastore.NewManager(datastore.Config{
		Driver:  settings.Database.Driver,
		DataDir: settings.Database.DataDir,
		DSN:     settings.Database.DSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() {
		if err := manager.Close(); err != nil {
			log.Error("failed to close datastore", logger.Error(err))
		}
	}()

	if err := manager.Initialize(); err != nil {
		return fmt.Errorf("failed to migrate datastore: %w", err)
	}

	db := manager.DB()
	deviceRepo := repository.NewDeviceRepository(db)
	telemetryRepo := repository.NewTelemetryRepository(db)
	ruleRepo := repository.NewGlobalRuleRepository(db)
	alertRepo := repository.NewGlobalAlertRepository(db)

	notification.Initialize()

	registry := prometheus.NewRegistry()
	metrics := fleet.NewMetrics(registry)

	selector := fleet.NewSelector(deviceRepo, log)
	aggregator := fleet.NewAggregator(telemetryRepo, alertRepo, log)
	statistics := fleet.NewStatistics(telemetryRepo, log)
	dispatcher := fleet.NewAlertDispatcher(alertRepo, notification.GetService(), log)
	engine := fleet.NewEngine(ruleRepo, selector, aggregator, dispatcher, log,
		fleet.WithEvaluationTimeout(settings.Fleet.EvaluationTimeout.Std()),
		fleet.WithMaxParallel(settings.Fleet.MaxParallelEvaluations),
		fleet.WithMetrics(metrics),
	)
	service := fleet.NewService(selector, aggregator, statistics, engine, metrics, log)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	api.New(e, service, ruleRepo, alertRepo, log)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Background sweep for due rules.
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go runSweeper(sweepCtx, service, settings.Fleet.SweepInterval.Std(), log)

	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", logger.String("addr", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// runSweeper periodically evaluates all due rules until ctx is cancelled.
func runSweeper(ctx context.Context, service *fleet.Service, interval time.Duration, log logger.Logger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evaluated, err := service.EvaluateDueRules(ctx)
			if err != nil {
				log.Error("evaluation sweep failed", logger.Error(err))
				continue
			}
			if evaluated > 0 {
				log.Debug("evaluation sweep complete", logger.Int("evaluated", evaluated))
			}
		}
	}
}

func parseLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.LogLevelDebug
	case "warn":
		return logger.LogLevelWarn
	case "error":
		return logger.LogLevelError
	default:
		return logger.LogLevelInfo
	}
}
