package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marinewatch/maritime-backend/internal/ais"
	"github.com/marinewatch/maritime-backend/internal/analytics"
	"github.com/marinewatch/maritime-backend/internal/config"
	"github.com/marinewatch/maritime-backend/internal/handler"
	"github.com/marinewatch/maritime-backend/internal/metrics"
	"github.com/marinewatch/maritime-backend/internal/models"
	"github.com/marinewatch/maritime-backend/internal/mqtt"
	"github.com/marinewatch/maritime-backend/internal/notify"
	"github.com/marinewatch/maritime-backend/internal/repository"
	"github.com/marinewatch/maritime-backend/internal/service"
	"github.com/marinewatch/maritime-backend/internal/voyage"
	"github.com/marinewatch/maritime-backend/pkg/utils"
)

var (
	// Version устанавливается при сборке через ldflags
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := utils.NewLogger(config.LogLevel(), config.LogFormat())
	logger.WithField("version", Version).Info("Starting Maritime Backend")
	metrics.SetAppInfo(Version, Commit, BuildTime)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Живое состояние судов и портов в Redis
	var live repository.LiveRepository
	redisRepo, err := repository.NewRedisRepository(&cfg.Redis, logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize Redis repository")
	}
	defer redisRepo.Close()

	if err := redisRepo.Ping(ctx); err != nil {
		logger.WithField("error", err).Fatal("Failed to connect to Redis")
	}
	logger.Info("Connected to Redis")
	metrics.RedisConnectionStatus.Set(1)
	live = redisRepo

	// История позиций и рейсов: MySQL, либо память без настроенного DSN
	var store repository.HistoryStore
	if cfg.MySQL.DSN != "" {
		mysqlRepo, err := repository.NewMySQLRepository(&cfg.MySQL, logger)
		if err != nil {
			logger.WithField("error", err).Fatal("Failed to initialize MySQL repository")
		}
		defer mysqlRepo.Close()

		if err := mysqlRepo.Ping(ctx); err != nil {
			logger.WithField("error", err).Fatal("Failed to connect to MySQL")
		}
		logger.Info("Connected to MySQL")
		metrics.MySQLConnectionStatus.Set(1)
		store = mysqlRepo
	} else {
		logger.Warn("MYSQL_DSN not configured, using in-memory history store")
		store = repository.NewMemoryStore()
	}

	// Движок рейсов
	tracker := voyage.NewTracker(store, &cfg.Voyage, logger)

	// Уведомления и контроль зон риска
	notifier := notify.NewService(logger)
	zoneWatcher := notify.NewZoneWatcher(notifier, notify.DefaultZones())
	tracker.Subscribe(func(sample *models.PositionSample) {
		zoneWatcher.Check(sample.VesselID, sample.Position, sample.Timestamp)
	})

	// Аналитика загруженности портов
	portAnalytics := analytics.NewService(live, notifier, 10*time.Minute, logger)
	portAnalytics.Start(ctx)
	defer portAnalytics.Stop()

	// HTTP сервер и WebSocket трансляция
	server := handler.NewServer(cfg, store, live, tracker, notifier, logger)

	// MQTT фид позиций (опционально)
	if cfg.MQTT.URL != "" {
		mqttClient, err := mqtt.NewClient(&cfg.MQTT, logger, func(report *mqtt.PositionReport) error {
			result, err := tracker.Record(ctx, voyage.RecordRequest{
				VesselID:       report.VesselID,
				Latitude:       report.Latitude,
				Longitude:      report.Longitude,
				Timestamp:      report.Timestamp,
				SpeedKnots:     report.SpeedKnots,
				HeadingDegrees: report.HeadingDegrees,
				Source:         report.Source,
			})
			if err != nil {
				return err
			}
			if result.Duplicate {
				return nil
			}
			vessel := &models.Vessel{
				IMO:        report.VesselID,
				Position:   &models.GeoPoint{Latitude: report.Latitude, Longitude: report.Longitude},
				SpeedKnots: report.SpeedKnots,
				Heading:    report.HeadingDegrees,
				LastUpdate: report.Timestamp,
			}
			return live.SaveVessel(ctx, vessel)
		})
		if err != nil {
			logger.WithField("error", err).Fatal("Failed to initialize MQTT client")
		}
		defer mqttClient.Disconnect()

		if err := mqttClient.Connect(); err != nil {
			logger.WithField("error", err).Fatal("Failed to connect to MQTT broker")
		}
		logger.Info("Connected to MQTT broker")
	} else {
		logger.Info("MQTT_URL not configured, MQTT feed disabled")
	}

	// Опрос AIS провайдера (синтетический флот без настроенного endpoint)
	aisClient := ais.NewClient(&cfg.AIS, logger)
	poller := ais.NewPoller(aisClient, tracker, live, &cfg.AIS, logger)
	poller.Start(ctx)
	defer poller.Stop()

	// Очистка устаревших данных
	retention := service.NewRetentionService(store, &cfg.Retention, logger)
	retention.Start(ctx)
	defer retention.Stop()

	go func() {
		if err := server.Start(); err != nil {
			logger.WithField("error", err).Error("HTTP server stopped")
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithField("error", err).Error("HTTP server shutdown failed")
	}

	logger.Info("Maritime Backend stopped")
}
