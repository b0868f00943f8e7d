package service

import (
	"context"
	"sync"
	"time"

	"github.com/marinewatch/maritime-backend/internal/config"
	"github.com/marinewatch/maritime-backend/internal/models"
	"github.com/marinewatch/maritime-backend/internal/repository"
	"github.com/marinewatch/maritime-backend/pkg/utils"
)

// RetentionService периодически удаляет устаревшие позиции и записи
// аудита согласно политике хранения
type RetentionService struct {
	store  repository.HistoryStore
	cfg    *config.RetentionConfig
	logger *utils.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewRetentionService создает сервис очистки исторических данных
func NewRetentionService(store repository.HistoryStore, cfg *config.RetentionConfig, logger *utils.Logger) *RetentionService {
	return &RetentionService{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Start запускает периодическую очистку
func (s *RetentionService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanup(ctx)
			}
		}
	}()

	s.logger.WithFields(map[string]interface{}{
		"position_retention": s.cfg.PositionRetention,
		"audit_retention":    s.cfg.AuditRetention,
		"interval":           s.cfg.CleanupInterval,
	}).Info("Retention service started")
}

// Stop останавливает сервис и дожидается завершения
func (s *RetentionService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Retention service stopped")
}

// Cleanup выполняет один проход очистки (экспортирован для ручного запуска)
func (s *RetentionService) Cleanup(ctx context.Context) (positions, audit int64) {
	return s.cleanup(ctx)
}

func (s *RetentionService) cleanup(ctx context.Context) (int64, int64) {
	now := time.Now().UTC()

	positions, err := s.store.DeletePositionsOlderThan(ctx, now.Add(-s.cfg.PositionRetention))
	if err != nil {
		s.logger.WithError(err).Error("Failed to purge expired positions")
	}

	audit, err := s.store.DeleteAuditOlderThan(ctx, now.Add(-s.cfg.AuditRetention))
	if err != nil {
		s.logger.WithError(err).Error("Failed to purge expired audit entries")
	}

	if positions > 0 || audit > 0 {
		s.logger.WithFields(map[string]interface{}{
			"positions": positions,
			"audit":     audit,
		}).Info("Retention cleanup completed")

		entry := &models.AuditEntry{
			Action:      models.AuditDataRetention,
			Description: "Retention cleanup removed expired records",
			Timestamp:   now,
		}
		if err := s.store.AppendAudit(ctx, entry); err != nil {
			s.logger.WithError(err).Warn("Failed to record retention audit entry")
		}
	}
	return positions, audit
}
