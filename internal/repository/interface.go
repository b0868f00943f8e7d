package repository

import (
	"context"
	"errors"
	"time"

	"github.com/marinewatch/maritime-backend/internal/models"
)

var (
	// ErrVoyageNotFound рейс с запрошенным идентификатором не существует.
	// Не путать с рейсом без сэмплов — это валидное состояние с пустым результатом.
	ErrVoyageNotFound = errors.New("voyage not found")

	// ErrVesselNotFound судно с запрошенным идентификатором не существует
	ErrVesselNotFound = errors.New("vessel not found")
)

// PositionRepository append-only журнал сэмплов позиций.
// Вставка идемпотентна по ключу (vessel_id, timestamp, source).
type PositionRepository interface {
	// InsertPosition сохраняет сэмпл. При дубликате по (vessel_id, timestamp,
	// source) возвращает уже сохраненный сэмпл и inserted=false.
	InsertPosition(ctx context.Context, sample *models.PositionSample) (stored *models.PositionSample, inserted bool, err error)

	// GetPosition возвращает сохраненный сэмпл по ключу дедупликации,
	// либо (nil, nil) если такого сэмпла нет
	GetPosition(ctx context.Context, vesselID string, ts time.Time, source models.Source) (*models.PositionSample, error)

	// ListByVoyage возвращает сэмплы рейса в порядке вставки
	ListByVoyage(ctx context.Context, voyageID int64) ([]*models.PositionSample, error)

	// ListByVesselRange возвращает сэмплы судна в интервале времени,
	// отсортированные по timestamp, не более limit записей (0 — без лимита)
	ListByVesselRange(ctx context.Context, vesselID string, start, end time.Time, limit int) ([]*models.PositionSample, error)

	// DeletePositionsOlderThan удаляет сэмплы старше cutoff (политика хранения)
	DeletePositionsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// VoyageRepository хранилище рейсов
type VoyageRepository interface {
	// CreateVoyage сохраняет новый рейс и присваивает ему идентификатор
	CreateVoyage(ctx context.Context, voyage *models.Voyage) error

	// GetVoyage возвращает рейс по идентификатору или ErrVoyageNotFound
	GetVoyage(ctx context.Context, id int64) (*models.Voyage, error)

	// UpdateVoyage перезаписывает существующий рейс
	UpdateVoyage(ctx context.Context, voyage *models.Voyage) error

	// FindOpenVoyage возвращает рейс судна в статусе IN_PROGRESS,
	// либо (nil, nil) если открытого рейса нет
	FindOpenVoyage(ctx context.Context, vesselID string) (*models.Voyage, error)

	// ListVoyagesByVessel возвращает рейсы судна, новые первыми
	ListVoyagesByVessel(ctx context.Context, vesselID string) ([]*models.Voyage, error)
}

// AuditRepository журнал аудита действий с рейсами
type AuditRepository interface {
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
	ListAuditByVoyage(ctx context.Context, voyageID int64, limit int) ([]*models.AuditEntry, error)
	DeleteAuditOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryStore объединяет долговременные хранилища движка рейсов
type HistoryStore interface {
	PositionRepository
	VoyageRepository
	AuditRepository

	Ping(ctx context.Context) error
	Close() error
}

// LiveRepository хранилище живого состояния судов и портов (Redis)
type LiveRepository interface {
	Ping(ctx context.Context) error
	Close() error

	SaveVessel(ctx context.Context, vessel *models.Vessel) error
	GetVessel(ctx context.Context, id string) (*models.Vessel, error)
	GetAllVessels(ctx context.Context) ([]*models.Vessel, error)
	GetVesselsInRadius(ctx context.Context, center models.GeoPoint, radiusNM float64) ([]*models.Vessel, error)

	SavePort(ctx context.Context, port *models.Port) error
	GetAllPorts(ctx context.Context) ([]*models.Port, error)
}

// Ensure implementations
var _ HistoryStore = (*MemoryStore)(nil)
var _ HistoryStore = (*MySQLRepository)(nil)
var _ LiveRepository = (*RedisRepository)(nil)
