package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marinewatch/maritime-backend/internal/models"
)

// MemoryStore потокобезопасное хранилище истории в памяти.
// Используется как основное хранилище при отсутствии MYSQL_DSN и в тестах.
type MemoryStore struct {
	mu sync.RWMutex

	positions []*models.PositionSample
	dedup     map[string]*models.PositionSample

	voyages      map[int64]*models.Voyage
	nextVoyageID int64

	audit       []*models.AuditEntry
	nextAuditID int64

	nextPositionID int64
}

// NewMemoryStore создает новое хранилище в памяти
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		dedup:   make(map[string]*models.PositionSample),
		voyages: make(map[int64]*models.Voyage),
	}
}

// Ping проверка соединения (всегда успешна для памяти)
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close освобождает ресурсы
func (s *MemoryStore) Close() error {
	return nil
}

// InsertPosition сохраняет сэмпл идемпотентно по (vessel_id, timestamp, source)
func (s *MemoryStore) InsertPosition(ctx context.Context, sample *models.PositionSample) (*models.PositionSample, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sample.DedupKey()
	if existing, ok := s.dedup[key]; ok {
		return existing, false, nil
	}

	s.nextPositionID++
	stored := *sample
	stored.ID = s.nextPositionID

	s.positions = append(s.positions, &stored)
	s.dedup[key] = &stored

	return &stored, true, nil
}

// GetPosition возвращает сэмпл по ключу дедупликации либо (nil, nil)
func (s *MemoryStore) GetPosition(ctx context.Context, vesselID string, ts time.Time, source models.Source) (*models.PositionSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	probe := models.PositionSample{VesselID: vesselID, Timestamp: ts, Source: source}
	if existing, ok := s.dedup[probe.DedupKey()]; ok {
		return existing, nil
	}
	return nil, nil
}

// ListByVoyage возвращает сэмплы рейса в порядке вставки
func (s *MemoryStore) ListByVoyage(ctx context.Context, voyageID int64) ([]*models.PositionSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.PositionSample
	for _, p := range s.positions {
		if p.VoyageID == voyageID {
			result = append(result, p)
		}
	}
	return result, nil
}

// ListByVesselRange возвращает сэмплы судна в интервале времени
func (s *MemoryStore) ListByVesselRange(ctx context.Context, vesselID string, start, end time.Time, limit int) ([]*models.PositionSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.PositionSample
	for _, p := range s.positions {
		if p.VesselID != vesselID {
			continue
		}
		if p.Timestamp.Before(start) || p.Timestamp.After(end) {
			continue
		}
		result = append(result, p)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DeletePositionsOlderThan удаляет сэмплы старше cutoff
func (s *MemoryStore) DeletePositionsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*models.PositionSample
	var deleted int64
	for _, p := range s.positions {
		if p.Timestamp.Before(cutoff) {
			delete(s.dedup, p.DedupKey())
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	s.positions = kept
	return deleted, nil
}

// CreateVoyage сохраняет новый рейс и присваивает идентификатор
func (s *MemoryStore) CreateVoyage(ctx context.Context, voyage *models.Voyage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextVoyageID++
	voyage.ID = s.nextVoyageID

	stored := *voyage
	s.voyages[voyage.ID] = &stored
	return nil
}

// GetVoyage возвращает рейс по идентификатору
func (s *MemoryStore) GetVoyage(ctx context.Context, id int64) (*models.Voyage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	voyage, ok := s.voyages[id]
	if !ok {
		return nil, ErrVoyageNotFound
	}

	copied := *voyage
	return &copied, nil
}

// UpdateVoyage перезаписывает существующий рейс
func (s *MemoryStore) UpdateVoyage(ctx context.Context, voyage *models.Voyage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.voyages[voyage.ID]; !ok {
		return ErrVoyageNotFound
	}

	stored := *voyage
	s.voyages[voyage.ID] = &stored
	return nil
}

// FindOpenVoyage возвращает открытый рейс судна либо (nil, nil)
func (s *MemoryStore) FindOpenVoyage(ctx context.Context, vesselID string) (*models.Voyage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.voyages {
		if v.VesselID == vesselID && v.Status == models.VoyageInProgress {
			copied := *v
			return &copied, nil
		}
	}
	return nil, nil
}

// ListVoyagesByVessel возвращает рейсы судна, новые первыми
func (s *MemoryStore) ListVoyagesByVessel(ctx context.Context, vesselID string) ([]*models.Voyage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Voyage
	for _, v := range s.voyages {
		if v.VesselID == vesselID {
			copied := *v
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result, nil
}

// AppendAudit добавляет запись журнала аудита
func (s *MemoryStore) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAuditID++
	stored := *entry
	stored.ID = s.nextAuditID
	s.audit = append(s.audit, &stored)
	return nil
}

// ListAuditByVoyage возвращает записи аудита рейса, новые первыми
func (s *MemoryStore) ListAuditByVoyage(ctx context.Context, voyageID int64, limit int) ([]*models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.AuditEntry
	for i := len(s.audit) - 1; i >= 0; i-- {
		if s.audit[i].VoyageID == voyageID {
			result = append(result, s.audit[i])
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// DeleteAuditOlderThan удаляет записи аудита старше cutoff
func (s *MemoryStore) DeleteAuditOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*models.AuditEntry
	var deleted int64
	for _, e := range s.audit {
		if e.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.audit = kept
	return deleted, nil
}
