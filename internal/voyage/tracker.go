package voyage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marinewatch/maritime-backend/internal/config"
	"github.com/marinewatch/maritime-backend/internal/metrics"
	"github.com/marinewatch/maritime-backend/internal/models"
	"github.com/marinewatch/maritime-backend/internal/repository"
	"github.com/marinewatch/maritime-backend/pkg/utils"
)

// RecordRequest параметры записи одной позиции судна
type RecordRequest struct {
	VesselID       string
	Latitude       float64
	Longitude      float64
	Timestamp      time.Time
	SpeedKnots     *float64
	HeadingDegrees *int
	Source         models.Source
	AccuracyMeters *float64
}

// RecordResult результат записи позиции
type RecordResult struct {
	Sample *models.PositionSample
	// Duplicate истинно, если сэмпл с таким (vessel, timestamp, source)
	// уже был сохранен и запись стала идемпотентным no-op
	Duplicate bool
}

// Observer получает уведомления об успешно записанных позициях
// (трансляция живых обновлений по WebSocket)
type Observer func(sample *models.PositionSample)

// vesselState состояние ассоциатора для одного судна.
// Инвариант: доступ только под per-vessel блокировкой.
type vesselState struct {
	mu sync.Mutex

	hydrated bool
	// Время последнего записанного сэмпла открытого рейса
	lastTimestamp time.Time
	// Начало непрерывной стоянки (нулевое время — судно движется)
	stationarySince time.Time
}

// Tracker принимает позиции, дедуплицирует их и ведет машину состояний
// рейсов: NoVoyage → InProgress → Completed. Завершенный рейс никогда
// не открывается повторно — следующий сэмпл создает новый рейс.
type Tracker struct {
	store  repository.HistoryStore
	cfg    *config.VoyageConfig
	logger *utils.Logger

	mu        sync.Mutex
	vessels   map[string]*vesselState
	observers []Observer
}

// NewTracker создает новый трекер позиций
func NewTracker(store repository.HistoryStore, cfg *config.VoyageConfig, logger *utils.Logger) *Tracker {
	return &Tracker{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		vessels: make(map[string]*vesselState),
	}
}

// Subscribe регистрирует наблюдателя записанных позиций
func (t *Tracker) Subscribe(obs Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, obs)
}

// vesselStateFor возвращает состояние судна, создавая его при необходимости
func (t *Tracker) vesselStateFor(vesselID string) *vesselState {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.vessels[vesselID]
	if !ok {
		state = &vesselState{}
		t.vessels[vesselID] = state
	}
	return state
}

// Record валидирует и сохраняет позицию судна, назначая ее рейсу.
// Дубликат по (vessel_id, timestamp, source) — идемпотентный no-op,
// возвращающий уже сохраненный сэмпл. Запись сериализуется по судну.
func (t *Tracker) Record(ctx context.Context, req RecordRequest) (*RecordResult, error) {
	sample := &models.PositionSample{
		VesselID:       req.VesselID,
		Position:       models.GeoPoint{Latitude: req.Latitude, Longitude: req.Longitude},
		SpeedKnots:     req.SpeedKnots,
		HeadingDegrees: req.HeadingDegrees,
		Timestamp:      req.Timestamp,
		Source:         req.Source,
		AccuracyMeters: req.AccuracyMeters,
	}

	if err := sample.Validate(); err != nil {
		metrics.PositionsRejected.WithLabelValues("validation").Inc()
		return nil, err
	}

	// Интерполированные точки никогда не персистятся: журнал хранит
	// только реальные наблюдения
	if sample.Source == models.SourceInterpolated {
		metrics.PositionsRejected.WithLabelValues("interpolated_source").Inc()
		return nil, fmt.Errorf("%w: interpolated samples are not ingested", models.ErrInvalidSource)
	}

	state := t.vesselStateFor(sample.VesselID)
	state.mu.Lock()
	defer state.mu.Unlock()

	// Идемпотентность до каких-либо переходов машины состояний
	existing, err := t.store.GetPosition(ctx, sample.VesselID, sample.Timestamp, sample.Source)
	if err != nil {
		return nil, fmt.Errorf("dedup lookup failed: %w", err)
	}
	if existing != nil {
		metrics.PositionsDuplicate.Inc()
		t.logger.WithFields(map[string]interface{}{
			"vessel_id": sample.VesselID,
			"timestamp": sample.Timestamp,
			"source":    sample.Source,
		}).Debug("Duplicate position, returning stored sample")
		return &RecordResult{Sample: existing, Duplicate: true}, nil
	}

	voyage, err := t.assignVoyage(ctx, state, sample)
	if err != nil {
		return nil, err
	}
	sample.VoyageID = voyage.ID

	stored, inserted, err := t.store.InsertPosition(ctx, sample)
	if err != nil {
		return nil, fmt.Errorf("failed to persist position: %w", err)
	}
	if !inserted {
		// Гонка с параллельной доставкой того же сэмпла
		metrics.PositionsDuplicate.Inc()
		return &RecordResult{Sample: stored, Duplicate: true}, nil
	}

	if sample.Timestamp.After(state.lastTimestamp) {
		state.lastTimestamp = sample.Timestamp
	}

	metrics.PositionsRecorded.WithLabelValues(string(stored.Source)).Inc()
	t.audit(ctx, stored.VesselID, stored.VoyageID, models.AuditPositionRecorded,
		fmt.Sprintf("Position recorded at %.6f, %.6f from %s",
			stored.Position.Latitude, stored.Position.Longitude, stored.Source))

	t.notify(stored)
	return &RecordResult{Sample: stored}, nil
}

// assignVoyage выполняет переход машины состояний рейсов для сэмпла.
// Вызывается под per-vessel блокировкой.
func (t *Tracker) assignVoyage(ctx context.Context, state *vesselState, sample *models.PositionSample) (*models.Voyage, error) {
	open, err := t.store.FindOpenVoyage(ctx, sample.VesselID)
	if err != nil {
		return nil, fmt.Errorf("failed to find open voyage: %w", err)
	}

	// NoVoyage → InProgress: первый сэмпл открывает рейс
	if open == nil {
		state.stationarySince = time.Time{}
		state.lastTimestamp = time.Time{}
		state.hydrated = true
		return t.openVoyage(ctx, sample)
	}

	if !state.hydrated {
		if err := t.hydrateState(ctx, state, open); err != nil {
			return nil, err
		}
	}

	// InProgress → Completed по разрыву неактивности
	if !state.lastTimestamp.IsZero() {
		gap := sample.Timestamp.Sub(state.lastTimestamp)
		if gap > t.cfg.InactivityThreshold {
			if err := t.closeVoyage(ctx, open, state.lastTimestamp, "inactivity gap"); err != nil {
				return nil, err
			}
			state.stationarySince = time.Time{}
			return t.openVoyage(ctx, sample)
		}
	}

	// InProgress → Completed по длительной стоянке (прибытие)
	if sample.SpeedKnots != nil {
		if *sample.SpeedKnots < t.cfg.SpeedEpsilonKnots {
			if state.stationarySince.IsZero() {
				state.stationarySince = sample.Timestamp
			} else if sample.Timestamp.Sub(state.stationarySince) > t.cfg.ArrivalThreshold {
				if err := t.closeVoyage(ctx, open, state.lastTimestamp, "stationary at destination"); err != nil {
					return nil, err
				}
				state.stationarySince = sample.Timestamp
				return t.openVoyage(ctx, sample)
			}
		} else {
			state.stationarySince = time.Time{}
		}
	}

	// InProgress → InProgress: сэмпл продолжает открытый рейс
	return open, nil
}

// hydrateState восстанавливает состояние ассоциатора после рестарта
// по последнему сэмплу открытого рейса
func (t *Tracker) hydrateState(ctx context.Context, state *vesselState, open *models.Voyage) error {
	samples, err := t.store.ListByVoyage(ctx, open.ID)
	if err != nil {
		return fmt.Errorf("failed to hydrate vessel state: %w", err)
	}

	for _, s := range samples {
		if s.Timestamp.After(state.lastTimestamp) {
			state.lastTimestamp = s.Timestamp
		}
	}
	state.hydrated = true
	return nil
}

// openVoyage создает новый рейс IN_PROGRESS, начинающийся с сэмпла
func (t *Tracker) openVoyage(ctx context.Context, sample *models.PositionSample) (*models.Voyage, error) {
	voyage := &models.Voyage{
		VesselID:  sample.VesselID,
		Status:    models.VoyageInProgress,
		StartedAt: sample.Timestamp,
	}

	if err := t.store.CreateVoyage(ctx, voyage); err != nil {
		return nil, fmt.Errorf("failed to create voyage: %w", err)
	}

	metrics.VoyagesOpened.Inc()
	t.logger.WithFields(map[string]interface{}{
		"vessel_id":  voyage.VesselID,
		"voyage_id":  voyage.ID,
		"started_at": voyage.StartedAt,
	}).Info("Voyage auto-started")

	t.audit(ctx, voyage.VesselID, voyage.ID, models.AuditVoyageCreated,
		"Voyage automatically started based on position data")
	return voyage, nil
}

// closeVoyage завершает рейс; закрытый рейс никогда не открывается повторно
func (t *Tracker) closeVoyage(ctx context.Context, voyage *models.Voyage, endedAt time.Time, reason string) error {
	if endedAt.IsZero() || endedAt.Before(voyage.StartedAt) {
		endedAt = voyage.StartedAt
	}

	voyage.Status = models.VoyageCompleted
	voyage.EndedAt = &endedAt

	if err := t.store.UpdateVoyage(ctx, voyage); err != nil {
		return fmt.Errorf("failed to close voyage %d: %w", voyage.ID, err)
	}

	metrics.VoyagesClosed.WithLabelValues(reason).Inc()
	t.logger.WithFields(map[string]interface{}{
		"vessel_id": voyage.VesselID,
		"voyage_id": voyage.ID,
		"ended_at":  endedAt,
		"reason":    reason,
	}).Info("Voyage auto-completed")

	t.audit(ctx, voyage.VesselID, voyage.ID, models.AuditVoyageCompleted,
		fmt.Sprintf("Voyage completed: %s", reason))
	return nil
}

// CloseVoyage явное завершение рейса вызывающей стороной.
// ended_at — время последнего сэмпла рейса, либо started_at для пустого рейса.
func (t *Tracker) CloseVoyage(ctx context.Context, voyageID int64) (*models.Voyage, error) {
	voyage, err := t.store.GetVoyage(ctx, voyageID)
	if err != nil {
		return nil, err
	}
	if voyage.Status != models.VoyageInProgress {
		return nil, fmt.Errorf("%w: voyage %d is %s", ErrInvalidParameter, voyageID, voyage.Status)
	}

	state := t.vesselStateFor(voyage.VesselID)
	state.mu.Lock()
	defer state.mu.Unlock()

	samples, err := t.store.ListByVoyage(ctx, voyageID)
	if err != nil {
		return nil, err
	}

	endedAt := voyage.StartedAt
	for _, s := range samples {
		if s.Timestamp.After(endedAt) {
			endedAt = s.Timestamp
		}
	}

	if err := t.closeVoyage(ctx, voyage, endedAt, "explicit close"); err != nil {
		return nil, err
	}
	state.stationarySince = time.Time{}
	return voyage, nil
}

// audit пишет запись аудита; ошибка журнала не прерывает запись позиции
func (t *Tracker) audit(ctx context.Context, vesselID string, voyageID int64, action models.AuditAction, description string) {
	entry := &models.AuditEntry{
		VesselID:    vesselID,
		VoyageID:    voyageID,
		Action:      action,
		Description: description,
		Timestamp:   time.Now().UTC(),
	}
	if err := t.store.AppendAudit(ctx, entry); err != nil {
		t.logger.WithError(err).Warn("Failed to append audit entry")
	}
}

// notify рассылает сэмпл наблюдателям
func (t *Tracker) notify(sample *models.PositionSample) {
	t.mu.Lock()
	observers := make([]Observer, len(t.observers))
	copy(observers, t.observers)
	t.mu.Unlock()

	for _, obs := range observers {
		obs(sample)
	}
}
