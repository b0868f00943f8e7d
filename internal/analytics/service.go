package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/marinewatch/maritime-backend/internal/models"
	"github.com/marinewatch/maritime-backend/internal/notify"
	"github.com/marinewatch/maritime-backend/internal/repository"
	"github.com/marinewatch/maritime-backend/pkg/utils"
)

// ApproachRadiusNM радиус вокруг порта, в котором суда считаются
// подходящими к нему и получают уведомления о загруженности
const ApproachRadiusNM = 50.0

// Service периодически пересчитывает показатели загруженности портов
// и рассылает события HIGH_CONGESTION при пересечении порога
type Service struct {
	live     repository.LiveRepository
	notifier *notify.Service
	interval time.Duration
	logger   *utils.Logger

	mu         sync.Mutex
	prevScores map[string]float64
	nextID     int64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService создает сервис аналитики портов
func NewService(live repository.LiveRepository, notifier *notify.Service, interval time.Duration, logger *utils.Logger) *Service {
	return &Service{
		live:       live,
		notifier:   notifier,
		interval:   interval,
		logger:     logger,
		prevScores: make(map[string]float64),
	}
}

// Start запускает периодический пересчет в фоне
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.WithField("interval", s.interval).Info("Port analytics service started")
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RefreshPorts(ctx); err != nil {
					s.logger.WithError(err).Error("Port analytics refresh failed")
				}
			}
		}
	}()
}

// Stop останавливает фоновый пересчет
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// RefreshPorts пересчитывает оценку загруженности каждого порта и
// сохраняет обновленные показатели. При пересечении порога high
// рассылаются события HIGH_CONGESTION судам в радиусе подхода.
// Возвращает количество обновленных портов.
func (s *Service) RefreshPorts(ctx context.Context) (int, error) {
	ports, err := s.live.GetAllPorts(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, port := range ports {
		waiting := port.AvgWaitHours
		if waiting == 0 {
			waiting = WaitingTimeFromOccupancy(port.BerthOccupancyRate)
		}

		score := CongestionScore(PortStats{
			BerthOccupancyRate: port.BerthOccupancyRate,
			AvgWaitingHours:    waiting,
			CargoDwellDays:     port.CargoDwellDays,
			VesselArrivals:     port.ArrivalsCount,
			VesselDepartures:   port.DeparturesCount,
		})

		port.CongestionScore = score
		port.CongestionLevel = CongestionLevel(score)
		port.AvgWaitHours = waiting
		port.LastUpdated = time.Now().UTC()

		if err := s.live.SavePort(ctx, port); err != nil {
			s.logger.WithField("port", port.Name).WithError(err).Error("Failed to save port analytics")
			continue
		}
		updated++

		if s.crossedHighThreshold(port.Name, score) {
			s.raiseCongestionEvents(ctx, port)
		}
	}
	return updated, nil
}

// crossedHighThreshold истинно, когда оценка впервые поднялась до high
func (s *Service) crossedHighThreshold(portName string, score float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, seen := s.prevScores[portName]
	s.prevScores[portName] = score
	return score >= ThresholdHigh && (!seen || prev < ThresholdHigh)
}

// raiseCongestionEvents уведомляет суда в радиусе подхода к порту
func (s *Service) raiseCongestionEvents(ctx context.Context, port *models.Port) {
	if s.notifier == nil {
		return
	}

	vessels, err := s.live.GetVesselsInRadius(ctx, port.Position, ApproachRadiusNM)
	if err != nil {
		s.logger.WithField("port", port.Name).WithError(err).Warn("Failed to query vessels near congested port")
		return
	}

	for _, vessel := range vessels {
		s.mu.Lock()
		s.nextID++
		eventID := s.nextID
		s.mu.Unlock()

		s.notifier.Dispatch(&models.Event{
			ID:        eventID,
			VesselID:  vessel.GetID(),
			Type:      models.EventHighCongestion,
			Location:  port.Name,
			Timestamp: time.Now().UTC(),
		})
	}

	s.logger.WithFields(map[string]interface{}{
		"port":    port.Name,
		"score":   port.CongestionScore,
		"vessels": len(vessels),
	}).Warn("Port crossed high congestion threshold")
}
