package ais

import (
	"context"
	"sync"
	"time"

	"github.com/marinewatch/maritime-backend/internal/config"
	"github.com/marinewatch/maritime-backend/internal/metrics"
	"github.com/marinewatch/maritime-backend/internal/models"
	"github.com/marinewatch/maritime-backend/internal/repository"
	"github.com/marinewatch/maritime-backend/internal/voyage"
	"github.com/marinewatch/maritime-backend/pkg/utils"
)

// Poller периодически опрашивает AIS провайдера и передает позиции
// в движок рейсов и живое хранилище
type Poller struct {
	client  *Client
	tracker *voyage.Tracker
	live    repository.LiveRepository
	cfg     *config.AISConfig
	logger  *utils.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPoller создает фоновый опросчик AIS
func NewPoller(client *Client, tracker *voyage.Tracker, live repository.LiveRepository, cfg *config.AISConfig, logger *utils.Logger) *Poller {
	return &Poller{
		client:  client,
		tracker: tracker,
		live:    live,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start запускает цикл опроса. Первый опрос выполняется сразу.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.cfg.PollInterval)
		defer ticker.Stop()

		p.poll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.poll(ctx)
			}
		}
	}()

	p.logger.WithField("interval", p.cfg.PollInterval).Info("AIS poller started")
}

// Stop останавливает цикл опроса и дожидается завершения
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("AIS poller stopped")
}

// poll один цикл опроса: fetch → запись позиций → обновление живого состояния
func (p *Poller) poll(ctx context.Context) {
	start := time.Now()
	reports, err := p.client.FetchPositions(ctx, p.cfg.FetchLimit)
	metrics.AISPollDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AISPollErrors.Inc()
		p.logger.WithError(err).Error("AIS poll failed")
		return
	}
	metrics.AISVesselsFetched.Set(float64(len(reports)))

	recorded := 0
	for _, report := range reports {
		if err := p.ingest(ctx, report); err != nil {
			p.logger.WithError(err).WithField("imo", report.IMO).Warn("Failed to ingest AIS report")
			continue
		}
		recorded++
	}

	p.logger.WithFields(map[string]interface{}{
		"fetched":  len(reports),
		"recorded": recorded,
		"duration": time.Since(start),
	}).Debug("AIS poll completed")
}

// ingest записывает один отчет в историю и живое состояние
func (p *Poller) ingest(ctx context.Context, report VesselReport) error {
	_, err := p.tracker.Record(ctx, voyage.RecordRequest{
		VesselID:       report.IMO,
		Latitude:       report.Latitude,
		Longitude:      report.Longitude,
		Timestamp:      report.Timestamp,
		SpeedKnots:     report.SpeedKnots,
		HeadingDegrees: report.Heading,
		Source:         models.SourceAIS,
	})
	if err != nil {
		return err
	}

	if p.live == nil {
		return nil
	}
	vessel := &models.Vessel{
		IMO:        report.IMO,
		Name:       report.Name,
		Type:       report.VesselType,
		Position:   &models.GeoPoint{Latitude: report.Latitude, Longitude: report.Longitude},
		SpeedKnots: report.SpeedKnots,
		Heading:    report.Heading,
		LastUpdate: report.Timestamp,
	}
	return p.live.SaveVessel(ctx, vessel)
}
