package voyage

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/marinewatch/maritime-backend/internal/models"
)

// ReplayFrame один кадр анимированного воспроизведения маршрута
type ReplayFrame struct {
	Position models.GeoPoint `json:"position"`
	// Момент показа кадра относительно начала воспроизведения
	SimulatedOffsetSeconds float64   `json:"simulated_offset_seconds"`
	SimulatedTimestamp     time.Time `json:"simulated_timestamp"`
	CumulativeDistanceNM   float64   `json:"cumulative_distance_nm"`
	SpeedKnots             float64   `json:"instantaneous_speed_knots"`
	IsInterpolated         bool      `json:"is_interpolated"`
}

// ReplayMetadata сводные параметры воспроизведения
type ReplayMetadata struct {
	VoyageID              int64   `json:"voyage_id"`
	TotalPositions        int     `json:"total_positions"`
	ActualDurationSeconds float64 `json:"actual_duration_seconds"`
	ReplayDurationSeconds float64 `json:"replay_duration_seconds"`
	TotalDistanceNM       float64 `json:"total_distance_nm"`
	AverageSpeedKnots     float64 `json:"average_speed_knots"`
	SpeedMultiplier       float64 `json:"speed_multiplier"`
}

// Replay кадры воспроизведения рейса с метаданными
type Replay struct {
	Frames   []ReplayFrame  `json:"frames"`
	Metadata ReplayMetadata `json:"metadata"`
}

// ReplayGenerator преобразует маршрут рейса в масштабированную по времени
// последовательность кадров для клиентской анимации
type ReplayGenerator struct {
	routes *RouteBuilder
}

// NewReplayGenerator создает генератор воспроизведения
func NewReplayGenerator(routes *RouteBuilder) *ReplayGenerator {
	return &ReplayGenerator{routes: routes}
}

// Generate строит кадры воспроизведения рейса. Реальное время рейса
// сжимается в speedMultiplier раз с сохранением пропорций интервалов:
// offset кадра = (t − t0) / multiplier. Рейс из 0–1 точек дает
// вырожденный результат с нулевыми метаданными, не ошибку.
func (g *ReplayGenerator) Generate(ctx context.Context, voyageID int64, speedMultiplier float64, interpolateGaps bool) (*Replay, error) {
	if math.IsNaN(speedMultiplier) || math.IsInf(speedMultiplier, 0) || speedMultiplier <= 0 {
		return nil, fmt.Errorf("%w: speed_multiplier must be positive and finite, got %g", ErrInvalidParameter, speedMultiplier)
	}

	route, err := g.routes.Build(ctx, voyageID, interpolateGaps)
	if err != nil {
		return nil, err
	}

	replay := &Replay{
		Frames: make([]ReplayFrame, 0, len(route)),
		Metadata: ReplayMetadata{
			VoyageID:        voyageID,
			TotalPositions:  len(route),
			SpeedMultiplier: speedMultiplier,
		},
	}
	if len(route) == 0 {
		return replay, nil
	}

	first := route[0].Timestamp
	cumulative := 0.0
	for i, sample := range route {
		speed := 0.0
		if i > 0 {
			prev := route[i-1]
			segment := prev.Position.DistanceNM(sample.Position)
			cumulative += segment
			if dt := sample.Timestamp.Sub(prev.Timestamp).Hours(); dt > 0 {
				speed = segment / dt
			}
		}

		offset := sample.Timestamp.Sub(first).Seconds() / speedMultiplier
		replay.Frames = append(replay.Frames, ReplayFrame{
			Position:               sample.Position,
			SimulatedOffsetSeconds: offset,
			SimulatedTimestamp:     first.Add(time.Duration(offset * float64(time.Second))),
			CumulativeDistanceNM:   cumulative,
			SpeedKnots:             speed,
			IsInterpolated:         sample.IsInterpolated,
		})
	}

	actual := route[len(route)-1].Timestamp.Sub(first).Seconds()
	replay.Metadata.ActualDurationSeconds = actual
	replay.Metadata.ReplayDurationSeconds = actual / speedMultiplier
	replay.Metadata.TotalDistanceNM = cumulative
	if actual > 0 {
		replay.Metadata.AverageSpeedKnots = cumulative / (actual / 3600)
	}
	return replay, nil
}
