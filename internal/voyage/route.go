package voyage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/marinewatch/maritime-backend/internal/config"
	"github.com/marinewatch/maritime-backend/internal/models"
	"github.com/marinewatch/maritime-backend/internal/repository"
)

// RouteBuilder восстанавливает упорядоченный маршрут рейса из хранимых
// позиций. Не имеет собственного состояния — чистая функция над данными
// хранилища на момент вызова.
type RouteBuilder struct {
	store repository.HistoryStore
	cfg   *config.VoyageConfig
}

// NewRouteBuilder создает реконструктор маршрутов
func NewRouteBuilder(store repository.HistoryStore, cfg *config.VoyageConfig) *RouteBuilder {
	return &RouteBuilder{store: store, cfg: cfg}
}

// Build возвращает позиции рейса, отсортированные по времени по возрастанию.
// Равные метки времени сохраняют порядок вставки. Если includeInterpolated
// истинно, разрывы длиннее порога заполняются синтетическими точками на
// дуге большого круга. Пустой рейс — пустой маршрут, не ошибка.
func (b *RouteBuilder) Build(ctx context.Context, voyageID int64, includeInterpolated bool) ([]*models.PositionSample, error) {
	if _, err := b.store.GetVoyage(ctx, voyageID); err != nil {
		return nil, err
	}

	samples, err := b.store.ListByVoyage(ctx, voyageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load voyage positions: %w", err)
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})

	if !includeInterpolated || len(samples) < 2 {
		return samples, nil
	}
	return b.fillGaps(samples), nil
}

// fillGaps вставляет интерполированные точки в разрывы длиннее порога.
// Количество точек на разрыв: floor(gap / threshold), позиции — на дуге
// большого круга, скорость — линейно, курс — по кратчайшей дуге окружности.
func (b *RouteBuilder) fillGaps(samples []*models.PositionSample) []*models.PositionSample {
	threshold := b.cfg.InterpolationThreshold
	if threshold <= 0 {
		return samples
	}

	route := make([]*models.PositionSample, 0, len(samples))
	for i, curr := range samples {
		if i > 0 {
			prev := samples[i-1]
			gap := curr.Timestamp.Sub(prev.Timestamp)
			if gap > threshold {
				route = append(route, interpolateSegment(prev, curr, int(gap/threshold))...)
			}
		}
		route = append(route, curr)
	}
	return route
}

// interpolateSegment синтезирует n точек строго между prev и curr
func interpolateSegment(prev, curr *models.PositionSample, n int) []*models.PositionSample {
	points := make([]*models.PositionSample, 0, n)
	gap := curr.Timestamp.Sub(prev.Timestamp)

	for j := 1; j <= n; j++ {
		ratio := float64(j) / float64(n+1)
		pos := prev.Position.InterpolateTo(curr.Position, ratio)

		sample := &models.PositionSample{
			VesselID:       prev.VesselID,
			VoyageID:       prev.VoyageID,
			Position:       pos,
			Timestamp:      prev.Timestamp.Add(time.Duration(ratio * float64(gap))),
			Source:         models.SourceInterpolated,
			IsInterpolated: true,
		}
		if prev.SpeedKnots != nil && curr.SpeedKnots != nil {
			speed := *prev.SpeedKnots + (*curr.SpeedKnots-*prev.SpeedKnots)*ratio
			sample.SpeedKnots = &speed
		}
		if prev.HeadingDegrees != nil && curr.HeadingDegrees != nil {
			heading := interpolateHeading(*prev.HeadingDegrees, *curr.HeadingDegrees, ratio)
			sample.HeadingDegrees = &heading
		}
		points = append(points, sample)
	}
	return points
}

// interpolateHeading интерполирует курс по кратчайшей дуге с учетом
// перехода через 0°/360°
func interpolateHeading(from, to int, ratio float64) int {
	diff := float64(to - from)
	if diff > 180 {
		diff -= 360
	} else if diff < -180 {
		diff += 360
	}
	h := math.Mod(float64(from)+diff*ratio, 360)
	if h < 0 {
		h += 360
	}
	return int(math.Round(h)) % 360
}
