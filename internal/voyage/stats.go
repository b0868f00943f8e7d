package voyage

import (
	"context"
)

// VoyageStatistics агрегированные показатели рейса по реальным наблюдениям
type VoyageStatistics struct {
	VoyageID        int64   `json:"voyage_id"`
	TotalPositions  int     `json:"total_positions"`
	TotalDistanceNM float64 `json:"total_distance_nm"`
	DurationHours   float64 `json:"duration_hours"`
	AverageSpeed    float64 `json:"average_speed_knots"`
	MaxSpeed        float64 `json:"max_speed_knots"`
	MinSpeed        float64 `json:"min_speed_knots"`
}

// Statistics считает сводку рейса: дистанцию, длительность и скорости.
// Интерполированные точки не участвуют — статистика отражает только
// реальные наблюдения.
type Statistics struct {
	routes *RouteBuilder
}

// NewStatistics создает агрегатор статистики
func NewStatistics(routes *RouteBuilder) *Statistics {
	return &Statistics{routes: routes}
}

// Compute возвращает статистику рейса. Рейс из 0–1 точек дает нулевую
// дистанцию, длительность и среднюю скорость. Max/min берутся из
// сохраненных значений скорости; точки без скорости исключаются из
// max/min, но учитываются в дистанции и длительности.
func (s *Statistics) Compute(ctx context.Context, voyageID int64) (*VoyageStatistics, error) {
	route, err := s.routes.Build(ctx, voyageID, false)
	if err != nil {
		return nil, err
	}

	stats := &VoyageStatistics{
		VoyageID:       voyageID,
		TotalPositions: len(route),
	}
	if len(route) == 0 {
		return stats, nil
	}

	for i := 1; i < len(route); i++ {
		stats.TotalDistanceNM += route[i-1].Position.DistanceNM(route[i].Position)
	}
	stats.DurationHours = route[len(route)-1].Timestamp.Sub(route[0].Timestamp).Hours()
	if stats.DurationHours > 0 {
		stats.AverageSpeed = stats.TotalDistanceNM / stats.DurationHours
	}

	seen := false
	for _, sample := range route {
		if sample.SpeedKnots == nil {
			continue
		}
		v := *sample.SpeedKnots
		if !seen {
			stats.MaxSpeed, stats.MinSpeed = v, v
			seen = true
			continue
		}
		if v > stats.MaxSpeed {
			stats.MaxSpeed = v
		}
		if v < stats.MinSpeed {
			stats.MinSpeed = v
		}
	}
	return stats, nil
}
