package models

import (
	"fmt"
	"time"
)

// Port представляет порт с показателями загруженности
type Port struct {
	Name     string   `json:"name"`
	Country  string   `json:"country"`
	Position GeoPoint `json:"position"`

	// Аналитика загруженности
	CongestionScore float64 `json:"congestion_score"` // 0-10
	CongestionLevel string  `json:"congestion_level,omitempty"`
	AvgWaitHours    float64 `json:"avg_wait_hours"`
	// Занятость причалов, проценты [0, 100]
	BerthOccupancyRate float64 `json:"berth_occupancy_rate"`
	// Время нахождения груза в порту, дни
	CargoDwellDays  float64 `json:"cargo_dwell_days"`
	ArrivalsCount   int     `json:"arrivals_count"`
	DeparturesCount int     `json:"departures_count"`

	LastUpdated time.Time `json:"last_updated"`
}

// Validate проверяет корректность данных порта
func (p *Port) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("port name is required")
	}

	if err := p.Position.Validate(); err != nil {
		return fmt.Errorf("position: %w", err)
	}

	if p.CongestionScore < 0 || p.CongestionScore > 10 {
		return fmt.Errorf("congestion score must be between 0 and 10: %f", p.CongestionScore)
	}

	if p.AvgWaitHours < 0 {
		return fmt.Errorf("average wait time must not be negative: %f", p.AvgWaitHours)
	}

	if p.BerthOccupancyRate < 0 || p.BerthOccupancyRate > 100 {
		return fmt.Errorf("berth occupancy must be between 0 and 100: %f", p.BerthOccupancyRate)
	}

	return nil
}
