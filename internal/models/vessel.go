package models

import (
	"fmt"
	"time"
)

// Vessel представляет судно с последней известной позицией
type Vessel struct {
	// Идентификация
	IMO      string `json:"imo"`            // Номер IMO
	MMSI     string `json:"mmsi,omitempty"` // Maritime Mobile Service Identity
	Name     string `json:"name"`
	Type     string `json:"vessel_type,omitempty"`
	Flag     string `json:"flag,omitempty"`
	Operator string `json:"operator,omitempty"`

	// Последнее известное состояние
	Position   *GeoPoint `json:"position,omitempty"`
	SpeedKnots *float64  `json:"speed_knots,omitempty"`
	Heading    *int      `json:"heading,omitempty"`
	LastUpdate time.Time `json:"last_update"`
}

// GetID возвращает уникальный идентификатор судна
func (v *Vessel) GetID() string {
	if v.IMO != "" {
		return v.IMO
	}
	return v.MMSI
}

// Validate проверяет корректность данных судна
func (v *Vessel) Validate() error {
	if v.IMO == "" && v.MMSI == "" {
		return fmt.Errorf("imo or mmsi is required")
	}

	if v.Position != nil {
		if err := v.Position.Validate(); err != nil {
			return fmt.Errorf("position: %w", err)
		}
	}

	if v.SpeedKnots != nil && (*v.SpeedKnots < 0 || *v.SpeedKnots > MaxSpeedKnots) {
		return fmt.Errorf("%w: speed %f knots", ErrInvalidMeasurement, *v.SpeedKnots)
	}

	if v.Heading != nil && (*v.Heading < 0 || *v.Heading > 359) {
		return fmt.Errorf("%w: heading %d degrees", ErrInvalidMeasurement, *v.Heading)
	}

	return nil
}

// IsStale проверяет, устарели ли данные о судне
func (v *Vessel) IsStale(maxAge time.Duration) bool {
	return time.Since(v.LastUpdate) > maxAge
}
