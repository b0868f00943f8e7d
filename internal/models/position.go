package models

import (
	"fmt"
	"time"
)

// MaxSpeedKnots максимальная правдоподобная скорость судна в узлах
const MaxSpeedKnots = 100

// Source источник данных о позиции
type Source string

const (
	SourceAIS          Source = "AIS"
	SourceGPS          Source = "GPS"
	SourceManual       Source = "MANUAL"
	SourceInterpolated Source = "INTERPOLATED"
)

// ParseSource преобразует строку во внутренний тип источника.
// Неизвестные значения отклоняются на границе типа.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceAIS, SourceGPS, SourceManual, SourceInterpolated:
		return Source(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, s)
	}
}

// Valid проверяет, что источник принадлежит закрытому множеству
func (s Source) Valid() bool {
	_, err := ParseSource(string(s))
	return err == nil
}

// PositionSample представляет один сэмпл позиции судна.
// Записи неизменяемы после сохранения (append-only журнал).
type PositionSample struct {
	ID             int64     `json:"id,omitempty"`
	VesselID       string    `json:"vessel_id"`
	VoyageID       int64     `json:"voyage_id,omitempty"` // 0 — позиция вне рейса
	Position       GeoPoint  `json:"position"`
	SpeedKnots     *float64  `json:"speed_knots,omitempty"`
	HeadingDegrees *int      `json:"heading_degrees,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Source         Source    `json:"source"`
	AccuracyMeters *float64  `json:"accuracy_meters,omitempty"`
	IsInterpolated bool      `json:"is_interpolated"`
}

// Validate проверяет корректность сэмпла на границе приема
func (s *PositionSample) Validate() error {
	if s.VesselID == "" {
		return fmt.Errorf("vessel_id is required")
	}

	if err := s.Position.Validate(); err != nil {
		return err
	}

	if s.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}

	if !s.Source.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSource, s.Source)
	}

	if s.SpeedKnots != nil {
		if *s.SpeedKnots < 0 || *s.SpeedKnots > MaxSpeedKnots {
			return fmt.Errorf("%w: speed %f knots", ErrInvalidMeasurement, *s.SpeedKnots)
		}
	}

	if s.HeadingDegrees != nil {
		if *s.HeadingDegrees < 0 || *s.HeadingDegrees > 359 {
			return fmt.Errorf("%w: heading %d degrees", ErrInvalidMeasurement, *s.HeadingDegrees)
		}
	}

	return nil
}

// DistanceNM вычисляет расстояние до другого сэмпла в морских милях
func (s *PositionSample) DistanceNM(other *PositionSample) float64 {
	return s.Position.DistanceNM(other.Position)
}

// DedupKey возвращает ключ дедупликации (vessel_id, timestamp, source)
func (s *PositionSample) DedupKey() string {
	return fmt.Sprintf("%s|%d|%s", s.VesselID, s.Timestamp.UnixNano(), s.Source)
}
