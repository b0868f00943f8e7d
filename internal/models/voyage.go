package models

import (
	"fmt"
	"time"
)

// VoyageStatus статус рейса
type VoyageStatus string

const (
	VoyagePlanned    VoyageStatus = "PLANNED"
	VoyageInProgress VoyageStatus = "IN_PROGRESS"
	VoyageCompleted  VoyageStatus = "COMPLETED"
	VoyageCancelled  VoyageStatus = "CANCELLED"
)

// Voyage представляет ограниченный эпизод непрерывного движения судна.
// Инвариант: у судна одновременно не более одного рейса IN_PROGRESS.
// Завершенный рейс никогда не открывается повторно.
type Voyage struct {
	ID        int64        `json:"id"`
	VesselID  string       `json:"vessel_id"`
	PortFrom  string       `json:"port_from,omitempty"`
	PortTo    string       `json:"port_to,omitempty"`
	Status    VoyageStatus `json:"status"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
}

// IsOpen проверяет, находится ли рейс в процессе
func (v *Voyage) IsOpen() bool {
	return v.Status == VoyageInProgress
}

// Validate проверяет корректность рейса
func (v *Voyage) Validate() error {
	if v.VesselID == "" {
		return fmt.Errorf("vessel_id is required")
	}

	switch v.Status {
	case VoyagePlanned, VoyageInProgress, VoyageCompleted, VoyageCancelled:
	default:
		return fmt.Errorf("invalid voyage status: %q", v.Status)
	}

	if v.StartedAt.IsZero() {
		return fmt.Errorf("started_at is required")
	}

	if v.EndedAt != nil && v.EndedAt.Before(v.StartedAt) {
		return fmt.Errorf("ended_at %s before started_at %s", v.EndedAt, v.StartedAt)
	}

	return nil
}
