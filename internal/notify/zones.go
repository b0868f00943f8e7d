package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/marinewatch/maritime-backend/internal/models"
)

// RiskZone географическая зона повышенного риска
type RiskZone struct {
	Name   string
	Type   models.EventType
	Bounds models.Bounds
}

// ZoneWatcher отслеживает вход судов в зоны риска и порождает события.
// Повторный вход в ту же зону не создает событие, пока судно ее не покинет.
type ZoneWatcher struct {
	service *Service

	mu     sync.Mutex
	zones  []RiskZone
	inside map[string]map[string]bool
	nextID int64
}

// DefaultZones известные зоны повышенного риска
func DefaultZones() []RiskZone {
	return []RiskZone{
		{
			Name: "Gulf of Aden HRA",
			Type: models.EventPiracyRisk,
			Bounds: models.Bounds{
				Southwest: models.GeoPoint{Latitude: 10.0, Longitude: 43.0},
				Northeast: models.GeoPoint{Latitude: 16.0, Longitude: 58.0},
			},
		},
		{
			Name: "Gulf of Guinea HRA",
			Type: models.EventPiracyRisk,
			Bounds: models.Bounds{
				Southwest: models.GeoPoint{Latitude: -4.0, Longitude: -6.0},
				Northeast: models.GeoPoint{Latitude: 6.0, Longitude: 10.0},
			},
		},
		{
			Name: "Bay of Biscay storm area",
			Type: models.EventStormEntry,
			Bounds: models.Bounds{
				Southwest: models.GeoPoint{Latitude: 43.5, Longitude: -10.0},
				Northeast: models.GeoPoint{Latitude: 48.0, Longitude: -1.0},
			},
		},
	}
}

// NewZoneWatcher создает наблюдатель зон риска
func NewZoneWatcher(service *Service, zones []RiskZone) *ZoneWatcher {
	return &ZoneWatcher{
		service: service,
		zones:   zones,
		inside:  make(map[string]map[string]bool),
	}
}

// Check проверяет позицию судна против всех зон и рассылает уведомления
// о входе. Возвращает созданные события.
func (w *ZoneWatcher) Check(vesselID string, position models.GeoPoint, ts time.Time) []*models.Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	state := w.inside[vesselID]
	if state == nil {
		state = make(map[string]bool)
		w.inside[vesselID] = state
	}

	var events []*models.Event
	for _, zone := range w.zones {
		contains := zone.Bounds.Contains(position)
		wasInside := state[zone.Name]
		state[zone.Name] = contains

		if !contains || wasInside {
			continue
		}

		w.nextID++
		event := &models.Event{
			ID:        w.nextID,
			VesselID:  vesselID,
			Type:      zone.Type,
			Location:  zone.Name,
			Details:   fmt.Sprintf("Entered at %.4f, %.4f", position.Latitude, position.Longitude),
			Timestamp: ts,
		}
		events = append(events, event)
		w.service.Dispatch(event)
	}
	return events
}
