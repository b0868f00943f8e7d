package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marinewatch/maritime-backend/internal/models"
	"github.com/marinewatch/maritime-backend/pkg/utils"
)

func newTestService() *Service {
	return NewService(utils.NewLogger("error", "text"))
}

func stormEvent(vesselID string) *models.Event {
	return &models.Event{
		ID:        1,
		VesselID:  vesselID,
		Type:      models.EventStormEntry,
		Location:  "North Sea",
		Timestamp: time.Now().UTC(),
	}
}

func TestService_Dispatch(t *testing.T) {
	t.Run("MatchingSubscriptionNotified", func(t *testing.T) {
		svc := newTestService()
		svc.Subscribe(&models.VesselSubscription{
			UserID:           "user-1",
			VesselID:         "9395044",
			Type:             models.SubscribeSafetyOnly,
			NotifyStormZones: true,
			IsActive:         true,
		})

		created := svc.Dispatch(stormEvent("9395044"))
		assert.Equal(t, 1, created)

		notifications := svc.ListNotifications("user-1")
		require.Len(t, notifications, 1)
		assert.Contains(t, notifications[0].Message, "storm zone")
		assert.False(t, notifications[0].IsRead)
	})

	t.Run("PreferenceFiltersEventType", func(t *testing.T) {
		svc := newTestService()
		svc.Subscribe(&models.VesselSubscription{
			UserID:            "user-1",
			VesselID:          "9395044",
			Type:              models.SubscribeSafetyOnly,
			NotifyPiracyZones: true,
			IsActive:          true,
		})

		// Подписка только на пиратские зоны — шторм не уведомляет
		assert.Equal(t, 0, svc.Dispatch(stormEvent("9395044")))
	})

	t.Run("AllEventsSubscriptionCatchesEverything", func(t *testing.T) {
		svc := newTestService()
		svc.Subscribe(&models.VesselSubscription{
			UserID:   "user-1",
			VesselID: "9395044",
			Type:     models.SubscribeAllEvents,
			IsActive: true,
		})

		assert.Equal(t, 1, svc.Dispatch(stormEvent("9395044")))
		assert.Equal(t, 1, svc.Dispatch(&models.Event{
			VesselID: "9395044",
			Type:     models.EventIncident,
			Location: "Suez Canal",
		}))
	})

	t.Run("InactiveSubscriptionIgnored", func(t *testing.T) {
		svc := newTestService()
		svc.Subscribe(&models.VesselSubscription{
			UserID:           "user-1",
			VesselID:         "9395044",
			Type:             models.SubscribeAllEvents,
			NotifyStormZones: true,
			IsActive:         true,
		})
		svc.Unsubscribe("user-1", "9395044")

		assert.Equal(t, 0, svc.Dispatch(stormEvent("9395044")))
	})

	t.Run("OtherVesselNotNotified", func(t *testing.T) {
		svc := newTestService()
		svc.Subscribe(&models.VesselSubscription{
			UserID:   "user-1",
			VesselID: "9395044",
			Type:     models.SubscribeAllEvents,
			IsActive: true,
		})

		assert.Equal(t, 0, svc.Dispatch(stormEvent("9999999")))
	})
}

func TestService_MarkRead(t *testing.T) {
	svc := newTestService()
	svc.Subscribe(&models.VesselSubscription{
		UserID:   "user-1",
		VesselID: "9395044",
		Type:     models.SubscribeAllEvents,
		IsActive: true,
	})
	svc.Dispatch(stormEvent("9395044"))

	notifications := svc.ListNotifications("user-1")
	require.Len(t, notifications, 1)

	assert.True(t, svc.MarkRead("user-1", notifications[0].ID))
	assert.True(t, svc.ListNotifications("user-1")[0].IsRead)

	assert.False(t, svc.MarkRead("user-1", 777))
}

func TestZoneWatcher(t *testing.T) {
	zone := RiskZone{
		Name: "Gulf of Aden HRA",
		Type: models.EventPiracyRisk,
		Bounds: models.Bounds{
			Southwest: models.GeoPoint{Latitude: 10.0, Longitude: 43.0},
			Northeast: models.GeoPoint{Latitude: 15.0, Longitude: 52.0},
		},
	}

	t.Run("EntryCreatesSingleEvent", func(t *testing.T) {
		svc := newTestService()
		svc.Subscribe(&models.VesselSubscription{
			UserID:            "user-1",
			VesselID:          "9395044",
			Type:              models.SubscribeSafetyOnly,
			NotifyPiracyZones: true,
			IsActive:          true,
		})
		watcher := NewZoneWatcher(svc, []RiskZone{zone})
		now := time.Now().UTC()

		outside := watcher.Check("9395044", models.GeoPoint{Latitude: 5, Longitude: 45}, now)
		assert.Empty(t, outside)

		entered := watcher.Check("9395044", models.GeoPoint{Latitude: 12, Longitude: 47}, now)
		require.Len(t, entered, 1)
		assert.Equal(t, models.EventPiracyRisk, entered[0].Type)
		assert.Equal(t, "Gulf of Aden HRA", entered[0].Location)
		assert.Len(t, svc.ListNotifications("user-1"), 1)

		// Судно остается в зоне — повторного события нет
		still := watcher.Check("9395044", models.GeoPoint{Latitude: 13, Longitude: 48}, now)
		assert.Empty(t, still)
	})

	t.Run("ReentryAfterExitCreatesNewEvent", func(t *testing.T) {
		svc := newTestService()
		watcher := NewZoneWatcher(svc, []RiskZone{zone})
		now := time.Now().UTC()

		first := watcher.Check("9395044", models.GeoPoint{Latitude: 12, Longitude: 47}, now)
		require.Len(t, first, 1)

		watcher.Check("9395044", models.GeoPoint{Latitude: 20, Longitude: 60}, now)

		second := watcher.Check("9395044", models.GeoPoint{Latitude: 11, Longitude: 46}, now)
		require.Len(t, second, 1)
	})
}
