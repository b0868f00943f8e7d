package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/marinewatch/maritime-backend/internal/metrics"
	"github.com/marinewatch/maritime-backend/internal/models"
	"github.com/marinewatch/maritime-backend/pkg/utils"
)

// Service рассылает уведомления подписчикам судов по событиям.
// Подписки и лента уведомлений хранятся в памяти.
type Service struct {
	logger *utils.Logger

	mu            sync.RWMutex
	subscriptions map[string][]*models.VesselSubscription
	notifications map[string][]*models.Notification
	nextID        int64
}

// NewService создает сервис уведомлений
func NewService(logger *utils.Logger) *Service {
	return &Service{
		logger:        logger,
		subscriptions: make(map[string][]*models.VesselSubscription),
		notifications: make(map[string][]*models.Notification),
	}
}

// Subscribe добавляет или обновляет подписку пользователя на судно
func (s *Service) Subscribe(sub *models.VesselSubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.subscriptions[sub.VesselID]
	for i, existing := range subs {
		if existing.UserID == sub.UserID {
			subs[i] = sub
			return
		}
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	s.subscriptions[sub.VesselID] = append(subs, sub)
}

// Unsubscribe деактивирует подписку пользователя на судно
func (s *Service) Unsubscribe(userID, vesselID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subscriptions[vesselID] {
		if sub.UserID == userID {
			sub.IsActive = false
		}
	}
}

// Dispatch рассылает уведомления активным подписчикам судна события.
// Возвращает количество созданных уведомлений.
func (s *Service) Dispatch(event *models.Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := 0
	for _, sub := range s.subscriptions[event.VesselID] {
		if !sub.IsActive || !matches(sub, event.Type) {
			continue
		}

		s.nextID++
		notification := &models.Notification{
			ID:        s.nextID,
			UserID:    sub.UserID,
			VesselID:  event.VesselID,
			EventID:   event.ID,
			Type:      models.NotifyEventAlert,
			Message:   eventMessage(event),
			Timestamp: time.Now().UTC(),
		}
		s.notifications[sub.UserID] = append(s.notifications[sub.UserID], notification)
		created++
	}

	if created > 0 {
		metrics.NotificationsSent.WithLabelValues(string(event.Type)).Add(float64(created))
		s.logger.WithFields(map[string]interface{}{
			"event_type": event.Type,
			"vessel_id":  event.VesselID,
			"created":    created,
		}).Info("Dispatched event notifications")
	}
	return created
}

// matches проверяет, интересует ли подписчика тип события
func matches(sub *models.VesselSubscription, eventType models.EventType) bool {
	switch eventType {
	case models.EventStormEntry:
		if sub.NotifyStormZones {
			return true
		}
	case models.EventPiracyRisk:
		if sub.NotifyPiracyZones {
			return true
		}
	case models.EventHighCongestion:
		if sub.NotifyCongestion {
			return true
		}
	}
	return sub.Type == models.SubscribeAllEvents
}

// eventMessage текст уведомления по типу события
func eventMessage(event *models.Event) string {
	switch event.Type {
	case models.EventStormEntry:
		return fmt.Sprintf("Vessel %s has entered a storm zone at %s", event.VesselID, event.Location)
	case models.EventPiracyRisk:
		return fmt.Sprintf("Vessel %s has entered a piracy risk zone at %s", event.VesselID, event.Location)
	case models.EventHighCongestion:
		return fmt.Sprintf("Vessel %s is approaching a high congestion port: %s", event.VesselID, event.Location)
	case models.EventIncident:
		return fmt.Sprintf("Incident reported for vessel %s at %s", event.VesselID, event.Location)
	default:
		return fmt.Sprintf("%s alert for vessel %s: %s", event.Type, event.VesselID, event.Details)
	}
}

// ListNotifications возвращает уведомления пользователя, новые первыми
func (s *Service) ListNotifications(userID string) []*models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.notifications[userID]
	out := make([]*models.Notification, len(items))
	for i, n := range items {
		out[len(items)-1-i] = n
	}
	return out
}

// MarkRead помечает уведомление пользователя прочитанным
func (s *Service) MarkRead(userID string, notificationID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifications[userID] {
		if n.ID == notificationID {
			n.IsRead = true
			return true
		}
	}
	return false
}
