package models

import "time"

// EventType тип события судна
type EventType string

const (
	EventArrival        EventType = "ARRIVAL"
	EventDeparture      EventType = "DEPARTURE"
	EventHighCongestion EventType = "HIGH_CONGESTION"
	EventStormEntry     EventType = "STORM_ENTRY"
	EventPiracyRisk     EventType = "PIRACY_RISK"
	EventIncident       EventType = "INCIDENT"
)

// Event представляет событие, связанное с судном
type Event struct {
	ID        int64     `json:"id"`
	VesselID  string    `json:"vessel_id"`
	Type      EventType `json:"event_type"`
	Location  string    `json:"location"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationType тип уведомления
type NotificationType string

const (
	NotifyVoyageUpdate   NotificationType = "VOYAGE_UPDATE"
	NotifyEventAlert     NotificationType = "EVENT_ALERT"
	NotifyPositionUpdate NotificationType = "POSITION_UPDATE"
	NotifySystemAlert    NotificationType = "SYSTEM_ALERT"
)

// Notification уведомление пользователя о событии
type Notification struct {
	ID        int64            `json:"id"`
	UserID    string           `json:"user_id"`
	VesselID  string           `json:"vessel_id"`
	EventID   int64            `json:"event_id,omitempty"`
	Type      NotificationType `json:"notification_type"`
	Message   string           `json:"message"`
	IsRead    bool             `json:"is_read"`
	Timestamp time.Time        `json:"timestamp"`
}

// SubscriptionType тип подписки на судно
type SubscriptionType string

const (
	SubscribeAllEvents       SubscriptionType = "ALL_EVENTS"
	SubscribeSafetyOnly      SubscriptionType = "SAFETY_ONLY"
	SubscribePositionUpdates SubscriptionType = "POSITION_UPDATES"
)

// VesselSubscription подписка пользователя на события судна
type VesselSubscription struct {
	UserID   string           `json:"user_id"`
	VesselID string           `json:"vessel_id"`
	Type     SubscriptionType `json:"subscription_type"`

	NotifyStormZones  bool `json:"notify_storm_zones"`
	NotifyPiracyZones bool `json:"notify_piracy_zones"`
	NotifyCongestion  bool `json:"notify_congestion"`
	NotifyPositions   bool `json:"notify_position_updates"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditAction тип действия для журнала аудита
type AuditAction string

const (
	AuditVoyageCreated    AuditAction = "VOYAGE_CREATED"
	AuditVoyageCompleted  AuditAction = "VOYAGE_COMPLETED"
	AuditPositionRecorded AuditAction = "POSITION_RECORDED"
	AuditRouteAccessed    AuditAction = "ROUTE_ACCESSED"
	AuditReplayStarted    AuditAction = "REPLAY_STARTED"
	AuditDataRetention    AuditAction = "DATA_RETENTION"
)

// AuditEntry запись журнала аудита действий с рейсами
type AuditEntry struct {
	ID          int64       `json:"id"`
	VesselID    string      `json:"vessel_id,omitempty"`
	VoyageID    int64       `json:"voyage_id,omitempty"`
	Action      AuditAction `json:"action"`
	Description string      `json:"description"`
	Timestamp   time.Time   `json:"timestamp"`
}
