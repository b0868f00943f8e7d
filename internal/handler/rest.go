package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marinewatch/maritime-backend/internal/models"
	"github.com/marinewatch/maritime-backend/internal/notify"
	"github.com/marinewatch/maritime-backend/internal/repository"
	"github.com/marinewatch/maritime-backend/internal/voyage"
	"github.com/marinewatch/maritime-backend/pkg/utils"
)

// RESTHandler обрабатывает REST запросы API
type RESTHandler struct {
	tracker  *voyage.Tracker
	routes   *voyage.RouteBuilder
	replay   *voyage.ReplayGenerator
	stats    *voyage.Statistics
	store    repository.HistoryStore
	live     repository.LiveRepository
	notifier *notify.Service
	logger   *utils.Logger
}

// NewRESTHandler создает новый REST handler
func NewRESTHandler(tracker *voyage.Tracker, routes *voyage.RouteBuilder, replay *voyage.ReplayGenerator,
	stats *voyage.Statistics, store repository.HistoryStore, live repository.LiveRepository,
	notifier *notify.Service, logger *utils.Logger) *RESTHandler {
	return &RESTHandler{
		tracker:  tracker,
		routes:   routes,
		replay:   replay,
		stats:    stats,
		store:    store,
		live:     live,
		notifier: notifier,
		logger:   logger,
	}
}

// positionRequest тело запроса POST /api/v1/positions
type positionRequest struct {
	VesselID       string    `json:"vessel_id" binding:"required"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Timestamp      time.Time `json:"timestamp" binding:"required"`
	SpeedKnots     *float64  `json:"speed_knots"`
	HeadingDegrees *int      `json:"heading_degrees"`
	Source         string    `json:"source" binding:"required"`
	AccuracyMeters *float64  `json:"accuracy_meters"`
}

// PostPosition записывает позицию судна.
// POST /api/v1/positions
func (h *RESTHandler) PostPosition(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid_request", err.Error())
		return
	}

	source, err := models.ParseSource(req.Source)
	if err != nil {
		h.badRequest(c, "invalid_source", err.Error())
		return
	}

	result, err := h.tracker.Record(c.Request.Context(), voyage.RecordRequest{
		VesselID:       req.VesselID,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		Timestamp:      req.Timestamp,
		SpeedKnots:     req.SpeedKnots,
		HeadingDegrees: req.HeadingDegrees,
		Source:         source,
		AccuracyMeters: req.AccuracyMeters,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCoordinate):
			h.badRequest(c, "invalid_coordinate", err.Error())
		case errors.Is(err, models.ErrInvalidMeasurement):
			h.badRequest(c, "invalid_measurement", err.Error())
		case errors.Is(err, models.ErrInvalidSource):
			h.badRequest(c, "invalid_source", err.Error())
		default:
			h.internalError(c, err)
		}
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		// Идемпотентный повтор возвращает уже сохраненный сэмпл
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"position":  result.Sample,
		"duplicate": result.Duplicate,
	})
}

// GetVesselHistory возвращает историю позиций судна за период.
// GET /api/v1/vessels/:id/history?from=&to=&limit=
func (h *RESTHandler) GetVesselHistory(c *gin.Context) {
	vesselID := c.Param("id")

	from, ok := h.parseTimeQuery(c, "from", time.Time{})
	if !ok {
		return
	}
	to, ok := h.parseTimeQuery(c, "to", time.Now().UTC())
	if !ok {
		return
	}

	limit := 1000
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.badRequest(c, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	samples, err := h.store.ListByVesselRange(c.Request.Context(), vesselID, from, to, limit)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"vessel_id": vesselID,
		"count":     len(samples),
		"positions": samples,
	})
}

// GetVesselVoyages возвращает рейсы судна.
// GET /api/v1/vessels/:id/voyages
func (h *RESTHandler) GetVesselVoyages(c *gin.Context) {
	vesselID := c.Param("id")

	voyages, err := h.store.ListVoyagesByVessel(c.Request.Context(), vesselID)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"vessel_id": vesselID,
		"count":     len(voyages),
		"voyages":   voyages,
	})
}

// GetVoyageRoute возвращает маршрут рейса.
// GET /api/v1/voyages/:id/route?interpolate=
func (h *RESTHandler) GetVoyageRoute(c *gin.Context) {
	voyageID, ok := h.parseVoyageID(c)
	if !ok {
		return
	}
	interpolate := c.Query("interpolate") == "true"

	route, err := h.routes.Build(c.Request.Context(), voyageID, interpolate)
	if err != nil {
		h.voyageError(c, err)
		return
	}

	h.audit(c, voyageID, models.AuditRouteAccessed,
		fmt.Sprintf("Route accessed, %d points, interpolate=%t", len(route), interpolate))

	c.JSON(http.StatusOK, gin.H{
		"voyage_id":    voyageID,
		"count":        len(route),
		"interpolated": interpolate,
		"route":        route,
	})
}

// GetVoyageReplay возвращает кадры воспроизведения рейса.
// GET /api/v1/voyages/:id/replay?speed_multiplier=&interpolate=
func (h *RESTHandler) GetVoyageReplay(c *gin.Context) {
	voyageID, ok := h.parseVoyageID(c)
	if !ok {
		return
	}

	multiplier := 1.0
	if raw := c.Query("speed_multiplier"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.badRequest(c, "invalid_parameter", "speed_multiplier must be a number")
			return
		}
		multiplier = parsed
	}
	interpolate := c.Query("interpolate") == "true"

	replay, err := h.replay.Generate(c.Request.Context(), voyageID, multiplier, interpolate)
	if err != nil {
		h.voyageError(c, err)
		return
	}

	h.audit(c, voyageID, models.AuditReplayStarted,
		fmt.Sprintf("Replay generated, multiplier=%g, %d frames", multiplier, len(replay.Frames)))

	c.JSON(http.StatusOK, replay)
}

// GetVoyageStatistics возвращает статистику рейса.
// GET /api/v1/voyages/:id/statistics
func (h *RESTHandler) GetVoyageStatistics(c *gin.Context) {
	voyageID, ok := h.parseVoyageID(c)
	if !ok {
		return
	}

	stats, err := h.stats.Compute(c.Request.Context(), voyageID)
	if err != nil {
		h.voyageError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CloseVoyage явно завершает открытый рейс.
// POST /api/v1/voyages/:id/close
func (h *RESTHandler) CloseVoyage(c *gin.Context) {
	voyageID, ok := h.parseVoyageID(c)
	if !ok {
		return
	}

	closed, err := h.tracker.CloseVoyage(c.Request.Context(), voyageID)
	if err != nil {
		h.voyageError(c, err)
		return
	}

	c.JSON(http.StatusOK, closed)
}

// GetLiveVessels возвращает текущие позиции судов.
// GET /api/v1/vessels/live?lat=&lon=&radius_nm=
func (h *RESTHandler) GetLiveVessels(c *gin.Context) {
	if h.live == nil {
		c.JSON(http.StatusOK, gin.H{"count": 0, "vessels": []*models.Vessel{}})
		return
	}

	ctx := c.Request.Context()

	latStr, lonStr, radiusStr := c.Query("lat"), c.Query("lon"), c.Query("radius_nm")
	if latStr != "" || lonStr != "" || radiusStr != "" {
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lon, errLon := strconv.ParseFloat(lonStr, 64)
		radius, errRadius := strconv.ParseFloat(radiusStr, 64)
		if errLat != nil || errLon != nil || errRadius != nil || radius <= 0 {
			h.badRequest(c, "invalid_parameter", "lat, lon and positive radius_nm are required together")
			return
		}

		center := models.GeoPoint{Latitude: lat, Longitude: lon}
		if err := center.Validate(); err != nil {
			h.badRequest(c, "invalid_coordinate", err.Error())
			return
		}

		vessels, err := h.live.GetVesselsInRadius(ctx, center, radius)
		if err != nil {
			h.internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(vessels), "vessels": vessels})
		return
	}

	vessels, err := h.live.GetAllVessels(ctx)
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(vessels), "vessels": vessels})
}

// GetPorts возвращает все порты с показателями загруженности.
// GET /api/v1/ports
func (h *RESTHandler) GetPorts(c *gin.Context) {
	if h.live == nil {
		c.JSON(http.StatusOK, gin.H{"count": 0, "ports": []*models.Port{}})
		return
	}

	ports, err := h.live.GetAllPorts(c.Request.Context())
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(ports), "ports": ports})
}

// GetVoyageAuditLogs возвращает журнал аудита рейса, новые записи первыми.
// GET /api/v1/voyages/:id/audit-logs?limit=
func (h *RESTHandler) GetVoyageAuditLogs(c *gin.Context) {
	voyageID, ok := h.parseVoyageID(c)
	if !ok {
		return
	}

	if _, err := h.store.GetVoyage(c.Request.Context(), voyageID); err != nil {
		h.voyageError(c, err)
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.badRequest(c, "invalid_parameter", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := h.store.ListAuditByVoyage(c.Request.Context(), voyageID, limit)
	if err != nil {
		h.internalError(c, err)
		return
	}
	if entries == nil {
		entries = []*models.AuditEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"voyage_id": voyageID, "count": len(entries), "audit_logs": entries})
}

// subscriptionRequest тело запроса POST /api/v1/subscriptions
type subscriptionRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	VesselID string `json:"vessel_id" binding:"required"`
	Type     string `json:"subscription_type"`

	NotifyStormZones  bool `json:"notify_storm_zones"`
	NotifyPiracyZones bool `json:"notify_piracy_zones"`
	NotifyCongestion  bool `json:"notify_congestion"`
	NotifyPositions   bool `json:"notify_position_updates"`
}

// PostSubscription подписывает пользователя на события судна.
// POST /api/v1/subscriptions
func (h *RESTHandler) PostSubscription(c *gin.Context) {
	if h.notifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications_disabled"})
		return
	}

	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid_request", err.Error())
		return
	}

	subType := models.SubscriptionType(req.Type)
	if req.Type == "" {
		subType = models.SubscribeAllEvents
	}

	sub := &models.VesselSubscription{
		UserID:            req.UserID,
		VesselID:          req.VesselID,
		Type:              subType,
		NotifyStormZones:  req.NotifyStormZones,
		NotifyPiracyZones: req.NotifyPiracyZones,
		NotifyCongestion:  req.NotifyCongestion,
		NotifyPositions:   req.NotifyPositions,
		IsActive:          true,
	}
	h.notifier.Subscribe(sub)
	c.JSON(http.StatusCreated, sub)
}

// DeleteSubscription деактивирует подписку пользователя.
// DELETE /api/v1/subscriptions?user_id=&vessel_id=
func (h *RESTHandler) DeleteSubscription(c *gin.Context) {
	if h.notifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications_disabled"})
		return
	}

	userID := c.Query("user_id")
	vesselID := c.Query("vessel_id")
	if userID == "" || vesselID == "" {
		h.badRequest(c, "invalid_request", "user_id and vessel_id are required")
		return
	}

	h.notifier.Unsubscribe(userID, vesselID)
	c.JSON(http.StatusOK, gin.H{"status": "unsubscribed"})
}

// GetNotifications возвращает уведомления пользователя, новые первыми.
// GET /api/v1/notifications?user_id=
func (h *RESTHandler) GetNotifications(c *gin.Context) {
	if h.notifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications_disabled"})
		return
	}

	userID := c.Query("user_id")
	if userID == "" {
		h.badRequest(c, "invalid_request", "user_id is required")
		return
	}

	items := h.notifier.ListNotifications(userID)
	c.JSON(http.StatusOK, gin.H{"count": len(items), "notifications": items})
}

// MarkNotificationRead помечает уведомление прочитанным.
// POST /api/v1/notifications/:id/read?user_id=
func (h *RESTHandler) MarkNotificationRead(c *gin.Context) {
	if h.notifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications_disabled"})
		return
	}

	userID := c.Query("user_id")
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if userID == "" || err != nil || id <= 0 {
		h.badRequest(c, "invalid_request", "user_id and a positive notification id are required")
		return
	}

	if !h.notifier.MarkRead(userID, id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification_not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

// ==================== Helpers ====================

func (h *RESTHandler) parseVoyageID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, "invalid_parameter", "voyage id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *RESTHandler) parseTimeQuery(c *gin.Context, name string, fallback time.Time) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		h.badRequest(c, "invalid_parameter", fmt.Sprintf("%s must be RFC3339", name))
		return time.Time{}, false
	}
	return ts.UTC(), true
}

// voyageError транслирует ошибки движка рейсов в HTTP статусы
func (h *RESTHandler) voyageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrVoyageNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "voyage_not_found",
			"message": err.Error(),
		})
	case errors.Is(err, voyage.ErrInvalidParameter):
		h.badRequest(c, "invalid_parameter", err.Error())
	default:
		h.internalError(c, err)
	}
}

func (h *RESTHandler) badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    code,
		"message": message,
	})
}

func (h *RESTHandler) internalError(c *gin.Context, err error) {
	h.logger.WithError(err).Error("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "Internal server error",
	})
}

// audit пишет запись журнала доступа, ошибки не фатальны
func (h *RESTHandler) audit(c *gin.Context, voyageID int64, action models.AuditAction, description string) {
	entry := &models.AuditEntry{
		VoyageID:    voyageID,
		Action:      action,
		Description: description,
		Timestamp:   time.Now().UTC(),
	}
	if err := h.store.AppendAudit(c.Request.Context(), entry); err != nil {
		h.logger.WithError(err).Warn("Failed to append audit entry")
	}
}
