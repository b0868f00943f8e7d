package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "maritime_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maritime_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Метрики приёма позиций
	PositionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maritime_positions_recorded_total",
			Help: "Total number of position samples persisted",
		},
		[]string{"source"},
	)

	PositionsDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "maritime_positions_duplicate_total",
			Help: "Total number of duplicate position samples ignored",
		},
	)

	PositionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maritime_positions_rejected_total",
			Help: "Total number of position samples rejected by validation",
		},
		[]string{"reason"},
	)

	// Метрики жизненного цикла рейсов
	VoyagesOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "maritime_voyages_opened_total",
			Help: "Total number of voyages opened automatically",
		},
	)

	VoyagesClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maritime_voyages_closed_total",
			Help: "Total number of voyages closed",
		},
		[]string{"reason"},
	)

	// WebSocket метрики
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "maritime_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesOut = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maritime_websocket_messages_out_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"type"},
	)

	WebSocketErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "maritime_websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
	)

	// MQTT метрики
	MQTTMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maritime_mqtt_messages_received_total",
			Help: "Total number of MQTT messages received",
		},
		[]string{"topic_type"},
	)

	MQTTParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "maritime_mqtt_parse_errors_total",
			Help: "Total number of MQTT message parse errors",
		},
	)

	MQTTConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "maritime_mqtt_connection_status",
			Help: "MQTT connection status (1 = connected, 0 = disconnected)",
		},
	)

	// AIS poller метрики
	AISPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "maritime_ais_poll_duration_seconds",
			Help:    "Duration of AIS provider polls in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	AISPollErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "maritime_ais_poll_errors_total",
			Help: "Total number of failed AIS provider polls",
		},
	)

	AISVesselsFetched = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "maritime_ais_vessels_fetched",
			Help: "Number of vessels returned by the last AIS poll",
		},
	)

	// Redis метрики
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "maritime_redis_operation_duration_seconds",
			Help:    "Duration of Redis operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	RedisOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maritime_redis_operation_errors_total",
			Help: "Total number of Redis operation errors",
		},
		[]string{"operation"},
	)

	// Метрики уведомлений
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maritime_notifications_sent_total",
			Help: "Total number of notifications dispatched",
		},
		[]string{"type"},
	)

	// Общие метрики приложения
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "maritime_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "build_time"},
	)

	ActiveVessels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "maritime_active_vessels_total",
			Help: "Total number of vessels with a fresh position",
		},
	)

	OpenVoyages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "maritime_open_voyages_total",
			Help: "Total number of voyages currently in progress",
		},
	)

	// Database connection status
	MySQLConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "maritime_mysql_connection_status",
			Help: "MySQL connection status (1 = connected, 0 = disconnected)",
		},
	)

	RedisConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "maritime_redis_connection_status",
			Help: "Redis connection status (1 = connected, 0 = disconnected)",
		},
	)
)

// SetAppInfo устанавливает информацию о версии приложения
func SetAppInfo(version, commit, buildTime string) {
	AppInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
