package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/marinewatch/maritime-backend/internal/metrics"
	"github.com/marinewatch/maritime-backend/internal/models"
	"github.com/marinewatch/maritime-backend/pkg/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// wsMessage сообщение, отправляемое WebSocket клиентам
type wsMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// wsClient одно WebSocket соединение
type wsClient struct {
	conn *websocket.Conn
	send chan []byte

	// Фильтр по судам; nil — все суда
	vessels map[string]bool
	mu      sync.RWMutex
}

// WebSocketHandler транслирует живые обновления позиций подключенным клиентам
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	logger   *utils.Logger

	mu      sync.RWMutex
	clients map[*wsClient]bool
	closed  bool
}

// NewWebSocketHandler создает новый WebSocket handler
func NewWebSocketHandler(logger *utils.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:  logger,
		clients: make(map[*wsClient]bool),
	}
}

// parseVesselFilter разбирает значения параметра vessels (повторные
// параметры и списки через запятую) в фильтр идентификаторов.
// Пустой набор дает nil — клиент без фильтра получает все обновления.
func parseVesselFilter(values []string) map[string]bool {
	filter := make(map[string]bool)
	for _, part := range values {
		for _, id := range strings.Split(part, ",") {
			if id = strings.TrimSpace(id); id != "" {
				filter[id] = true
			}
		}
	}
	if len(filter) == 0 {
		return nil
	}
	return filter
}

// HandleWebSocket обрабатывает WebSocket подключения.
// Параметр vessels — необязательный список идентификаторов через запятую.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade to WebSocket")
		metrics.WebSocketErrors.Inc()
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	if raw, ok := c.GetQueryArray("vessels"); ok {
		client.vessels = parseVesselFilter(raw)
	}

	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketConnections.Set(float64(total))

	h.logger.WithFields(map[string]interface{}{
		"client_ip": c.ClientIP(),
		"total":     total,
	}).Info("WebSocket client connected")

	client.sendWelcome()

	go h.writePump(client)
	go h.readPump(client)
}

// BroadcastPosition отправляет записанную позицию всем подходящим клиентам.
// Сигнатура совместима с voyage.Observer.
func (h *WebSocketHandler) BroadcastPosition(sample *models.PositionSample) {
	payload, err := json.Marshal(wsMessage{
		Type:      "position_update",
		Timestamp: time.Now().UTC(),
		Data:      sample,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal position update")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.wants(sample.VesselID) {
			continue
		}
		select {
		case client.send <- payload:
			metrics.WebSocketMessagesOut.WithLabelValues("position_update").Inc()
		default:
			// Медленный клиент: буфер полон, сообщение пропускается
			metrics.WebSocketErrors.Inc()
		}
	}
}

// Close закрывает все соединения
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebSocketConnections.Set(0)
}

// wants проверяет фильтр клиента по судну
func (c *wsClient) wants(vesselID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vessels == nil {
		return true
	}
	return c.vessels[vesselID]
}

func (c *wsClient) sendWelcome() {
	payload, err := json.Marshal(wsMessage{
		Type:      "welcome",
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// readPump читает входящие сообщения; клиент может обновить фильтр судов
// сообщением {"type":"subscribe","vessels":["..."]}
func (h *WebSocketHandler) readPump(client *wsClient) {
	defer h.unregister(client)

	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).Debug("WebSocket read error")
			}
			return
		}

		var req struct {
			Type    string   `json:"type"`
			Vessels []string `json:"vessels"`
		}
		if err := json.Unmarshal(message, &req); err != nil {
			continue
		}
		if req.Type == "subscribe" {
			client.mu.Lock()
			if len(req.Vessels) == 0 {
				client.vessels = nil
			} else {
				client.vessels = make(map[string]bool, len(req.Vessels))
				for _, id := range req.Vessels {
					client.vessels[id] = true
				}
			}
			client.mu.Unlock()
		}
	}
}

// writePump отправляет сообщения клиенту и поддерживает соединение ping-ами
func (h *WebSocketHandler) writePump(client *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// unregister удаляет клиента и закрывает его канал отправки
func (h *WebSocketHandler) unregister(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(total))
	h.logger.WithField("total", total).Info("WebSocket client disconnected")
}
