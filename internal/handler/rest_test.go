package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marinewatch/maritime-backend/internal/config"
	"github.com/marinewatch/maritime-backend/internal/models"
	"github.com/marinewatch/maritime-backend/internal/notify"
	"github.com/marinewatch/maritime-backend/internal/repository"
	"github.com/marinewatch/maritime-backend/internal/voyage"
	"github.com/marinewatch/maritime-backend/pkg/utils"
)

func newTestServer() (*Server, *repository.MemoryStore) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			IdleTimeout:  time.Second,
		},
		Voyage: config.VoyageConfig{
			InactivityThreshold:    30 * time.Minute,
			ArrivalThreshold:       30 * time.Minute,
			SpeedEpsilonKnots:      0.5,
			InterpolationThreshold: 30 * time.Minute,
		},
	}

	store := repository.NewMemoryStore()
	logger := utils.NewLogger("error", "text")
	tracker := voyage.NewTracker(store, &cfg.Voyage, logger)
	server := NewServer(cfg, store, nil, tracker, notify.NewService(logger), logger)
	return server, store
}

func doRequest(server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	return w
}

func postPosition(t *testing.T, server *Server, vesselID string, ts time.Time, lat, lon float64) map[string]interface{} {
	t.Helper()

	w := doRequest(server, http.MethodPost, "/api/v1/positions", gin.H{
		"vessel_id": vesselID,
		"latitude":  lat,
		"longitude": lon,
		"timestamp": ts.Format(time.RFC3339),
		"source":    "AIS",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func voyageIDFromResponse(t *testing.T, resp map[string]interface{}) int64 {
	t.Helper()
	position, ok := resp["position"].(map[string]interface{})
	require.True(t, ok)
	id, ok := position["voyage_id"].(float64)
	require.True(t, ok)
	return int64(id)
}

func TestPostPosition(t *testing.T) {
	t0 := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	t.Run("CreatesPositionAndVoyage", func(t *testing.T) {
		server, _ := newTestServer()

		resp := postPosition(t, server, "9395044", t0, 55.676, 12.568)
		assert.Equal(t, false, resp["duplicate"])
		assert.Greater(t, voyageIDFromResponse(t, resp), int64(0))
	})

	t.Run("DuplicateReturns200", func(t *testing.T) {
		server, _ := newTestServer()
		postPosition(t, server, "9395044", t0, 55.676, 12.568)

		w := doRequest(server, http.MethodPost, "/api/v1/positions", gin.H{
			"vessel_id": "9395044",
			"latitude":  55.676,
			"longitude": 12.568,
			"timestamp": t0.Format(time.RFC3339),
			"source":    "AIS",
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"duplicate":true`)
	})

	t.Run("InvalidCoordinateRejected", func(t *testing.T) {
		server, _ := newTestServer()

		w := doRequest(server, http.MethodPost, "/api/v1/positions", gin.H{
			"vessel_id": "9395044",
			"latitude":  91.0,
			"longitude": 12.568,
			"timestamp": t0.Format(time.RFC3339),
			"source":    "AIS",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_coordinate")
	})

	t.Run("UnknownSourceRejected", func(t *testing.T) {
		server, _ := newTestServer()

		w := doRequest(server, http.MethodPost, "/api/v1/positions", gin.H{
			"vessel_id": "9395044",
			"latitude":  55.0,
			"longitude": 12.0,
			"timestamp": t0.Format(time.RFC3339),
			"source":    "RADAR",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_source")
	})

	t.Run("MissingBodyRejected", func(t *testing.T) {
		server, _ := newTestServer()

		w := doRequest(server, http.MethodPost, "/api/v1/positions", gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetVoyageRoute(t *testing.T) {
	t0 := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	t.Run("ReturnsOrderedRoute", func(t *testing.T) {
		server, _ := newTestServer()
		resp := postPosition(t, server, "9395044", t0, 55.0, 12.0)
		voyageID := voyageIDFromResponse(t, resp)
		postPosition(t, server, "9395044", t0.Add(10*time.Minute), 55.1, 12.1)

		w := doRequest(server, http.MethodGet, fmt.Sprintf("/api/v1/voyages/%d/route", voyageID), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var routeResp struct {
			Count int `json:"count"`
			Route []struct {
				IsInterpolated bool `json:"is_interpolated"`
			} `json:"route"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &routeResp))
		assert.Equal(t, 2, routeResp.Count)
	})

	t.Run("InterpolationFillsGaps", func(t *testing.T) {
		server, store := newTestServer()
		ctx := context.Background()

		// Разрыв длиннее порога неактивности записывается напрямую в
		// хранилище: через API такой рейс закрылся бы автоматически
		v := &models.Voyage{VesselID: "9395044", Status: models.VoyageInProgress, StartedAt: t0}
		require.NoError(t, store.CreateVoyage(ctx, v))
		for i, ts := range []time.Time{t0, t0.Add(90 * time.Minute)} {
			_, _, err := store.InsertPosition(ctx, &models.PositionSample{
				VesselID:  "9395044",
				VoyageID:  v.ID,
				Position:  models.GeoPoint{Latitude: 55.0 + float64(i), Longitude: 12.0 + float64(i)},
				Timestamp: ts,
				Source:    models.SourceAIS,
			})
			require.NoError(t, err)
		}

		w := doRequest(server, http.MethodGet,
			fmt.Sprintf("/api/v1/voyages/%d/route?interpolate=true", v.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var routeResp struct {
			Count int `json:"count"`
			Route []struct {
				IsInterpolated bool `json:"is_interpolated"`
			} `json:"route"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &routeResp))
		// 90-минутный разрыв дает 3 синтетических точки
		require.Equal(t, 5, routeResp.Count)
		assert.True(t, routeResp.Route[2].IsInterpolated)
	})

	t.Run("UnknownVoyage404", func(t *testing.T) {
		server, _ := newTestServer()

		w := doRequest(server, http.MethodGet, "/api/v1/voyages/999/route", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "voyage_not_found")
	})

	t.Run("BadVoyageID400", func(t *testing.T) {
		server, _ := newTestServer()

		w := doRequest(server, http.MethodGet, "/api/v1/voyages/abc/route", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetVoyageReplay(t *testing.T) {
	t0 := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	t.Run("ScalesTime", func(t *testing.T) {
		server, _ := newTestServer()
		resp := postPosition(t, server, "9395044", t0, 55.0, 12.0)
		voyageID := voyageIDFromResponse(t, resp)
		postPosition(t, server, "9395044", t0.Add(30*time.Minute), 55.3, 12.3)

		w := doRequest(server, http.MethodGet,
			fmt.Sprintf("/api/v1/voyages/%d/replay?speed_multiplier=2.0", voyageID), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var replay struct {
			Frames   []map[string]interface{} `json:"frames"`
			Metadata struct {
				ActualDurationSeconds float64 `json:"actual_duration_seconds"`
				ReplayDurationSeconds float64 `json:"replay_duration_seconds"`
			} `json:"metadata"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &replay))
		assert.Len(t, replay.Frames, 2)
		assert.Equal(t, 1800.0, replay.Metadata.ActualDurationSeconds)
		assert.Equal(t, 900.0, replay.Metadata.ReplayDurationSeconds)
	})

	t.Run("InvalidMultiplier400", func(t *testing.T) {
		server, _ := newTestServer()
		resp := postPosition(t, server, "9395044", t0, 55.0, 12.0)
		voyageID := voyageIDFromResponse(t, resp)

		w := doRequest(server, http.MethodGet,
			fmt.Sprintf("/api/v1/voyages/%d/replay?speed_multiplier=0", voyageID), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_parameter")
	})

	t.Run("NonFiniteMultiplier400", func(t *testing.T) {
		server, _ := newTestServer()
		resp := postPosition(t, server, "9395044", t0, 55.0, 12.0)
		voyageID := voyageIDFromResponse(t, resp)

		// strconv.ParseFloat принимает "NaN" и "Inf" без ошибки,
		// отклонить их обязан генератор воспроизведения
		for _, raw := range []string{"NaN", "Inf", "-Inf"} {
			w := doRequest(server, http.MethodGet,
				fmt.Sprintf("/api/v1/voyages/%d/replay?speed_multiplier=%s", voyageID, raw), nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, raw)
			assert.Contains(t, w.Body.String(), "invalid_parameter")
		}
	})
}

func TestGetVoyageStatistics(t *testing.T) {
	t0 := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	server, _ := newTestServer()
	resp := postPosition(t, server, "9395044", t0, 55.0, 12.0)
	voyageID := voyageIDFromResponse(t, resp)

	w := doRequest(server, http.MethodGet,
		fmt.Sprintf("/api/v1/voyages/%d/statistics", voyageID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats struct {
		TotalPositions int     `json:"total_positions"`
		DurationHours  float64 `json:"duration_hours"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalPositions)
	assert.Equal(t, 0.0, stats.DurationHours)
}

func TestCloseVoyage(t *testing.T) {
	t0 := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	server, _ := newTestServer()
	resp := postPosition(t, server, "9395044", t0, 55.0, 12.0)
	voyageID := voyageIDFromResponse(t, resp)

	w := doRequest(server, http.MethodPost, fmt.Sprintf("/api/v1/voyages/%d/close", voyageID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "COMPLETED")

	// Повторное закрытие — ошибка параметра
	w = doRequest(server, http.MethodPost, fmt.Sprintf("/api/v1/voyages/%d/close", voyageID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVesselHistory(t *testing.T) {
	t0 := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	server, _ := newTestServer()
	postPosition(t, server, "9395044", t0, 55.0, 12.0)
	postPosition(t, server, "9395044", t0.Add(10*time.Minute), 55.1, 12.1)
	postPosition(t, server, "7777777", t0, 40.0, -70.0)

	t.Run("ReturnsOnlyRequestedVessel", func(t *testing.T) {
		w := doRequest(server, http.MethodGet, "/api/v1/vessels/9395044/history", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Count)
	})

	t.Run("RangeFilters", func(t *testing.T) {
		from := t0.Add(5 * time.Minute).Format(time.RFC3339)
		w := doRequest(server, http.MethodGet, "/api/v1/vessels/9395044/history?from="+from, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("BadTimeRejected", func(t *testing.T) {
		w := doRequest(server, http.MethodGet, "/api/v1/vessels/9395044/history?from=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHealthCheck(t *testing.T) {
	server, _ := newTestServer()

	w := doRequest(server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestGetVoyageAuditLogs(t *testing.T) {
	t0 := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	t.Run("RecordsActionsNewestFirst", func(t *testing.T) {
		server, _ := newTestServer()
		resp := postPosition(t, server, "9395044", t0, 55.0, 12.0)
		voyageID := voyageIDFromResponse(t, resp)

		w := doRequest(server, http.MethodGet,
			fmt.Sprintf("/api/v1/voyages/%d/route", voyageID), nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(server, http.MethodGet,
			fmt.Sprintf("/api/v1/voyages/%d/audit-logs", voyageID), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp2 struct {
			Count     int                 `json:"count"`
			AuditLogs []models.AuditEntry `json:"audit_logs"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp2))
		require.Equal(t, 3, resp2.Count)
		assert.Equal(t, models.AuditRouteAccessed, resp2.AuditLogs[0].Action)
		assert.Equal(t, models.AuditPositionRecorded, resp2.AuditLogs[1].Action)
		assert.Equal(t, models.AuditVoyageCreated, resp2.AuditLogs[2].Action)
	})

	t.Run("LimitApplies", func(t *testing.T) {
		server, _ := newTestServer()
		resp := postPosition(t, server, "9395044", t0, 55.0, 12.0)
		voyageID := voyageIDFromResponse(t, resp)

		for i := 0; i < 3; i++ {
			w := doRequest(server, http.MethodGet,
				fmt.Sprintf("/api/v1/voyages/%d/route", voyageID), nil)
			require.Equal(t, http.StatusOK, w.Code)
		}

		w := doRequest(server, http.MethodGet,
			fmt.Sprintf("/api/v1/voyages/%d/audit-logs?limit=2", voyageID), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp2 struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp2))
		assert.Equal(t, 2, resp2.Count)
	})

	t.Run("UnknownVoyage404", func(t *testing.T) {
		server, _ := newTestServer()
		w := doRequest(server, http.MethodGet, "/api/v1/voyages/9999/audit-logs", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("BadLimitRejected", func(t *testing.T) {
		server, _ := newTestServer()
		resp := postPosition(t, server, "9395044", t0, 55.0, 12.0)
		voyageID := voyageIDFromResponse(t, resp)

		w := doRequest(server, http.MethodGet,
			fmt.Sprintf("/api/v1/voyages/%d/audit-logs?limit=-1", voyageID), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSubscriptions(t *testing.T) {
	server, _ := newTestServer()

	t.Run("SubscribeAndListNotifications", func(t *testing.T) {
		w := doRequest(server, http.MethodPost, "/api/v1/subscriptions", map[string]interface{}{
			"user_id":             "operator-1",
			"vessel_id":           "IMO9395044",
			"notify_piracy_zones": true,
		})
		require.Equal(t, http.StatusCreated, w.Code)

		w = doRequest(server, http.MethodGet, "/api/v1/notifications?user_id=operator-1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 0, resp.Count)
	})

	t.Run("MissingUserRejected", func(t *testing.T) {
		w := doRequest(server, http.MethodPost, "/api/v1/subscriptions", map[string]interface{}{
			"vessel_id": "IMO9395044",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doRequest(server, http.MethodGet, "/api/v1/notifications", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("UnknownNotificationNotFound", func(t *testing.T) {
		w := doRequest(server, http.MethodPost, "/api/v1/notifications/42/read?user_id=operator-1", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		w := doRequest(server, http.MethodDelete, "/api/v1/subscriptions?user_id=operator-1&vessel_id=IMO9395044", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
