package ais

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/marinewatch/maritime-backend/internal/config"
	"github.com/marinewatch/maritime-backend/internal/models"
	"github.com/marinewatch/maritime-backend/pkg/utils"
)

// VesselReport нормализованное сообщение AIS провайдера.
// Провайдер возвращает слабо типизированный JSON; нормализация и валидация
// выполняются здесь, до передачи в движок рейсов.
type VesselReport struct {
	IMO        string
	Name       string
	VesselType string
	Latitude   float64
	Longitude  float64
	SpeedKnots *float64
	Heading    *int
	Timestamp  time.Time
}

// flexFloat принимает число как JSON number или строку —
// провайдеры AIS непоследовательны в типах полей
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid numeric value %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

// providerVessel сырая запись из ответа провайдера
type providerVessel struct {
	IMO        string     `json:"imo"`
	MMSI       string     `json:"mmsi"`
	Name       string     `json:"name"`
	VesselType string     `json:"vessel_type"`
	Latitude   *flexFloat `json:"latitude"`
	Longitude  *flexFloat `json:"longitude"`
	Speed      *flexFloat `json:"speed"`
	Heading    *flexFloat `json:"heading"`
	Timestamp  string     `json:"timestamp"`
}

// Client запрашивает живые позиции судов у внешнего AIS провайдера.
// Без настроенного endpoint генерирует синтетический флот, чтобы система
// оставалась работоспособной при недоступном провайдере.
type Client struct {
	cfg    *config.AISConfig
	http   *http.Client
	logger *utils.Logger

	fleet []fleetVessel
	rng   *rand.Rand
}

// fleetVessel базовая точка синтетического судна
type fleetVessel struct {
	imo        string
	name       string
	vesselType string
	baseLat    float64
	baseLon    float64
}

// syntheticFleet суда, вокруг базовых точек которых генерируются
// синтетические позиции
var syntheticFleet = []fleetVessel{
	{"9123456", "ATLANTIC STAR", "Container Ship", 40.7128, -74.0060},
	{"9234567", "PACIFIC GLORY", "Bulk Carrier", 34.0522, -118.2437},
	{"9345678", "NORDIC WIND", "Tanker", 51.5074, -0.1278},
	{"9456789", "SOUTHERN CROSS", "General Cargo", -33.8688, 151.2093},
	{"9567890", "ARCTIC EXPLORER", "Research Vessel", 60.1699, 24.9384},
}

// NewClient создает AIS клиента
func NewClient(cfg *config.AISConfig, logger *utils.Logger) *Client {
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
		fleet:  syntheticFleet,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FetchPositions возвращает текущие позиции судов. При настроенном
// endpoint опрашивает провайдера; при ошибке или без endpoint возвращает
// синтетический флот.
func (c *Client) FetchPositions(ctx context.Context, limit int) ([]VesselReport, error) {
	if c.cfg.Endpoint == "" {
		return c.syntheticPositions(limit), nil
	}

	reports, err := c.fetchFromProvider(ctx, limit)
	if err != nil {
		c.logger.WithError(err).Warn("AIS provider fetch failed, falling back to synthetic fleet")
		return c.syntheticPositions(limit), nil
	}
	return reports, nil
}

// fetchFromProvider опрашивает HTTP API провайдера
func (c *Client) fetchFromProvider(ctx context.Context, limit int) ([]VesselReport, error) {
	endpoint, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid AIS endpoint: %w", err)
	}

	query := endpoint.Query()
	query.Set("limit", strconv.Itoa(limit))
	query.Set("protocol", "json")
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build AIS request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("AIS provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("AIS provider returned status %d", resp.StatusCode)
	}

	var raw []providerVessel
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode AIS response: %w", err)
	}
	return c.normalize(raw), nil
}

// normalize преобразует сырые записи провайдера в VesselReport,
// пропуская записи без обязательных полей
func (c *Client) normalize(raw []providerVessel) []VesselReport {
	reports := make([]VesselReport, 0, len(raw))
	for _, v := range raw {
		report, err := normalizeVessel(v)
		if err != nil {
			c.logger.WithError(err).WithField("imo", v.IMO).Debug("Skipping malformed AIS record")
			continue
		}
		reports = append(reports, report)
	}
	return reports
}

func normalizeVessel(v providerVessel) (VesselReport, error) {
	id := v.IMO
	if id == "" {
		id = v.MMSI
	}
	if id == "" {
		return VesselReport{}, fmt.Errorf("record has neither imo nor mmsi")
	}
	if v.Latitude == nil || v.Longitude == nil {
		return VesselReport{}, fmt.Errorf("record %s has no coordinates", id)
	}

	report := VesselReport{
		IMO:        id,
		Name:       v.Name,
		VesselType: v.VesselType,
		Latitude:   float64(*v.Latitude),
		Longitude:  float64(*v.Longitude),
		Timestamp:  time.Now().UTC(),
	}

	point := models.GeoPoint{Latitude: report.Latitude, Longitude: report.Longitude}
	if err := point.Validate(); err != nil {
		return VesselReport{}, fmt.Errorf("record %s: %w", id, err)
	}

	if v.Speed != nil {
		speed := float64(*v.Speed)
		report.SpeedKnots = &speed
	}
	if v.Heading != nil {
		heading := int(*v.Heading)
		report.Heading = &heading
	}
	if v.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, v.Timestamp); err == nil {
			report.Timestamp = ts.UTC()
		}
	}
	return report, nil
}

// syntheticPositions генерирует позиции синтетического флота со случайным
// смещением вокруг базовых точек
func (c *Client) syntheticPositions(limit int) []VesselReport {
	if limit > len(c.fleet) {
		limit = len(c.fleet)
	}

	now := time.Now().UTC()
	reports := make([]VesselReport, 0, limit)
	for _, vessel := range c.fleet[:limit] {
		speed := float64(int(c.rng.Float64()*250)) / 10
		heading := c.rng.Intn(360)

		reports = append(reports, VesselReport{
			IMO:        vessel.imo,
			Name:       vessel.name,
			VesselType: vessel.vesselType,
			Latitude:   vessel.baseLat + (c.rng.Float64()-0.5)*0.2,
			Longitude:  vessel.baseLon + (c.rng.Float64()-0.5)*0.2,
			SpeedKnots: &speed,
			Heading:    &heading,
			Timestamp:  now,
		})
	}
	return reports
}

// GetVesselByIMO возвращает отчет по одному судну, nil если не найдено
func (c *Client) GetVesselByIMO(ctx context.Context, imo string) (*VesselReport, error) {
	reports, err := c.FetchPositions(ctx, c.cfg.FetchLimit)
	if err != nil {
		return nil, err
	}
	for i := range reports {
		if reports[i].IMO == imo {
			return &reports[i], nil
		}
	}
	return nil, nil
}
