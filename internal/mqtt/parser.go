package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/marinewatch/maritime-backend/internal/models"
	"github.com/marinewatch/maritime-backend/pkg/utils"
)

// PositionReport разобранное сообщение позиции из MQTT фида
type PositionReport struct {
	VesselID       string
	Latitude       float64
	Longitude      float64
	SpeedKnots     *float64
	HeadingDegrees *int
	Timestamp      time.Time
	Source         models.Source
}

// rawReport формат JSON сообщения в топике ais/positions/<vessel_id>.
// Поля sog/cog — стандартные сокращения AIS (speed/course over ground).
type rawReport struct {
	IMO       string   `json:"imo"`
	MMSI      string   `json:"mmsi"`
	Latitude  *float64 `json:"lat"`
	Longitude *float64 `json:"lon"`
	SOG       *float64 `json:"sog"`
	COG       *float64 `json:"cog"`
	Heading   *int     `json:"heading"`
	Timestamp string   `json:"ts"`
	Source    string   `json:"source"`
}

// Parser разбирает сообщения MQTT фида в PositionReport
type Parser struct {
	logger *utils.Logger
}

// NewParser создает парсер MQTT сообщений
func NewParser(logger *utils.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse разбирает payload сообщения. Идентификатор судна берется из
// payload, либо из последнего сегмента топика. Возвращает nil без ошибки
// для retained-пустых сообщений.
func (p *Parser) Parse(topic string, payload []byte) (*PositionReport, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	var raw rawReport
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("invalid position report JSON: %w", err)
	}

	vesselID := raw.IMO
	if vesselID == "" {
		vesselID = raw.MMSI
	}
	if vesselID == "" {
		vesselID = vesselIDFromTopic(topic)
	}
	if vesselID == "" {
		return nil, fmt.Errorf("position report has no vessel identifier")
	}

	if raw.Latitude == nil || raw.Longitude == nil {
		return nil, fmt.Errorf("position report for %s has no coordinates", vesselID)
	}

	report := &PositionReport{
		VesselID:   vesselID,
		Latitude:   *raw.Latitude,
		Longitude:  *raw.Longitude,
		SpeedKnots: raw.SOG,
		Timestamp:  time.Now().UTC(),
		Source:     models.SourceAIS,
	}

	if raw.Heading != nil {
		report.HeadingDegrees = raw.Heading
	} else if raw.COG != nil {
		heading := int(*raw.COG) % 360
		if heading < 0 {
			heading += 360
		}
		report.HeadingDegrees = &heading
	}

	if raw.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, raw.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid position report timestamp %q: %w", raw.Timestamp, err)
		}
		report.Timestamp = ts.UTC()
	}

	if raw.Source != "" {
		source, err := models.ParseSource(raw.Source)
		if err != nil {
			return nil, err
		}
		report.Source = source
	}

	return report, nil
}

// vesselIDFromTopic извлекает идентификатор судна из топика
// вида ais/positions/<vessel_id>
func vesselIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	last := parts[len(parts)-1]
	if last == "positions" {
		return ""
	}
	return last
}
