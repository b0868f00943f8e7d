package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marinewatch/maritime-backend/internal/config"
	"github.com/marinewatch/maritime-backend/internal/models"
	"github.com/marinewatch/maritime-backend/pkg/utils"
)

const (
	// Геопространственный индекс судов
	VesselsGeoKey = "vessels:geo"

	// Префиксы для данных
	VesselPrefix = "vessel:" // vessel:{imo}
	PortPrefix   = "port:"   // port:{name}

	// Индексы
	PortsIndexKey   = "ports:index"   // SET имен портов
	VesselsIndexKey = "vessels:index" // SET идентификаторов судов

	// TTL для живого состояния
	VesselTTL = 24 * time.Hour
	PortTTL   = 7 * 24 * time.Hour

	// Морская миля в километрах для GEO запросов Redis
	kmPerNauticalMile = 1.852
)

// RedisRepository хранилище живого состояния судов и портов в Redis
type RedisRepository struct {
	client *redis.Client
	logger *utils.Logger
	config *config.RedisConfig
}

// NewRedisRepository создает новый Redis репозиторий
func NewRedisRepository(cfg *config.RedisConfig, logger *utils.Logger) (*RedisRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	opt.DB = cfg.DB
	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns

	return &RedisRepository{
		client: redis.NewClient(opt),
		logger: logger,
		config: cfg,
	}, nil
}

// Ping проверяет соединение с Redis
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение с Redis
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// SaveVessel сохраняет живое состояние судна и обновляет гео-индекс
func (r *RedisRepository) SaveVessel(ctx context.Context, vessel *models.Vessel) error {
	if err := vessel.Validate(); err != nil {
		return fmt.Errorf("invalid vessel: %w", err)
	}

	data, err := json.Marshal(vessel)
	if err != nil {
		return fmt.Errorf("failed to marshal vessel: %w", err)
	}

	id := vessel.GetID()
	pipe := r.client.Pipeline()
	pipe.Set(ctx, VesselPrefix+id, data, VesselTTL)
	pipe.SAdd(ctx, VesselsIndexKey, id)

	// Судно без координат не индексируется в GEO, но сохраняется
	if vessel.Position != nil {
		pipe.GeoAdd(ctx, VesselsGeoKey, &redis.GeoLocation{
			Name:      id,
			Latitude:  vessel.Position.Latitude,
			Longitude: vessel.Position.Longitude,
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save vessel %s: %w", id, err)
	}
	return nil
}

// GetVessel возвращает судно по идентификатору
func (r *RedisRepository) GetVessel(ctx context.Context, id string) (*models.Vessel, error) {
	data, err := r.client.Get(ctx, VesselPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrVesselNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vessel %s: %w", id, err)
	}

	var vessel models.Vessel
	if err := json.Unmarshal(data, &vessel); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vessel %s: %w", id, err)
	}
	return &vessel, nil
}

// GetAllVessels возвращает все суда из индекса
func (r *RedisRepository) GetAllVessels(ctx context.Context) ([]*models.Vessel, error) {
	ids, err := r.client.SMembers(ctx, VesselsIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read vessels index: %w", err)
	}
	return r.fetchVessels(ctx, ids)
}

// GetVesselsInRadius возвращает суда в радиусе radiusNM морских миль от центра
func (r *RedisRepository) GetVesselsInRadius(ctx context.Context, center models.GeoPoint, radiusNM float64) ([]*models.Vessel, error) {
	locations, err := r.client.GeoSearchLocation(ctx, VesselsGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Latitude:   center.Latitude,
			Longitude:  center.Longitude,
			Radius:     radiusNM * kmPerNauticalMile,
			RadiusUnit: "km",
		},
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo search failed: %w", err)
	}

	ids := make([]string, 0, len(locations))
	for _, loc := range locations {
		ids = append(ids, loc.Name)
	}
	return r.fetchVessels(ctx, ids)
}

// fetchVessels загружает суда по списку идентификаторов, пропуская истекшие
func (r *RedisRepository) fetchVessels(ctx context.Context, ids []string) ([]*models.Vessel, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = VesselPrefix + id
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vessels: %w", err)
	}

	vessels := make([]*models.Vessel, 0, len(values))
	for i, value := range values {
		str, ok := value.(string)
		if !ok {
			// Ключ истек, но остался в индексе
			continue
		}

		var vessel models.Vessel
		if err := json.Unmarshal([]byte(str), &vessel); err != nil {
			r.logger.WithField("vessel_id", ids[i]).WithError(err).Warn("Failed to unmarshal vessel")
			continue
		}
		vessels = append(vessels, &vessel)
	}
	return vessels, nil
}

// SavePort сохраняет порт с показателями загруженности
func (r *RedisRepository) SavePort(ctx context.Context, port *models.Port) error {
	if err := port.Validate(); err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}

	data, err := json.Marshal(port)
	if err != nil {
		return fmt.Errorf("failed to marshal port: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, PortPrefix+port.Name, data, PortTTL)
	pipe.SAdd(ctx, PortsIndexKey, port.Name)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save port %s: %w", port.Name, err)
	}
	return nil
}

// GetAllPorts возвращает все порты из индекса
func (r *RedisRepository) GetAllPorts(ctx context.Context) ([]*models.Port, error) {
	names, err := r.client.SMembers(ctx, PortsIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ports index: %w", err)
	}
	if len(names) == 0 {
		return nil, nil
	}

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = PortPrefix + name
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ports: %w", err)
	}

	ports := make([]*models.Port, 0, len(values))
	for i, value := range values {
		str, ok := value.(string)
		if !ok {
			continue
		}

		var port models.Port
		if err := json.Unmarshal([]byte(str), &port); err != nil {
			r.logger.WithField("port", names[i]).WithError(err).Warn("Failed to unmarshal port")
			continue
		}
		ports = append(ports, &port)
	}
	return ports, nil
}
