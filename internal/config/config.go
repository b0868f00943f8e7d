package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит конфигурацию приложения
type Config struct {
	Environment string
	Server      ServerConfig
	Redis       RedisConfig
	MySQL       MySQLConfig
	MQTT        MQTTConfig
	AIS         AISConfig
	Voyage      VoyageConfig
	Retention   RetentionConfig
	Monitoring  MonitoringConfig
}

// ServerConfig конфигурация HTTP сервера
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// RedisConfig конфигурация Redis (живое состояние судов и портов)
type RedisConfig struct {
	URL          string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// MySQLConfig конфигурация MySQL (история позиций и рейсов)
type MySQLConfig struct {
	DSN          string
	MaxIdleConns int
	MaxOpenConns int
}

// MQTTConfig конфигурация MQTT фида AIS сообщений
type MQTTConfig struct {
	URL          string
	ClientID     string
	Username     string
	Password     string
	CleanSession bool
	Topic        string
}

// AISConfig конфигурация опроса внешнего AIS провайдера
type AISConfig struct {
	Endpoint     string
	APIKey       string
	PollInterval time.Duration
	FetchLimit   int
}

// VoyageConfig пороги движка ассоциации рейсов и реконструкции маршрутов
type VoyageConfig struct {
	// Разрыв между сэмплами, после которого открытый рейс закрывается
	InactivityThreshold time.Duration
	// Длительность стоянки (скорость ниже SpeedEpsilonKnots), после которой
	// рейс считается прибывшим
	ArrivalThreshold time.Duration
	// Скорость ниже этого значения считается стоянкой
	SpeedEpsilonKnots float64
	// Разрыв между сэмплами, начиная с которого маршрут дополняется
	// интерполированными точками
	InterpolationThreshold time.Duration
}

// RetentionConfig политика хранения исторических данных
type RetentionConfig struct {
	PositionRetention time.Duration
	AuditRetention    time.Duration
	CleanupInterval   time.Duration
}

// MonitoringConfig конфигурация мониторинга
type MonitoringConfig struct {
	MetricsEnabled bool
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Address:      getEnv("SERVER_ADDRESS", ":8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", "redis://localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getInt("REDIS_DB", 0),
			PoolSize:     getInt("REDIS_POOL_SIZE", 50),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		MySQL: MySQLConfig{
			DSN:          getEnv("MYSQL_DSN", ""),
			MaxIdleConns: getInt("MYSQL_MAX_IDLE_CONNS", 10),
			MaxOpenConns: getInt("MYSQL_MAX_OPEN_CONNS", 50),
		},
		MQTT: MQTTConfig{
			URL:          getEnv("MQTT_URL", ""),
			ClientID:     getEnv("MQTT_CLIENT_ID", "maritime-api"),
			Username:     getEnv("MQTT_USERNAME", ""),
			Password:     getEnv("MQTT_PASSWORD", ""),
			CleanSession: getBool("MQTT_CLEAN_SESSION", false),
			Topic:        getEnv("MQTT_TOPIC", "ais/positions/#"),
		},
		AIS: AISConfig{
			Endpoint:     getEnv("AIS_ENDPOINT", ""),
			APIKey:       getEnv("AIS_API_KEY", ""),
			PollInterval: getDuration("AIS_POLL_INTERVAL", 5*time.Minute),
			FetchLimit:   getInt("AIS_FETCH_LIMIT", 100),
		},
		Voyage: VoyageConfig{
			InactivityThreshold:    getDuration("VOYAGE_INACTIVITY_THRESHOLD", 30*time.Minute),
			ArrivalThreshold:       getDuration("VOYAGE_ARRIVAL_THRESHOLD", 30*time.Minute),
			SpeedEpsilonKnots:      getFloat("VOYAGE_SPEED_EPSILON_KNOTS", 0.5),
			InterpolationThreshold: getDuration("POSITION_INTERPOLATION_THRESHOLD", 30*time.Minute),
		},
		Retention: RetentionConfig{
			PositionRetention: getDuration("POSITION_RETENTION", 365*24*time.Hour),
			AuditRetention:    getDuration("AUDIT_RETENTION", 7*365*24*time.Hour),
			CleanupInterval:   getDuration("RETENTION_CLEANUP_INTERVAL", 24*time.Hour),
		},
		Monitoring: MonitoringConfig{
			MetricsEnabled: getBool("METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("SERVER_ADDRESS is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Voyage.InactivityThreshold <= 0 {
		return fmt.Errorf("VOYAGE_INACTIVITY_THRESHOLD must be positive")
	}

	if c.Voyage.ArrivalThreshold <= 0 {
		return fmt.Errorf("VOYAGE_ARRIVAL_THRESHOLD must be positive")
	}

	if c.Voyage.SpeedEpsilonKnots < 0 {
		return fmt.Errorf("VOYAGE_SPEED_EPSILON_KNOTS must not be negative")
	}

	if c.Voyage.InterpolationThreshold <= 0 {
		return fmt.Errorf("POSITION_INTERPOLATION_THRESHOLD must be positive")
	}

	if c.AIS.PollInterval <= 0 {
		return fmt.Errorf("AIS_POLL_INTERVAL must be positive")
	}

	if c.AIS.FetchLimit <= 0 {
		return fmt.Errorf("AIS_FETCH_LIMIT must be positive")
	}

	return nil
}

// Helper функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// LogLevel возвращает уровень логирования
func LogLevel() string {
	return getEnv("LOG_LEVEL", "info")
}

// LogFormat возвращает формат логирования
func LogFormat() string {
	return getEnv("LOG_FORMAT", "json")
}
