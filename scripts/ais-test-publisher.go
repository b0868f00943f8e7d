package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// TestConfig конфигурация симуляции тестового AIS фида
type TestConfig struct {
	BrokerURL   string
	VesselIDs   []string
	PublishRate time.Duration
	MaxMessages int
	ClientID    string
	RandomSeed  int64
	StartLat    float64
	StartLon    float64
	SpeedKnots  float64
}

// VesselState состояние симулированного судна для реалистичного движения
type VesselState struct {
	VesselID   string
	Latitude   float64
	Longitude  float64
	SpeedKnots float64
	Heading    int
	LastUpdate time.Time
}

// TestPublisher публикует тестовые AIS сообщения позиций
type TestPublisher struct {
	client  mqtt.Client
	config  *TestConfig
	rand    *rand.Rand
	vessels map[string]*VesselState
	stop    chan struct{}
}

func main() {
	var (
		brokerURL = flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
		vessels   = flag.String("vessels", "IMO9395044,IMO9176187,IMO9241061", "Vessel IDs (comma-separated)")
		rate      = flag.Duration("rate", 5*time.Second, "Publish rate per vessel")
		maxMsgs   = flag.Int("max", 0, "Max messages (0 = unlimited)")
		clientID  = flag.String("client", "ais-test-publisher", "MQTT client ID")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		lat       = flag.Float64("lat", 55.676, "Start latitude")
		lon       = flag.Float64("lon", 12.568, "Start longitude")
		speed     = flag.Float64("speed", 14.0, "Vessel speed in knots")
	)
	flag.Parse()

	config := &TestConfig{
		BrokerURL:   *brokerURL,
		VesselIDs:   parseStringSlice(*vessels),
		PublishRate: *rate,
		MaxMessages: *maxMsgs,
		ClientID:    *clientID,
		RandomSeed:  *seed,
		StartLat:    *lat,
		StartLon:    *lon,
		SpeedKnots:  *speed,
	}

	publisher, err := NewTestPublisher(config)
	if err != nil {
		log.Fatalf("Ошибка создания издателя: %v", err)
	}

	fmt.Printf("🚀 Начинаем публикацию тестовых AIS сообщений\n")
	fmt.Printf("📡 Брокер: %s\n", config.BrokerURL)
	fmt.Printf("🚢 Суда: %v\n", config.VesselIDs)
	fmt.Printf("⏱️  Частота: %v на судно\n", config.PublishRate)
	fmt.Printf("🌍 Стартовая позиция: %.4f, %.4f\n", config.StartLat, config.StartLon)
	if config.MaxMessages > 0 {
		fmt.Printf("🔢 Максимум сообщений: %d\n", config.MaxMessages)
	}
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan bool)
	go func() {
		publisher.Start()
		done <- true
	}()

	select {
	case <-sigChan:
		fmt.Println("\n⏹️  Получен сигнал завершения...")
		publisher.Stop()
	case <-done:
		fmt.Println("\n✅ Публикация завершена")
	}
}

// NewTestPublisher создает новый тестовый издатель
func NewTestPublisher(config *TestConfig) (*TestPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.BrokerURL)
	opts.SetClientID(config.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("ошибка подключения к MQTT брокеру: %w", token.Error())
	}

	fmt.Println("✅ Подключен к MQTT брокеру")

	rng := rand.New(rand.NewSource(config.RandomSeed))
	vessels := make(map[string]*VesselState)
	for i, id := range config.VesselIDs {
		vessels[id] = &VesselState{
			VesselID: id,
			// Суда разнесены по ~0.05° чтобы не накладываться
			Latitude:   config.StartLat + float64(i)*0.05,
			Longitude:  config.StartLon + float64(i)*0.05,
			SpeedKnots: config.SpeedKnots,
			Heading:    rng.Intn(360),
			LastUpdate: time.Now(),
		}
	}

	return &TestPublisher{
		client:  client,
		config:  config,
		rand:    rng,
		vessels: vessels,
		stop:    make(chan struct{}),
	}, nil
}

// Start публикует сообщения до остановки или достижения лимита
func (p *TestPublisher) Start() {
	ticker := time.NewTicker(p.config.PublishRate)
	defer ticker.Stop()

	published := 0
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			for _, state := range p.vessels {
				p.advance(state)
				if err := p.publish(state); err != nil {
					log.Printf("Ошибка публикации для %s: %v", state.VesselID, err)
					continue
				}
				published++
				if p.config.MaxMessages > 0 && published >= p.config.MaxMessages {
					fmt.Printf("📊 Опубликовано %d сообщений\n", published)
					return
				}
			}
		}
	}
}

// Stop останавливает публикацию и отключается от брокера
func (p *TestPublisher) Stop() {
	close(p.stop)
	p.client.Disconnect(250)
}

// advance продвигает судно по текущему курсу с небольшим дрейфом
func (p *TestPublisher) advance(state *VesselState) {
	now := time.Now()
	elapsed := now.Sub(state.LastUpdate).Hours()
	state.LastUpdate = now

	// 1 узел = 1 морская миля/час = 1/60 градуса широты
	distDeg := state.SpeedKnots * elapsed / 60.0
	headingRad := float64(state.Heading) * math.Pi / 180.0

	state.Latitude += distDeg * math.Cos(headingRad)
	state.Longitude += distDeg * math.Sin(headingRad) / math.Cos(state.Latitude*math.Pi/180.0)

	// Случайный дрейф курса ±3°
	state.Heading = ((state.Heading+p.rand.Intn(7)-3)%360 + 360) % 360
}

// publish отправляет JSON сообщение позиции в топик судна
func (p *TestPublisher) publish(state *VesselState) error {
	payload, err := json.Marshal(map[string]interface{}{
		"lat":     state.Latitude,
		"lon":     state.Longitude,
		"sog":     state.SpeedKnots,
		"heading": state.Heading,
		"ts":      state.LastUpdate.UTC().Format(time.RFC3339),
		"source":  "AIS",
	})
	if err != nil {
		return err
	}

	topic := fmt.Sprintf("ais/positions/%s", state.VesselID)
	token := p.client.Publish(topic, 0, false, payload)
	token.Wait()
	return token.Error()
}

func parseStringSlice(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
