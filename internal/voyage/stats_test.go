package voyage

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marinewatch/maritime-backend/internal/models"
	"github.com/marinewatch/maritime-backend/internal/repository"
)

func TestStatistics_Compute(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	newStats := func(store *repository.MemoryStore) *Statistics {
		return NewStatistics(NewRouteBuilder(store, testVoyageConfig()))
	}

	t.Run("SingleSampleZeroDuration", func(t *testing.T) {
		store := repository.NewMemoryStore()
		voyageID := seedVoyage(t, store, []*models.PositionSample{
			{Position: models.GeoPoint{Latitude: 55.0, Longitude: 12.0}, Timestamp: t0},
		})

		stats, err := newStats(store).Compute(ctx, voyageID)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TotalPositions)
		assert.Equal(t, 0.0, stats.DurationHours)
		assert.Equal(t, 0.0, stats.AverageSpeed)
		assert.Equal(t, 0.0, stats.TotalDistanceNM)
	})

	t.Run("OneNauticalMileDistance", func(t *testing.T) {
		store := repository.NewMemoryStore()
		// Сдвиг по меридиану на 1/R радиан — ровно одна морская миля
		oneNM := 1.0 / models.EarthRadiusNM * 180 / math.Pi
		voyageID := seedVoyage(t, store, []*models.PositionSample{
			{Position: models.GeoPoint{Latitude: 55.0, Longitude: 12.0}, Timestamp: t0},
			{Position: models.GeoPoint{Latitude: 55.0 + oneNM, Longitude: 12.0}, Timestamp: t0.Add(6 * time.Minute)},
		})

		stats, err := newStats(store).Compute(ctx, voyageID)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, stats.TotalDistanceNM, 1e-3)
		assert.InDelta(t, 0.1, stats.DurationHours, 1e-9)
		assert.InDelta(t, 10.0, stats.AverageSpeed, 1e-2)
	})

	t.Run("MaxMinFromStoredSpeeds", func(t *testing.T) {
		store := repository.NewMemoryStore()
		s1, s3 := 8.0, 15.5
		voyageID := seedVoyage(t, store, []*models.PositionSample{
			{Position: models.GeoPoint{Latitude: 55.0, Longitude: 12.0}, Timestamp: t0, SpeedKnots: &s1},
			// Точка без скорости участвует в дистанции, но не в max/min
			{Position: models.GeoPoint{Latitude: 55.1, Longitude: 12.1}, Timestamp: t0.Add(20 * time.Minute)},
			{Position: models.GeoPoint{Latitude: 55.2, Longitude: 12.2}, Timestamp: t0.Add(40 * time.Minute), SpeedKnots: &s3},
		})

		stats, err := newStats(store).Compute(ctx, voyageID)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.TotalPositions)
		assert.Equal(t, 15.5, stats.MaxSpeed)
		assert.Equal(t, 8.0, stats.MinSpeed)
		assert.Greater(t, stats.TotalDistanceNM, 0.0)
	})

	t.Run("InterpolatedPointsExcluded", func(t *testing.T) {
		store := repository.NewMemoryStore()
		// 90-минутный разрыв: маршрут с интерполяцией дал бы 5 точек,
		// статистика видит только 2 реальные
		voyageID := seedVoyage(t, store, []*models.PositionSample{
			{Position: models.GeoPoint{Latitude: 55.0, Longitude: 12.0}, Timestamp: t0},
			{Position: models.GeoPoint{Latitude: 56.0, Longitude: 13.0}, Timestamp: t0.Add(90 * time.Minute)},
		})

		stats, err := newStats(store).Compute(ctx, voyageID)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TotalPositions)
	})

	t.Run("EmptyVoyage", func(t *testing.T) {
		store := repository.NewMemoryStore()
		voyageID := seedVoyage(t, store, nil)

		stats, err := newStats(store).Compute(ctx, voyageID)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.TotalPositions)
		assert.Equal(t, 0.0, stats.TotalDistanceNM)
	})

	t.Run("UnknownVoyage", func(t *testing.T) {
		_, err := newStats(repository.NewMemoryStore()).Compute(ctx, 77)
		assert.ErrorIs(t, err, repository.ErrVoyageNotFound)
	})
}
