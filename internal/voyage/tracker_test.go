package voyage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marinewatch/maritime-backend/internal/config"
	"github.com/marinewatch/maritime-backend/internal/models"
	"github.com/marinewatch/maritime-backend/internal/repository"
	"github.com/marinewatch/maritime-backend/pkg/utils"
)

func testVoyageConfig() *config.VoyageConfig {
	return &config.VoyageConfig{
		InactivityThreshold:    30 * time.Minute,
		ArrivalThreshold:       30 * time.Minute,
		SpeedEpsilonKnots:      0.5,
		InterpolationThreshold: 30 * time.Minute,
	}
}

func newTestTracker() (*Tracker, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	tracker := NewTracker(store, testVoyageConfig(), utils.NewLogger("error", "text"))
	return tracker, store
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func baseRequest(ts time.Time) RecordRequest {
	return RecordRequest{
		VesselID:   "IMO9395044",
		Latitude:   55.676,
		Longitude:  12.568,
		Timestamp:  ts,
		SpeedKnots: floatPtr(12.5),
		Source:     models.SourceAIS,
	}
}

func TestTracker_Record(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	t.Run("FirstSampleOpensVoyage", func(t *testing.T) {
		tracker, store := newTestTracker()

		result, err := tracker.Record(ctx, baseRequest(t0))
		require.NoError(t, err)
		assert.False(t, result.Duplicate)
		assert.NotZero(t, result.Sample.VoyageID)

		voyage, err := store.GetVoyage(ctx, result.Sample.VoyageID)
		require.NoError(t, err)
		assert.Equal(t, models.VoyageInProgress, voyage.Status)
		assert.Equal(t, t0, voyage.StartedAt)
		assert.Nil(t, voyage.EndedAt)
	})

	t.Run("SubsequentSamplesExtendVoyage", func(t *testing.T) {
		tracker, _ := newTestTracker()

		first, err := tracker.Record(ctx, baseRequest(t0))
		require.NoError(t, err)

		req := baseRequest(t0.Add(10 * time.Minute))
		req.Latitude = 55.7
		second, err := tracker.Record(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, first.Sample.VoyageID, second.Sample.VoyageID)
	})

	t.Run("DuplicateIsIdempotentNoOp", func(t *testing.T) {
		tracker, store := newTestTracker()

		first, err := tracker.Record(ctx, baseRequest(t0))
		require.NoError(t, err)

		second, err := tracker.Record(ctx, baseRequest(t0))
		require.NoError(t, err)
		assert.True(t, second.Duplicate)
		assert.Equal(t, first.Sample.ID, second.Sample.ID)

		samples, err := store.ListByVoyage(ctx, first.Sample.VoyageID)
		require.NoError(t, err)
		assert.Len(t, samples, 1)
	})

	t.Run("SameTimestampDifferentSourceIsNotDuplicate", func(t *testing.T) {
		tracker, store := newTestTracker()

		first, err := tracker.Record(ctx, baseRequest(t0))
		require.NoError(t, err)

		req := baseRequest(t0)
		req.Source = models.SourceGPS
		second, err := tracker.Record(ctx, req)
		require.NoError(t, err)
		assert.False(t, second.Duplicate)

		samples, err := store.ListByVoyage(ctx, first.Sample.VoyageID)
		require.NoError(t, err)
		assert.Len(t, samples, 2)
	})

	t.Run("InvalidLatitudeRejected", func(t *testing.T) {
		tracker, _ := newTestTracker()

		req := baseRequest(t0)
		req.Latitude = 91
		_, err := tracker.Record(ctx, req)
		assert.ErrorIs(t, err, models.ErrInvalidCoordinate)
	})

	t.Run("InvalidLongitudeRejected", func(t *testing.T) {
		tracker, _ := newTestTracker()

		req := baseRequest(t0)
		req.Longitude = 181
		_, err := tracker.Record(ctx, req)
		assert.ErrorIs(t, err, models.ErrInvalidCoordinate)
	})

	t.Run("OutOfRangeSpeedRejected", func(t *testing.T) {
		tracker, _ := newTestTracker()

		req := baseRequest(t0)
		req.SpeedKnots = floatPtr(120)
		_, err := tracker.Record(ctx, req)
		assert.ErrorIs(t, err, models.ErrInvalidMeasurement)
	})

	t.Run("OutOfRangeHeadingRejected", func(t *testing.T) {
		tracker, _ := newTestTracker()

		req := baseRequest(t0)
		req.HeadingDegrees = intPtr(360)
		_, err := tracker.Record(ctx, req)
		assert.ErrorIs(t, err, models.ErrInvalidMeasurement)
	})

	t.Run("InterpolatedSourceRejected", func(t *testing.T) {
		tracker, _ := newTestTracker()

		req := baseRequest(t0)
		req.Source = models.SourceInterpolated
		_, err := tracker.Record(ctx, req)
		assert.ErrorIs(t, err, models.ErrInvalidSource)
	})
}

func TestTracker_AutoClose(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	t.Run("InactivityGapClosesVoyageAndOpensNew", func(t *testing.T) {
		tracker, store := newTestTracker()

		first, err := tracker.Record(ctx, baseRequest(t0))
		require.NoError(t, err)

		second, err := tracker.Record(ctx, baseRequest(t0.Add(40*time.Minute)))
		require.NoError(t, err)
		assert.NotEqual(t, first.Sample.VoyageID, second.Sample.VoyageID)

		closed, err := store.GetVoyage(ctx, first.Sample.VoyageID)
		require.NoError(t, err)
		assert.Equal(t, models.VoyageCompleted, closed.Status)
		require.NotNil(t, closed.EndedAt)
		assert.Equal(t, t0, *closed.EndedAt)

		open, err := store.GetVoyage(ctx, second.Sample.VoyageID)
		require.NoError(t, err)
		assert.Equal(t, models.VoyageInProgress, open.Status)
		assert.Equal(t, t0.Add(40*time.Minute), open.StartedAt)
	})

	t.Run("GapAtThresholdDoesNotClose", func(t *testing.T) {
		tracker, _ := newTestTracker()

		first, err := tracker.Record(ctx, baseRequest(t0))
		require.NoError(t, err)

		second, err := tracker.Record(ctx, baseRequest(t0.Add(30*time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, first.Sample.VoyageID, second.Sample.VoyageID)
	})

	t.Run("ProlongedStopClosesVoyageAsArrived", func(t *testing.T) {
		tracker, store := newTestTracker()

		// Судно движется, затем стоит дольше порога прибытия
		moving := baseRequest(t0)
		first, err := tracker.Record(ctx, moving)
		require.NoError(t, err)

		offsets := []time.Duration{10 * time.Minute, 25 * time.Minute, 45 * time.Minute}
		for i, offset := range offsets {
			req := baseRequest(t0.Add(offset))
			req.SpeedKnots = floatPtr(0.1)
			result, err := tracker.Record(ctx, req)
			require.NoError(t, err)

			// Стоянка непрерывна с t0+10m; порог 30 минут превышен
			// только на последнем сэмпле
			if i < len(offsets)-1 {
				assert.Equal(t, first.Sample.VoyageID, result.Sample.VoyageID, "sample %d", i)
			} else {
				assert.NotEqual(t, first.Sample.VoyageID, result.Sample.VoyageID)
			}
		}

		closed, err := store.GetVoyage(ctx, first.Sample.VoyageID)
		require.NoError(t, err)
		assert.Equal(t, models.VoyageCompleted, closed.Status)
	})

	t.Run("MovingVesselResetsStationaryTimer", func(t *testing.T) {
		tracker, _ := newTestTracker()

		first, err := tracker.Record(ctx, baseRequest(t0))
		require.NoError(t, err)

		// Стоянка 20 минут, затем движение, затем снова стоянка 20 минут:
		// порог прибытия 30 минут не достигается непрерывно
		slow := baseRequest(t0.Add(20 * time.Minute))
		slow.SpeedKnots = floatPtr(0.2)
		_, err = tracker.Record(ctx, slow)
		require.NoError(t, err)

		fast := baseRequest(t0.Add(25 * time.Minute))
		fast.SpeedKnots = floatPtr(8)
		_, err = tracker.Record(ctx, fast)
		require.NoError(t, err)

		slow2 := baseRequest(t0.Add(45 * time.Minute))
		slow2.SpeedKnots = floatPtr(0.2)
		result, err := tracker.Record(ctx, slow2)
		require.NoError(t, err)
		assert.Equal(t, first.Sample.VoyageID, result.Sample.VoyageID)
	})

	t.Run("ClosedVoyageNeverReopens", func(t *testing.T) {
		tracker, store := newTestTracker()

		first, err := tracker.Record(ctx, baseRequest(t0))
		require.NoError(t, err)

		closed, err := tracker.CloseVoyage(ctx, first.Sample.VoyageID)
		require.NoError(t, err)
		assert.Equal(t, models.VoyageCompleted, closed.Status)

		next, err := tracker.Record(ctx, baseRequest(t0.Add(5*time.Minute)))
		require.NoError(t, err)
		assert.NotEqual(t, first.Sample.VoyageID, next.Sample.VoyageID)

		stored, err := store.GetVoyage(ctx, first.Sample.VoyageID)
		require.NoError(t, err)
		assert.Equal(t, models.VoyageCompleted, stored.Status)
	})
}

func TestTracker_CloseVoyage(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	t.Run("EndedAtIsLastSampleTimestamp", func(t *testing.T) {
		tracker, _ := newTestTracker()

		first, err := tracker.Record(ctx, baseRequest(t0))
		require.NoError(t, err)
		_, err = tracker.Record(ctx, baseRequest(t0.Add(15*time.Minute)))
		require.NoError(t, err)

		closed, err := tracker.CloseVoyage(ctx, first.Sample.VoyageID)
		require.NoError(t, err)
		require.NotNil(t, closed.EndedAt)
		assert.Equal(t, t0.Add(15*time.Minute), *closed.EndedAt)
	})

	t.Run("UnknownVoyage", func(t *testing.T) {
		tracker, _ := newTestTracker()

		_, err := tracker.CloseVoyage(ctx, 9999)
		assert.ErrorIs(t, err, repository.ErrVoyageNotFound)
	})

	t.Run("AlreadyCompleted", func(t *testing.T) {
		tracker, _ := newTestTracker()

		first, err := tracker.Record(ctx, baseRequest(t0))
		require.NoError(t, err)

		_, err = tracker.CloseVoyage(ctx, first.Sample.VoyageID)
		require.NoError(t, err)

		_, err = tracker.CloseVoyage(ctx, first.Sample.VoyageID)
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestTracker_Observers(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	tracker, _ := newTestTracker()

	var seen []*models.PositionSample
	tracker.Subscribe(func(sample *models.PositionSample) {
		seen = append(seen, sample)
	})

	_, err := tracker.Record(ctx, baseRequest(t0))
	require.NoError(t, err)

	// Дубликат не должен порождать уведомление
	_, err = tracker.Record(ctx, baseRequest(t0))
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, "IMO9395044", seen[0].VesselID)
}

func TestTracker_ConcurrentRecord(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	t.Run("SameSampleDeliveredConcurrently", func(t *testing.T) {
		tracker, store := newTestTracker()

		const workers = 32
		var wg sync.WaitGroup
		duplicates := make(chan bool, workers)
		errs := make(chan error, workers)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := tracker.Record(ctx, baseRequest(t0))
				if err != nil {
					errs <- err
					return
				}
				duplicates <- result.Duplicate
			}()
		}
		wg.Wait()
		close(duplicates)
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}

		inserted := 0
		for dup := range duplicates {
			if !dup {
				inserted++
			}
		}
		assert.Equal(t, 1, inserted)

		voyages, err := store.ListVoyagesByVessel(ctx, "IMO9395044")
		require.NoError(t, err)
		require.Len(t, voyages, 1)
		assert.Equal(t, models.VoyageInProgress, voyages[0].Status)

		samples, err := store.ListByVoyage(ctx, voyages[0].ID)
		require.NoError(t, err)
		assert.Len(t, samples, 1)
	})

	t.Run("ManyVesselsInParallel", func(t *testing.T) {
		tracker, store := newTestTracker()

		const vessels = 8
		const perVessel = 10
		var wg sync.WaitGroup
		errs := make(chan error, vessels*perVessel)

		for v := 0; v < vessels; v++ {
			wg.Add(1)
			go func(v int) {
				defer wg.Done()
				vesselID := fmt.Sprintf("IMO%07d", 9000000+v)
				for i := 0; i < perVessel; i++ {
					req := baseRequest(t0.Add(time.Duration(i) * time.Minute))
					req.VesselID = vesselID
					if _, err := tracker.Record(ctx, req); err != nil {
						errs <- err
					}
				}
			}(v)
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}

		for v := 0; v < vessels; v++ {
			vesselID := fmt.Sprintf("IMO%07d", 9000000+v)
			voyages, err := store.ListVoyagesByVessel(ctx, vesselID)
			require.NoError(t, err)
			require.Len(t, voyages, 1, vesselID)

			samples, err := store.ListByVoyage(ctx, voyages[0].ID)
			require.NoError(t, err)
			assert.Len(t, samples, perVessel, vesselID)
		}
	})
}
