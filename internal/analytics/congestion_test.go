package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCongestionScore(t *testing.T) {
	tests := []struct {
		name  string
		stats PortStats
		want  float64
	}{
		{
			name:  "IdlePort",
			stats: PortStats{},
			want:  0.0,
		},
		{
			name: "Saturated",
			stats: PortStats{
				BerthOccupancyRate: 100,
				AvgWaitingHours:    20,
				CargoDwellDays:     12,
				VesselArrivals:     100,
				VesselDepartures:   0,
			},
			want: 10.0,
		},
		{
			name: "ModerateLoad",
			// occupancy 6*0.4=2.4, wait 3*0.3=0.9, dwell 2*0.2=0.4, balance 0
			stats: PortStats{
				BerthOccupancyRate: 60,
				AvgWaitingHours:    2,
				CargoDwellDays:     3,
				VesselArrivals:     100,
				VesselDepartures:   100,
			},
			want: 3.7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CongestionScore(tt.stats), 1e-9)
		})
	}
}

func TestCongestionScore_Bounds(t *testing.T) {
	score := CongestionScore(PortStats{
		BerthOccupancyRate: 500,
		AvgWaitingHours:    1000,
		CargoDwellDays:     100,
		VesselArrivals:     1,
		VesselDepartures:   100,
	})
	assert.LessOrEqual(t, score, 10.0)
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestCongestionLevel(t *testing.T) {
	assert.Equal(t, LevelLow, CongestionLevel(0))
	assert.Equal(t, LevelLow, CongestionLevel(4.9))
	assert.Equal(t, LevelModerate, CongestionLevel(5.0))
	assert.Equal(t, LevelHigh, CongestionLevel(7.5))
	assert.Equal(t, LevelCritical, CongestionLevel(9.0))
}

func TestWaitingTimeFromOccupancy(t *testing.T) {
	// Низкая занятость ограничена снизу получасом
	assert.Equal(t, 0.5, WaitingTimeFromOccupancy(0))

	// rho=0.5 → 24 * 0.5/0.5 = 24 часа
	assert.InDelta(t, 24.0, WaitingTimeFromOccupancy(50), 1e-9)

	// Насыщение дает верхнюю оценку
	assert.Equal(t, 240.0, WaitingTimeFromOccupancy(99))

	// Монотонность по занятости
	assert.Less(t, WaitingTimeFromOccupancy(40), WaitingTimeFromOccupancy(80))
}
