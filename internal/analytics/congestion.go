package analytics

import (
	"math"
)

// Уровни загруженности порта по шкале 0–10
const (
	LevelLow      = "low"
	LevelModerate = "moderate"
	LevelHigh     = "high"
	LevelCritical = "critical"
)

// Пороги уровней загруженности
const (
	ThresholdModerate = 5.0
	ThresholdHigh     = 7.0
	ThresholdCritical = 9.0
)

// PortStats входные показатели порта для расчета загруженности
type PortStats struct {
	// Занятость причалов, проценты [0, 100]
	BerthOccupancyRate float64
	// Среднее время ожидания, часы
	AvgWaitingHours float64
	// Время нахождения груза в порту, дни
	CargoDwellDays float64
	VesselArrivals int
	VesselDepartures int
}

// CongestionScore взвешенная оценка загруженности порта по шкале 0–10.
// Вес факторов: занятость причалов 40%, время ожидания 30%,
// время нахождения груза 20%, дисбаланс прибытий/отправлений 10%.
func CongestionScore(stats PortStats) float64 {
	score := math.Min(10, stats.BerthOccupancyRate/10) * 0.4
	score += waitScore(stats.AvgWaitingHours) * 0.3
	score += dwellScore(stats.CargoDwellDays) * 0.2
	score += imbalanceScore(stats.VesselArrivals, stats.VesselDepartures) * 0.1

	return math.Round(math.Min(10, math.Max(0, score))*10) / 10
}

// waitScore кусочно-линейная нормализация времени ожидания:
// 0–2 часа → 0–3 балла, 2–8 часов → 3–7 баллов, свыше 8 часов → 7–10
func waitScore(hours float64) float64 {
	switch {
	case hours <= 2:
		return hours / 2 * 3
	case hours <= 8:
		return 3 + (hours-2)/6*4
	default:
		return 7 + math.Min(3, (hours-8)/4*3)
	}
}

// dwellScore нормализация времени нахождения груза:
// 0–3 дня → 0–2 балла, 3–7 дней → 2–6 баллов, свыше 7 дней → 6–10
func dwellScore(days float64) float64 {
	switch {
	case days <= 3:
		return days / 3 * 2
	case days <= 7:
		return 2 + (days-3)/4*4
	default:
		return 6 + math.Min(4, (days-7)/3*4)
	}
}

// imbalanceScore оценка дисбаланса трафика по относительной разнице
// прибытий и отправлений
func imbalanceScore(arrivals, departures int) float64 {
	if arrivals <= 0 {
		return 0
	}
	imbalance := math.Abs(float64(arrivals-departures)) / float64(arrivals)
	return math.Min(10, imbalance*20)
}

// CongestionLevel текстовый уровень загруженности для оценки
func CongestionLevel(score float64) string {
	switch {
	case score >= ThresholdCritical:
		return LevelCritical
	case score >= ThresholdHigh:
		return LevelHigh
	case score >= ThresholdModerate:
		return LevelModerate
	default:
		return LevelLow
	}
}

// WaitingTimeFromOccupancy аппроксимация среднего времени ожидания по
// занятости причалов (очередь M/M/1 при среднем времени обслуживания
// 24 часа). Занятость выше 95% дает фиксированную верхнюю оценку.
func WaitingTimeFromOccupancy(occupancyRate float64) float64 {
	const serviceHours = 24.0

	rho := math.Min(0.95, occupancyRate/100)
	if rho >= 0.95 {
		return serviceHours * 10
	}
	return math.Max(0.5, serviceHours*rho/(1-rho))
}
