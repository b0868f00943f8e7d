package models

import (
	"fmt"
	"math"

	"github.com/mmcloughlin/geohash"
)

// EarthRadiusNM радиус Земли в морских милях
const EarthRadiusNM = 3440.065

// GeoPoint представляет географическую точку
type GeoPoint struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Validate проверяет корректность координат
func (p GeoPoint) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: latitude %f", ErrInvalidCoordinate, p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: longitude %f", ErrInvalidCoordinate, p.Longitude)
	}
	return nil
}

// DistanceNM вычисляет расстояние до другой точки в морских милях (формула Haversine)
func (p GeoPoint) DistanceNM(other GeoPoint) float64 {
	lat1Rad := p.Latitude * math.Pi / 180
	lat2Rad := other.Latitude * math.Pi / 180
	deltaLat := (other.Latitude - p.Latitude) * math.Pi / 180
	deltaLon := (other.Longitude - p.Longitude) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusNM * c
}

// InterpolateTo возвращает точку на дуге большого круга между p и other.
// fraction=0 соответствует p, fraction=1 соответствует other.
func (p GeoPoint) InterpolateTo(other GeoPoint, fraction float64) GeoPoint {
	lat1 := p.Latitude * math.Pi / 180
	lon1 := p.Longitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	lon2 := other.Longitude * math.Pi / 180

	// Угловое расстояние между точками
	d := 2 * math.Asin(math.Sqrt(
		math.Pow(math.Sin((lat2-lat1)/2), 2)+
			math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin((lon2-lon1)/2), 2)))

	// Совпадающие точки: сферическая интерполяция вырождается
	if d < 1e-12 {
		return p
	}

	a := math.Sin((1-fraction)*d) / math.Sin(d)
	b := math.Sin(fraction*d) / math.Sin(d)

	x := a*math.Cos(lat1)*math.Cos(lon1) + b*math.Cos(lat2)*math.Cos(lon2)
	y := a*math.Cos(lat1)*math.Sin(lon1) + b*math.Cos(lat2)*math.Sin(lon2)
	z := a*math.Sin(lat1) + b*math.Sin(lat2)

	return GeoPoint{
		Latitude:  math.Atan2(z, math.Sqrt(x*x+y*y)) * 180 / math.Pi,
		Longitude: math.Atan2(y, x) * 180 / math.Pi,
	}
}

// Geohash возвращает geohash для точки с заданной точностью
func (p GeoPoint) Geohash(precision int) string {
	return geohash.EncodeWithPrecision(p.Latitude, p.Longitude, uint(precision))
}

// IsInBounds проверяет, находится ли точка в границах
func (p GeoPoint) IsInBounds(sw, ne GeoPoint) bool {
	return p.Latitude >= sw.Latitude && p.Latitude <= ne.Latitude &&
		p.Longitude >= sw.Longitude && p.Longitude <= ne.Longitude
}

// Bounds представляет географические границы (зоны штормов, пиратства и т.п.)
type Bounds struct {
	Southwest GeoPoint `json:"sw"`
	Northeast GeoPoint `json:"ne"`
}

// Validate проверяет корректность границ
func (b Bounds) Validate() error {
	if err := b.Southwest.Validate(); err != nil {
		return fmt.Errorf("southwest: %w", err)
	}
	if err := b.Northeast.Validate(); err != nil {
		return fmt.Errorf("northeast: %w", err)
	}
	if b.Southwest.Latitude > b.Northeast.Latitude {
		return fmt.Errorf("southwest latitude must be less than northeast latitude")
	}
	if b.Southwest.Longitude > b.Northeast.Longitude {
		return fmt.Errorf("southwest longitude must be less than northeast longitude")
	}
	return nil
}

// Contains проверяет, содержится ли точка в границах
func (b Bounds) Contains(point GeoPoint) bool {
	return point.IsInBounds(b.Southwest, b.Northeast)
}

// Center возвращает центральную точку границ
func (b Bounds) Center() GeoPoint {
	return GeoPoint{
		Latitude:  (b.Southwest.Latitude + b.Northeast.Latitude) / 2,
		Longitude: (b.Southwest.Longitude + b.Northeast.Longitude) / 2,
	}
}
