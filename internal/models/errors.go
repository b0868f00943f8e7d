package models

import "errors"

// Ошибки валидации на границе приема данных. Значения отклоняются,
// а не обрезаются до допустимого диапазона.
var (
	// ErrInvalidCoordinate широта или долгота вне допустимого диапазона
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrInvalidMeasurement скорость или курс вне допустимого диапазона
	ErrInvalidMeasurement = errors.New("invalid measurement")

	// ErrInvalidSource неизвестный источник позиции
	ErrInvalidSource = errors.New("invalid position source")
)
