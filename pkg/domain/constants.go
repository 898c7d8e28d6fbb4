package domain

import "math"

// Математические константы
const (
	Epsilon  = 1e-9
	Infinity = math.MaxFloat64
)

// Пороговые значения загруженности для анализа заторов
const (
	DefaultCongestionThreshold    = 0.80
	CriticalCongestionThreshold   = 0.95
	HighCongestionThreshold       = 0.90
	MediumCongestionThreshold     = 0.85
	ProbabilityRoundingPlaces     = 4
	ProbabilitySumTolerance       = 1e-3
	AverageVehicleAreaSquareM     = 5.0
	StandardLaneWidthM            = 3.5
)

// FloatEquals сравнивает два float64 с учётом Epsilon
func FloatEquals(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// FloatLess проверяет a < b с учётом Epsilon
func FloatLess(a, b float64) bool {
	return a < b-Epsilon
}

// FloatGreater проверяет a > b с учётом Epsilon
func FloatGreater(a, b float64) bool {
	return a > b+Epsilon
}

// IsZero проверяет, равно ли значение нулю
func IsZero(v float64) bool {
	return math.Abs(v) < Epsilon
}

// RoundTo округляет значение до заданного числа знаков после запятой
func RoundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
