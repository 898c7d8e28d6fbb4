package detector

import "math"

// =============================================================================
// Metric derivation
// =============================================================================
//
// The inference service only counts vehicles; everything the control loop
// consumes is derived here from the ROI geometry:
//
//	density  = occupied area / road area, one vehicle ~ 5 m²
//	queue    = total·5.0 / lanes, lane ~ 3.5 m of road width
//	pressure = 0.6·min(queue/roadLength, 1) + 0.4·density
//
// Density and pressure are capped at 1 so a miscalibrated ROI cannot push
// them out of the domain the allocator expects.
// =============================================================================

const (
	avgVehicleAreaM2 = 5.0
	laneWidthM       = 3.5
)

// deriveMeasurement считает метрики направления по числу машин и геометрии зоны
func deriveMeasurement(counts map[string]int, roi *CameraROI) *Measurement {
	m := &Measurement{VehicleCounts: counts}
	total := float64(m.Total())

	roadArea := roi.RoadLengthM * roi.RoadWidthM
	if roadArea > 0 {
		m.Density = math.Min(total*avgVehicleAreaM2/roadArea, 1)
	}

	lanes := roi.RoadWidthM / laneWidthM
	if lanes > 0 {
		m.QueueLengthM = total * avgVehicleAreaM2 / lanes
	}

	saturation := math.Min(m.QueueLengthM/roi.RoadLengthM, 1)
	m.Pressure = math.Min(0.6*saturation+0.4*m.Density, 1)

	return m
}
