package algorithms

import "github.com/Ashtsssssh/DiMITO/pkg/domain"

// =============================================================================
// Edge Cost Function
// =============================================================================
//
// The cost of a road segment is the distance-vector link weight. It is derived
// from the outgoing-traffic slot of the edge: the camera on an outgoing
// approach observes vehicles leaving the tail node, so that slot reflects the
// load a routed vehicle would actually join.
//
//	cost(e) = Wq * queue_length_m + Wp * pressure * 100 + Wl * road_length_m
//
// The length term acts as a floor: an empty road still costs proportionally
// to its physical length, which keeps the DV table anchored to geography when
// no traffic has been observed yet. Zero-valued metrics contribute nothing.
//
// Smoothing is intentionally absent here. The DV engine applies an EMA when
// merging candidate costs, so the raw cost may be noisy.
// =============================================================================

// CostWeights весовые коэффициенты стоимости ребра
type CostWeights struct {
	Queue    float64
	Pressure float64
	Length   float64
}

// DefaultCostWeights возвращает веса по умолчанию
func DefaultCostWeights() CostWeights {
	return CostWeights{
		Queue:    0.6,
		Pressure: 0.3,
		Length:   0.1,
	}
}

// EdgeCost вычисляет стоимость ребра по его исходящим метрикам
func EdgeCost(e *domain.Edge, w CostWeights) float64 {
	m := e.OutgoingTraffic
	return w.Queue*m.QueueLengthM + w.Pressure*m.Pressure*100 + w.Length*e.RoadLengthM
}
