package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/Ashtsssssh/DiMITO/pkg/domain"
)

// Severity степень перегруженности направления
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Hotspot перегруженное направление ребра
type Hotspot struct {
	EdgeID        string   `json:"edge_id"`
	Direction     string   `json:"direction"`
	Utilization   float64  `json:"utilization"`
	QueueLengthM  float64  `json:"queue_length_m"`
	Pressure      float64  `json:"pressure"`
	TotalVehicles int      `json:"total_vehicles"`
	ImpactScore   float64  `json:"impact_score"`
	Severity      Severity `json:"severity"`
}

// Recommendation предложение по разгрузке затора
type Recommendation struct {
	Type                 string  `json:"type"`
	Description          string  `json:"description"`
	EdgeID               string  `json:"edge_id"`
	Direction            string  `json:"direction"`
	EstimatedImprovement float64 `json:"estimated_improvement"`
}

// CongestionReport результат анализа заторов
type CongestionReport struct {
	Threshold       float64           `json:"threshold"`
	Hotspots        []*Hotspot        `json:"hotspots"`
	Recommendations []*Recommendation `json:"recommendations"`
}

// FindCongestion находит перегруженные направления дорожной сети.
// Загруженность направления считается по худшему из двух сигналов:
// давлению детектора и доле дороги, занятой очередью.
func FindCongestion(edges []*domain.Edge, threshold float64, topN int) *CongestionReport {
	if threshold <= 0 {
		threshold = domain.DefaultCongestionThreshold
	}

	totalQueue := 0.0
	for _, edge := range edges {
		totalQueue += edge.OutgoingTraffic.QueueLengthM + edge.IncomingTraffic.QueueLengthM
	}

	var hotspots []*Hotspot
	for _, edge := range edges {
		if !edge.IsActive {
			continue
		}
		for _, direction := range []domain.Direction{domain.DirectionOutgoing, domain.DirectionIncoming} {
			slot := edge.Metrics(direction)

			// Направления без наблюдений пропускаем
			if slot.LastUpdateTS == 0 {
				continue
			}

			utilization := directionUtilization(slot, edge.RoadLengthM)
			if utilization < threshold {
				continue
			}

			impact := 0.0
			if totalQueue > domain.Epsilon {
				impact = slot.QueueLengthM / totalQueue
			}

			hotspots = append(hotspots, &Hotspot{
				EdgeID:        edge.EdgeID,
				Direction:     string(direction),
				Utilization:   utilization,
				QueueLengthM:  slot.QueueLengthM,
				Pressure:      slot.Pressure,
				TotalVehicles: slot.TotalVehicles,
				ImpactScore:   impact,
				Severity:      severityFor(utilization),
			})
		}
	}

	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].Utilization != hotspots[j].Utilization {
			return hotspots[i].Utilization > hotspots[j].Utilization
		}
		return hotspots[i].EdgeID < hotspots[j].EdgeID
	})

	if topN > 0 && topN < len(hotspots) {
		hotspots = hotspots[:topN]
	}

	return &CongestionReport{
		Threshold:       threshold,
		Hotspots:        hotspots,
		Recommendations: buildRecommendations(hotspots, threshold),
	}
}

func directionUtilization(m *domain.TrafficMetrics, roadLengthM float64) float64 {
	queueRatio := 0.0
	if roadLengthM > domain.Epsilon {
		queueRatio = math.Min(m.QueueLengthM/roadLengthM, 1.0)
	}
	return math.Max(m.Pressure, queueRatio)
}

func severityFor(utilization float64) Severity {
	switch {
	case utilization >= domain.CriticalCongestionThreshold:
		return SeverityCritical
	case utilization >= domain.HighCongestionThreshold:
		return SeverityHigh
	case utilization >= domain.MediumCongestionThreshold:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func buildRecommendations(hotspots []*Hotspot, threshold float64) []*Recommendation {
	var recommendations []*Recommendation

	for _, h := range hotspots {
		switch h.Severity {
		case SeverityCritical:
			recommendations = append(recommendations, &Recommendation{
				Type: "extend_green_phase",
				Description: fmt.Sprintf(
					"Направление %s ребра %s заполнено на %.0f%%: увеличьте долю зелёной фазы",
					h.Direction, h.EdgeID, h.Utilization*100),
				EdgeID:               h.EdgeID,
				Direction:            h.Direction,
				EstimatedImprovement: (h.Utilization - threshold) * 100,
			})
		case SeverityHigh:
			recommendations = append(recommendations, &Recommendation{
				Type: "reroute_traffic",
				Description: fmt.Sprintf(
					"Очередь на %s (%s) близка к пределу: перераспределите поток по соседним рёбрам",
					h.EdgeID, h.Direction),
				EdgeID:               h.EdgeID,
				Direction:            h.Direction,
				EstimatedImprovement: (h.Utilization - threshold) * 100,
			})
		}
	}

	return recommendations
}
