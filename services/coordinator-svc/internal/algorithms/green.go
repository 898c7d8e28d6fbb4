package algorithms

import "github.com/Ashtsssssh/DiMITO/pkg/domain"

// =============================================================================
// Green-Time Allocator
// =============================================================================
//
// Partitions a fixed signal cycle across the outgoing approaches of one
// intersection, proportionally to a per-edge demand score:
//
//	T = min(now - last_green_ts, maxWait)           // starvation guard
//	D = Wq * queue_length_m + Ww * T + Wp * pressure
//	g = (D / sum(D)) * cycle_time, clamped to [min_green, max_green]
//
// The waiting-time term guarantees that an approach with no observed queue
// still accumulates demand and eventually receives green: without it a single
// busy approach could starve the others indefinitely.
//
// The allocator is deliberately heuristic. Post-clamp the phase times do not
// have to sum to the cycle time; the node scheduler runs phases back-to-back
// regardless, so the cycle merely sets the scale of one rotation.
// =============================================================================

// GreenParams параметры распределения зелёного времени
type GreenParams struct {
	CycleTime      int
	MinGreen       int
	MaxGreen       int
	QueueWeight    float64
	WaitWeight     float64
	PressureWeight float64
	MaxWaitSeconds int64
}

// DefaultGreenParams возвращает параметры по умолчанию
func DefaultGreenParams() GreenParams {
	return GreenParams{
		CycleTime:      100,
		MinGreen:       8,
		MaxGreen:       40,
		QueueWeight:    1.5,
		WaitWeight:     0.8,
		PressureWeight: 4.0,
		MaxWaitSeconds: 60,
	}
}

// EdgeState снимок метрик одного исходящего ребра на момент расчёта
type EdgeState struct {
	EdgeID        string
	TotalVehicles int
	QueueLengthM  float64
	Pressure      float64
	LastGreenTS   int64
}

// AllocateGreen распределяет цикл по исходящим рёбрам пропорционально
// спросу. Пустой вход даёт пустой результат.
func AllocateGreen(states []EdgeState, now int64, p GreenParams) map[string]int {
	result := make(map[string]int, len(states))
	if len(states) == 0 {
		return result
	}

	demands := make([]float64, len(states))
	var total float64
	for i, s := range states {
		wait := now - s.LastGreenTS
		if wait < 0 {
			wait = 0
		}
		if wait > p.MaxWaitSeconds {
			wait = p.MaxWaitSeconds
		}
		d := p.QueueWeight*s.QueueLengthM + p.WaitWeight*float64(wait) + p.PressureWeight*s.Pressure
		demands[i] = d
		total += d
	}

	// Нулевой суммарный спрос: делитель становится единицей, доли
	// остаются нулевыми, и клэмп поднимает каждое ребро до минимума.
	if domain.IsZero(total) {
		total = 1
	}

	for i, s := range states {
		g := int(demands[i] / total * float64(p.CycleTime))
		if g < p.MinGreen {
			g = p.MinGreen
		}
		if g > p.MaxGreen {
			g = p.MaxGreen
		}
		result[s.EdgeID] = g
	}

	return result
}
