package algorithms

import (
	"math"
	"sort"

	"github.com/Ashtsssssh/DiMITO/pkg/domain"
)

// =============================================================================
// Stochastic Routing-Table Builder
// =============================================================================
//
// Converts the DV rows of one node into a probabilistic next-hop distribution
// per destination. Vehicles sample from this distribution instead of always
// taking the cheapest hop, which spreads load across near-equivalent routes
// and prevents the classic oscillation where every vehicle piles onto the
// momentarily-cheapest road and immediately makes it the most expensive one.
//
// Per destination group with cost list C:
//
//	1. drop candidates with c > max_cost_ratio * min(C)  (hopeless detours)
//	2. weight survivors by exp(-beta * c)                (softmax over cost)
//	3. normalize to probabilities, round to 4 decimals
//
// Beta controls how sharply traffic prefers cheap routes: beta -> 0 gives a
// uniform split over survivors, large beta degenerates to min-cost routing.
// =============================================================================

// StochasticParams параметры построения таблицы
type StochasticParams struct {
	Beta         float64
	MaxCostRatio float64
}

// DefaultStochasticParams возвращает параметры по умолчанию
func DefaultStochasticParams() StochasticParams {
	return StochasticParams{
		Beta:         0.08,
		MaxCostRatio: 3.3,
	}
}

// BuildRoutingTable строит стохастическую таблицу из DV-записей узла.
// Записи с чужим from_node_id игнорируются; направления без записей
// в таблицу не попадают.
func BuildRoutingTable(fromNodeID string, entries []*domain.RoutingEntry, p StochasticParams) domain.RoutingTable {
	groups := make(map[string][]*domain.RoutingEntry)
	for _, e := range entries {
		if e.FromNodeID != fromNodeID {
			continue
		}
		groups[e.DestinationNodeID] = append(groups[e.DestinationNodeID], e)
	}

	table := make(domain.RoutingTable, len(groups))
	for dest, group := range groups {
		table[dest] = buildGroup(group, p)
	}
	return table
}

func buildGroup(group []*domain.RoutingEntry, p StochasticParams) []domain.HopProbability {
	minCost := group[0].Cost
	for _, e := range group[1:] {
		if e.Cost < minCost {
			minCost = e.Cost
		}
	}

	type weighted struct {
		nextHop string
		weight  float64
	}

	candidates := make([]weighted, 0, len(group))
	var totalWeight float64
	for _, e := range group {
		if e.Cost > p.MaxCostRatio*minCost+domain.Epsilon {
			continue
		}
		w := math.Exp(-p.Beta * e.Cost)
		candidates = append(candidates, weighted{nextHop: e.NextHopNodeID, weight: w})
		totalWeight += w
	}

	hops := make([]domain.HopProbability, 0, len(candidates))
	for _, c := range candidates {
		hops = append(hops, domain.HopProbability{
			NextHop:     c.nextHop,
			Probability: domain.RoundTo(c.weight/totalWeight, domain.ProbabilityRoundingPlaces),
		})
	}

	// Детерминированный порядок: сначала наибольшая вероятность,
	// при равенстве — лексикографически по next_hop
	sort.Slice(hops, func(i, j int) bool {
		if hops[i].Probability != hops[j].Probability {
			return hops[i].Probability > hops[j].Probability
		}
		return hops[i].NextHop < hops[j].NextHop
	})

	return hops
}
