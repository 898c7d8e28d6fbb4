package analysis

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
	"gonum.org/v1/gonum/stat"

	"github.com/Ashtsssssh/DiMITO/pkg/domain"
)

// TopologyStatistics сводные характеристики дорожного графа
type TopologyStatistics struct {
	NodeCount       int `json:"node_count"`
	ActiveNodeCount int `json:"active_node_count"`
	EdgeCount       int `json:"edge_count"`
	ActiveEdgeCount int `json:"active_edge_count"`

	AvgOutDegree    float64 `json:"avg_out_degree"`
	MaxOutDegree    int     `json:"max_out_degree"`
	OutDegreeStdDev float64 `json:"out_degree_std_dev"`

	TotalRoadLengthM float64 `json:"total_road_length_m"`
	AvgRoadLengthM   float64 `json:"avg_road_length_m"`
	Density          float64 `json:"density"`

	WeaklyConnectedComponents int  `json:"weakly_connected_components"`
	UnreachablePairs          int  `json:"unreachable_pairs"`
	IsConnected               bool `json:"is_connected"`
}

// CalculateTopologyStatistics строит статистику по графу сети.
// Связность считается по активным рёбрам: выключенный участок дороги
// не соединяет перекрёстки, даже если остаётся в топологии.
func CalculateTopologyStatistics(nodes []*domain.Node, edges []*domain.Edge) *TopologyStatistics {
	stats := &TopologyStatistics{
		NodeCount: len(nodes),
		EdgeCount: len(edges),
	}

	// Стабильная нумерация вершин для gonum
	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if node.IsActive {
			stats.ActiveNodeCount++
		}
		ids = append(ids, node.NodeID)
	}
	sort.Strings(ids)

	index := make(map[string]int64, len(ids))
	directed := simple.NewDirectedGraph()
	undirected := simple.NewUndirectedGraph()
	for i, id := range ids {
		index[id] = int64(i)
		directed.AddNode(simple.Node(i))
		undirected.AddNode(simple.Node(i))
	}

	for _, edge := range edges {
		stats.TotalRoadLengthM += edge.RoadLengthM
		if !edge.IsActive {
			continue
		}
		stats.ActiveEdgeCount++

		from, okFrom := index[edge.OutNodeID]
		to, okTo := index[edge.InNodeID]
		if !okFrom || !okTo {
			continue
		}
		directed.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
		undirected.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
	}

	if stats.EdgeCount > 0 {
		stats.AvgRoadLengthM = stats.TotalRoadLengthM / float64(stats.EdgeCount)
	}

	n := len(ids)
	if n == 0 {
		return stats
	}

	degrees := make([]float64, 0, n)
	for _, id := range index {
		degree := directed.From(id).Len()
		degrees = append(degrees, float64(degree))
		if degree > stats.MaxOutDegree {
			stats.MaxOutDegree = degree
		}
	}
	stats.AvgOutDegree = stat.Mean(degrees, nil)
	if n > 1 {
		stats.OutDegreeStdDev = stat.StdDev(degrees, nil)
		stats.Density = float64(stats.ActiveEdgeCount) / float64(n*(n-1))
	}

	stats.WeaklyConnectedComponents = len(topo.ConnectedComponents(undirected))
	stats.UnreachablePairs = countUnreachablePairs(directed, n)
	stats.IsConnected = stats.WeaklyConnectedComponents <= 1

	return stats
}

// countUnreachablePairs считает упорядоченные пары (u, v), между которыми
// нет направленного пути. Для машин это пункты назначения, до которых
// маршрут физически не существует.
func countUnreachablePairs(g graph.Directed, n int) int {
	unreachable := 0
	var bfs traverse.BreadthFirst

	for i := 0; i < n; i++ {
		reached := 0
		bfs.Walk(g, simple.Node(i), func(graph.Node, int) bool {
			reached++
			return false
		})
		bfs.Reset()

		// Стартовая вершина в пары не входит
		unreachable += (n - 1) - (reached - 1)
	}
	return unreachable
}
