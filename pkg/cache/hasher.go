package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/Ashtsssssh/DiMITO/pkg/domain"
)

// BuildRoutingKey строит ключ кэша таблицы маршрутизации узла
func BuildRoutingKey(nodeID string) string {
	return fmt.Sprintf("routes:%s", nodeID)
}

// TableHash вычисляет детерминированный хеш таблицы маршрутизации.
// Агенты сравнивают хеши, чтобы не подменять неизменившуюся таблицу.
func TableHash(table domain.RoutingTable) string {
	if len(table) == 0 {
		return ""
	}

	destinations := make([]string, 0, len(table))
	for dest := range table {
		destinations = append(destinations, dest)
	}
	sort.Strings(destinations)

	var canonical []byte
	for _, dest := range destinations {
		canonical = append(canonical, []byte(fmt.Sprintf("d:%s;", dest))...)
		hops := table[dest]
		// Хопы внутри направления сортируем по идентификатору
		sorted := make([]domain.HopProbability, len(hops))
		copy(sorted, hops)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].NextHop < sorted[j].NextHop
		})
		for _, hop := range sorted {
			canonical = append(canonical, []byte(fmt.Sprintf("h:%s:%.4f;", hop.NextHop, hop.Probability))...)
		}
	}

	hash := sha256.Sum256(canonical)
	return hex.EncodeToString(hash[:16])
}

// TopologyHash вычисляет хеш топологии сети для детекции изменений
func TopologyHash(nodes []*domain.Node, edges []*domain.Edge) string {
	nodeIDs := make([]string, 0, len(nodes))
	active := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		nodeIDs = append(nodeIDs, n.NodeID)
		active[n.NodeID] = n.IsActive
	}
	sort.Strings(nodeIDs)

	type edgeData struct {
		id, in, out string
	}
	sortedEdges := make([]edgeData, 0, len(edges))
	for _, e := range edges {
		sortedEdges = append(sortedEdges, edgeData{e.EdgeID, e.InNodeID, e.OutNodeID})
	}
	sort.Slice(sortedEdges, func(i, j int) bool {
		return sortedEdges[i].id < sortedEdges[j].id
	})

	var canonical []byte
	for _, id := range nodeIDs {
		canonical = append(canonical, []byte(fmt.Sprintf("n:%s:%t;", id, active[id]))...)
	}
	for _, e := range sortedEdges {
		canonical = append(canonical, []byte(fmt.Sprintf("e:%s:%s:%s;", e.id, e.in, e.out))...)
	}

	hash := sha256.Sum256(canonical)
	return hex.EncodeToString(hash[:16])
}

// QuickHash быстрый хеш для произвольных данных
func QuickHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ShortHash короткий хеш (16 символов)
func ShortHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}
