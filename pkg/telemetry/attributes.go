package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	// Топология
	AttrTopologyNodes = "topology.nodes"
	AttrTopologyEdges = "topology.edges"

	// Distance-vector обмен
	AttrDVTrigger = "dv.trigger"
	AttrDVChanges = "dv.changes"

	// Зелёное время
	AttrGreenNodeID     = "green.node_id"
	AttrGreenApproaches = "green.approaches"
	AttrGreenCycle      = "green.cycle_seconds"

	// Маршрутизация
	AttrRouteNodeID       = "route.node_id"
	AttrRouteDestinations = "route.destinations"
)

// TopologyAttributes возвращает атрибуты размера топологии
func TopologyAttributes(nodes, edges int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrTopologyNodes, nodes),
		attribute.Int(AttrTopologyEdges, edges),
	}
}

// DVAttributes возвращает атрибуты DV-итерации
func DVAttributes(trigger string, changes int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrDVTrigger, trigger),
		attribute.Int(AttrDVChanges, changes),
	}
}

// GreenAttributes возвращает атрибуты расчёта зелёного времени
func GreenAttributes(nodeID string, approaches, cycleSeconds int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrGreenNodeID, nodeID),
		attribute.Int(AttrGreenApproaches, approaches),
		attribute.Int(AttrGreenCycle, cycleSeconds),
	}
}

// RouteAttributes возвращает атрибуты выдачи таблицы маршрутизации
func RouteAttributes(nodeID string, destinations int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrRouteNodeID, nodeID),
		attribute.Int(AttrRouteDestinations, destinations),
	}
}
