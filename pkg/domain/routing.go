package domain

import (
	"fmt"
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/apperror"
)

// RoutingKey уникальный ключ записи таблицы маршрутизации
type RoutingKey struct {
	FromNodeID        string
	DestinationNodeID string
	NextHopNodeID     string
}

// String возвращает строковое представление ключа
func (k RoutingKey) String() string {
	return fmt.Sprintf("%s->%s via %s", k.FromNodeID, k.DestinationNodeID, k.NextHopNodeID)
}

// RoutingEntry одна строка DV-таблицы маршрутизации
type RoutingEntry struct {
	FromNodeID        string    `json:"from_node_id"`
	DestinationNodeID string    `json:"destination_node_id"`
	NextHopNodeID     string    `json:"next_hop_node_id"`
	Cost              float64   `json:"cost"`
	LastUpdated       time.Time `json:"last_updated"`
}

// Key возвращает уникальный ключ записи
func (e *RoutingEntry) Key() RoutingKey {
	return RoutingKey{
		FromNodeID:        e.FromNodeID,
		DestinationNodeID: e.DestinationNodeID,
		NextHopNodeID:     e.NextHopNodeID,
	}
}

// IsSelfRoute проверяет, является ли запись маршрутом узла к самому себе
func (e *RoutingEntry) IsSelfRoute() bool {
	return e.FromNodeID == e.DestinationNodeID && e.FromNodeID == e.NextHopNodeID
}

// Validate проверяет обязательные поля и инварианты записи
func (e *RoutingEntry) Validate() *apperror.Error {
	if e.FromNodeID == "" {
		return apperror.NewWithField(apperror.CodeBadRequest, "from_node_id is required", "from_node_id")
	}
	if e.DestinationNodeID == "" {
		return apperror.NewWithField(apperror.CodeBadRequest, "destination_node_id is required", "destination_node_id")
	}
	if e.NextHopNodeID == "" {
		return apperror.NewWithField(apperror.CodeBadRequest, "next_hop_node_id is required", "next_hop_node_id")
	}
	if e.Cost < 0 {
		return apperror.NewWithField(apperror.CodeBadRequest, "cost must be non-negative", "cost")
	}
	if e.Cost >= Infinity {
		return apperror.NewWithField(apperror.CodeBadRequest, "cost must be finite", "cost")
	}
	if e.NextHopNodeID == e.FromNodeID && !e.IsSelfRoute() {
		return apperror.NewWithField(apperror.CodeBadRequest, "next hop cannot point back to the origin", "next_hop_node_id")
	}
	return nil
}

// Clone создаёт копию записи
func (e *RoutingEntry) Clone() *RoutingEntry {
	clone := *e
	return &clone
}

// RoutingFilter фильтр выборки записей; nil-поля не ограничивают выборку
type RoutingFilter struct {
	FromNodeID        *string
	DestinationNodeID *string
	NextHopNodeID     *string
}

// Matches проверяет запись на соответствие фильтру
func (f *RoutingFilter) Matches(e *RoutingEntry) bool {
	if f == nil {
		return true
	}
	if f.FromNodeID != nil && e.FromNodeID != *f.FromNodeID {
		return false
	}
	if f.DestinationNodeID != nil && e.DestinationNodeID != *f.DestinationNodeID {
		return false
	}
	if f.NextHopNodeID != nil && e.NextHopNodeID != *f.NextHopNodeID {
		return false
	}
	return true
}

// HopProbability один вариант следующего шага с вероятностью выбора
type HopProbability struct {
	NextHop     string  `json:"next_hop"`
	Probability float64 `json:"prob"`
}

// RoutingTable стохастическая таблица маршрутизации узла:
// destination -> варианты следующего шага с нормированными вероятностями
type RoutingTable map[string][]HopProbability
