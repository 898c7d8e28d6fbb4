package domain

import (
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/apperror"
)

// Direction направление движения относительно хвостового узла ребра
type Direction string

const (
	// DirectionIncoming трафик, въезжающий в хвостовой узел ребра
	DirectionIncoming Direction = "incoming"
	// DirectionOutgoing трафик, покидающий хвостовой узел ребра
	DirectionOutgoing Direction = "outgoing"
)

// Valid проверяет, что направление одно из двух допустимых
func (d Direction) Valid() bool {
	return d == DirectionIncoming || d == DirectionOutgoing
}

// Location географические координаты перекрёстка
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Node представляет перекрёсток с установленным агентом управления
type Node struct {
	NodeID    string    `json:"node_id"`
	Name      string    `json:"name"`
	Location  *Location `json:"location,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate проверяет обязательные поля узла
func (n *Node) Validate() *apperror.Error {
	if n.NodeID == "" {
		return apperror.NewWithField(apperror.CodeBadRequest, "node_id is required", "node_id")
	}
	if n.Name == "" {
		return apperror.NewWithField(apperror.CodeBadRequest, "name is required", "name")
	}
	return nil
}

// Clone создаёт глубокую копию узла
func (n *Node) Clone() *Node {
	clone := *n
	if n.Location != nil {
		loc := *n.Location
		clone.Location = &loc
	}
	return &clone
}

// TrafficMetrics метрики трафика одного направления ребра.
// Временные метки хранятся в секундах эпохи, как их отдаёт детектор.
type TrafficMetrics struct {
	TotalVehicles int     `json:"total_vehicles"`
	QueueLengthM  float64 `json:"queue_length_m"`
	Density       float64 `json:"density"`
	Pressure      float64 `json:"pressure"`
	LastGreenTS   int64   `json:"last_green_ts"`
	LastUpdateTS  int64   `json:"last_update_ts"`
}

// MetricsPatch частичное обновление метрик: nil-поля не трогаются
type MetricsPatch struct {
	TotalVehicles *int     `json:"total_vehicles,omitempty"`
	QueueLengthM  *float64 `json:"queue_length_m,omitempty"`
	Density       *float64 `json:"density,omitempty"`
	Pressure      *float64 `json:"pressure,omitempty"`
	LastGreenTS   *int64   `json:"last_green_ts,omitempty"`
}

// Validate проверяет диапазоны значений патча
func (p *MetricsPatch) Validate() *apperror.Error {
	if p.TotalVehicles != nil && *p.TotalVehicles < 0 {
		return apperror.NewWithField(apperror.CodeBadRequest, "total_vehicles must be non-negative", "total_vehicles")
	}
	if p.QueueLengthM != nil && *p.QueueLengthM < 0 {
		return apperror.NewWithField(apperror.CodeBadRequest, "queue_length_m must be non-negative", "queue_length_m")
	}
	if p.Density != nil && (*p.Density < 0 || *p.Density > 1) {
		return apperror.NewWithField(apperror.CodeBadRequest, "density must be within [0,1]", "density")
	}
	if p.Pressure != nil && (*p.Pressure < 0 || *p.Pressure > 1) {
		return apperror.NewWithField(apperror.CodeBadRequest, "pressure must be within [0,1]", "pressure")
	}
	return nil
}

// Apply накладывает патч на метрики и проставляет last_update_ts.
// Метка времени никогда не уменьшается.
func (m *TrafficMetrics) Apply(p *MetricsPatch, now int64) {
	if p.TotalVehicles != nil {
		m.TotalVehicles = *p.TotalVehicles
	}
	if p.QueueLengthM != nil {
		m.QueueLengthM = *p.QueueLengthM
	}
	if p.Density != nil {
		m.Density = *p.Density
	}
	if p.Pressure != nil {
		m.Pressure = *p.Pressure
	}
	if p.LastGreenTS != nil {
		m.LastGreenTS = *p.LastGreenTS
	}
	if now > m.LastUpdateTS {
		m.LastUpdateTS = now
	}
}

// Edge представляет направленный участок дороги out_node → in_node:
// поток покидает головной узел (out_node) и прибывает в хвостовой
// (in_node). Камера edge-а закреплена за головным узлом и наблюдает
// покидающий его поток; поэтому зелёное время узла N считается по
// рёбрам с out_node_id == N и их слоту outgoing_traffic.
type Edge struct {
	EdgeID          string         `json:"edge_id"`
	Name            string         `json:"name"`
	InNodeID        string         `json:"in_node_id"`
	OutNodeID       string         `json:"out_node_id"`
	CameraID        string         `json:"camera_id"`
	RoadLengthM     float64        `json:"road_length_m"`
	RoadWidthM      float64        `json:"road_width_m"`
	IsActive        bool           `json:"is_active"`
	IncomingTraffic TrafficMetrics `json:"incoming_traffic"`
	OutgoingTraffic TrafficMetrics `json:"outgoing_traffic"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Validate проверяет обязательные поля и инварианты ребра
func (e *Edge) Validate() *apperror.Error {
	if e.EdgeID == "" {
		return apperror.NewWithField(apperror.CodeBadRequest, "edge_id is required", "edge_id")
	}
	if e.Name == "" {
		return apperror.NewWithField(apperror.CodeBadRequest, "name is required", "name")
	}
	if e.InNodeID == "" {
		return apperror.NewWithField(apperror.CodeBadRequest, "in_node_id is required", "in_node_id")
	}
	if e.OutNodeID == "" {
		return apperror.NewWithField(apperror.CodeBadRequest, "out_node_id is required", "out_node_id")
	}
	if e.InNodeID == e.OutNodeID {
		return apperror.NewWithField(apperror.CodeBadRequest, "edge cannot loop onto its own node", "out_node_id")
	}
	if e.CameraID == "" {
		return apperror.NewWithField(apperror.CodeBadRequest, "camera_id is required", "camera_id")
	}
	if e.RoadLengthM <= 0 {
		return apperror.NewWithField(apperror.CodeBadRequest, "road_length_m must be positive", "road_length_m")
	}
	if e.RoadWidthM <= 0 {
		return apperror.NewWithField(apperror.CodeBadRequest, "road_width_m must be positive", "road_width_m")
	}
	return nil
}

// DirectionFor определяет, какой слот метрик пишет данный узел:
// голова ребра пишет outgoing, хвост пишет incoming.
// Возвращает false, если узел не является концом ребра.
func (e *Edge) DirectionFor(nodeID string) (Direction, bool) {
	switch nodeID {
	case e.OutNodeID:
		return DirectionOutgoing, true
	case e.InNodeID:
		return DirectionIncoming, true
	default:
		return "", false
	}
}

// Metrics возвращает указатель на слот метрик указанного направления
func (e *Edge) Metrics(d Direction) *TrafficMetrics {
	if d == DirectionIncoming {
		return &e.IncomingTraffic
	}
	return &e.OutgoingTraffic
}

// Clone создаёт глубокую копию ребра
func (e *Edge) Clone() *Edge {
	clone := *e
	return &clone
}
