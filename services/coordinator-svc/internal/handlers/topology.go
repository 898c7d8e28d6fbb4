package handlers

import (
	"net/http"
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/apperror"
	"github.com/Ashtsssssh/DiMITO/pkg/domain"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

// addNodeRequest тело запроса на регистрацию перекрёстка
type addNodeRequest struct {
	NodeID   string           `json:"node_id"`
	Name     string           `json:"name"`
	Location *domain.Location `json:"location,omitempty"`
	IsActive *bool            `json:"is_active,omitempty"`
}

// addEdgeRequest тело запроса на регистрацию дороги
type addEdgeRequest struct {
	EdgeID      string  `json:"edge_id"`
	Name        string  `json:"name"`
	InNodeID    string  `json:"in_node_id"`
	OutNodeID   string  `json:"out_node_id"`
	CameraID    string  `json:"camera_id"`
	RoadLengthM float64 `json:"road_length_m"`
	RoadWidthM  float64 `json:"road_width_m"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// updateTrafficRequest тело запроса на обновление метрик ребра
type updateTrafficRequest struct {
	Updates *domain.MetricsPatch `json:"updates"`
}

// AddNode регистрирует перекрёсток
func (h *Handlers) AddNode(w http.ResponseWriter, r *http.Request) {
	var req addNodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	node := &domain.Node{
		NodeID:   req.NodeID,
		Name:     req.Name,
		Location: req.Location,
		IsActive: true,
	}
	if req.IsActive != nil {
		node.IsActive = *req.IsActive
	}

	if err := h.topology.AddNode(r.Context(), node); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"node_id": node.NodeID,
		"name":    node.Name,
	})
}

// AddEdge регистрирует дорогу между перекрёстками
func (h *Handlers) AddEdge(w http.ResponseWriter, r *http.Request) {
	var req addEdgeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	edge := &domain.Edge{
		EdgeID:      req.EdgeID,
		Name:        req.Name,
		InNodeID:    req.InNodeID,
		OutNodeID:   req.OutNodeID,
		CameraID:    req.CameraID,
		RoadLengthM: req.RoadLengthM,
		RoadWidthM:  req.RoadWidthM,
		IsActive:    true,
	}
	if req.IsActive != nil {
		edge.IsActive = *req.IsActive
	}

	if err := h.topology.AddEdge(r.Context(), edge); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"edge_id": edge.EdgeID,
		"in":      edge.InNodeID,
		"out":     edge.OutNodeID,
	})
}

// UpdateTraffic принимает замер трафика от узлового агента.
// Направление слота выводится из роли узла относительно ребра.
func (h *Handlers) UpdateTraffic(w http.ResponseWriter, r *http.Request) {
	edgeID := r.PathValue("edge_id")
	nodeID := r.PathValue("node_id")

	var req updateTrafficRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Updates == nil {
		writeError(w, apperror.NewWithField(apperror.CodeBadRequest, "updates object is required", "updates"))
		return
	}

	direction, err := h.topology.UpdateTraffic(r.Context(), edgeID, nodeID, req.Updates, time.Now().Unix())
	if err != nil {
		writeError(w, err)
		return
	}

	if h.hub != nil {
		edge, err := h.topology.GetEdge(r.Context(), edgeID)
		if err != nil {
			logger.Log.Warn("Failed to load edge for live broadcast", "edge_id", edgeID, "error", err)
		} else {
			h.hub.PublishMetrics(edgeID, nodeID, direction, edge.Metrics(direction))
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"edge_id":          edgeID,
		"updated_for_node": nodeID,
	})
}
