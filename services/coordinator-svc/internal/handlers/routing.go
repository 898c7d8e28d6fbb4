package handlers

import (
	"net/http"

	"github.com/Ashtsssssh/DiMITO/pkg/domain"
)

// addRoutingEntryRequest тело запроса на ручную вставку записи DV-таблицы
type addRoutingEntryRequest struct {
	FromNode string  `json:"from_node"`
	DestNode string  `json:"dest_node"`
	NextHop  string  `json:"next_hop"`
	Cost     float64 `json:"cost"`
}

// GetTable возвращает стохастическую таблицу маршрутизации узла
func (h *Handlers) GetTable(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("node_id")

	table, err := h.routing.GetTable(r.Context(), nodeID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, table)
}

// DVUpdate запускает одну итерацию distance-vector пересчёта
func (h *Handlers) DVUpdate(w http.ResponseWriter, r *http.Request) {
	applied, err := h.routing.DVUpdate(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domain.DVUpdateResponse{UpdatesApplied: applied})
}

// AddRoutingEntry вставляет запись DV-таблицы вручную, минуя пересчёт
func (h *Handlers) AddRoutingEntry(w http.ResponseWriter, r *http.Request) {
	var req addRoutingEntryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	entry := &domain.RoutingEntry{
		FromNodeID:        req.FromNode,
		DestinationNodeID: req.DestNode,
		NextHopNodeID:     req.NextHop,
		Cost:              req.Cost,
	}

	if err := h.routing.AddEntry(r.Context(), entry); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}
