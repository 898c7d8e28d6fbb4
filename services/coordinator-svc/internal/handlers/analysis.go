package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Ashtsssssh/DiMITO/pkg/apperror"
	"github.com/Ashtsssssh/DiMITO/pkg/domain"
)

// Congestion возвращает перегруженные участки сети.
// Параметры: threshold — порог загрузки [0..1], top — сколько участков вернуть.
func (h *Handlers) Congestion(w http.ResponseWriter, r *http.Request) {
	threshold := domain.DefaultCongestionThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, apperror.NewWithField(apperror.CodeBadRequest, "threshold must be a number", "threshold"))
			return
		}
		threshold = parsed
	}

	top := 0
	if raw := r.URL.Query().Get("top"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperror.NewWithField(apperror.CodeBadRequest, "top must be an integer", "top"))
			return
		}
		top = parsed
	}

	result, err := h.analysis.Congestion(r.Context(), threshold, top)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Statistics возвращает структурные характеристики дорожного графа
func (h *Handlers) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analysis.Statistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// TrafficReport формирует отчёт о состоянии сети в запрошенном формате
func (h *Handlers) TrafficReport(w http.ResponseWriter, r *http.Request) {
	generated, err := h.report.Generate(r.Context(), r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", generated.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", generated.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write(generated.Data) //nolint:errcheck // клиент мог уйти
}
