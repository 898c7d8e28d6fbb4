package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/Ashtsssssh/DiMITO/pkg/apperror"
)

// maxImageSize ограничение на размер одного снимка с камеры
const maxImageSize = 16 << 20

// CalculateGreen принимает снимки с камер перекрёстка и возвращает
// распределение зелёного времени. Имя каждой multipart-части — идентификатор
// ребра, содержимое — кадр с камеры этого ребра.
func (h *Handlers) CalculateGreen(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("node_id")

	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, apperror.Wrap(err, apperror.CodeBadRequest, "multipart body is required"))
		return
	}

	images := make(map[string][]byte)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeError(w, apperror.Wrap(err, apperror.CodeBadRequest, "malformed multipart body"))
			return
		}

		name := part.FormName()
		if name == "" {
			part.Close() //nolint:errcheck
			continue
		}

		data, err := io.ReadAll(io.LimitReader(part, maxImageSize+1))
		part.Close() //nolint:errcheck
		if err != nil {
			writeError(w, apperror.Wrap(err, apperror.CodeBadRequest, "failed to read image part"))
			return
		}
		if len(data) > maxImageSize {
			writeError(w, apperror.NewWithField(apperror.CodeBadRequest, "image exceeds size limit", name))
			return
		}
		images[name] = data
	}

	result, err := h.green.CalculateGreen(r.Context(), nodeID, images)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.hub != nil && len(result.GreenTimes) > 0 {
		h.hub.PublishGreen(nodeID, result.GreenTimes)
	}

	writeJSON(w, http.StatusOK, result)
}
