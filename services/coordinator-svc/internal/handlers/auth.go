package handlers

import (
	"net/http"

	"github.com/Ashtsssssh/DiMITO/pkg/domain"
)

// IssueToken проверяет учётные данные оператора и выдаёт Bearer-токен
func (h *Handlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req domain.TokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, expiresIn, err := h.auth.IssueToken(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domain.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
	})
}
