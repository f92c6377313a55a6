package handler

import (
	"encoding/json"
	"errors"
	"github.com/rookgm/reviewmart/internal/logger"
	"github.com/rookgm/reviewmart/internal/models"
	"go.uber.org/zap"
	"net/http"
	"strconv"
)

// response is envelope of every JSON answer
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type pageResponse struct {
	Items   any `json:"items"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

func writeJSON(w http.ResponseWriter, status int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Log.Debug("write response", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, response{Success: true, Data: data})
}

// writeError answers with status of error kind. Messages of non public kinds
// are replaced with the generic one.
func writeError(w http.ResponseWriter, err error) {
	kind := models.KindOf(err)
	msg := models.GenericMessage

	var appErr *models.Error
	if errors.As(err, &appErr) && kind.Public() {
		msg = appErr.Message
	}

	writeJSON(w, kind.HTTPStatus(), response{Message: msg})
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, response{Message: msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.ValidationError("Invalid request body")
	}
	return nil
}

// parsePage reads page and per_page query values, bad values fall back to defaults
func parsePage(r *http.Request) models.Page {
	page := models.Page{}
	page.Number, _ = strconv.Atoi(r.URL.Query().Get("page"))
	page.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	return page.Normalize()
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, models.ValidationError("Invalid id")
	}
	return id, nil
}
