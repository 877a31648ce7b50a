package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/starford/munin/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error       string   `json:"error" validate:"required"`
	Suggestions []string `json:"suggestions,omitempty"`
	Lines       []int    `json:"lines,omitempty"`
	Valid       []string `json:"valid,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps the error taxonomy onto HTTP statuses and carries the
// structured payload (suggestions, matching lines, valid values) through to
// the client.
func writeError(w http.ResponseWriter, err error) {
	ae := apperr.As(err)
	if ae == nil {
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	status := http.StatusInternalServerError
	switch ae.Kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindAmbiguous:
		status = http.StatusConflict
	case apperr.KindInvalidEnum, apperr.KindUsage:
		status = http.StatusBadRequest
	case apperr.KindParse:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, errResponse{
		Error:       ae.Error(),
		Suggestions: ae.Suggestions,
		Lines:       ae.Lines,
		Valid:       ae.Valid,
	})
}
