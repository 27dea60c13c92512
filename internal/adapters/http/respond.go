package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/PsiTechC/apex/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeError maps domain errors onto status codes. Anything not
// recognized is a 500 with a generic body; the detail goes to the log
// only.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case domain.IsValidation(err):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case domain.IsConflict(err):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		log.Error("request failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "server error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Validationf("invalid request body")
	}
	return nil
}
