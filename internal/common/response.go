package common

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type MessageResponse struct {
	Message string `json:"message"`
}

func RespondWithMessage(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, MessageResponse{Message: message})
}

// RespondWithError writes message as the error body. Callers pass only
// client-safe text.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithMessage(w, code, message)
}

// RespondWithServiceError maps err to a status and a client-safe message.
// Server-side failures are logged with their cause.
func RespondWithServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := HTTPStatusFromError(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	RespondWithError(w, status, ClientMessage(err))
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
