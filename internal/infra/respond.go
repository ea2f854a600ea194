package infra

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ErrorResponse — единый формат ошибок API.
type ErrorResponse struct {
	Detail  string `json:"detail"`
	TraceID string `json:"trace_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("failed to write json response",
			zap.String("path", r.URL.Path),
			zap.String("trace_id", TraceID(r.Context())),
			zap.Error(err))
	}
}

// WriteError пишет {"detail", "trace_id"}. В detail — только безопасный для клиента текст.
func WriteError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	WriteJSON(w, r, status, ErrorResponse{
		Detail:  detail,
		TraceID: TraceID(r.Context()),
	})
}
