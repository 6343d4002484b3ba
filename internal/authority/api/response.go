package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeData writes a success envelope around data.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, authority.Envelope[any]{OK: true, Data: data})
}

// writeFailure writes a failure envelope.
func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, authority.Envelope[any]{OK: false, Message: message})
}

// writeError maps err onto a failure envelope. Domain errors keep their
// message; anything else is logged and answered with a generic 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := authority.StatusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("authority request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
			"request_id", requestID(r),
		)
		writeFailure(w, status, "internal server error")
		return
	}
	writeFailure(w, status, err.Error())
}
