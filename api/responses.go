package api

import (
	"encoding/json"
	"net/http"
)

// envelope is the uniform REST response wrapper from §4.6:
// {success, data?, timestamp, error?}.
type envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Error     string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (f *Facade) writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Timestamp: f.now().Unix()})
}

func (f *Facade) writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, envelope{Success: false, Error: err.Error(), Timestamp: f.now().Unix()})
}

// statusForError maps a client error kind to an HTTP status code for
// the REST binding; anything else is a 502 (upstream-caused failure).
func statusForError(err error) int {
	kind := errKindOf(err)
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "circuit_open":
		return http.StatusServiceUnavailable
	case "rate_limit":
		return http.StatusTooManyRequests
	case "parse", "invalid_response":
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}
