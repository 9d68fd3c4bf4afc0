package api

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func writeConflict(w http.ResponseWriter, code, details string, conflict IntervalResponse) {
	writeJSON(w, http.StatusConflict, ErrorResponse{
		Error:    code,
		Details:  details,
		Conflict: &conflict,
	})
}
