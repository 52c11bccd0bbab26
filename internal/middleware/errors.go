package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError mirrors the handlers' {error, message} body.
func writeError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": errCode, "message": message})
}
