package httpmw

import (
	"encoding/json"
	"net/http"
)

// writeJSONError writes a {"error": code, "message": message} body with
// the given status code.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
