package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

var (
	errBadDate        = errors.New("date must be in YYYY-MM-DD format")
	errDateOutOfRange = errors.New("date is outside the accepted window")
)

// writeError writes a uniform JSON error payload.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// pathSegment returns the nth slash-separated segment of a URL path, or ""
// when the path is shorter. pathSegment("/api/search-jobs/abc", 2) == "abc".
func pathSegment(path string, n int) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if n >= len(parts) {
		return ""
	}
	return parts[n]
}
