package api

import (
	"net/http"
	"strconv"
)

// parseLimit parses and validates a limit parameter with default and max values
func parseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxLimit {
			return parsed
		}
	}
	return defaultLimit
}

// parseHours parses an hours window, clamped to [1, maxHours]
func parseHours(r *http.Request, defaultHours, maxHours int) int {
	h := r.URL.Query().Get("hours")
	if h == "" {
		return defaultHours
	}
	parsed, err := strconv.Atoi(h)
	if err != nil || parsed < 1 {
		return defaultHours
	}
	if parsed > maxHours {
		return maxHours
	}
	return parsed
}

// validSteamID checks that an id is all digits
func validSteamID(id string) bool {
	if id == "" || len(id) > 20 {
		return false
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
