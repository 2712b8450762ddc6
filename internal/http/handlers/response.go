package handlers

import (
	"encoding/json"
	"net/http"
)

// apiResponse is the envelope shared with the clinic API so the frontend
// handles both origins uniformly.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Errors  []apiError  `json:"errors,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
}

func respond(w http.ResponseWriter, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, apiResponse{
		Success: false,
		Message: message,
		Errors:  []apiError{{Message: message}},
	})
}
