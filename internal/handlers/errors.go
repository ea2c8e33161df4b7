package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"accountd/internal/service"
	"accountd/internal/validation"
)

// apiResponse is the JSON envelope every endpoint answers with.
type apiResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, apiResponse{Message: message})
}

// respondServiceError maps service-layer failures onto the error taxonomy:
// field-level validation and conflicts come back with details (400),
// credential and token problems with a deliberately generic message (400),
// and everything else as an opaque 500 with the cause logged server-side.
func respondServiceError(w http.ResponseWriter, err error, failMessage string) {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(map[string][]string, len(verrs))
		for _, v := range verrs {
			fields[v.Field] = append(fields[v.Field], v.Message)
		}
		respondJSON(w, http.StatusBadRequest, apiResponse{Message: failMessage, Errors: fields})
		return
	}

	var verr validation.Error
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusBadRequest, apiResponse{
			Message: failMessage,
			Errors:  map[string][]string{verr.Field: {verr.Message}},
		})
		return
	}

	var conflict *service.ConflictError
	if errors.As(err, &conflict) {
		respondJSON(w, http.StatusBadRequest, apiResponse{
			Message: failMessage,
			Errors:  map[string][]string{conflict.Field: {conflict.Error()}},
		})
		return
	}

	if errors.Is(err, service.ErrInvalidCredentials) {
		respondJSON(w, http.StatusBadRequest, apiResponse{
			Message: failMessage,
			Errors:  map[string][]string{"non_field_errors": {service.ErrInvalidCredentials.Error()}},
		})
		return
	}

	if errors.Is(err, service.ErrInvalidToken) {
		respondMessage(w, http.StatusBadRequest, "Invalid reset link")
		return
	}

	log.Printf("%s: %v", failMessage, err)
	respondMessage(w, http.StatusInternalServerError, "An error occurred while processing your request.")
}
