package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"ecoquest-service/internal/domain"
)

type envelope struct {
	Success   bool              `json:"success"`
	Data      any               `json:"data,omitempty"`
	Message   string            `json:"message,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
	Missing   []string          `json:"missing,omitempty"`
	AttemptID string            `json:"attemptId,omitempty"`
}

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Message: message})
}

// decode reads a JSON body into dst and runs struct validation on it.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &domain.ValidationError{Message: "invalid JSON body"}
	}
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return &domain.ValidationError{Message: "invalid request"}
		}
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		return &domain.ValidationError{Message: "validation failed", Fields: fields}
	}
	return nil
}

// handleServiceError maps the domain error taxonomy to status codes and the error envelope.
func handleServiceError(w http.ResponseWriter, err error) {
	var (
		ve *domain.ValidationError
		nf *domain.NotFoundError
		is *domain.InvalidStateError
		ce *domain.ConflictError
		ae *domain.AuthorizationError
		rn *domain.RequirementsNotMetError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, envelope{Message: ve.Error(), Errors: ve.Fields})
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Error())
	case errors.As(err, &is):
		writeError(w, http.StatusBadRequest, is.Error())
	case errors.As(err, &ce):
		writeJSON(w, http.StatusBadRequest, envelope{Message: ce.Error(), AttemptID: ce.ExistingAttemptID})
	case errors.As(err, &ae):
		writeError(w, http.StatusForbidden, ae.Error())
	case errors.As(err, &rn):
		writeJSON(w, http.StatusBadRequest, envelope{Message: rn.Error(), Missing: rn.Missing})
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "an unexpected error occurred")
	}
}
