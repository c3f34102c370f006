package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/projecthub/internal/api/response"
	"github.com/Rrens/projecthub/internal/service"
)

var validate = validator.New()

// AccessDeniedMessage is the client-facing text for a non-member request
const AccessDeniedMessage = "Access denied to this project"

// decode reads the JSON body into v and validates it. On failure the
// response has already been written.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.BadRequest(w, "invalid request body")
		return false
	}

	if err := validate.Struct(v); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			fields := make(map[string]string)
			for _, e := range validationErrors {
				field := e.Field()
				switch e.Tag() {
				case "required":
					fields[field] = "field is required"
				case "email":
					fields[field] = "invalid email format"
				case "min":
					fields[field] = "must be at least " + e.Param() + " characters"
				case "max":
					fields[field] = "must be at most " + e.Param() + " characters"
				case "oneof":
					fields[field] = "must be one of: " + e.Param()
				default:
					fields[field] = "validation failed on " + e.Tag()
				}
			}
			response.BadRequest(w, fields)
			return false
		}
		response.BadRequest(w, err.Error())
		return false
	}

	return true
}

// urlUUID parses a uuid route parameter
func urlUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.BadRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// serviceError maps a service error to an HTTP response
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrAccessDenied):
		response.Forbidden(w, AccessDeniedMessage)
	case errors.Is(err, service.ErrAdminRequired), errors.Is(err, service.ErrOwnerRequired), errors.Is(err, service.ErrCannotRemoveOwner):
		response.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(w, "not found")
	case errors.Is(err, service.ErrEmailTaken):
		response.Conflict(w, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidRefreshToken):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, service.ErrMilestoneNotInProject):
		response.BadRequest(w, err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		response.InternalError(w, "internal server error")
	}
}
