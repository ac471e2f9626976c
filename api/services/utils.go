package services

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/subtrack/family-services/api/middleware"
	"github.com/subtrack/family-services/internal/authn"
	"github.com/subtrack/family-services/internal/family"
	"github.com/subtrack/family-services/models"
)

func WriteResponse(w http.ResponseWriter, statusCode int, response interface{}, location ...string) {

	w.Header().Set("Content-Type", "application/json")

	// We don't want to cache API responses so the client receives most curent data
	w.Header().Set("Cache-Control", "max-age=0")

	// Conditionally set the Location header if provided
	if len(location) > 0 && location[0] != "" {
		w.Header().Set("Location", location[0])
	}

	w.WriteHeader(statusCode)

	if response != nil {
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			return // **Return immediately to avoid multiple WriteHeader calls**
		}
	}
}

// WriteSuccessResponse wraps the payload in the standard envelope.
func WriteSuccessResponse(w http.ResponseWriter, statusCode int, data interface{}, location ...string) {
	WriteResponse(w, statusCode, models.Response{Success: 1, Data: data}, location...)
}

// HandleErrResponse maps domain errors onto HTTP status codes and the
// standard error envelope. Unrecognized errors become a 500 with no detail
// leaked to the client.
func HandleErrResponse(w http.ResponseWriter, r *http.Request, err error) {
	logger := zerolog.Ctx(r.Context())

	var (
		validationErr *family.ValidationError
		permissionErr *family.PermissionError
		authzErr      *family.AuthorizationError
		conflictErr   *family.ConflictError
		notFoundErr   *family.NotFoundError
		invariantErr  *family.InvariantViolation
		mismatchErr   *family.SplitMismatchError
	)

	var statusCode int
	var errorCode string

	switch {
	case errors.As(err, &validationErr):
		statusCode, errorCode = http.StatusBadRequest, family.CodeValidation
	case errors.As(err, &permissionErr):
		statusCode, errorCode = http.StatusForbidden, family.CodePermission
	case errors.As(err, &authzErr):
		statusCode, errorCode = http.StatusForbidden, family.CodeAuthorization
	case errors.As(err, &conflictErr):
		statusCode, errorCode = http.StatusConflict, family.CodeConflict
	case errors.As(err, &notFoundErr):
		statusCode, errorCode = http.StatusNotFound, family.CodeNotFound
	case errors.As(err, &invariantErr):
		statusCode, errorCode = http.StatusConflict, family.CodeInvariant
	case errors.As(err, &mismatchErr):
		statusCode, errorCode = http.StatusUnprocessableEntity, family.CodeSplitMismatch
	default:
		logger.Error().Err(err).Msg("internal error")
		WriteResponse(w, http.StatusInternalServerError, models.Response{
			Success:      0,
			ErrorDetails: "internal server error",
		})
		return
	}

	logger.Debug().Err(err).Str("error_code", errorCode).Msg("request rejected")
	WriteResponse(w, statusCode, models.Response{
		Success:      0,
		ErrorCode:    errorCode,
		ErrorDetails: err.Error(),
	})
}

// requestIdentity extracts the caller's identity from the request claims. The
// bool result is false when the claims are missing or carry no subject, in
// which case a 401 has already been written.
func requestIdentity(w http.ResponseWriter, r *http.Request) (family.Identity, bool) {
	logger := zerolog.Ctx(r.Context())

	claims, ok := r.Context().Value(middleware.ClaimsKey).(authn.Claims)
	if !ok {
		logger.Warn().Msg("Unauthorized request: missing claims")
		WriteResponse(w, http.StatusUnauthorized, nil)
		return family.Identity{}, false
	}

	identity := family.Identity{
		ID:    claims.Subject,
		Name:  claims.DisplayName(),
		Email: claims.NormalizedEmail(),
	}
	if identity.ID == "" {
		identity.ID = claims.Username
	}
	if identity.ID == "" {
		logger.Warn().Msg("Unauthorized request: no subject in claims")
		WriteResponse(w, http.StatusUnauthorized, nil)
		return family.Identity{}, false
	}
	return identity, true
}

// pathUUID parses a uuid path variable, writing a 400 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Str(name, raw).Msg("invalid id in request path")
		WriteResponse(w, http.StatusBadRequest, models.Response{
			Success:      0,
			ErrorCode:    family.CodeValidation,
			ErrorDetails: "invalid " + name,
		})
		return uuid.Nil, false
	}
	return id, true
}
