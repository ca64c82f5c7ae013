package transport

import (
	"errors"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// requireActor builds the acting user from the request context populated by
// the auth middleware. A false return means the response is already written.
func requireActor(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (service.Actor, bool) {
	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		logger.Error("User ID not found in context")
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return service.Actor{}, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		logger.Error("Invalid user ID format", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid user ID")
		return service.Actor{}, false
	}

	role, _ := middleware.GetUserRole(r.Context())
	return service.Actor{ID: userID, Role: role}, true
}

// parseIDParam parses a uuid path parameter and writes a 400 on failure
func parseIDParam(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// respondServiceError maps service and repository errors onto HTTP statuses.
// Unrecognized errors become 500s with a generic message.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, stockErr.Error(), map[string]interface{}{
			"product_id": stockErr.ProductID,
			"product":    stockErr.ProductName,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
		return
	}

	switch {
	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrCategoryNotFound),
		errors.Is(err, repository.ErrShippingZoneNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		middleware.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, repository.ErrUserAlreadyExists),
		errors.Is(err, repository.ErrSKUAlreadyUsed),
		errors.Is(err, repository.ErrCategoryAlreadyExists),
		errors.Is(err, domain.ErrProductInUse):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNoOrderItems),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrDuplicateOrderItem),
		errors.Is(err, domain.ErrInvalidOrderStatus),
		errors.Is(err, domain.ErrOrderNotCancellable),
		errors.Is(err, domain.ErrOrderStatusLocked),
		errors.Is(err, domain.ErrPaymentNotCompleted),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidStock):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrPaymentGateway):
		middleware.RespondWithError(w, http.StatusBadGateway, "payment gateway unavailable")
	default:
		logger.Error(fallback, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}

// decodeAndRespond decodes and validates the request body, writing the error
// response itself when the payload is bad.
func decodeAndRespond(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.Error(err))
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
