package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vvandenschrieck/tlca-backend/internal/models"
	"github.com/vvandenschrieck/tlca-backend/internal/services"
	"github.com/vvandenschrieck/tlca-backend/internal/utils"
	"github.com/vvandenschrieck/tlca-backend/internal/validator"
)

// ErrorResponse is the JSON error envelope returned by all handlers.
type ErrorResponse = models.ErrorResponse

// SuccessResponse is the JSON envelope for operations without a dedicated body.
type SuccessResponse = models.SuccessResponse

// BaseHandler carries the shared handler plumbing: logging, parameter
// parsing and the mapping from service errors to HTTP responses.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetString("request_id"),
	)
	h.logger.Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args,
		"error", err.Error(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetString("request_id"),
	)
	h.logger.Error(msg, args...)
}

// currentUser returns the authenticated user or writes a 401 and returns nil.
func (h *BaseHandler) currentUser(c *gin.Context) *models.User {
	user, err := GetUserFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "", "User not authenticated", nil)
		return nil
	}
	return user
}

// parseIDParam parses a numeric path parameter. On failure it writes a 400
// and returns 0; 0 is never a valid identifier.
func (h *BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	idStr := c.Param(param)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		h.respondError(c, http.StatusBadRequest, "", "Invalid "+param, nil)
		return 0
	}
	return uint(id)
}

func (h *BaseHandler) respondError(c *gin.Context, status int, code, message string, details interface{}) {
	c.JSON(status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		Details:   details,
		Timestamp: time.Now().UTC(),
		Path:      c.Request.URL.Path,
	})
}

// handleServiceError maps the service error taxonomy onto HTTP statuses.
// Guard failures are 400, missing resources 404, duplicates 409,
// permission failures 403 and everything else 500.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		out := make([]models.ValidationErrorResponse, 0, len(validationErrors))
		for _, ve := range validationErrors {
			out = append(out, models.ValidationErrorResponse{
				Field:   ve.Field,
				Message: ve.Message,
				Value:   ve.Value,
				Rule:    ve.Rule,
			})
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:            http.StatusText(http.StatusBadRequest),
			Message:          "Validation failed",
			Timestamp:        time.Now().UTC(),
			Path:             c.Request.URL.Path,
			ValidationErrors: out,
		})
		return
	}

	if permissionErr, ok := services.AsPermissionError(err); ok {
		h.respondError(c, http.StatusForbidden, "", "Access denied", map[string]interface{}{
			"resource": permissionErr.Resource,
			"action":   permissionErr.Action,
			"reason":   permissionErr.Reason,
		})
		return
	}

	if clientErr, ok := services.AsClientError(err); ok {
		status := http.StatusBadRequest
		switch clientErr {
		case services.ErrCourseNotFound, services.ErrRegistrationNotFound:
			status = http.StatusNotFound
		case services.ErrAlreadyRegistered, services.ErrAlreadyRegisteredOrInvited:
			status = http.StatusConflict
		}
		h.respondError(c, status, clientErr.Code, clientErr.Message, nil)
		return
	}

	if internalErr, ok := services.AsInternalError(err); ok {
		h.LogError(c, err, "Service operation failed", "operation", internalErr.Op)
		h.respondError(c, http.StatusInternalServerError, services.InternalErrorCode, "An internal error occurred", nil)
		return
	}

	h.LogError(c, err, "Unexpected service error")
	h.respondError(c, http.StatusInternalServerError, services.InternalErrorCode, "An internal error occurred", nil)
}
