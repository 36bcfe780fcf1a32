package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vvandenschrieck/tlca-backend/internal/services"
	"github.com/vvandenschrieck/tlca-backend/internal/utils"
	"github.com/vvandenschrieck/tlca-backend/internal/validator"
)

type RegistrationHandler struct {
	BaseHandler
	registrationService services.RegistrationService
	validator           *validator.Validator
}

func NewRegistrationHandler(
	registrationService services.RegistrationService,
	validator *validator.Validator,
	logger utils.Logger,
) *RegistrationHandler {
	return &RegistrationHandler{
		BaseHandler:         NewBaseHandler(logger),
		registrationService: registrationService,
		validator:           validator,
	}
}

// ListRegistrations lists registrations visible to the caller
// @Summary List registrations
// @Description Lists registrations scoped by the caller's position: coordinators see the whole course, teachers see their supervised teaching groups plus unassigned registrations, admins may list without a course filter
// @Tags registrations
// @Accept json
// @Produce json
// @Param course query string false "Course code"
// @Param confirmed query bool false "Filter on confirmation state"
// @Param limit query int false "Page size (default: 20, max: 200)"
// @Param offset query int false "Offset"
// @Param sort_by query string false "Sort column (created_at, updated_at, id, date, invitation_date)"
// @Param sort_order query string false "Sort direction (asc, desc)"
// @Success 200 {object} services.RegistrationListResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /registrations [get]
func (h *RegistrationHandler) ListRegistrations(c *gin.Context) {
	actor := h.currentUser(c)
	if actor == nil {
		return
	}

	var req services.ListRegistrationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "", "Invalid query parameters", err.Error())
		return
	}

	h.LogRequest(c, "Listing registrations", "user_id", actor.ID)

	response, err := h.registrationService.List(c.Request.Context(), &req, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Register self-registers the caller on a public course
// @Summary Register for a course
// @Description Creates a confirmed registration for the caller on a published public course
// @Tags registrations
// @Accept json
// @Produce json
// @Param code path string true "Course code"
// @Success 201 {object} services.RegistrationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /courses/{code}/register [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	code := h.parseCodeParam(c)
	if code == "" {
		return
	}

	actor := h.currentUser(c)
	if actor == nil {
		return
	}

	h.LogRequest(c, "Registering for course", "course_code", code, "user_id", actor.ID)

	response, err := h.registrationService.Register(c.Request.Context(), code, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// RequestInvitation asks to join an invite-only course
// @Summary Request an invitation
// @Description Creates a pending invitation request for the caller on an invite-only course
// @Tags registrations
// @Accept json
// @Produce json
// @Param code path string true "Course code"
// @Success 201 {object} services.RegistrationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /courses/{code}/request-invitation [post]
func (h *RegistrationHandler) RequestInvitation(c *gin.Context) {
	code := h.parseCodeParam(c)
	if code == "" {
		return
	}

	actor := h.currentUser(c)
	if actor == nil {
		return
	}

	h.LogRequest(c, "Requesting invitation", "course_code", code, "user_id", actor.ID)

	response, err := h.registrationService.RequestInvitation(c.Request.Context(), code, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// SendInvitation invites a person to a course by email
// @Summary Send an invitation
// @Description Sends an invitation to an email address, binding it to a platform account when one matches. Coordinator only
// @Tags registrations
// @Accept json
// @Produce json
// @Param code path string true "Course code"
// @Param invitation body services.SendInvitationRequest true "Invitee email"
// @Success 201 {object} services.RegistrationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /courses/{code}/invitations [post]
func (h *RegistrationHandler) SendInvitation(c *gin.Context) {
	code := h.parseCodeParam(c)
	if code == "" {
		return
	}

	var req services.SendInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "", "Invalid request payload", err.Error())
		return
	}

	actor := h.currentUser(c)
	if actor == nil {
		return
	}

	h.LogRequest(c, "Sending invitation", "course_code", code, "user_id", actor.ID)

	response, err := h.registrationService.SendInvitation(c.Request.Context(), code, &req, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// AcceptInvitation confirms an invitation addressed to the caller
// @Summary Accept an invitation
// @Description Confirms a sent invitation. The caller must be the invitee; an email-only invitation is bound to the caller's account on acceptance
// @Tags registrations
// @Accept json
// @Produce json
// @Param id path uint true "Registration ID"
// @Success 200 {object} services.RegistrationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /registrations/{id}/accept-invitation [post]
func (h *RegistrationHandler) AcceptInvitation(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	actor := h.currentUser(c)
	if actor == nil {
		return
	}

	h.LogRequest(c, "Accepting invitation", "registration_id", id, "user_id", actor.ID)

	response, err := h.registrationService.AcceptInvitation(c.Request.Context(), id, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// AcceptInvitationRequest confirms a pending invitation request
// @Summary Accept an invitation request
// @Description Confirms an invitation request on an invite-only course. Coordinator only
// @Tags registrations
// @Accept json
// @Produce json
// @Param id path uint true "Registration ID"
// @Success 200 {object} services.RegistrationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /registrations/{id}/accept-invitation-request [post]
func (h *RegistrationHandler) AcceptInvitationRequest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	actor := h.currentUser(c)
	if actor == nil {
		return
	}

	h.LogRequest(c, "Accepting invitation request", "registration_id", id, "user_id", actor.ID)

	response, err := h.registrationService.AcceptInvitationRequest(c.Request.Context(), id, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ===== HELPER METHODS =====

func (h *RegistrationHandler) parseCodeParam(c *gin.Context) string {
	code := strings.TrimSpace(c.Param("code"))
	if code == "" {
		h.respondError(c, http.StatusBadRequest, "", "Invalid course code", nil)
		return ""
	}
	return code
}
