package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vvandenschrieck/tlca-backend/internal/models"
	"github.com/vvandenschrieck/tlca-backend/internal/services"
	"github.com/vvandenschrieck/tlca-backend/internal/utils"
	"github.com/vvandenschrieck/tlca-backend/internal/validator"
)

type GroupHandler struct {
	BaseHandler
	groupService services.GroupService
	validator    *validator.Validator
}

func NewGroupHandler(
	groupService services.GroupService,
	validator *validator.Validator,
	logger utils.Logger,
) *GroupHandler {
	return &GroupHandler{
		BaseHandler:  NewBaseHandler(logger),
		groupService: groupService,
		validator:    validator,
	}
}

// UpdateGroup assigns a registration to a group
// @Summary Assign a group
// @Description Assigns a confirmed registration to a teaching or working group by position. Coordinator only
// @Tags registrations
// @Accept json
// @Produce json
// @Param id path uint true "Registration ID"
// @Param group body services.UpdateGroupRequest true "Group assignment"
// @Success 200 {object} services.RegistrationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /registrations/{id}/group [put]
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "", "Invalid request payload", err.Error())
		return
	}

	actor := h.currentUser(c)
	if actor == nil {
		return
	}

	h.LogRequest(c, "Updating group", "registration_id", id, "group_kind", req.Kind, "user_id", actor.ID)

	response, err := h.groupService.UpdateGroup(c.Request.Context(), id, &req, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// RemoveGroup clears a registration's group assignment
// @Summary Remove a group assignment
// @Description Clears the teaching or working group of a registration. Removing an assignment that is not set is an error. Coordinator only
// @Tags registrations
// @Accept json
// @Produce json
// @Param id path uint true "Registration ID"
// @Param type path string true "Group kind (teaching, working)"
// @Success 200 {object} services.RegistrationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /registrations/{id}/group/{type} [delete]
func (h *GroupHandler) RemoveGroup(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	kind := models.GroupKind(c.Param("type"))
	if kind != models.GroupTeaching && kind != models.GroupWorking {
		h.respondError(c, http.StatusBadRequest, "", "Invalid group type", nil)
		return
	}

	actor := h.currentUser(c)
	if actor == nil {
		return
	}

	h.LogRequest(c, "Removing group", "registration_id", id, "group_kind", kind, "user_id", actor.ID)

	response, err := h.groupService.RemoveGroup(c.Request.Context(), id, kind, actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}
