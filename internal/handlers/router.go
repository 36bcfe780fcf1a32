package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/vvandenschrieck/tlca-backend/internal/config"
	"github.com/vvandenschrieck/tlca-backend/internal/models"
	"github.com/vvandenschrieck/tlca-backend/internal/repositories"
	"github.com/vvandenschrieck/tlca-backend/internal/services"
	"github.com/vvandenschrieck/tlca-backend/internal/utils"
	"github.com/vvandenschrieck/tlca-backend/internal/validator"
)

type HandlerManager struct {
	registrationHandler *RegistrationHandler
	groupHandler        *GroupHandler
	exportHandler       *ExportHandler
	userHandler         *UserHandler
	authMiddleware      *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		registrationHandler: NewRegistrationHandler(serviceManager.Registration(), validator, logger),
		groupHandler:        NewGroupHandler(serviceManager.Group(), validator, logger),
		exportHandler:       NewExportHandler(serviceManager.Export(), logger),
		userHandler:         NewUserHandler(userRepo, logger),
		authMiddleware:      authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Registration routes. Authorization is identity-based, not
		// role-based: coordinator and teacher checks run against the course
		// snapshot inside the services, so no route-level role gate here.
		registrations := v1.Group("/registrations")
		{
			registrations.GET("", hm.registrationHandler.ListRegistrations)

			// Roster export - coordinator check in the service
			registrations.GET("/export", hm.exportHandler.ExportRoster)

			// Invitation acceptance - the invitee acts on their own registration
			registrations.POST("/:id/accept-invitation", hm.registrationHandler.AcceptInvitation)

			// Invitation request acceptance - coordinator check in the service
			registrations.POST("/:id/accept-invitation-request", hm.registrationHandler.AcceptInvitationRequest)

			// Group management - coordinator check in the service
			registrations.PUT("/:id/group", hm.groupHandler.UpdateGroup)
			registrations.DELETE("/:id/group/:type", hm.groupHandler.RemoveGroup)
		}

		// Course-scoped registration routes
		courses := v1.Group("/courses")
		{
			courses.POST("/:code/register", hm.registrationHandler.Register)
			courses.POST("/:code/request-invitation", hm.registrationHandler.RequestInvitation)
			courses.POST("/:code/invitations", hm.registrationHandler.SendInvitation)
		}

		// User routes (invitation pickers) - staff only
		users := v1.Group("/users")
		users.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleManager))
		{
			users.GET("", hm.userHandler.ListUsers)
			users.GET("/:id", hm.userHandler.GetUser)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "registration-service",
		})
	})
}
