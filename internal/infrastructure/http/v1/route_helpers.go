package v1

import (
	"github.com/gin-gonic/gin"

	"autoerp/internal/core/security"
	"autoerp/internal/infrastructure/http/v1/middleware"
)

// CRUDRouteHandler is implemented by the handlers of plain resources.
type CRUDRouteHandler interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// RegisterCRUDRoutes registers list/get under read and create/update/delete
// under write.
//
//	RegisterCRUDRoutes(api.Group("/clients"), clientHandler, policy, security.CapClientsRead, security.CapClientsWrite)
func RegisterCRUDRoutes(group *gin.RouterGroup, handler CRUDRouteHandler, policy *security.Policy, read, write security.Capability) {
	group.GET("", middleware.RequireCapability(policy, read), handler.List)
	group.POST("", middleware.RequireCapability(policy, write), handler.Create)
	group.GET("/:id", middleware.RequireCapability(policy, read), handler.Get)
	group.PUT("/:id", middleware.RequireCapability(policy, write), handler.Update)
	group.DELETE("/:id", middleware.RequireCapability(policy, write), handler.Delete)
}
