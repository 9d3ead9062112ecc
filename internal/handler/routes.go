package handler

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the admin and participant APIs.
func RegisterRoutes(r gin.IRouter, admin *AdminHandler, participant *PollHandler) {
	adminAPI := r.Group("/api/admin")
	{
		adminAPI.GET("/active-poll", admin.ActivePoll)
		adminAPI.POST("/polls", admin.Create)
		adminAPI.GET("/polls", admin.List)
		adminAPI.GET("/polls/:id", admin.Get)
		adminAPI.PUT("/polls/:id", admin.Update)
		adminAPI.POST("/polls/:id/start", admin.Start)
		adminAPI.POST("/polls/:id/end", admin.End)
		adminAPI.POST("/polls/:id/rerun", admin.Rerun)
		adminAPI.GET("/polls/:id/results", admin.Results)
		adminAPI.DELETE("/polls/:id", admin.Delete)
	}

	pollAPI := r.Group("/api/poll")
	{
		pollAPI.GET("/:id", participant.Status)
		pollAPI.POST("/:id/respond", participant.Respond)
		pollAPI.GET("/:id/results", participant.Results)
	}
}
