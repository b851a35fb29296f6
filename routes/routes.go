package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/comuni-server/controllers"
	"github.com/vnkhanh/comuni-server/middleware"
	"github.com/vnkhanh/comuni-server/services"
)

type Options struct {
	JWTSecret      string
	RequestTimeout time.Duration
	// Limiter guards the endpoints that create rows. Nil disables it.
	Limiter *middleware.RateLimiter
}

func SetupRoutes(r *gin.Engine, h *controllers.Handler, svc *services.Services, opts Options) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/health", h.HealthCheck)

	limit := func(c *gin.Context) { c.Next() }
	if opts.Limiter != nil {
		limit = middleware.RateLimit(opts.Limiter)
	}

	api := r.Group("/api")
	api.Use(middleware.AuthJWT(opts.JWTSecret, svc.Profiles), middleware.Timezone())
	if opts.RequestTimeout > 0 {
		api.Use(middleware.Timeout(opts.RequestTimeout))
	}
	{
		me := api.Group("/me")
		{
			me.GET("", h.Me)
			me.PATCH("", h.UpdateMe)
			me.GET("/selected-group", h.GetSelectedGroup)
			me.PUT("/selected-group", h.SetSelectedGroup)
		}

		groups := api.Group("/groups")
		{
			groups.GET("", h.ListGroups)
			groups.POST("", limit, h.CreateGroup)
			groups.GET("/mine", h.ListMyGroups)
			groups.GET("/pending", h.ListPendingGroups)
			groups.GET("/:id", h.GetGroup)
			groups.DELETE("/:id", h.DeleteGroup)
			groups.POST("/:id/join", limit, h.RequestJoin)
			groups.POST("/:id/approve", h.ApproveGroup)
			groups.POST("/:id/reject", h.RejectGroup)
			groups.POST("/:id/cover", middleware.RequireGroupAdmin(svc.Roles), h.UploadGroupCover)
			groups.GET("/:id/events", h.ListGroupEvents)
		}

		joins := api.Group("/join-requests")
		{
			joins.GET("", h.ListJoinRequests)
			joins.POST("/:id/approve", h.ApproveJoinRequest)
			joins.POST("/:id/reject", h.RejectJoinRequest)
		}

		events := api.Group("/events")
		{
			events.POST("", limit, h.CreateEvent)
			events.GET("/pending", h.ListPendingEvents)
			events.GET("/:id", h.GetEvent)
			events.GET("/:id/admin", h.IsEventAdmin)
			events.POST("/:id/approve", h.ApproveEvent)
			events.POST("/:id/reject", h.RejectEvent)

			events.GET("/:id/attendance", h.ListAttendance)
			events.GET("/:id/attendance/me", h.MyAttendance)
			events.POST("/:id/attendance", limit, h.RequestAttendance)
			events.POST("/:id/attendance/:userId/approve", h.ApproveAttendance)
			events.POST("/:id/attendance/:userId/reject", h.RejectAttendance)
		}

		api.GET("/notifications", h.Notifications)
	}
}
