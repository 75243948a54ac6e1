// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"homeserve/internal/http/handlers"
	"homeserve/internal/http/middleware"
)

func NewRouter(deps ServerDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger), middleware.Logging(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	bookingHandler := handlers.NewBookingHandler(deps.Bookings)
	api.POST("/bookings", bookingHandler.Create)
	api.GET("/bookings/:id", bookingHandler.Get)
	api.POST("/bookings/:id/cancel", bookingHandler.Cancel)

	provider := api.Group("/provider", middleware.RequireRole(middleware.RoleProvider))
	provider.POST("/bookings/:id/accept", bookingHandler.Accept)
	provider.POST("/bookings/:id/reject", bookingHandler.Reject)
	provider.POST("/bookings/:id/complete", bookingHandler.Complete)

	adminHandler := handlers.NewAdminHandler(deps.Matching, deps.Subscriptions)
	admin := api.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
	admin.GET("/candidates", adminHandler.Candidates)
	admin.GET("/bookings/:id/candidates", adminHandler.BookingCandidates)
	admin.POST("/bookings/:id/assign", adminHandler.Assign)
	admin.PUT("/plans/:tier", adminHandler.SetPlan)
	admin.POST("/providers/:id/subscription", adminHandler.Subscription)

	return r
}
