// Package api is the gin HTTP surface of the booking engine.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

func NewRouter(flightHandler *FlightHandler, bookingHandler *BookingHandler, verifier TokenVerifier, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/swagger/*any", gin.WrapH(httpSwagger.WrapHandler))

	flightsGroup := router.Group("/flights")
	bookingsGroup := router.Group("/bookings", RequireAuth(verifier))
	adminGroup := router.Group("/admin", RequireAuth(verifier), RequireAdmin())
	adminFlights := adminGroup.Group("/flights")

	flightHandler.Register(flightsGroup, adminFlights)
	bookingHandler.Register(bookingsGroup, adminGroup)

	return router
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
