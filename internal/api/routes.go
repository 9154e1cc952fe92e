package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/astrokit/lightcurve-go/internal/config"
	"github.com/astrokit/lightcurve-go/internal/handlers"
	"github.com/astrokit/lightcurve-go/internal/middleware"
)

// SetupRoutes wires the merge engine's endpoints onto the router.
func SetupRoutes(router *gin.Engine, cfg *config.Config, logger *logrus.Logger) {
	h := handlers.NewMergeHandler(cfg, logger)

	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	router.GET("/health", h.Health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/lightcurve/merge", h.MergeLightCurve)
		v1.POST("/upperlimits/merge", h.MergeUpperLimits)
		v1.POST("/bayes/interval", h.BayesInterval)
	}
}
