package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richardliu001/docflow-service/internal/config"
	"github.com/richardliu001/docflow-service/internal/metrics"
	"github.com/richardliu001/docflow-service/internal/service"
	"go.uber.org/zap"
)

func NewRouter(docs *service.DocumentService, numbers *service.NumberService, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	metrics.Init()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))
	r.Use(MetricsMiddleware())
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	RegisterHandlers(r, docs, numbers, log)
	return r
}
