package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/patternlens-backend/internal/http/handlers"
	httpMW "github.com/yungbote/patternlens-backend/internal/http/middleware"
	"github.com/yungbote/patternlens-backend/internal/observability"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware

	ReportHandler    *httpH.ReportHandler
	SearchHandler    *httpH.SearchHandler
	AttributeHandler *httpH.AttributeHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.Optional())
	}
	{
		if cfg.ReportHandler != nil {
			api.GET("/reports/:id/similar", cfg.ReportHandler.Similar)
			api.GET("/reports/:id/patterns", cfg.ReportHandler.Patterns)
			api.GET("/reports/:id/attributes", cfg.ReportHandler.Attributes)
		}
		if cfg.SearchHandler != nil {
			api.GET("/search", cfg.SearchHandler.Search)
		}
		if cfg.AttributeHandler != nil {
			api.GET("/categories", cfg.AttributeHandler.Categories)
			api.GET("/categories/:key/attributes", cfg.AttributeHandler.CategoryAttributes)
			api.GET("/attributes/:key/distribution", cfg.AttributeHandler.Distribution)
		}
	}

	user := api.Group("/")
	if cfg.AuthMiddleware != nil {
		user.Use(cfg.AuthMiddleware.RequireUser())
	}
	if cfg.ReportHandler != nil {
		user.PUT("/reports/:id/attributes/:key", cfg.ReportHandler.ConfirmAttribute)
	}

	// Extraction spends completion quota, so it sits behind the admin check with backfill.
	admin := api.Group("/")
	if cfg.AuthMiddleware != nil {
		admin.Use(cfg.AuthMiddleware.RequireAdmin())
	}
	{
		if cfg.ReportHandler != nil {
			admin.POST("/reports/:id/extract", cfg.ReportHandler.Extract)
		}
		if cfg.AttributeHandler != nil {
			admin.POST("/admin/backfill-attributes", cfg.AttributeHandler.Backfill)
			admin.DELETE("/admin/attribute-definitions/:id", cfg.AttributeHandler.DeleteDefinition)
		}
	}

	return r
}
