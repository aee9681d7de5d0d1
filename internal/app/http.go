package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/patternlens-backend/internal/http"
	httpH "github.com/yungbote/patternlens-backend/internal/http/handlers"
	httpMW "github.com/yungbote/patternlens-backend/internal/http/middleware"
	"github.com/yungbote/patternlens-backend/internal/observability"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health    *httpH.HealthHandler
	Report    *httpH.ReportHandler
	Search    *httpH.SearchHandler
	Attribute *httpH.AttributeHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services) Handlers {
	log.Info("Wiring handlers...")
	var pinger httpH.Pinger
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			pinger = sqlDB
		}
	}
	return Handlers{
		Health: httpH.NewHealthHandler(pinger),
		Report: httpH.NewReportHandler(httpH.ReportHandlerDeps{
			Log:        log,
			Similarity: services.Similarity,
			Patterns:   services.Patterns,
			Attributes: services.Attributes,
		}),
		Search: httpH.NewSearchHandler(httpH.SearchHandlerDeps{
			Log:        log,
			Classifier: services.Classifier,
			Retriever:  services.Retriever,
		}),
		Attribute: httpH.NewAttributeHandler(httpH.AttributeHandlerDeps{
			Log:      log,
			Registry: services.Registry,
			Patterns: services.Patterns,
			Backfill: services.Backfill,
		}),
	}
}

func wireRouter(log *logger.Logger, metrics *observability.Metrics, cfg Config, handlers Handlers, middleware Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:              log,
		Metrics:          metrics,
		ServiceName:      cfg.ServiceName,
		CORSOrigins:      cfg.CORSOrigins,
		AuthMiddleware:   middleware.Auth,
		ReportHandler:    handlers.Report,
		SearchHandler:    handlers.Search,
		AttributeHandler: handlers.Attribute,
		HealthHandler:    handlers.Health,
	})
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	if cfg.JWTSecretKey == "" {
		log.Warn("JWT_SECRET_KEY not set; admin routes will reject every request")
	}
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey),
	}
}
