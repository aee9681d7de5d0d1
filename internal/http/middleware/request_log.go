package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/patternlens-backend/internal/platform/ctxutil"
	"github.com/yungbote/patternlens-backend/internal/platform/logger"
)

// RequestLogger logs one line per request. Search text is never logged, only
// its length; probes log at debug.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	log = log.With("middleware", "RequestLogger")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := routeLabel(c)
		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if route == "unmatched" {
			fields = append(fields, "path", c.Request.URL.Path)
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, "report_id", id)
		}
		if q, ok := c.GetQuery("q"); ok {
			fields = append(fields, "query_len", len(q))
		}
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			fields = append(fields, "trace_id", td.TraceID, "request_id", td.RequestID)
		}
		if cd := ctxutil.GetCallerData(c.Request.Context()); cd != nil && cd.Subject != "" {
			fields = append(fields, "caller", cd.Subject, "admin", cd.Admin)
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			fields = append(fields, "error", errs.String())
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		case probeRoutes[c.FullPath()]:
			log.Debug("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
