package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/techform-backend/internal/platform/ctxutil"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

// probeRoutes are polled by orchestrators and logged at debug only.
var probeRoutes = map[string]bool{
	"/healthcheck": true,
	"/metrics":     true,
}

// RequestLogger emits one line per request with its route template, outcome
// and the form identifiers it touched.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		for _, q := range []string{"templateId", "techId"} {
			if v := c.Query(q); v != "" {
				fields = append(fields, q, v)
			}
		}
		if id := c.Param("id"); id != "" {
			fields = append(fields, "submission_id", id)
		}
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			fields = append(fields, "request_id", td.RequestID, "actor", td.Actor)
			if td.TraceID != "" {
				fields = append(fields, "trace_id", td.TraceID)
			}
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("request failed", fields...)
		case status == 409:
			log.Info("request conflicted", fields...)
		case status >= 400:
			log.Warn("request rejected", fields...)
		case probeRoutes[route]:
			log.Debug("probe", fields...)
		default:
			log.Info("request served", fields...)
		}
	}
}
