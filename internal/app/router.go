package app

import (
	"github.com/yungbote/techform-backend/internal/http"
	"github.com/yungbote/techform-backend/internal/observability"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics) *http.Server {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewServer(http.RouterConfig{
		FormsHandler:    handlers.Forms,
		QuestionHandler: handlers.Question,
		HealthHandler:   handlers.Health,
		Log:             log,
		Metrics:         metrics,
		// /metrics rides on the API listener unless METRICS_ADDR is set.
		ExposeMetrics: cfg.MetricsAddr == "",
		CORSOrigins:   cfg.CORSOrigins,
		ServiceName:   serviceName,
	})
}
