package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/techform-backend/internal/http/handlers"
	httpMW "github.com/yungbote/techform-backend/internal/http/middleware"
	"github.com/yungbote/techform-backend/internal/observability"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

type RouterConfig struct {
	FormsHandler    *httpH.FormsHandler
	QuestionHandler *httpH.QuestionHandler
	HealthHandler   *httpH.HealthHandler

	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string

	// ExposeMetrics mounts /metrics on this engine.
	ExposeMetrics bool
	// ServiceName turns on otelgin spans when set.
	ServiceName   string
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
	if cfg.Metrics != nil && cfg.ExposeMetrics {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")

	// Forms
	if cfg.FormsHandler != nil {
		api.GET("/forms/hydrate", cfg.FormsHandler.Hydrate)
		api.POST("/forms/answers", cfg.FormsHandler.WriteAnswers)
		api.POST("/forms/submissions", cfg.FormsHandler.SaveSubmission)
		api.GET("/forms/submissions/:id", cfg.FormsHandler.GetSubmission)
	}

	// Question dictionary
	if cfg.QuestionHandler != nil {
		api.POST("/questions", cfg.QuestionHandler.CreateQuestion)
		api.GET("/questions/:key", cfg.QuestionHandler.GetQuestion)
		api.POST("/questions/:key/revisions", cfg.QuestionHandler.ReviseQuestion)
		api.GET("/questions/:key/revisions", cfg.QuestionHandler.ListRevisions)
	}

	return r
}
