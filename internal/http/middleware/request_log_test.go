package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yungbote/techform-backend/internal/platform/logger"
)

func observedRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	r := gin.New()
	r.Use(AttachTraceContext(), RequestLogger(log))
	r.GET("/healthcheck", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/api/forms/submissions/:id", func(c *gin.Context) { c.Status(http.StatusConflict) })
	r.GET("/api/forms/hydrate", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return r, logs
}

func serve(r *gin.Engine, path string) {
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
}

func TestRequestLoggerLevels(t *testing.T) {
	r, logs := observedRouter(t)

	serve(r, "/healthcheck")
	serve(r, "/api/forms/submissions/abc")
	serve(r, "/api/forms/hydrate?techId=T-7")

	entries := logs.AllUntimed()
	if len(entries) != 3 {
		t.Fatalf("entries: want=3 got=%d", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel || entries[0].Message != "probe" {
		t.Fatalf("probe entry: level=%s msg=%q", entries[0].Level, entries[0].Message)
	}
	if entries[1].Level != zapcore.InfoLevel || entries[1].Message != "request conflicted" {
		t.Fatalf("conflict entry: level=%s msg=%q", entries[1].Level, entries[1].Message)
	}
	if entries[2].Level != zapcore.ErrorLevel {
		t.Fatalf("failure entry: want=error got=%s", entries[2].Level)
	}
}

func TestRequestLoggerFields(t *testing.T) {
	r, logs := observedRouter(t)

	serve(r, "/api/forms/submissions/abc")
	serve(r, "/api/forms/hydrate?techId=T-7")

	conflict := logs.AllUntimed()[0].ContextMap()
	if conflict["route"] != "/api/forms/submissions/:id" {
		t.Fatalf("route: want=template got=%v", conflict["route"])
	}
	if conflict["submission_id"] != "abc" {
		t.Fatalf("submission_id: want=abc got=%v", conflict["submission_id"])
	}
	if _, ok := conflict["request_id"]; !ok {
		t.Fatalf("request_id missing: %v", conflict)
	}

	hydrate := logs.AllUntimed()[1].ContextMap()
	if hydrate["techId"] != "T-7" {
		t.Fatalf("techId: want=T-7 got=%v", hydrate["techId"])
	}
}

func TestRequestLoggerNilLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(nil))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", rec.Code)
	}
}
