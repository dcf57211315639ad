package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/student-service/internal/http/handlers"
	httpMW "github.com/yungbote/student-service/internal/http/middleware"
	"github.com/yungbote/student-service/internal/observability"
	"github.com/yungbote/student-service/internal/platform/logger"
)

type RouterConfig struct {
	StudentHandler *httpH.StudentHandler
	BreakerHandler *httpH.BreakerHandler
	HealthHandler  *httpH.HealthHandler

	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string
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

	api := r.Group("/api")
	{
		// Students
		if cfg.StudentHandler != nil {
			api.GET("/students/:id", cfg.StudentHandler.GetStudent)
			api.POST("/students", cfg.StudentHandler.CreateStudent)
			api.POST("/students/:id/courses/:courseId", cfg.StudentHandler.Enroll)
		}

		// Breakers
		if cfg.BreakerHandler != nil {
			api.GET("/breakers", cfg.BreakerHandler.ListBreakers)
		}
	}

	return r
}
