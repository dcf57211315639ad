package app

import (
	apphttp "github.com/yungbote/student-service/internal/http"
	"github.com/yungbote/student-service/internal/observability"
	"github.com/yungbote/student-service/internal/platform/logger"
)

const serviceName = "student-service"

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics) *apphttp.Server {
	return apphttp.NewServer(cfg.HTTP.Addr, cfg.HTTP.ReadHeaderTimeout, apphttp.RouterConfig{
		StudentHandler: handlers.Student,
		BreakerHandler: handlers.Breaker,
		HealthHandler:  handlers.Health,
		Log:            log,
		Metrics:        metrics,
		ServiceName:    serviceName,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
	})
}
