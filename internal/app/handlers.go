package app

import (
	httpH "github.com/yungbote/student-service/internal/http/handlers"
	"github.com/yungbote/student-service/internal/platform/logger"
)

type Handlers struct {
	Health  *httpH.HealthHandler
	Student *httpH.StudentHandler
	Breaker *httpH.BreakerHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:  httpH.NewHealthHandler(),
		Student: httpH.NewStudentHandler(services.Student),
		Breaker: httpH.NewBreakerHandler(services.Student),
	}
}
