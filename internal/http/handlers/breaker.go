package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/student-service/internal/http/response"
	"github.com/yungbote/student-service/internal/services"
)

type BreakerHandler struct {
	students services.StudentService
}

func NewBreakerHandler(students services.StudentService) *BreakerHandler {
	return &BreakerHandler{students: students}
}

// GET /api/breakers
func (h *BreakerHandler) ListBreakers(c *gin.Context) {
	response.RespondOK(c, h.students.BreakerStatus())
}
