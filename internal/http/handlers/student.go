package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/student-service/internal/http/response"
	"github.com/yungbote/student-service/internal/platform/apierr"
	"github.com/yungbote/student-service/internal/services"
)

type StudentHandler struct {
	students services.StudentService
}

func NewStudentHandler(students services.StudentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// GET /api/students/:id
func (h *StudentHandler) GetStudent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := h.students.GetStudentView(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, view)
}

// POST /api/students
func (h *StudentHandler) CreateStudent(c *gin.Context) {
	var req services.CreateStudentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	st, err := h.students.CreateStudent(c.Request.Context(), req)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, st)
}

// POST /api/students/:id/courses/:courseId
func (h *StudentHandler) Enroll(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	courseID, ok := pathID(c, "courseId")
	if !ok {
		return
	}
	if err := h.students.Enroll(c.Request.Context(), id, courseID); err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"message": "Enrolled successfully"})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.RespondErr(c, apierr.New(http.StatusBadRequest, "invalid_id", errors.New("invalid "+name)))
		return 0, false
	}
	return id, true
}
