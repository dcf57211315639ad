package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/student-service/internal/data/repos/student"
	"github.com/yungbote/student-service/internal/platform/logger"
)

type Repos struct {
	Student student.StudentRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Student: student.NewStudentRepo(db, log),
	}
}
