package app

import (
	"gorm.io/gorm"

	httpH "github.com/yungbote/techform-backend/internal/http/handlers"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Forms    *httpH.FormsHandler
	Question *httpH.QuestionHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(db),
		Forms:    httpH.NewFormsHandler(log, services.Forms),
		Question: httpH.NewQuestionHandler(services.Bank),
	}
}
