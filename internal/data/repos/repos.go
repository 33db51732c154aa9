package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/techform-backend/internal/data/repos/forms"
	"github.com/yungbote/techform-backend/internal/platform/logger"
)

type QuestionRepo = forms.QuestionRepo
type QuestionRevisionRepo = forms.QuestionRevisionRepo
type FormTemplateRepo = forms.FormTemplateRepo
type TechnologyRepo = forms.TechnologyRepo
type FormSubmissionRepo = forms.FormSubmissionRepo
type ResponseRepo = forms.ResponseRepo

const GroupClearedRowIndex = forms.GroupClearedRowIndex

// Set bundles every table repo the services need.
type Set struct {
	Questions   QuestionRepo
	Revisions   QuestionRevisionRepo
	Templates   FormTemplateRepo
	Technology  TechnologyRepo
	Submissions FormSubmissionRepo
	Responses   ResponseRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Questions:   forms.NewQuestionRepo(db, log),
		Revisions:   forms.NewQuestionRevisionRepo(db, log),
		Templates:   forms.NewFormTemplateRepo(db, log),
		Technology:  forms.NewTechnologyRepo(db, log),
		Submissions: forms.NewFormSubmissionRepo(db, log),
		Responses:   forms.NewResponseRepo(db, log),
	}
}
