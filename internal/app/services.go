package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/techform-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/techform-backend/internal/domain/aggregates"
	"github.com/yungbote/techform-backend/internal/modules/answers"
	"github.com/yungbote/techform-backend/internal/observability"
	"github.com/yungbote/techform-backend/internal/platform/logger"
	"github.com/yungbote/techform-backend/internal/services"
)

type Aggregates struct {
	Answers    domainagg.AnswerAggregate
	Revisions  domainagg.QuestionRevisionAggregate
	Submission domainagg.SubmissionAggregate
}

type Services struct {
	Aggregates Aggregates

	Forms services.FormAnswerService
	Bank  services.QuestionBankService
}

func wireAggregates(db *gorm.DB, log *logger.Logger, repos Repos, metrics *observability.Metrics) Aggregates {
	base := aggregates.BaseDeps{
		DB:       db,
		Log:      log,
		Runner:   aggregates.NewGormTxRunner(db),
		Hooks:    aggregates.NewObservabilityHooks(metrics),
		CASGuard: aggregates.NewCASGuard(db),
	}
	var observer answers.Observer
	if metrics != nil {
		observer = metrics
	}
	aggs := Aggregates{
		Answers: aggregates.NewAnswerAggregate(aggregates.AnswerAggregateDeps{
			Base:       base,
			Templates:  repos.Templates,
			Technology: repos.Technology,
			Observer:   observer,
		}),
		Revisions: aggregates.NewQuestionRevisionAggregate(aggregates.QuestionRevisionAggregateDeps{
			Base:      base,
			Questions: repos.Questions,
			Revisions: repos.Revisions,
		}),
		Submission: aggregates.NewSubmissionAggregate(aggregates.SubmissionAggregateDeps{
			Base:        base,
			Templates:   repos.Templates,
			Technology:  repos.Technology,
			Submissions: repos.Submissions,
			Responses:   repos.Responses,
			Observer:    observer,
		}),
	}
	for _, agg := range []domainagg.Aggregate{aggs.Answers, aggs.Revisions, aggs.Submission} {
		c := agg.Contract()
		log.Info("Wired aggregate", "name", c.Name, "tables", c.Tables, "locking", c.Locking)
	}
	return aggs
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")
	aggs := wireAggregates(db, log, repos, metrics)

	var observer answers.Observer
	if metrics != nil {
		observer = metrics
	}
	return Services{
		Aggregates: aggs,
		Forms:      services.NewFormAnswerService(db, log, repos, aggs.Answers, aggs.Submission, cfg.StalenessPolicy, observer),
		Bank:       services.NewQuestionBankService(log, repos.Questions, repos.Revisions, aggs.Revisions),
	}
}
