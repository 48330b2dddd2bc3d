package dbmodels

import (
	"time"

	"github.com/google/uuid"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/pure_utils"
	"github.com/checkmarble/agent-eval-backend/utils"
)

const TABLE_GENERATION_REQUESTS = "generation_requests"

type DBGenerationRequest struct {
	Digest      string    `db:"digest"`
	SuiteId     uuid.UUID `db:"suite_id"`
	SourceType  string    `db:"source_type"`
	TestCaseIds []string  `db:"test_case_ids"`
	CreatedAt   time.Time `db:"created_at"`
}

var SelectGenerationRequestColumns = utils.ColumnList[DBGenerationRequest]()

func AdaptGenerationRequest(db DBGenerationRequest) (models.GenerationRequest, error) {
	ids, err := pure_utils.MapErr(db.TestCaseIds, uuid.Parse)
	if err != nil {
		return models.GenerationRequest{}, err
	}

	return models.GenerationRequest{
		Digest:      db.Digest,
		SuiteId:     db.SuiteId,
		SourceType:  models.TestCaseSourceType(db.SourceType),
		TestCaseIds: ids,
		CreatedAt:   db.CreatedAt,
	}, nil
}
