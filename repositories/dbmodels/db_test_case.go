package dbmodels

import (
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v5"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/utils"
)

const TABLE_TEST_CASES = "test_cases"

type DBTestCase struct {
	Id             uuid.UUID   `db:"id"`
	SuiteId        uuid.UUID   `db:"suite_id"`
	Name           string      `db:"name"`
	Description    string      `db:"description"`
	Type           string      `db:"type"`
	Status         string      `db:"status"`
	SourceType     string      `db:"source_type"`
	OriginalInput  string      `db:"original_input"`
	CurrentVersion int         `db:"current_version"`
	ErrorDetail    null.String `db:"error_detail"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
	DeletedAt      null.Time   `db:"deleted_at"`
}

var SelectTestCaseColumns = utils.ColumnList[DBTestCase]()

func AdaptTestCase(db DBTestCase) (models.TestCase, error) {
	status, err := models.TestCaseStatusFrom(db.Status)
	if err != nil {
		return models.TestCase{}, err
	}

	return models.TestCase{
		Id:             db.Id,
		SuiteId:        db.SuiteId,
		Name:           db.Name,
		Description:    db.Description,
		Type:           models.TestCaseTypeFrom(db.Type),
		Status:         status,
		SourceType:     models.TestCaseSourceType(db.SourceType),
		OriginalInput:  db.OriginalInput,
		CurrentVersion: db.CurrentVersion,
		ErrorDetail:    db.ErrorDetail.String,
		CreatedAt:      db.CreatedAt,
		UpdatedAt:      db.UpdatedAt,
	}, nil
}
