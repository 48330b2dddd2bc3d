package dbmodels

import (
	"time"

	"github.com/google/uuid"

	"github.com/checkmarble/agent-eval-backend/models"
	"github.com/checkmarble/agent-eval-backend/utils"
)

const TABLE_APPROVAL_RECORDS = "approval_records"

type DBApprovalRecord struct {
	Id            uuid.UUID `db:"id"`
	TestCaseId    uuid.UUID `db:"test_case_id"`
	VersionNumber int       `db:"version_number"`
	Action        string    `db:"action"`
	Actor         string    `db:"actor"`
	Feedback      string    `db:"feedback"`
	CreatedAt     time.Time `db:"created_at"`
}

var SelectApprovalRecordColumns = utils.ColumnList[DBApprovalRecord]()

func AdaptApprovalRecord(db DBApprovalRecord) (models.ApprovalRecord, error) {
	return models.ApprovalRecord{
		Id:            db.Id,
		TestCaseId:    db.TestCaseId,
		VersionNumber: db.VersionNumber,
		Action:        models.ApprovalAction(db.Action),
		Actor:         db.Actor,
		Feedback:      db.Feedback,
		CreatedAt:     db.CreatedAt,
	}, nil
}
