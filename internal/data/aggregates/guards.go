package aggregates

import (
	"strings"

	"github.com/google/uuid"
	domainagg "github.com/yungbote/techform-backend/internal/domain/aggregates"
	"github.com/yungbote/techform-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

// RowVersionColumn is the optimistic lock column every versioned table carries.
const RowVersionColumn = "row_version"

// CASGuard provides optimistic/concurrency guard helpers for aggregate writes.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) baseDB(dbc dbctx.Context) (*gorm.DB, error) {
	if dbc.Tx != nil {
		return dbc.Tx.WithContext(dbc.Ctx), nil
	}
	if g.db != nil {
		return g.db.WithContext(dbc.Ctx), nil
	}
	return nil, ValidationError("missing db transaction context")
}

// UpdateByVersion updates a row only when id+row_version match and advances
// row_version to expectedVersion+1 in the same statement.
func (g CASGuard) UpdateByVersion(dbc dbctx.Context, table string, id uuid.UUID, expectedVersion int, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	if table == "" || id == uuid.Nil {
		return false, ValidationError("table and id are required for UpdateByVersion")
	}
	if expectedVersion < 0 {
		return false, ValidationError("expectedVersion must be >= 0")
	}
	set := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		set[k] = v
	}
	set[RowVersionColumn] = expectedVersion + 1
	res := db.Table(table).
		Where("id = ? AND "+RowVersionColumn+" = ?", id, expectedVersion).
		Updates(set)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateByStatus updates a row only when id+status guard matches.
func (g CASGuard) UpdateByStatus(dbc dbctx.Context, table string, id uuid.UUID, allowedStatuses []string, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	if table == "" || id == uuid.Nil {
		return false, ValidationError("table and id are required for UpdateByStatus")
	}
	if len(allowedStatuses) == 0 {
		return false, ValidationError("allowedStatuses must not be empty")
	}
	res := db.Table(table).
		Where("id = ? AND status IN ?", id, allowedStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequireCASSuccess converts a failed compare-and-set into a typed conflict error.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}

// RequireRowVersion converts a failed row_version compare-and-set into an
// optimistic lock error for table/id.
func RequireRowVersion(ok bool, table string, id uuid.UUID, expected int, reason string) error {
	if ok {
		return nil
	}
	exp := expected
	return &domainagg.OptimisticLockError{
		Table:           table,
		ID:              id,
		ExpectedVersion: &exp,
		Reason:          strings.TrimSpace(reason),
	}
}

// RequireRowVersionMatch checks a loaded row against the version the caller saw.
func RequireRowVersionMatch(table string, id uuid.UUID, current, expected int) error {
	if expected < 0 {
		return ValidationError("expected row version must be >= 0")
	}
	if current != expected {
		return RequireRowVersion(false, table, id, expected, "row version mismatch")
	}
	return nil
}
