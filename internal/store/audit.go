package store

import (
	"fmt"
	"strings"
	"time"

	"spinarchive/archive-api/model"

	"gorm.io/gorm"
)

// UploadsTable is the table name audit entries for uploads are keyed by.
const UploadsTable = "uploads"

type AuditStore struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{DB: db, Now: time.Now}
}

// NewAuditEntry builds one field-change entry, or returns nil when the value
// didn't actually change. No-op edits never produce audit rows.
func NewAuditEntry(table, column string, rowID, changedBy uint, oldValue, newValue string, at time.Time) *model.AuditLog {
	if strings.EqualFold(oldValue, newValue) {
		return nil
	}

	return &model.AuditLog{
		TableName:  table,
		ColumnName: column,
		RowID:      rowID,
		ChangedBy:  changedBy,
		OldValue:   oldValue,
		NewValue:   newValue,
		ChangedAt:  at,
	}
}

// Record writes a single audit entry, skipping no-op changes.
func (s *AuditStore) Record(table, column string, rowID, changedBy uint, oldValue, newValue string) (*model.AuditLog, error) {
	entry := NewAuditEntry(table, column, rowID, changedBy, oldValue, newValue, s.Now())
	if entry == nil {
		return nil, nil
	}

	if err := s.DB.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to insert audit entry, %w", err)
	}

	return entry, nil
}

// ByRow returns every audit entry for one row of one table, oldest first.
func (s *AuditStore) ByRow(table string, rowID uint) ([]model.AuditLog, error) {
	var entries []model.AuditLog

	err := s.DB.
		Where("table_name = ? AND row_id = ?", table, rowID).
		Order("changed_at ASC").
		Find(&entries).
		Error
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// Page returns a page of the upload audit log, newest first.
func (s *AuditStore) Page(page, perPage int) ([]model.AuditLog, int64, error) {
	if page < 1 {
		page = 1
	}

	q := s.DB.Model(model.AuditLog{}).Where("table_name = ?", UploadsTable)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []model.AuditLog
	err := q.
		Order("changed_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&entries).
		Error
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
