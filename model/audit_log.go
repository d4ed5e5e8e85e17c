package model

import "time"

// AuditLog records one field-level change to one row. Entries are append
// only and never mutated after insertion.
type AuditLog struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	TableName  string `gorm:"index:idx_audit_row;not null" json:"table_name"`
	ColumnName string `gorm:"not null" json:"column_name"`
	RowID      uint   `gorm:"index:idx_audit_row;not null" json:"row_id"`

	// User who made the change
	ChangedBy uint `gorm:"index" json:"changed_by"`

	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`

	ChangedAt time.Time `json:"changed_at"`
}
