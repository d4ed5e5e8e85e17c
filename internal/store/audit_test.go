package store

import (
	"testing"
	"time"

	"spinarchive/archive-api/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuditEntrySkipsNoops(t *testing.T) {
	now := time.Now()

	assert.Nil(t, NewAuditEntry(UploadsTable, "source", 1, 2, "same", "same", now))
	assert.Nil(t, NewAuditEntry(UploadsTable, "source", 1, 2, "Same", "sAME", now))

	e := NewAuditEntry(UploadsTable, "source", 1, 2, "old", "new", now)
	require.NotNil(t, e)
	assert.Equal(t, "old", e.OldValue)
	assert.Equal(t, "new", e.NewValue)
	assert.Equal(t, uint(2), e.ChangedBy)
}

func TestRecordAndByRow(t *testing.T) {
	s := NewAuditStore(newTestDB(t))

	entry, err := s.Record(UploadsTable, "status", 10, 1, "pending", "deleted")
	require.NoError(t, err)
	require.NotNil(t, entry)

	// No-op changes return nil without touching the database
	entry, err = s.Record(UploadsTable, "status", 10, 1, "deleted", "deleted")
	require.NoError(t, err)
	assert.Nil(t, entry)

	_, err = s.Record(UploadsTable, "source", 10, 1, "", "https://example.org")
	require.NoError(t, err)

	entries, err := s.ByRow(UploadsTable, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = s.ByRow(UploadsTable, 11)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAuditPage(t *testing.T) {
	s := NewAuditStore(newTestDB(t))

	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.DB.Create(&model.AuditLog{
			TableName: UploadsTable, ColumnName: "source", RowID: uint(i),
			ChangedBy: 1, OldValue: "a", NewValue: "b",
			ChangedAt: base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}

	entries, total, err := s.Page(1, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, entries, 3)

	// Newest first
	assert.Equal(t, uint(4), entries[0].RowID)

	entries, _, err = s.Page(2, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
