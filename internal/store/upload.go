// Package store is the persistence layer for uploads and their audit trail.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"spinarchive/archive-api/model"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup matches no record
	ErrNotFound = errors.New("record not found")

	// ErrStale is returned when a conditional status transition matched no
	// row, meaning the upload moved to another status concurrently
	ErrStale = errors.New("upload status changed concurrently")
)

type UploadStore struct {
	DB *gorm.DB

	// Injectable for quota window tests
	Now func() time.Time
}

func NewUploadStore(db *gorm.DB) *UploadStore {
	return &UploadStore{DB: db, Now: time.Now}
}

func (s *UploadStore) Create(u *model.Upload) error {
	if err := s.DB.Create(u).Error; err != nil {
		return fmt.Errorf("failed to insert upload, %w", err)
	}

	return nil
}

func (s *UploadStore) ByFileID(fileID string) (*model.Upload, error) {
	var u model.Upload

	err := s.DB.Where("file_id = ?", fileID).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &u, nil
}

// ByEncodingKey looks an upload up by its webhook correlation key.
func (s *UploadStore) ByEncodingKey(key string) (*model.Upload, error) {
	var u model.Upload

	err := s.DB.Where("video_encoding_key = ?", key).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &u, nil
}

// FindDuplicate searches for a previously submitted upload with the same
// content. Matches by checksum when one is available, otherwise by the
// name+extension+size triple. Deleted uploads don't count as duplicates.
func (s *UploadStore) FindDuplicate(md5Hash, name, ext string, size int64) (*model.Upload, error) {
	var u model.Upload

	q := s.DB.Where("status <> ?", model.StatusDeleted)

	if md5Hash != "" {
		q = q.Where("md5_hash = ?", md5Hash)
	} else {
		q = q.Where("file_name = ? AND file_ext = ? AND file_size = ?", name, ext, size)
	}

	err := q.First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &u, nil
}

// Transition applies changes to an upload only if its current status is
// `from`. The WHERE clause on the old status is what makes concurrent
// invocations safe: a concurrent loser matches zero rows and gets ErrStale
// instead of clobbering the winner's write.
func (s *UploadStore) Transition(id uint, from, to model.UploadStatus, changes map[string]any) (*model.Upload, error) {
	if changes == nil {
		changes = map[string]any{}
	}
	changes["status"] = to

	res := s.DB.
		Model(model.Upload{}).
		Where("id = ? AND status = ?", id, from).
		Updates(changes)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to transition upload %d, %w", id, res.Error)
	}

	if res.RowsAffected == 0 {
		return nil, ErrStale
	}

	var u model.Upload
	if err := s.DB.First(&u, id).Error; err != nil {
		return nil, err
	}

	return &u, nil
}

// UpdateMetadata updates the user-editable columns and writes the matching
// audit entries in a single transaction, so a failed update never leaves
// orphaned audit rows behind.
func (s *UploadStore) UpdateMetadata(id uint, changes map[string]any, entries []model.AuditLog) (*model.Upload, error) {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(model.Upload{}).Where("id = ?", id).Updates(changes)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		if len(entries) > 0 {
			if err := tx.Create(&entries).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	var u model.Upload
	if err := s.DB.First(&u, id).Error; err != nil {
		return nil, err
	}

	return &u, nil
}

// CountRecent counts a user's uploads created inside the trailing 24-hour
// window that are in one of the given statuses.
func (s *UploadStore) CountRecent(uploaderID uint, statuses []model.UploadStatus) (int64, error) {
	var count int64

	err := s.DB.
		Model(model.Upload{}).
		Where("uploader_id = ?", uploaderID).
		Where("created_at > ?", s.Now().Add(-24*time.Hour)).
		Where("status IN ?", statuses).
		Count(&count).
		Error
	if err != nil {
		return 0, fmt.Errorf("failed to count recent uploads, %w", err)
	}

	return count, nil
}

// PendingApproval lists uploads waiting for moderator review, oldest first.
func (s *UploadStore) PendingApproval() ([]model.Upload, error) {
	var uploads []model.Upload

	err := s.DB.
		Where("status = ?", model.StatusPendingApproval).
		Order("created_at ASC").
		Find(&uploads).
		Error
	if err != nil {
		return nil, err
	}

	return uploads, nil
}

// CompletedIndex pages through published uploads, optionally narrowed down
// to ones carrying every given tag.
func (s *UploadStore) CompletedIndex(page, perPage int, tags string) ([]model.Upload, int64, error) {
	if page < 1 {
		page = 1
	}

	q := s.DB.Model(model.Upload{}).Where("status = ?", model.StatusCompleted)

	for _, tag := range strings.Fields(strings.ToLower(tags)) {
		q = q.Where("tag_string LIKE ?", "%"+tag+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var uploads []model.Upload
	err := q.
		Order("updated_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&uploads).
		Error
	if err != nil {
		return nil, 0, err
	}

	return uploads, total, nil
}

// Related finds other published uploads sharing at least one tag. Best
// effort, used only for recommendations.
func (s *UploadStore) Related(tagString string, excludeID uint, limit int) ([]model.Upload, error) {
	tags := strings.Fields(tagString)
	if len(tags) == 0 {
		return nil, nil
	}

	q := s.DB.
		Where("status = ?", model.StatusCompleted).
		Where("id <> ?", excludeID)

	or := s.DB.Where("tag_string LIKE ?", "%"+tags[0]+"%")
	for _, tag := range tags[1:] {
		or = or.Or("tag_string LIKE ?", "%"+tag+"%")
	}
	q = q.Where(or)

	var uploads []model.Upload
	err := q.
		Order("updated_at DESC").
		Limit(limit).
		Find(&uploads).
		Error
	if err != nil {
		return nil, err
	}

	return uploads, nil
}

func (s *UploadStore) IncrementViews(id uint) error {
	return s.DB.
		Model(model.Upload{}).
		Where("id = ?", id).
		Update("views", gorm.Expr("views + 1")).
		Error
}

// StuckProcessing lists uploads that entered Processing before the cutoff
// and never got a webhook back. Surfaced for manual re-submission.
func (s *UploadStore) StuckProcessing(cutoff time.Time) ([]model.Upload, error) {
	var uploads []model.Upload

	err := s.DB.
		Where("status = ? AND updated_at < ?", model.StatusProcessing, cutoff).
		Order("updated_at ASC").
		Find(&uploads).
		Error
	if err != nil {
		return nil, err
	}

	return uploads, nil
}
