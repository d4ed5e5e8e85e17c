// Package model defines database models
package model

import (
	"fmt"
	"mime"
	"strings"
	"time"
)

// UploadStatus tracks where an upload is in its lifecycle. Stored as a
// small integer, so new statuses must only ever be appended.
type UploadStatus int16

const (
	StatusPending UploadStatus = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
	StatusPendingApproval
	StatusDeleted
)

func (s UploadStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusPendingApproval:
		return "pending_approval"
	case StatusDeleted:
		return "deleted"
	}

	return fmt.Sprintf("unknown(%d)", int16(s))
}

// Terminal reports whether an upload can still move to another status.
// Deleted and Failed are final, everything else can progress.
func (s UploadStatus) Terminal() bool {
	switch s {
	case StatusDeleted, StatusFailed:
		return true
	case StatusPending, StatusProcessing, StatusCompleted, StatusPendingApproval:
		return false
	}

	return false
}

type Upload struct {
	ID     uint         `gorm:"primaryKey;autoIncrement" json:"-"`
	Status UploadStatus `gorm:"index" json:"status"`

	// Public identifier used in every external URL. Unguessable and
	// immutable after creation
	FileID string `gorm:"uniqueIndex;not null" json:"id"`

	// Original file name before turning it into an S3 key
	FileName string `json:"file_name"`
	FileExt  string `json:"file_ext"`
	FileSize int64  `json:"file_size"`

	// Optional content checksum, used for duplicate detection
	MD5Hash *string `gorm:"index" json:"-"`

	// Nullable so uploads survive their uploader's account removal
	UploaderID *uint `gorm:"index" json:"-"`

	Source      string `json:"source"`
	TagString   string `json:"tags"`
	Description string `json:"description"`

	// User-supplied date of when the content originally appeared
	OriginalDate *time.Time `json:"original_date,omitempty"`

	// Matches asynchronous encoder callbacks to this record. Generated
	// before the encoding job is submitted, so a webhook can always be
	// correlated even if the submission call itself timed out
	EncodingKey string `gorm:"uniqueIndex;column:video_encoding_key;not null" json:"-"`

	// Set only once encoding succeeded, i.e. status is Completed
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	VideoURL     string `json:"video_url,omitempty"`

	Views int64 `json:"views"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SourceKey is the object key the original file was uploaded to.
func (u *Upload) SourceKey(folder string) string {
	return fmt.Sprintf("%s/%s.%s", folder, u.FileID, u.FileExt)
}

// SourceURL is the full URL of the original file on the asset host.
func (u *Upload) SourceURL(assetHost, folder string) string {
	return fmt.Sprintf("%s/%s", assetHost, u.SourceKey(folder))
}

// IsVideo guesses from the file extension whether this upload is a video.
func (u *Upload) IsVideo() bool {
	return strings.HasPrefix(mime.TypeByExtension("."+u.FileExt), "video/")
}
