// Package service holds the upload lifecycle state machine. Every mutation
// of an upload goes through the Orchestrator, request handlers never touch
// upload rows directly.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"spinarchive/archive-api/internal/encoder"
	"spinarchive/archive-api/internal/notifier"
	"spinarchive/archive-api/internal/quota"
	"spinarchive/archive-api/internal/store"
	"spinarchive/archive-api/model"

	"github.com/jellydator/ttlcache/v2"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Length of file ids and encoding correlation keys. nanoid's default
// alphabet at this length makes collisions negligible.
const tokenLength = 21

// EncodingClient submits transcode jobs. Satisfied by *encoder.Client,
// stubbed in tests.
type EncodingClient interface {
	Submit(ctx context.Context, u *model.Upload) (*encoder.Job, error)
}

// Publisher dispatches fire-and-forget notifications.
type Publisher interface {
	Publish(ev notifier.Event)
}

type Orchestrator struct {
	Store   *store.UploadStore
	Audits  *store.AuditStore
	Quota   *quota.Tracker
	Encoder EncodingClient

	// Optional, nil disables notifications
	Notifier Publisher

	AssetHost     string
	EncodedFolder string
	ThumbFolder   string

	related *ttlcache.Cache
}

func NewOrchestrator(uploads *store.UploadStore, audits *store.AuditStore, q *quota.Tracker, enc EncodingClient, pub Publisher) *Orchestrator {
	related := ttlcache.NewCache()
	related.SetTTL(5 * time.Minute)
	related.SkipTTLExtensionOnHit(true)

	return &Orchestrator{
		Store:         uploads,
		Audits:        audits,
		Quota:         q,
		Encoder:       enc,
		Notifier:      pub,
		AssetHost:     viper.GetString("aws.asset_host"),
		EncodedFolder: viper.GetString("aws.encoded_folder"),
		ThumbFolder:   viper.GetString("aws.thumbnail_folder"),
		related:       related,
	}
}

// Create reserves a Pending upload record and its identifiers. The caller
// is expected to hand the returned FileID to the signed-URL issuer so the
// client can push the actual bytes straight to storage.
func (o *Orchestrator) Create(user *model.User, fileName, fileExt string, fileSize int64, md5Hash string) (*model.Upload, error) {
	exceeded, err := o.Quota.Exceeded(user, true)
	if err != nil {
		return nil, fmt.Errorf("%w, %v", ErrStore, err)
	}
	if exceeded {
		return nil, ErrQuotaExceeded
	}

	dup, err := o.Store.FindDuplicate(md5Hash, fileName, fileExt, fileSize)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w, %v", ErrStore, err)
	}
	if dup != nil {
		return nil, ErrAlreadyExists
	}

	fileID, err := gonanoid.New(tokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate file id, %w", err)
	}

	encodingKey, err := gonanoid.New(tokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate encoding key, %w", err)
	}

	u := &model.Upload{
		Status:      model.StatusPending,
		FileID:      fileID,
		FileName:    fileName,
		FileExt:     strings.ToLower(strings.TrimPrefix(fileExt, ".")),
		FileSize:    fileSize,
		UploaderID:  &user.ID,
		EncodingKey: encodingKey,
	}
	if md5Hash != "" {
		u.MD5Hash = &md5Hash
	}

	if err := o.Store.Create(u); err != nil {
		return nil, fmt.Errorf("%w, %v", ErrStore, err)
	}

	return u, nil
}

// Finalize moves a Pending upload into Processing, persists its metadata
// and kicks off the encoding job. The quota is re-checked here, the user
// may have spent it between create and finalize.
//
// A failed job submission does NOT fail the call. Once the transition is
// persisted the user-facing operation succeeded; a stuck Processing upload
// is surfaced operationally and re-submitted by hand.
func (o *Orchestrator) Finalize(user *model.User, fileID, tags, source, description string, originalDate *time.Time) (*model.Upload, error) {
	exceeded, err := o.Quota.Exceeded(user, false)
	if err != nil {
		return nil, fmt.Errorf("%w, %v", ErrStore, err)
	}
	if exceeded {
		return nil, ErrQuotaExceeded
	}

	u, err := o.Store.ByFileID(fileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w, %v", ErrStore, err)
	}

	if u.Status != model.StatusPending {
		return nil, ErrAlreadyExists
	}

	updated, err := o.Store.Transition(u.ID, model.StatusPending, model.StatusProcessing, map[string]any{
		"tag_string":    SanitizeTags(tags),
		"source":        source,
		"description":   description,
		"original_date": originalDate,
	})
	if err != nil {
		if errors.Is(err, store.ErrStale) {
			return nil, ErrWrongState
		}
		return nil, fmt.Errorf("%w, %v", ErrStore, err)
	}

	job, err := o.Encoder.Submit(context.Background(), updated)
	if err != nil {
		zap.L().Warn("Encoding job submission failed",
			zap.String("file_id", updated.FileID),
			zap.String("encoding_key", updated.EncodingKey),
			zap.Error(err),
		)
	} else {
		zap.L().Debug("Encoding job started",
			zap.String("file_id", updated.FileID),
			zap.Int64("provider_job_id", job.ID),
		)
	}

	return updated, nil
}

// AcceptWebhook applies an asynchronous encoder callback, matched by the
// correlation key generated at create time. Output URLs are derived from
// the file id, never taken from the provider payload, so a compromised or
// buggy provider can't point our records anywhere else.
//
// A callback for an upload that's not Processing is rejected: that makes
// replayed or duplicated deliveries structurally idempotent without any
// deduplication bookkeeping.
func (o *Orchestrator) AcceptWebhook(key string, job *encoder.Job) (*model.Upload, error) {
	u, err := o.Store.ByEncodingKey(key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w, %v", ErrStore, err)
	}

	if job.Event != encoder.EventJobCompleted {
		return nil, ErrInvalidState
	}

	if u.Status != model.StatusProcessing {
		return nil, ErrInvalidState
	}

	var uploader *model.User
	if u.UploaderID != nil {
		uploader, err = o.Store.UserByID(*u.UploaderID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w, %v", ErrStore, err)
		}
	}

	target := model.StatusCompleted
	changes := map[string]any{}

	if uploader != nil && uploader.NeedsApproval() {
		// Policy gate: the upload waits in the moderation queue and
		// only gets its public URLs once approved
		target = model.StatusPendingApproval
	} else {
		videoURL, thumbURL := o.encodedURLs(u.FileID)
		changes["video_url"] = videoURL
		changes["thumbnail_url"] = thumbURL
	}

	updated, err := o.Store.Transition(u.ID, model.StatusProcessing, target, changes)
	if err != nil {
		if errors.Is(err, store.ErrStale) {
			return nil, ErrInvalidState
		}
		return nil, fmt.Errorf("%w, %v", ErrStore, err)
	}

	o.notify(updated, uploader)

	return updated, nil
}

// UpdateMetadata edits the user-facing fields of a published upload,
// writing one audit entry per actually-changed field.
func (o *Orchestrator) UpdateMetadata(user *model.User, fileID, tags, source, description string, originalDate *time.Time) (*model.Upload, error) {
	u, err := o.Store.ByFileID(fileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w, %v", ErrStore, err)
	}

	if u.Status.Terminal() {
		return nil, ErrWrongState
	}

	newTags := SanitizeTags(tags)
	now := o.Audits.Now()

	var entries []model.AuditLog
	for _, change := range []struct {
		column   string
		old, new string
	}{
		{"tag_string", u.TagString, newTags},
		{"source", u.Source, source},
		{"description", u.Description, description},
	} {
		if e := store.NewAuditEntry(store.UploadsTable, change.column, u.ID, user.ID, change.old, change.new, now); e != nil {
			entries = append(entries, *e)
		}
	}

	updated, err := o.Store.UpdateMetadata(u.ID, map[string]any{
		"tag_string":    newTags,
		"source":        source,
		"description":   description,
		"original_date": originalDate,
	}, entries)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w, %v", ErrStore, err)
	}

	return updated, nil
}

// Delete retires an upload. The record stays around forever, deletion is
// just a terminal status plus an audit entry.
func (o *Orchestrator) Delete(moderator *model.User, fileID string) (*model.Upload, error) {
	if !moderator.IsModerator() {
		return nil, ErrForbidden
	}

	u, err := o.Store.ByFileID(fileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w, %v", ErrStore, err)
	}

	if u.Status.Terminal() {
		return nil, ErrWrongState
	}

	updated, err := o.Store.Transition(u.ID, u.Status, model.StatusDeleted, nil)
	if err != nil {
		if errors.Is(err, store.ErrStale) {
			return nil, ErrWrongState
		}
		return nil, fmt.Errorf("%w, %v", ErrStore, err)
	}

	if _, err := o.Audits.Record(store.UploadsTable, "status", u.ID, moderator.ID, u.Status.String(), updated.Status.String()); err != nil {
		zap.L().Error("Failed to record delete audit entry",
			zap.String("file_id", u.FileID),
			zap.Error(err),
		)
	}

	return updated, nil
}

// Approve publishes an upload from the moderation queue.
func (o *Orchestrator) Approve(moderator *model.User, fileID string) (*model.Upload, error) {
	if !moderator.IsModerator() {
		return nil, ErrForbidden
	}

	u, err := o.Store.ByFileID(fileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w, %v", ErrStore, err)
	}

	if u.Status != model.StatusPendingApproval {
		return nil, ErrWrongState
	}

	videoURL, thumbURL := o.encodedURLs(u.FileID)

	updated, err := o.Store.Transition(u.ID, model.StatusPendingApproval, model.StatusCompleted, map[string]any{
		"video_url":     videoURL,
		"thumbnail_url": thumbURL,
	})
	if err != nil {
		if errors.Is(err, store.ErrStale) {
			return nil, ErrWrongState
		}
		return nil, fmt.Errorf("%w, %v", ErrStore, err)
	}

	if _, err := o.Audits.Record(store.UploadsTable, "status", u.ID, moderator.ID, u.Status.String(), updated.Status.String()); err != nil {
		zap.L().Error("Failed to record approve audit entry",
			zap.String("file_id", u.FileID),
			zap.Error(err),
		)
	}

	if u.UploaderID != nil {
		if uploader, err := o.Store.UserByID(*u.UploaderID); err == nil {
			o.notify(updated, uploader)
		}
	}

	return updated, nil
}

// RecommendRelated returns other published uploads sharing tags. Purely
// best-effort: any failure yields an empty list and the page renders fine
// without recommendations.
func (o *Orchestrator) RecommendRelated(u *model.Upload, limit int) []model.Upload {
	if cached, err := o.related.Get(u.FileID); err == nil {
		return cached.([]model.Upload)
	}

	uploads, err := o.Store.Related(u.TagString, u.ID, limit)
	if err != nil {
		zap.L().Warn("Failed to fetch related uploads",
			zap.String("file_id", u.FileID),
			zap.Error(err),
		)
		return nil
	}

	o.related.Set(u.FileID, uploads)

	return uploads
}

// encodedURLs derives the post-encoding output locations. The encoder is
// told to write to exactly these keys, so they're predictable from the
// file id alone.
func (o *Orchestrator) encodedURLs(fileID string) (videoURL, thumbURL string) {
	videoURL = fmt.Sprintf("%s/%s/%s.mp4", o.AssetHost, o.EncodedFolder, fileID)
	thumbURL = fmt.Sprintf("%s/%s/%s.jpg", o.AssetHost, o.ThumbFolder, fileID)
	return
}

func (o *Orchestrator) notify(u *model.Upload, uploader *model.User) {
	if o.Notifier == nil || uploader == nil {
		return
	}

	kind := notifier.EventUploadPublished
	if u.Status == model.StatusPendingApproval {
		kind = notifier.EventUploadPendingApproval
	}

	o.Notifier.Publish(notifier.Event{
		Kind:     kind,
		Upload:   *u,
		Uploader: *uploader,
	})
}
