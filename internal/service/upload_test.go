package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"spinarchive/archive-api/internal/encoder"
	"spinarchive/archive-api/internal/notifier"
	"spinarchive/archive-api/internal/quota"
	"spinarchive/archive-api/internal/store"
	"spinarchive/archive-api/model"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeEncoder struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeEncoder) Submit(_ context.Context, _ *model.Upload) (*encoder.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.fail {
		return nil, encoder.ErrUnavailable
	}

	return &encoder.Job{ID: 42, Status: "processing"}, nil
}

func (f *fakeEncoder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (f *fakePublisher) Publish(ev notifier.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakePublisher) all() []notifier.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notifier.Event{}, f.events...)
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *gorm.DB, *fakeEncoder, *fakePublisher) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.User{}, model.Upload{}, model.AuditLog{}))

	viper.Set("aws.asset_host", "https://bits.example.org")
	viper.Set("aws.encoded_folder", "e")
	viper.Set("aws.thumbnail_folder", "t")

	uploads := store.NewUploadStore(db)
	enc := &fakeEncoder{}
	pub := &fakePublisher{}

	o := NewOrchestrator(
		uploads,
		store.NewAuditStore(db),
		quota.NewTracker(uploads, true),
		enc,
		pub,
	)

	return o, db, enc, pub
}

func makeUser(t *testing.T, db *gorm.DB, name string, role model.Role, limit int) *model.User {
	t.Helper()

	u := &model.User{Username: name, Role: role, DailyUploadLimit: limit}
	require.NoError(t, db.Create(u).Error)

	return u
}

// checkPublishInvariant asserts that output URLs are present exactly when
// the upload is Completed.
func checkPublishInvariant(t *testing.T, u *model.Upload) {
	t.Helper()

	if u.Status == model.StatusCompleted {
		assert.NotEmpty(t, u.VideoURL)
		assert.NotEmpty(t, u.ThumbnailURL)
	} else {
		assert.Empty(t, u.VideoURL)
		assert.Empty(t, u.ThumbnailURL)
	}
}

func TestUploadLifecycle(t *testing.T) {
	o, db, enc, _ := newTestOrchestrator(t)
	user := makeUser(t, db, "alice", model.RoleMember, 1)

	up, err := o.Create(user, "clip.mp4", "mp4", 1000, "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, up.Status)
	assert.Len(t, up.FileID, 21)
	assert.Len(t, up.EncodingKey, 21)
	assert.NotEqual(t, up.FileID, up.EncodingKey)
	checkPublishInvariant(t, up)

	// Quota 1: the open reservation blocks a second create
	_, err = o.Create(user, "clip2.mp4", "mp4", 2000, "")
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	fin, err := o.Finalize(user, up.FileID, "Funny Clip", "https://example.org/src", "a clip", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, fin.Status)
	assert.Equal(t, "funny clip", fin.TagString)
	assert.Equal(t, 1, enc.count())
	checkPublishInvariant(t, fin)

	done, err := o.AcceptWebhook(up.EncodingKey, &encoder.Job{ID: 42, Event: encoder.EventJobCompleted})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.Equal(t, "https://bits.example.org/e/"+up.FileID+".mp4", done.VideoURL)
	assert.Equal(t, "https://bits.example.org/t/"+up.FileID+".jpg", done.ThumbnailURL)
	checkPublishInvariant(t, done)
}

func TestFinalizeTwice(t *testing.T) {
	o, db, enc, _ := newTestOrchestrator(t)
	user := makeUser(t, db, "alice", model.RoleMember, 5)

	up, err := o.Create(user, "clip.mp4", "mp4", 1000, "")
	require.NoError(t, err)

	_, err = o.Finalize(user, up.FileID, "tag", "", "", nil)
	require.NoError(t, err)

	_, err = o.Finalize(user, up.FileID, "tag", "", "", nil)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// No double submission either
	assert.Equal(t, 1, enc.count())
}

func TestFinalizeUnknown(t *testing.T) {
	o, db, _, _ := newTestOrchestrator(t)
	user := makeUser(t, db, "alice", model.RoleMember, 5)

	_, err := o.Finalize(user, "nope", "tag", "", "", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFinalizeSurvivesEncoderOutage(t *testing.T) {
	o, db, enc, _ := newTestOrchestrator(t)
	enc.fail = true

	user := makeUser(t, db, "alice", model.RoleMember, 5)

	up, err := o.Create(user, "clip.mp4", "mp4", 1000, "")
	require.NoError(t, err)

	// Submission failure is swallowed, the user-facing call succeeds
	fin, err := o.Finalize(user, up.FileID, "tag", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, fin.Status)
}

func TestWebhookReplay(t *testing.T) {
	o, db, _, _ := newTestOrchestrator(t)
	user := makeUser(t, db, "alice", model.RoleMember, 5)

	up, err := o.Create(user, "clip.mp4", "mp4", 1000, "")
	require.NoError(t, err)
	_, err = o.Finalize(user, up.FileID, "tag", "", "", nil)
	require.NoError(t, err)

	job := &encoder.Job{ID: 42, Event: encoder.EventJobCompleted}

	first, err := o.AcceptWebhook(up.EncodingKey, job)
	require.NoError(t, err)

	_, err = o.AcceptWebhook(up.EncodingKey, job)
	assert.ErrorIs(t, err, ErrInvalidState)

	// Fields untouched by the replay
	var after model.Upload
	require.NoError(t, db.First(&after, first.ID).Error)
	assert.Equal(t, first.Status, after.Status)
	assert.Equal(t, first.VideoURL, after.VideoURL)
	assert.Equal(t, first.ThumbnailURL, after.ThumbnailURL)
}

func TestWebhookWrongEvent(t *testing.T) {
	o, db, _, _ := newTestOrchestrator(t)
	user := makeUser(t, db, "alice", model.RoleMember, 5)

	up, err := o.Create(user, "clip.mp4", "mp4", 1000, "")
	require.NoError(t, err)
	_, err = o.Finalize(user, up.FileID, "tag", "", "", nil)
	require.NoError(t, err)

	_, err = o.AcceptWebhook(up.EncodingKey, &encoder.Job{ID: 42, Event: "job.progress"})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = o.AcceptWebhook("unknown-key", &encoder.Job{ID: 42, Event: encoder.EventJobCompleted})
	assert.ErrorIs(t, err, ErrNotFound)

	// The upload is still waiting for its real completion event
	reloaded, err := o.Store.ByFileID(up.FileID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, reloaded.Status)
}

func TestCreateDuplicate(t *testing.T) {
	o, db, _, _ := newTestOrchestrator(t)
	user := makeUser(t, db, "alice", model.RoleMember, 5)

	_, err := o.Create(user, "clip.mp4", "mp4", 1000, "")
	require.NoError(t, err)

	// Same name+extension+size
	_, err = o.Create(user, "clip.mp4", "mp4", 1000, "")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	up, err := o.Create(user, "other.mp4", "mp4", 500, "d41d8cd98f00b204e9800998ecf8427e")
	require.NoError(t, err)
	require.NotNil(t, up)

	// Same checksum, different name
	_, err = o.Create(user, "renamed.mp4", "mp4", 500, "d41d8cd98f00b204e9800998ecf8427e")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestQuotaBypassForContributors(t *testing.T) {
	o, db, _, _ := newTestOrchestrator(t)
	user := makeUser(t, db, "carol", model.RoleContributor, 1)

	_, err := o.Create(user, "a.mp4", "mp4", 1, "")
	require.NoError(t, err)
	_, err = o.Create(user, "b.mp4", "mp4", 2, "")
	require.NoError(t, err)
	_, err = o.Create(user, "c.mp4", "mp4", 3, "")
	require.NoError(t, err)
}

func TestUpdateMetadataAudits(t *testing.T) {
	o, db, _, _ := newTestOrchestrator(t)
	user := makeUser(t, db, "alice", model.RoleMember, 5)

	up, err := o.Create(user, "clip.mp4", "mp4", 1000, "")
	require.NoError(t, err)
	_, err = o.Finalize(user, up.FileID, "skating", "orig", "desc", nil)
	require.NoError(t, err)
	_, err = o.AcceptWebhook(up.EncodingKey, &encoder.Job{Event: encoder.EventJobCompleted})
	require.NoError(t, err)

	// No-op edit leaves no trace
	_, err = o.UpdateMetadata(user, up.FileID, "skating", "orig", "desc", nil)
	require.NoError(t, err)

	entries, err := o.Audits.ByRow(store.UploadsTable, up.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Changing only the source produces exactly one entry
	_, err = o.UpdateMetadata(user, up.FileID, "skating", "elsewhere", "desc", nil)
	require.NoError(t, err)

	entries, err = o.Audits.ByRow(store.UploadsTable, up.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "source", entries[0].ColumnName)
	assert.Equal(t, "orig", entries[0].OldValue)
	assert.Equal(t, "elsewhere", entries[0].NewValue)

	// Changing every field produces one entry per field
	_, err = o.UpdateMetadata(user, up.FileID, "spinning", "another", "new desc", nil)
	require.NoError(t, err)

	entries, err = o.Audits.ByRow(store.UploadsTable, up.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestUpdateMetadataUnknown(t *testing.T) {
	o, db, _, _ := newTestOrchestrator(t)
	user := makeUser(t, db, "alice", model.RoleMember, 5)

	_, err := o.UpdateMetadata(user, "nope", "", "", "", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	o, db, _, _ := newTestOrchestrator(t)
	user := makeUser(t, db, "alice", model.RoleMember, 5)
	mod := makeUser(t, db, "mod", model.RoleModerator, 5)

	up, err := o.Create(user, "clip.mp4", "mp4", 1000, "")
	require.NoError(t, err)

	_, err = o.Delete(user, up.FileID)
	assert.ErrorIs(t, err, ErrForbidden)

	deleted, err := o.Delete(mod, up.FileID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeleted, deleted.Status)

	// The status change itself is audited
	entries, err := o.Audits.ByRow(store.UploadsTable, up.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "status", entries[0].ColumnName)
	assert.Equal(t, "pending", entries[0].OldValue)
	assert.Equal(t, "deleted", entries[0].NewValue)

	_, err = o.Delete(mod, up.FileID)
	assert.ErrorIs(t, err, ErrWrongState)
}

func TestApprovalFlow(t *testing.T) {
	o, db, _, pub := newTestOrchestrator(t)
	user := makeUser(t, db, "newbie", model.RoleLimited, 5)
	mod := makeUser(t, db, "mod", model.RoleModerator, 5)

	up, err := o.Create(user, "clip.mp4", "mp4", 1000, "")
	require.NoError(t, err)
	_, err = o.Finalize(user, up.FileID, "tag", "", "", nil)
	require.NoError(t, err)

	queued, err := o.AcceptWebhook(up.EncodingKey, &encoder.Job{Event: encoder.EventJobCompleted})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingApproval, queued.Status)
	checkPublishInvariant(t, queued)

	_, err = o.Approve(user, up.FileID)
	assert.ErrorIs(t, err, ErrForbidden)

	published, err := o.Approve(mod, up.FileID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, published.Status)
	checkPublishInvariant(t, published)

	_, err = o.Approve(mod, up.FileID)
	assert.ErrorIs(t, err, ErrWrongState)

	events := pub.all()
	require.Len(t, events, 2)
	assert.Equal(t, notifier.EventUploadPendingApproval, events[0].Kind)
	assert.Equal(t, notifier.EventUploadPublished, events[1].Kind)
}

func TestRecommendRelated(t *testing.T) {
	o, db, _, _ := newTestOrchestrator(t)

	seed := []model.Upload{
		{Status: model.StatusCompleted, FileID: "aaa", EncodingKey: "ka", TagString: "skating outdoor"},
		{Status: model.StatusCompleted, FileID: "bbb", EncodingKey: "kb", TagString: "skating indoor"},
		{Status: model.StatusPending, FileID: "ccc", EncodingKey: "kc", TagString: "skating"},
	}
	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	related := o.RecommendRelated(&seed[0], 10)
	require.Len(t, related, 1)
	assert.Equal(t, "bbb", related[0].FileID)

	// Second hit comes from the cache
	related = o.RecommendRelated(&seed[0], 10)
	assert.Len(t, related, 1)
}
