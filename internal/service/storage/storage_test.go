package storage

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinelvision/internal/dto"
	"sentinelvision/internal/logger"
	"sentinelvision/internal/model"
	"sentinelvision/internal/service/retention"
)

func grayFrame(v byte) model.Frame {
	f := model.NewFrame(16, 16, 3)
	for i := range f.Data {
		f.Data[i] = v
	}
	return f
}

// ========================================
// KeyFrameStore
// ========================================

func TestKeyFrameStore_SaveCreatesDirectoryAndFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "key_frames")
	store := NewKeyFrameStore(dir, logger.Discard())

	path, err := store.Save("1700000000000000000", grayFrame(128))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "frame_1700000000000000000.jpg"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])
	assert.EqualValues(t, 1, store.Saved())
	assert.EqualValues(t, 0, store.Failed())
}

func TestKeyFrameStore_NeverOverwrites(t *testing.T) {
	store := NewKeyFrameStore(t.TempDir(), logger.Discard())

	path, err := store.Save("42", grayFrame(0))
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = store.Save("42", grayFrame(255))
	assert.ErrorIs(t, err, ErrExists)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.EqualValues(t, 1, store.Failed())
}

func TestKeyFrameStore_RejectsBadInput(t *testing.T) {
	store := NewKeyFrameStore(t.TempDir(), logger.Discard())

	_, err := store.Save("", grayFrame(1))
	assert.Error(t, err)

	_, err = store.Save("../escape", grayFrame(1))
	assert.Error(t, err)

	_, err = store.Save("7", model.Frame{})
	var invalid *model.InvalidFrameError
	assert.ErrorAs(t, err, &invalid)

	assert.EqualValues(t, 3, store.Failed())
}

func TestKeyFrameStore_WorksAsRetentionStore(t *testing.T) {
	dir := t.TempDir()
	engine := retention.NewEngine(NewKeyFrameStore(dir, logger.Discard()), nil)

	d, err := engine.Consider(grayFrame(10), 5000)
	require.NoError(t, err)
	require.Equal(t, retention.Saved, d.Outcome)

	d, err = engine.Consider(grayFrame(10), 5000)
	require.NoError(t, err)
	assert.Equal(t, retention.Skipped, d.Outcome)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDefaultDirectory(t *testing.T) {
	assert.Equal(t, "key_frames", NewKeyFrameStore("", logger.Discard()).Dir())
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"frame_1700000000123456789.jpg", "1700000000123456789", true},
		{"frame_1.jpg", "1", true},
		{"frame_.jpg", "", false},
		{"frame_abc.jpg", "", false},
		{"frame_-5.jpg", "", false},
		{"image_12.jpg", "", false},
		{"frame_12.png", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ts, ok := ParseFilename(tt.name)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.id, id)
			if ok {
				assert.Equal(t, Filename(id), tt.name)
				assert.False(t, ts.IsZero())
			}
		})
	}

	_, ts, _ := ParseFilename("frame_1700000000123456789.jpg")
	assert.Equal(t, int64(1700000000123456789), ts.UnixNano())
}

// ========================================
// Archiver
// ========================================

type fakeKeyFrameRepo struct {
	mu       sync.Mutex
	inserted []model.KeyFrame
	err      error
}

func (r *fakeKeyFrameRepo) Insert(kf *model.KeyFrame) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	r.inserted = append(r.inserted, *kf)
	return int64(len(r.inserted)), nil
}

func (r *fakeKeyFrameRepo) InsertBatch([]model.KeyFrame) (int, error) { return 0, nil }
func (r *fakeKeyFrameRepo) GetByID(int64) (*model.KeyFrame, error) { return nil, nil }
func (r *fakeKeyFrameRepo) GetByFilename(string) (*model.KeyFrame, error) { return nil, nil }
func (r *fakeKeyFrameRepo) GetAll(*dto.KeyFrameFilters) ([]model.KeyFrame, error) { return nil, nil }
func (r *fakeKeyFrameRepo) GetTotalCount(*dto.KeyFrameFilters) (int, error) { return 0, nil }
func (r *fakeKeyFrameRepo) GetTotalSize() (int64, error) { return 0, nil }
func (r *fakeKeyFrameRepo) GetStats() (*model.KeyFrameStats, error) { return nil, nil }

type fakeUploader struct {
	keys  []string
	paths []string
	err   error
}

func (u *fakeUploader) Upload(_ context.Context, key, path string) error {
	u.keys = append(u.keys, key)
	u.paths = append(u.paths, path)
	return u.err
}

func savedDecision(t *testing.T, id string) retention.Decision {
	t.Helper()
	path := filepath.Join(t.TempDir(), Filename(id))
	require.NoError(t, os.WriteFile(path, []byte("jpegbytes"), 0644))
	return retention.Decision{Outcome: retention.Saved, ID: id, Location: path, Dissimilarity: 9000}
}

func TestArchiver_RecordsAndUploads(t *testing.T) {
	repo := &fakeKeyFrameRepo{}
	up := &fakeUploader{}
	a := NewArchiver("run-1", repo, up, "key_frames", logger.Discard())

	d := savedDecision(t, "1700000000000000000")
	a.Record(context.Background(), d, 0.8)

	require.Len(t, repo.inserted, 1)
	kf := repo.inserted[0]
	assert.Equal(t, "frame_1700000000000000000.jpg", kf.Filename)
	assert.Equal(t, "run-1", kf.RunID)
	assert.Equal(t, 0.8, kf.Score)
	assert.Equal(t, 9000.0, kf.Dissimilarity)
	assert.EqualValues(t, len("jpegbytes"), kf.FileSize)
	assert.Equal(t, time.Unix(0, 1700000000000000000), kf.Timestamp)

	assert.Equal(t, []string{"key_frames/frame_1700000000000000000.jpg"}, up.keys)
	assert.Equal(t, []string{d.Location}, up.paths)
}

func TestArchiver_ForcedStoresZeroDissimilarity(t *testing.T) {
	repo := &fakeKeyFrameRepo{}
	a := NewArchiver("run", repo, nil, "", logger.Discard())

	d := savedDecision(t, "5")
	d.Forced = true
	d.Dissimilarity = math.Inf(1)
	a.Record(context.Background(), d, 0)

	require.Len(t, repo.inserted, 1)
	assert.True(t, repo.inserted[0].Forced)
	assert.Equal(t, 0.0, repo.inserted[0].Dissimilarity)
}

func TestArchiver_IgnoresSkipped(t *testing.T) {
	repo := &fakeKeyFrameRepo{}
	up := &fakeUploader{}
	a := NewArchiver("run", repo, up, "", logger.Discard())

	a.Record(context.Background(), retention.Decision{Outcome: retention.Skipped, Dissimilarity: 3}, 0.1)

	assert.Empty(t, repo.inserted)
	assert.Empty(t, up.keys)
}

func TestArchiver_FailuresAreBestEffort(t *testing.T) {
	repo := &fakeKeyFrameRepo{err: errors.New("disk full")}
	up := &fakeUploader{err: errors.New("network down")}
	a := NewArchiver("run", repo, up, "", logger.Discard())

	d := savedDecision(t, "9")
	assert.NotPanics(t, func() { a.Record(context.Background(), d, 0.3) })
	assert.Equal(t, []string{"frame_9.jpg"}, up.keys)
}

func TestArchiver_NilDependencies(t *testing.T) {
	a := NewArchiver("run", nil, nil, "", logger.Discard())
	assert.NotPanics(t, func() { a.Record(context.Background(), savedDecision(t, "1"), 0) })
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "frame_1.jpg", ObjectKey("", "frame_1.jpg"))
	assert.Equal(t, "a/b/frame_1.jpg", ObjectKey("a/b/", "frame_1.jpg"))
}

// ========================================
// S3Uploader
// ========================================

type fakeObjectClient struct {
	exists  bool
	made    []string
	puts    []minio.PutObjectOptions
	objects []string
	putErr  error
}

func (c *fakeObjectClient) BucketExists(context.Context, string) (bool, error) {
	return c.exists, nil
}

func (c *fakeObjectClient) MakeBucket(_ context.Context, name string, _ minio.MakeBucketOptions) error {
	c.made = append(c.made, name)
	return nil
}

func (c *fakeObjectClient) FPutObject(_ context.Context, bucket, object, _ string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	c.objects = append(c.objects, bucket+"/"+object)
	c.puts = append(c.puts, opts)
	return minio.UploadInfo{Bucket: bucket, Key: object}, c.putErr
}

func TestS3Uploader_Upload(t *testing.T) {
	client := &fakeObjectClient{}
	u := &S3Uploader{client: client, bucket: "sentinel"}

	require.NoError(t, u.Upload(context.Background(), "key_frames/frame_1.jpg", "/tmp/frame_1.jpg"))
	assert.Equal(t, []string{"sentinel/key_frames/frame_1.jpg"}, client.objects)
	assert.Equal(t, "image/jpeg", client.puts[0].ContentType)

	client.putErr = errors.New("denied")
	assert.Error(t, u.Upload(context.Background(), "k", "p"))
}

func TestS3Uploader_EnsureBucket(t *testing.T) {
	client := &fakeObjectClient{}
	u := &S3Uploader{client: client, bucket: "sentinel"}

	require.NoError(t, u.EnsureBucket(context.Background()))
	assert.Equal(t, []string{"sentinel"}, client.made)

	client.exists = true
	client.made = nil
	require.NoError(t, u.EnsureBucket(context.Background()))
	assert.Empty(t, client.made)
}
