package file

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/minio/highwayhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/bintly"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

func testSnapshot() domain.IndexSnapshot {
	return domain.IndexSnapshot{
		Header: domain.IndexHeader{
			Dimension:   3,
			Metric:      domain.MetricEuclidean,
			RecordCount: 2,
			BuildID:     "b-42",
			CreatedAt:   time.Date(2025, 5, 4, 10, 30, 0, 0, time.UTC),
		},
		Records: []domain.EmbeddingRecord{
			{ID: 1, Vector: []float32{0.5, -1, 2}, DocumentID: "doc-1", Start: 0, End: 6, Text: "Grüße!"},
			{ID: 2, Vector: []float32{0, 0, 0}, DocumentID: "doc-2", Start: 4, End: 9, Text: "hello"},
		},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "data", DefaultFileName))
	require.NoError(t, err)
	return store
}

// seal appends a valid checksum to payload.
func seal(payload []byte) []byte {
	out := append([]byte(nil), payload...)
	sum := make([]byte, checksumSize)
	binary.LittleEndian.PutUint64(sum, highwayhash.Sum64(payload, checksumKey))
	return append(out, sum...)
}

func TestEncodeDecode(t *testing.T) {
	want := testSnapshot()

	got, err := Decode(Encode(want))
	require.NoError(t, err)

	assert.Equal(t, want.Header.Dimension, got.Header.Dimension)
	assert.Equal(t, want.Header.Metric, got.Header.Metric)
	assert.Equal(t, want.Header.RecordCount, got.Header.RecordCount)
	assert.Equal(t, want.Header.BuildID, got.Header.BuildID)
	assert.True(t, want.Header.CreatedAt.Equal(got.Header.CreatedAt))
	assert.Equal(t, want.Records, got.Records)
	assert.NoError(t, got.Validate(domain.MetricEuclidean))
}

func TestEncodeDecode_Empty(t *testing.T) {
	got, err := Decode(Encode(domain.IndexSnapshot{Header: domain.IndexHeader{Metric: domain.MetricCosine}}))
	require.NoError(t, err)
	assert.Empty(t, got.Records)
	assert.False(t, got.Header.CreatedAt.IsZero())
}

func TestDecode_Corruption(t *testing.T) {
	data := Encode(testSnapshot())

	t.Run("flipped byte", func(t *testing.T) {
		broken := append([]byte(nil), data...)
		broken[len(broken)/2] ^= 0xff
		_, err := Decode(broken)
		assert.True(t, errors.Is(err, domain.ErrIndexCorrupt))
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := Decode(data[:len(data)-3])
		assert.True(t, errors.Is(err, domain.ErrIndexCorrupt))
	})

	t.Run("too short", func(t *testing.T) {
		_, err := Decode([]byte{1, 2})
		assert.True(t, errors.Is(err, domain.ErrIndexCorrupt))
	})

	t.Run("bad magic", func(t *testing.T) {
		writers := bintly.NewWriters()
		w := writers.Get()
		defer writers.Put(w)
		w.String("NOPE")
		w.Int(Version)

		_, err := Decode(seal(w.Bytes()))
		assert.True(t, errors.Is(err, domain.ErrIndexCorrupt))
	})

	t.Run("future version", func(t *testing.T) {
		writers := bintly.NewWriters()
		w := writers.Get()
		defer writers.Put(w)
		w.String(Magic)
		w.Int(Version + 1)

		_, err := Decode(seal(w.Bytes()))
		assert.True(t, errors.Is(err, domain.ErrIndexCorrupt))
	})
}

func TestStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)

	exists, err := store.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Load(context.Background())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Save(ctx, testSnapshot()))

	exists, err := store.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = os.Stat(store.Location() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file is moved into place")

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSnapshot().Records, got.Records)
}

func TestStore_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Save(ctx, testSnapshot()))
	next := domain.IndexSnapshot{
		Header:  domain.IndexHeader{Dimension: 1, Metric: domain.MetricCosine, RecordCount: 1},
		Records: []domain.EmbeddingRecord{{ID: 7, Vector: []float32{1}, DocumentID: "x", Text: "x", End: 1}},
	}
	require.NoError(t, store.Save(ctx, next))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, next.Records, got.Records)
	assert.Equal(t, domain.MetricCosine, got.Header.Metric)
}

func TestStore_CancelledSaveKeepsPrevious(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(context.Background(), testSnapshot()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Save(ctx, domain.IndexSnapshot{}), context.Canceled)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got.Records, 2)
}

func TestStore_CorruptFile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Save(ctx, testSnapshot()))

	data, err := os.ReadFile(store.Location())
	require.NoError(t, err)
	data[10] ^= 0x01
	require.NoError(t, os.WriteFile(store.Location(), data, 0600))

	_, err = store.Load(ctx)
	assert.True(t, errors.Is(err, domain.ErrIndexCorrupt))
}

// recordingFS counts uploads and moves per destination URL.
type recordingFS struct {
	afs.Service
	uploads map[string]int
	moves   map[string]int
}

func newRecordingFS() *recordingFS {
	return &recordingFS{Service: afs.New(), uploads: map[string]int{}, moves: map[string]int{}}
}

func (r *recordingFS) Upload(ctx context.Context, URL string, mode os.FileMode, reader io.Reader, options ...storage.Option) error {
	r.uploads[URL]++
	return r.Service.Upload(ctx, URL, mode, reader, options...)
}

func (r *recordingFS) Move(ctx context.Context, sourceURL, destURL string, options ...storage.Option) error {
	r.moves[destURL]++
	return r.Service.Move(ctx, sourceURL, destURL, options...)
}

func TestStore_RemoteSaveMovesTemporary(t *testing.T) {
	ctx := context.Background()
	location := "mem://localhost/" + t.Name() + "/" + DefaultFileName
	store, err := NewStore(location)
	require.NoError(t, err)
	fs := newRecordingFS()
	store.fs = fs

	require.NoError(t, store.Save(ctx, testSnapshot()))

	assert.Equal(t, 1, fs.uploads[location+".tmp"])
	assert.Zero(t, fs.uploads[location], "index is not uploaded twice")
	assert.Equal(t, 1, fs.moves[location])

	tmpExists, err := fs.Exists(ctx, location+".tmp")
	require.NoError(t, err)
	assert.False(t, tmpExists)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSnapshot().Records, got.Records)

	next := domain.IndexSnapshot{
		Header:  domain.IndexHeader{Dimension: 1, Metric: domain.MetricCosine, RecordCount: 1},
		Records: []domain.EmbeddingRecord{{ID: 7, Vector: []float32{1}, DocumentID: "x", Text: "x", End: 1}},
	}
	require.NoError(t, store.Save(ctx, next))
	assert.Equal(t, 2, fs.moves[location])

	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, next.Records, got.Records)
}

func TestIsLocal(t *testing.T) {
	assert.True(t, isLocal("/tmp/index.ragx"))
	assert.True(t, isLocal("file:///tmp/index.ragx"))
	assert.False(t, isLocal("s3://bucket/index.ragx"))
	assert.Equal(t, "/tmp/x", localPath("file:///tmp/x"))
}
