// Package file persists a vector index snapshot as a single binary file.
//
// The file holds a bintly-encoded payload (magic, format version, header,
// then records in id order) followed by a little-endian HighwayHash-64
// checksum of the payload. Writes go to a temporary sibling first and are
// moved into place, so a failed save leaves the previous file intact.
//
// Locations are afs URLs; a plain path addresses the local filesystem.
package file

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/highwayhash"
	"github.com/viant/afs"
	afsfile "github.com/viant/afs/file"
	"github.com/viant/bintly"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

const (
	// Magic identifies an index file.
	Magic = "RAGX"

	// Version is the current file format version.
	Version = 1

	// DefaultFileName is the index file created inside the data directory.
	DefaultFileName = "index.ragx"

	checksumSize = 8
)

// checksumKey keys the HighwayHash checksum. It is fixed for the format.
var checksumKey = []byte("ragkit-index-checksum-key-000001")

// Ensure Store implements the interface.
var _ driven.IndexStore = (*Store)(nil)

// Store reads and writes an index file through afs.
type Store struct {
	fs  afs.Service
	url string
}

// NewStore creates a store for location.
// If location is empty, defaults to ~/.ragkit/data/index.ragx.
func NewStore(location string) (*Store, error) {
	if location == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		location = filepath.Join(home, ".ragkit", "data", DefaultFileName)
	}
	if isLocal(location) {
		if err := os.MkdirAll(filepath.Dir(localPath(location)), 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	return &Store{fs: afs.New(), url: location}, nil
}

// Location returns the index file URL.
func (s *Store) Location() string {
	return s.url
}

// Exists reports whether the index file exists.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	ok, err := s.fs.Exists(ctx, s.url)
	if err != nil {
		return false, fmt.Errorf("checking index file: %w", err)
	}
	return ok, nil
}

// Save encodes snapshot and atomically replaces the index file.
func (s *Store) Save(ctx context.Context, snapshot domain.IndexSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data := Encode(snapshot)

	tmp := s.url + ".tmp"
	if err := s.fs.Upload(ctx, tmp, afsfile.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing temporary index: %w", err)
	}

	if isLocal(s.url) {
		if err := os.Rename(localPath(tmp), localPath(s.url)); err != nil {
			_ = s.fs.Delete(ctx, tmp)
			return fmt.Errorf("replacing index file: %w", err)
		}
		return nil
	}

	if err := s.fs.Move(ctx, tmp, s.url); err != nil {
		_ = s.fs.Delete(ctx, tmp)
		return fmt.Errorf("replacing index file: %w", err)
	}
	return nil
}

// Load reads and verifies the index file.
// Returns domain.ErrNotFound if it does not exist and domain.ErrIndexCorrupt
// if the checksum or structure is invalid.
func (s *Store) Load(ctx context.Context) (*domain.IndexSnapshot, error) {
	ok, err := s.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound
	}

	data, err := s.fs.DownloadWithURL(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("reading index file: %w", err)
	}
	return Decode(data)
}

// Close is a no-op; afs holds no per-store resources.
func (s *Store) Close() error {
	return nil
}

// Encode serialises snapshot with a trailing checksum.
func Encode(snapshot domain.IndexSnapshot) []byte {
	writers := bintly.NewWriters()
	w := writers.Get()
	defer writers.Put(w)

	h := snapshot.Header
	createdAt := h.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	w.String(Magic)
	w.Int(Version)
	w.Int(h.Dimension)
	w.String(string(h.Metric))
	w.Int(len(snapshot.Records))
	w.String(h.BuildID)
	w.Time(createdAt)

	for i := range snapshot.Records {
		r := &snapshot.Records[i]
		w.Int(int(r.ID))
		w.String(r.DocumentID)
		w.Int(r.Start)
		w.Int(r.End)
		w.String(r.Text)
		w.Int(len(r.Vector))
		for _, x := range r.Vector {
			w.Float32(x)
		}
	}

	payload := w.Bytes()
	out := make([]byte, len(payload)+checksumSize)
	copy(out, payload)
	binary.LittleEndian.PutUint64(out[len(payload):], highwayhash.Sum64(payload, checksumKey))
	return out
}

// Decode verifies the checksum and deserialises a snapshot.
func Decode(data []byte) (snapshot *domain.IndexSnapshot, err error) {
	if len(data) < checksumSize {
		return nil, fmt.Errorf("%w: file too short", domain.ErrIndexCorrupt)
	}
	payload := data[:len(data)-checksumSize]
	want := binary.LittleEndian.Uint64(data[len(payload):])
	if got := highwayhash.Sum64(payload, checksumKey); got != want {
		return nil, fmt.Errorf("%w: checksum mismatch", domain.ErrIndexCorrupt)
	}

	// the checksum guards against damage, not against a malformed writer
	defer func() {
		if r := recover(); r != nil {
			snapshot = nil
			err = fmt.Errorf("%w: malformed payload: %v", domain.ErrIndexCorrupt, r)
		}
	}()

	readers := bintly.NewReaders()
	r := readers.Get()
	defer readers.Put(r)
	if err := r.FromBytes(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexCorrupt, err)
	}

	var magic, metric string
	var version, count int
	out := &domain.IndexSnapshot{}

	r.String(&magic)
	if magic != Magic {
		return nil, fmt.Errorf("%w: bad magic %q", domain.ErrIndexCorrupt, magic)
	}
	r.Int(&version)
	if version != Version {
		return nil, fmt.Errorf("%w: unsupported format version %d", domain.ErrIndexCorrupt, version)
	}
	r.Int(&out.Header.Dimension)
	r.String(&metric)
	r.Int(&count)
	r.String(&out.Header.BuildID)
	r.Time(&out.Header.CreatedAt)
	out.Header.Metric = domain.Metric(metric)
	out.Header.RecordCount = count

	if count < 0 || out.Header.Dimension < 0 {
		return nil, fmt.Errorf("%w: negative sizes in header", domain.ErrIndexCorrupt)
	}

	out.Records = make([]domain.EmbeddingRecord, count)
	for i := range out.Records {
		rec := &out.Records[i]
		var id, n int
		r.Int(&id)
		r.String(&rec.DocumentID)
		r.Int(&rec.Start)
		r.Int(&rec.End)
		r.String(&rec.Text)
		r.Int(&n)
		if n < 0 || n > len(payload) {
			return nil, fmt.Errorf("%w: record %d has invalid vector length %d", domain.ErrIndexCorrupt, id, n)
		}
		rec.ID = int64(id)
		rec.Vector = make([]float32, n)
		for j := range rec.Vector {
			r.Float32(&rec.Vector[j])
		}
	}

	return out, nil
}

func isLocal(location string) bool {
	return !strings.Contains(location, "://") || strings.HasPrefix(location, "file://")
}

func localPath(location string) string {
	return strings.TrimPrefix(location, "file://")
}
