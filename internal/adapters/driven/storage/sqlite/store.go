package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/ragkit/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// DefaultFileName is the database file created inside the data directory.
const DefaultFileName = "index.db"

// Ensure Store implements the interface.
var _ driven.IndexStore = (*Store)(nil)

// Store persists a vector index snapshot in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens or creates the database at path.
// If path is empty, defaults to ~/.ragkit/data/index.db.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".ragkit", "data", DefaultFileName)
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: path,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Location returns the database file path.
func (s *Store) Location() string {
	return "sqlite:" + s.path
}

// Save replaces the stored index with snapshot in a single transaction.
func (s *Store) Save(ctx context.Context, snapshot domain.IndexSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM index_meta"); err != nil {
		return fmt.Errorf("clearing header: %w", err)
	}

	h := snapshot.Header
	createdAt := h.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO index_meta (id, dimension, metric, record_count, build_id, created_at)
		VALUES (1, ?, ?, ?, ?, ?)
	`, h.Dimension, string(h.Metric), len(snapshot.Records), h.BuildID, createdAt)
	if err != nil {
		return fmt.Errorf("saving header: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (id, document_id, start_offset, end_offset, text, vector)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer stmt.Close()

	for i := range snapshot.Records {
		r := &snapshot.Records[i]
		if _, err := stmt.ExecContext(ctx, r.ID, r.DocumentID, r.Start, r.End, r.Text,
			float32SliceToBytes(r.Vector)); err != nil {
			return fmt.Errorf("saving record %d: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index: %w", err)
	}
	return nil
}

// Load reads the stored index. Returns domain.ErrNotFound if none was saved.
func (s *Store) Load(ctx context.Context) (*domain.IndexSnapshot, error) {
	var snapshot domain.IndexSnapshot
	var metric string
	var createdAt sql.NullTime

	row := s.db.QueryRowContext(ctx, `
		SELECT dimension, metric, record_count, build_id, created_at
		FROM index_meta WHERE id = 1
	`)
	if err := row.Scan(&snapshot.Header.Dimension, &metric, &snapshot.Header.RecordCount,
		&snapshot.Header.BuildID, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning header: %w", err)
	}
	snapshot.Header.Metric = domain.Metric(metric)
	if createdAt.Valid {
		snapshot.Header.CreatedAt = createdAt.Time
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, start_offset, end_offset, text, vector
		FROM records ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	snapshot.Records = make([]domain.EmbeddingRecord, 0, snapshot.Header.RecordCount)
	for rows.Next() {
		var r domain.EmbeddingRecord
		var blob []byte
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Start, &r.End, &r.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if len(blob)%4 != 0 {
			return nil, fmt.Errorf("%w: record %d vector has %d bytes", domain.ErrIndexCorrupt, r.ID, len(blob))
		}
		r.Vector = bytesToFloat32Slice(blob)
		snapshot.Records = append(snapshot.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	return &snapshot, nil
}

// Exists reports whether an index has been saved.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM index_meta").Scan(&count); err != nil {
		return false, fmt.Errorf("counting headers: %w", err)
	}
	return count > 0, nil
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_index.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
