// Package filesystem provides a document source that reads a local directory.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/logger"
)

// Ensure Connector implements the interface.
var _ driven.DocumentSource = (*Connector)(nil)

// MaxFileSize is the largest file read; bigger files are skipped.
const MaxFileSize = 32 << 20

// extraMIMETypes covers extensions the platform MIME table often lacks.
var extraMIMETypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".rs":       "text/x-rust",
	".ts":       "text/typescript",
	".tsx":      "text/typescript-jsx",
	".jsx":      "text/javascript-jsx",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".sh":       "text/x-shellscript",
	".bash":     "text/x-shellscript",
	".sql":      "text/x-sql",
	".txt":      "text/plain",
	".rst":      "text/plain",
	".csv":      "text/csv",
	".json":     "application/json",
	".xml":      "application/xml",
	".html":     "text/html",
	".htm":      "text/html",
	".pdf":      "application/pdf",
	".xlsx":     "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Connector reads every non-hidden regular file below a root directory.
type Connector struct {
	sourceID string
	rootPath string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// New creates a connector for rootPath.
func New(sourceID, rootPath string) *Connector {
	return &Connector{sourceID: sourceID, rootPath: rootPath}
}

// SourceID returns the configured source identifier.
func (c *Connector) SourceID() string {
	return c.sourceID
}

// Validate checks that the root path is a readable directory.
func (c *Connector) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(c.rootPath)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("path %s does not exist", c.rootPath)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", c.rootPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path %s is not a directory", c.rootPath)
	}
	return nil
}

// FullSync walks the root directory in lexical order.
// Unreadable files are reported on the error channel and the walk continues.
func (c *Connector) FullSync(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error, 16)

	go func() {
		defer close(docs)
		defer close(errs)

		if err := c.Validate(ctx); err != nil {
			errs <- err
			return
		}

		walkErr := filepath.WalkDir(c.rootPath, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				c.report(errs, fmt.Errorf("walk %s: %w", path, err))
				return nil
			}
			if path != c.rootPath && isHidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}

			doc, err := c.readFile(path)
			if err != nil {
				c.report(errs, err)
				return nil
			}
			if doc == nil {
				return nil
			}
			select {
			case docs <- *doc:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
			c.report(errs, walkErr)
		}
	}()

	return docs, errs
}

// report sends err without blocking a walk whose consumer only drains documents.
func (c *Connector) report(errs chan<- error, err error) {
	select {
	case errs <- err:
	default:
		logger.Warn("filesystem %s: %v", c.sourceID, err)
	}
}

// Watch reports file changes below the root until ctx is cancelled.
// New subdirectories are watched as they appear.
func (c *Connector) Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("connector closed")
	}
	if c.watcher != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("watch already running")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	c.watcher = watcher
	c.mu.Unlock()

	if err := c.addTree(watcher, c.rootPath); err != nil {
		c.Close()
		return nil, err
	}

	changes := make(chan domain.RawDocumentChange)
	go func() {
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !isHidden(filepath.Base(event.Name)) {
						if err := c.addTree(watcher, event.Name); err != nil {
							logger.Warn("filesystem %s: %v", c.sourceID, err)
						}
						continue
					}
				}
				change := c.handleFsEvent(event)
				if change == nil {
					continue
				}
				select {
				case changes <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("filesystem %s: watch error: %v", c.sourceID, err)
			}
		}
	}()

	return changes, nil
}

func (c *Connector) addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != c.rootPath && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// handleFsEvent converts an fsnotify event into a change, or nil if ignored.
func (c *Connector) handleFsEvent(event fsnotify.Event) *domain.RawDocumentChange {
	if isHidden(relative(c.rootPath, event.Name)) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &domain.RawDocumentChange{
			Type: domain.ChangeDeleted,
			Document: domain.RawDocument{
				SourceID: c.sourceID,
				URI:      event.Name,
				MIMEType: detectMIMEType(event.Name),
			},
		}

	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		doc, err := c.readFile(event.Name)
		if err != nil {
			logger.Warn("filesystem %s: %v", c.sourceID, err)
			return nil
		}
		if doc == nil {
			return nil
		}
		changeType := domain.ChangeUpdated
		if event.Has(fsnotify.Create) {
			changeType = domain.ChangeCreated
		}
		return &domain.RawDocumentChange{Type: changeType, Document: *doc}

	default:
		return nil
	}
}

// readFile returns nil for directories and files over MaxFileSize.
func (c *Connector) readFile(path string) (*domain.RawDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, nil
	}
	if info.Size() > MaxFileSize {
		logger.Debug("skipping %s: %d bytes exceeds limit", path, info.Size())
		return nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	name := filepath.Base(path)
	return &domain.RawDocument{
		SourceID: c.sourceID,
		URI:      path,
		MIMEType: detectMIMEType(name),
		Content:  content,
		Metadata: map[string]any{
			"filename":    name,
			"extension":   strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."),
			"size":        info.Size(),
			"modified_at": info.ModTime().UTC(),
		},
	}, nil
}

// Close stops any running watch. It is safe to call more than once.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.watcher == nil {
		return nil
	}
	err := c.watcher.Close()
	c.watcher = nil
	return err
}

// detectMIMEType maps a file name to a MIME type without parameters.
// Names without an extension are treated as plain text.
func detectMIMEType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return "text/plain"
	}
	if t, ok := extraMIMETypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return strings.TrimSpace(t)
	}
	return "application/octet-stream"
}

// isHidden reports whether any element of path starts with a dot.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}

func relative(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}
