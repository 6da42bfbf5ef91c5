package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/logger"
)

var _ driven.PromptStore = (*PromptStore)(nil)

// builtinPrompts seed the prompt directory and back every Load.
var builtinPrompts = map[string]string{
	driven.PromptAnswer: domain.AnswerTemplate,
}

const promptReadme = `# ragkit prompts

answer.txt is the template used to answer questions from retrieved passages.

Placeholders:
  {context}   the retrieved passages, separated by blank lines
  {question}  the question being asked

A template without both placeholders is ignored and the built-in one is
used. Keep the fallback sentence so the model can say when the context is
insufficient:

    %s

Edits are picked up on the next question; no restart is needed.
`

// PromptStore serves templates from <dir>/<name>.txt. The directory and
// default files are written on first use, never in the constructor. A
// cached template is re-read when its file's modification time changes.
type PromptStore struct {
	dir string

	seedOnce sync.Once
	seedErr  error

	mu      sync.Mutex
	entries map[string]promptEntry
}

type promptEntry struct {
	text    string
	modTime time.Time
	size    int64
}

// NewPromptStore creates a prompt store rooted at dir, defaulting to
// ~/.ragkit/prompts.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".ragkit", "prompts")
	}
	return &PromptStore{dir: dir, entries: make(map[string]promptEntry)}, nil
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

// Load returns the template for name.
func (s *PromptStore) Load(name string) (string, error) {
	builtin, known := builtinPrompts[name]
	if !known {
		return "", fmt.Errorf("%w: unknown prompt %q", domain.ErrNotFound, name)
	}

	s.seedOnce.Do(s.seed)
	if s.seedErr != nil {
		return builtin, nil
	}

	text, err := s.read(name)
	if err != nil {
		logger.Debug("prompt %s: %v, using built-in template", name, err)
		return builtin, nil
	}
	return text, nil
}

func (s *PromptStore) read(name string) (string, error) {
	path := s.path(name)
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[name]; ok && e.modTime.Equal(info.ModTime()) && e.size == info.Size() {
		return e.text, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	s.entries[name] = promptEntry{text: text, modTime: info.ModTime(), size: info.Size()}
	return text, nil
}

func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		logger.Warn("%v", s.seedErr)
		return
	}

	files := map[string]string{"README.md": fmt.Sprintf(promptReadme, domain.FallbackInsufficient)}
	for name, text := range builtinPrompts {
		files[name+".txt"] = text
	}
	for file, content := range files {
		if err := writeIfMissing(filepath.Join(s.dir, file), content); err != nil {
			s.seedErr = err
			logger.Warn("%v", err)
			return
		}
	}
}

func (s *PromptStore) path(name string) string {
	return filepath.Join(s.dir, name+".txt")
}

func writeIfMissing(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
