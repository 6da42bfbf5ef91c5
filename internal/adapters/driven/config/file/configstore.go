package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/ragkit/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigFileName is the settings file inside the config directory.
const ConfigFileName = "config.toml"

// ConfigStore persists dotted keys to a TOML file as nested tables:
// "chunking.size" is written as size under [chunking]. Reads and writes go
// to the embedded in-memory view until Save.
type ConfigStore struct {
	*memory.ConfigStore

	fileMu sync.Mutex
	path   string
}

// NewConfigStore opens <configDir>/config.toml, creating configDir if
// needed. An empty configDir means ~/.ragkit. A missing file is not an
// error; a malformed one is.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".ragkit")
	}
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	s := &ConfigStore{
		ConfigStore: memory.NewConfigStore(),
		path:        filepath.Join(configDir, ConfigFileName),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes the current values with owner-only permissions.
func (s *ConfigStore) Save() error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	data, err := toml.Marshal(nestMap(s.Snapshot()))
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

// Load replaces the in-memory values with the file's contents.
func (s *ConfigStore) Load() error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.Replace(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	var tables map[string]any
	if err := toml.Unmarshal(data, &tables); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	s.Replace(flattenMap(tables, ""))
	return nil
}

// Path returns the TOML file path.
func (s *ConfigStore) Path() string {
	return s.path
}

// flattenMap turns {"a": {"b": 1}} into {"a.b": 1}.
func flattenMap(tables map[string]any, prefix string) map[string]any {
	out := make(map[string]any)
	for key, value := range tables {
		if prefix != "" {
			key = prefix + "." + key
		}
		nested, ok := value.(map[string]any)
		if !ok {
			out[key] = value
			continue
		}
		for k, v := range flattenMap(nested, key) {
			out[k] = v
		}
	}
	return out
}

// nestMap is the inverse of flattenMap. When a key is both a value and a
// table prefix the value wins and the table entries are dropped.
func nestMap(flat map[string]any) map[string]any {
	root := make(map[string]any)
	for key, value := range flat {
		if shadowed(flat, key) {
			continue
		}
		parts := strings.Split(key, ".")
		node := root
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}
	return root
}

// shadowed reports whether some dotted ancestor of key holds a value.
func shadowed(flat map[string]any, key string) bool {
	for i := strings.LastIndexByte(key, '.'); i > 0; i = strings.LastIndexByte(key[:i], '.') {
		if _, ok := flat[key[:i]]; ok {
			return true
		}
	}
	return false
}
