// Package settings persists user-level assistant state (voice selection, voice
// parameters, custom presets) as a typed key/value document.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Fixed keys shared by the preset catalog, parameter state, and assistant.
const (
	KeySelectedVoiceID      = "selectedVoiceId"
	KeyVoiceStability       = "voiceStability"
	KeyVoiceSimilarityBoost = "voiceSimilarityBoost"
	KeyCustomPresets        = "customPresets"
	KeyGrammarProvider      = "grammarProvider"
)

// ErrDecode reports a stored value that cannot be decoded into the requested type.
var ErrDecode = errors.New("decode stored value")

// Store is a process-wide key/value store. Values are kept as YAML nodes so each
// reader decodes into its own type. A Store with an empty path never touches disk.
type Store struct {
	path string

	mu     sync.Mutex
	values map[string]*yaml.Node
}

// NewMemory returns a store that lives only for the process lifetime.
func NewMemory() *Store {
	return &Store{values: make(map[string]*yaml.Node)}
}

// Open loads the document at path. A missing file yields an empty store. A
// malformed file is moved aside to path+".corrupt", reported as a warning, and
// the store starts empty.
func Open(path string) (*Store, []string, error) {
	s := &Store{path: path, values: make(map[string]*yaml.Node)}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil, nil
		}
		return nil, nil, fmt.Errorf("read settings %q: %w", path, err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return s, nil, nil
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		backup := path + ".corrupt"
		if renameErr := os.Rename(path, backup); renameErr != nil {
			return nil, nil, fmt.Errorf("move corrupt settings %q aside: %w", path, renameErr)
		}
		return s, []string{fmt.Sprintf("settings %q is malformed (moved to %q): %v", path, backup, err)}, nil
	}

	for key, node := range doc {
		node := node
		s.values[key] = &node
	}
	return s, nil, nil
}

// Path returns the backing file, or "" for memory stores.
func (s *Store) Path() string {
	return s.path
}

// Get decodes the value stored under key into out. It reports false when the key
// is absent. Decode failures wrap ErrDecode.
func (s *Store) Get(key string, out any) (bool, error) {
	s.mu.Lock()
	node, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := node.Decode(out); err != nil {
		return true, fmt.Errorf("%w %q: %v", ErrDecode, key, err)
	}
	return true, nil
}

// Set stores value under key and writes the document through to disk.
func (s *Store) Set(key string, value any) error {
	node := &yaml.Node{}
	if err := node.Encode(value); err != nil {
		return fmt.Errorf("encode setting %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = node
	return s.flushLocked()
}

// SetRaw stores unparsed YAML under key. It exists so corrupted payloads can be
// reproduced without touching disk by hand.
func (s *Store) SetRaw(key string, raw string) error {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("parse raw setting %q: %w", key, err)
	}
	node := &doc
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		node = doc.Content[0]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = node
	return s.flushLocked()
}

// flushLocked rewrites the backing file atomically. Callers hold s.mu.
func (s *Store) flushLocked() error {
	if s.path == "" {
		return nil
	}

	content, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return writeFileAtomic(s.path, content)
}

// writeFileAtomic replaces path with content through a same-directory rename.
func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("ensure settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace settings %q: %w", path, err)
	}
	return nil
}

// ResolvePath selects XDG_STATE_HOME when available, otherwise ~/.local/state.
func ResolvePath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "voiceassist", "settings.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "voiceassist", "settings.yaml"), nil
}
