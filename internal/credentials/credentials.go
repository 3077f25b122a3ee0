// Package credentials stores provider API keys for voiceassist.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Provider credential names.
const (
	NameOpenAI     = "openai"
	NameAnthropic  = "anthropic"
	NameElevenLabs = "elevenlabs"
)

// ErrUnknownName reports a credential name outside the supported providers.
var ErrUnknownName = errors.New("unknown credential name")

var envOverrides = map[string]string{
	NameOpenAI:     "OPENAI_API_KEY",
	NameAnthropic:  "ANTHROPIC_API_KEY",
	NameElevenLabs: "ELEVENLABS_API_KEY",
}

// Store resolves API keys from the environment first, then from a 0600 YAML file.
type Store struct {
	path   string
	getenv func(string) string

	mu   sync.RWMutex
	keys map[string]string
}

// NewMemory returns a store without a backing file that ignores the environment.
func NewMemory() *Store {
	return &Store{getenv: func(string) string { return "" }, keys: map[string]string{}}
}

// Open reads the credential file at path. A missing file yields an empty store.
// A malformed file is moved aside to path+".corrupt", reported as a warning, and
// the store starts empty.
func Open(path string) (*Store, []string, error) {
	s := &Store{path: path, getenv: os.Getenv, keys: map[string]string{}}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil, nil
		}
		return nil, nil, fmt.Errorf("read credentials %q: %w", path, err)
	}

	var keys map[string]string
	if err := yaml.Unmarshal(content, &keys); err != nil {
		backup := path + ".corrupt"
		if renameErr := os.Rename(path, backup); renameErr != nil {
			return nil, nil, fmt.Errorf("move corrupt credentials %q aside: %w", path, renameErr)
		}
		return s, []string{fmt.Sprintf("credentials %q are malformed (moved to %q): %v", path, backup, err)}, nil
	}
	for name, value := range keys {
		s.keys[name] = value
	}
	return s, nil, nil
}

// Names lists supported credential names in stable order.
func Names() []string {
	names := make([]string, 0, len(envOverrides))
	for name := range envOverrides {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnvName returns the environment variable that overrides name.
func EnvName(name string) string {
	return envOverrides[name]
}

// Get returns the key for name. Environment overrides win over stored values.
func (s *Store) Get(name string) (string, bool) {
	if env, ok := envOverrides[name]; ok && s.getenv != nil {
		if v := strings.TrimSpace(s.getenv(env)); v != "" {
			return v, true
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.keys[name]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Set stores value under name and writes the file. An empty value removes the key.
func (s *Store) Set(name string, value string) error {
	if _, ok := envOverrides[name]; !ok {
		return fmt.Errorf("%w %q (expected one of: %s)", ErrUnknownName, name, strings.Join(Names(), ", "))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous, had := s.keys[name]
	value = strings.TrimSpace(value)
	if value == "" {
		delete(s.keys, name)
	} else {
		s.keys[name] = value
	}

	if err := s.flushLocked(); err != nil {
		if had {
			s.keys[name] = previous
		} else {
			delete(s.keys, name)
		}
		return err
	}
	return nil
}

// flushLocked rewrites the backing file atomically. Callers hold s.mu.
func (s *Store) flushLocked() error {
	if s.path == "" {
		return nil
	}
	content, err := yaml.Marshal(s.keys)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("ensure credentials dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp credentials file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod credentials: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credentials: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace credentials %q: %w", s.path, err)
	}
	return nil
}

// Mask renders a key for display without revealing it.
func Mask(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:3] + "..." + value[len(value)-4:]
}

// ResolvePath applies XDG/home fallback rules for credentials.yaml.
func ResolvePath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "voiceassist", "credentials.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for credentials fallback")
	}
	return filepath.Join(home, ".config", "voiceassist", "credentials.yaml"), nil
}
