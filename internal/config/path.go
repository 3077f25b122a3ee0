package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath applies CLI/XDG/home fallback rules for config.yaml location.
// A leading "~/" in an explicit path expands to the user's home.
func ResolvePath(explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		if rest, ok := strings.CutPrefix(explicit, "~/"); ok {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", errors.New("unable to resolve user home for config path")
			}
			return filepath.Join(home, rest), nil
		}
		return explicit, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "voiceassist", "config.yaml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", "voiceassist", "config.yaml"), nil
}
