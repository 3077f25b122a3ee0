// Package output copies corrected text to the clipboard.
package output

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/voiceassist/internal/config"
)

const clipboardTimeout = 2 * time.Second

// Clipboard pipes text into the configured clipboard command.
type Clipboard struct {
	enable bool
	argv   []string
	logger *slog.Logger
}

// NewClipboard constructs a clipboard committer from runtime config.
func NewClipboard(cfg config.Config, logger *slog.Logger) *Clipboard {
	return &Clipboard{
		enable: cfg.Clipboard.Enable,
		argv:   append([]string(nil), cfg.ClipboardCmd.Argv...),
		logger: logger,
	}
}

// Enabled reports whether Commit touches the clipboard.
func (c *Clipboard) Enabled() bool {
	return c.enable
}

// Commit writes text to the clipboard. Empty text and a disabled clipboard are no-ops.
func (c *Clipboard) Commit(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if !c.enable {
		if c.logger != nil {
			c.logger.Debug("clipboard disabled; skipping commit")
		}
		return nil
	}

	clipboardCtx, cancel := context.WithTimeout(ctx, clipboardTimeout)
	defer cancel()
	if err := runCommandWithInput(clipboardCtx, c.argv, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	return nil
}

// runCommandWithInput executes argv and optionally writes input to stdin.
// Stderr output is folded into the returned error.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(input)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return fmt.Errorf("run %s: %w", argv[0], err)
		}
		return fmt.Errorf("run %s: %w (%s)", argv[0], err, detail)
	}
	return nil
}
