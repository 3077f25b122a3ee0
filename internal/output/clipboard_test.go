package output

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rbright/voiceassist/internal/config"
	"github.com/stretchr/testify/require"
)

func TestRunCommandWithInputWritesStdin(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	outputPath := filepath.Join(t.TempDir(), "stdin.txt")

	err := runCommandWithInput(context.Background(), []string{scriptPath, outputPath}, "hello from voiceassist")
	require.NoError(t, err)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.Equal(t, "hello from voiceassist", string(data))
}

func TestRunCommandWithInputRejectsEmptyArgv(t *testing.T) {
	err := runCommandWithInput(context.Background(), nil, "payload")
	require.Error(t, err)
	require.Contains(t, err.Error(), "argv cannot be empty")
}

func TestClipboardCommitWritesText(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")

	cfg := config.Default()
	cfg.ClipboardCmd = config.CommandConfig{Argv: []string{scriptPath, clipboardPath}}

	clipboard := NewClipboard(cfg, nil)
	require.True(t, clipboard.Enabled())
	err := clipboard.Commit(context.Background(), "I went to the store.")
	require.NoError(t, err)

	data, err := os.ReadFile(clipboardPath)
	require.NoError(t, err)
	require.Equal(t, "I went to the store.", string(data))
}

func TestClipboardCommitSkipsEmptyTextAndDisabledClipboard(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")

	cfg := config.Default()
	cfg.ClipboardCmd = config.CommandConfig{Argv: []string{scriptPath, clipboardPath}}
	require.NoError(t, NewClipboard(cfg, nil).Commit(context.Background(), ""))

	cfg.Clipboard.Enable = false
	disabled := NewClipboard(cfg, nil)
	require.False(t, disabled.Enabled())
	require.NoError(t, disabled.Commit(context.Background(), "not copied"))

	_, statErr := os.Stat(clipboardPath)
	require.Error(t, statErr)
	require.True(t, os.IsNotExist(statErr))
}

func TestClipboardCommitReturnsErrorWithStderr(t *testing.T) {
	failScript := writeFailScript(t, "no wayland display")

	cfg := config.Default()
	cfg.ClipboardCmd = config.CommandConfig{Argv: []string{failScript}}

	err := NewClipboard(cfg, nil).Commit(context.Background(), "text")
	require.Error(t, err)
	require.Contains(t, err.Error(), "set clipboard")
	require.Contains(t, err.Error(), "no wayland display")
}

func writeStdinCaptureScript(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "capture-stdin.sh")
	script := `#!/usr/bin/env bash
set -euo pipefail
cat > "$1"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeFailScript(t *testing.T, message string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "fail.sh")
	script := "#!/usr/bin/env bash\nset -euo pipefail\necho " + "\"" + message + "\"" + " >&2\nexit 1\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}
