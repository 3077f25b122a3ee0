// Package app dispatches parsed commands to the assistant and its supporting stores.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/voiceassist/internal/assistant"
	"github.com/rbright/voiceassist/internal/cli"
	"github.com/rbright/voiceassist/internal/config"
	"github.com/rbright/voiceassist/internal/ipc"
	"github.com/rbright/voiceassist/internal/logging"
	"github.com/rbright/voiceassist/internal/provider"
	"github.com/rbright/voiceassist/internal/version"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const forwardTimeout = 220 * time.Millisecond

// errUsage marks command argument errors that exit with exitUsage.
var errUsage = errors.New("usage")

// Runner executes one CLI invocation. Capability fields replace the
// config-built implementations when set.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
	Logger *slog.Logger

	Grammar   provider.GrammarCorrector
	Speech    provider.SpeechGenerator
	Player    provider.AudioPlayer
	Indicator assistant.Indicator
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr, Stdin: os.Stdin}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("voiceassist"))
		return exitUsage
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("voiceassist"))
		return exitOK
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return exitOK
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return exitFailure
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return exitFailure
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"args", len(parsed.Args),
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.commandStop(ctx)
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	}

	withAudio := parsed.Command == cli.CommandSpeak ||
		parsed.Command == cli.CommandStability ||
		parsed.Command == cli.CommandSimilarity
	env, err := r.buildEnvironment(ctx, cfgLoaded, logger, withAudio)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("setup failed", "error", err.Error())
		return exitFailure
	}

	started := time.Now()
	code := r.dispatch(ctx, env, parsed)
	env.wait()
	logActionResult(logger, parsed.Command, started, env.controller.Snapshot(), code)
	return code
}

func (r Runner) dispatch(ctx context.Context, env *environment, parsed cli.Parsed) int {
	switch parsed.Command {
	case cli.CommandCorrect:
		return r.commandCorrect(ctx, env, parsed)
	case cli.CommandSpeak:
		return r.commandSpeak(ctx, env, parsed)
	case cli.CommandVoices:
		return r.commandVoices(ctx, env)
	case cli.CommandVoice:
		return r.commandVoice(ctx, env, parsed.Args[0])
	case cli.CommandPresets:
		return r.commandPresets(env, parsed.Text())
	case cli.CommandApply:
		return r.commandApply(env, parsed.Args[0])
	case cli.CommandSave:
		return r.commandSave(env, parsed.Args)
	case cli.CommandDelete:
		return r.commandDelete(env, parsed.Args[0])
	case cli.CommandParams:
		return r.commandParams(env)
	case cli.CommandStability, cli.CommandSimilarity:
		return r.commandSetLevel(ctx, env, parsed.Command, parsed.Args[0])
	case cli.CommandProvider:
		return r.commandProvider(env, parsed.Args)
	case cli.CommandKey:
		return r.commandKey(env, parsed.Args[0], parsed.Args[1])
	case cli.CommandDoctor:
		return r.commandDoctor(ctx, env)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return exitUsage
	}
}

// fail prints err and maps it to an exit code.
func (r Runner) fail(err error) int {
	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	if errors.Is(err, errUsage) {
		return exitUsage
	}
	return exitFailure
}

// failOnLastError reports an error recorded by the assistant during the action.
func (r Runner) failOnLastError(env *environment) (int, bool) {
	status := env.controller.Snapshot()
	if status.LastError == nil {
		return exitOK, false
	}
	fmt.Fprintf(r.Stderr, "error: %v\n", status.LastError)
	return exitFailure, true
}

func logActionResult(logger *slog.Logger, command cli.Command, started time.Time, status assistant.Status, code int) {
	if logger == nil {
		return
	}
	fields := []any{
		"command", command,
		"exit_code", code,
		"duration_ms", time.Since(started).Milliseconds(),
		"output_chars", len(status.OutputText),
		"has_voice", status.SelectedVoice != nil,
	}
	if status.LastError != nil {
		logger.Error("action failed", append(fields,
			"error", status.LastError.Error(),
			"kind", provider.Kind(status.LastError),
		)...)
		return
	}
	if code != exitOK {
		logger.Warn("action failed", fields...)
		return
	}
	logger.Info("action complete", fields...)
}

// tryForward sends command to a running owner. handled is false when no owner listens.
func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, forwardTimeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if ipc.IsUnavailable(err) || strings.Contains(err.Error(), "no such file or directory") {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}
