package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rbright/voiceassist/internal/assistant"
	"github.com/rbright/voiceassist/internal/audio"
	"github.com/rbright/voiceassist/internal/cli"
	"github.com/rbright/voiceassist/internal/credentials"
	"github.com/rbright/voiceassist/internal/doctor"
	"github.com/rbright/voiceassist/internal/ipc"
	"github.com/rbright/voiceassist/internal/preset"
	"github.com/rbright/voiceassist/internal/settings"
)

const maxStdinBytes = 1 << 20

func (r Runner) commandCorrect(ctx context.Context, env *environment, parsed cli.Parsed) int {
	input, err := r.inputText(parsed)
	if err != nil {
		return r.fail(err)
	}
	if err := env.controller.CorrectGrammar(ctx, input); err != nil {
		return r.fail(err)
	}
	if code, failed := r.failOnLastError(env); failed {
		return code
	}
	fmt.Fprintln(r.Stdout, env.controller.Snapshot().OutputText)
	return exitOK
}

func (r Runner) commandSpeak(ctx context.Context, env *environment, parsed cli.Parsed) int {
	input, err := r.inputText(parsed)
	if err != nil {
		return r.fail(err)
	}
	if strings.TrimSpace(input) == "" {
		return r.fail(assistant.ErrEmptyInput)
	}

	err = r.runOwner(ctx, env, func(ctx context.Context) error {
		if err := env.controller.LoadVoices(ctx); err != nil {
			return err
		}
		if env.controller.Snapshot().LastError != nil {
			return nil
		}
		return env.controller.SpeakInput(ctx, input, env.params.Settings())
	})
	if err != nil {
		return r.fail(err)
	}
	code, _ := r.failOnLastError(env)
	return code
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, assistant.StateIdle)
		return exitOK
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus)
	if handled {
		if err != nil {
			return r.fail(err)
		}
		if resp.State == "" {
			resp.State = assistant.StateIdle
		}
		fmt.Fprintln(r.Stdout, resp.State)
		return exitOK
	}

	fmt.Fprintln(r.Stdout, assistant.StateIdle)
	return exitOK
}

// commandStop succeeds when nothing is playing.
func (r Runner) commandStop(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "nothing playing")
		return exitOK
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStop)
	if !handled {
		fmt.Fprintln(r.Stdout, "nothing playing")
		return exitOK
	}
	if err != nil {
		return r.fail(err)
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return exitOK
}

func (r Runner) commandVoices(ctx context.Context, env *environment) int {
	if err := env.controller.LoadVoices(ctx); err != nil {
		return r.fail(err)
	}
	if code, failed := r.failOnLastError(env); failed {
		return code
	}

	status := env.controller.Snapshot()
	if len(status.Voices) == 0 {
		fmt.Fprintln(r.Stdout, "no voices available")
		return exitOK
	}
	for _, v := range status.Voices {
		mark := " "
		if status.SelectedVoice != nil && status.SelectedVoice.ID == v.ID {
			mark = "*"
		}
		line := fmt.Sprintf("%s %s | %s", mark, v.ID, v.Label())
		if v.Category != "" {
			line += " | " + v.Category
		}
		fmt.Fprintln(r.Stdout, line)
	}
	return exitOK
}

func (r Runner) commandVoice(ctx context.Context, env *environment, id string) int {
	if err := env.controller.LoadVoices(ctx); err != nil {
		return r.fail(err)
	}
	if code, failed := r.failOnLastError(env); failed {
		return code
	}
	if err := env.controller.SelectVoice(id); err != nil {
		return r.fail(err)
	}
	selected := env.controller.Snapshot().SelectedVoice
	fmt.Fprintf(r.Stdout, "selected %s (%s)\n", selected.ID, selected.Label())
	return exitOK
}

func (r Runner) commandPresets(env *environment, query string) int {
	presets := env.catalog.Search(query)
	if len(presets) == 0 {
		fmt.Fprintf(r.Stdout, "no presets match %q\n", query)
		return exitOK
	}
	for _, p := range presets {
		fmt.Fprintf(r.Stdout, "%s | %s | %s | stability=%.2f similarity=%.2f",
			p.ID, p.Name, p.Category, p.Settings.Stability, p.Settings.SimilarityBoost)
		if len(p.Tags) > 0 {
			fmt.Fprintf(r.Stdout, " | %s", strings.Join(p.Tags, ", "))
		}
		fmt.Fprintln(r.Stdout)
	}
	return exitOK
}

func (r Runner) commandApply(env *environment, id string) int {
	p, ok := env.catalog.Get(id)
	if !ok {
		return r.fail(fmt.Errorf("apply %q: %w", id, preset.ErrNotFound))
	}
	if err := env.params.ApplyPreset(p); err != nil {
		return r.fail(err)
	}
	current := env.params.Settings()
	fmt.Fprintf(r.Stdout, "applied %s (stability=%.2f similarity=%.2f)\n", p.ID, current.Stability, current.SimilarityBoost)
	return exitOK
}

func (r Runner) commandSave(env *environment, args []string) int {
	var description, tags string
	if len(args) > 1 {
		description = args[1]
	}
	if len(args) > 2 {
		tags = args[2]
	}

	p, err := preset.NewCustom(args[0], description, tags, env.params.Settings())
	if err != nil {
		return r.fail(fmt.Errorf("%w: %w", errUsage, err))
	}
	if err := env.catalog.Add(p); err != nil {
		return r.fail(err)
	}
	fmt.Fprintf(r.Stdout, "saved %s\n", p.ID)
	return exitOK
}

func (r Runner) commandDelete(env *environment, id string) int {
	if err := env.catalog.Remove(id); err != nil {
		return r.fail(err)
	}
	fmt.Fprintf(r.Stdout, "deleted %s\n", id)
	return exitOK
}

func (r Runner) commandParams(env *environment) int {
	snapshot := env.params.Snapshot()
	fmt.Fprintf(r.Stdout, "stability=%.2f\n", snapshot.Settings.Stability)
	fmt.Fprintf(r.Stdout, "similarity=%.2f\n", snapshot.Settings.SimilarityBoost)
	return exitOK
}

// commandSetLevel stores a clamped parameter value and plays a preview with the selected voice.
func (r Runner) commandSetLevel(ctx context.Context, env *environment, command cli.Command, raw string) int {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return r.fail(fmt.Errorf("%w: %s expects a number, got %q", errUsage, command, raw))
	}

	err = r.runOwner(ctx, env, func(ctx context.Context) error {
		if env.speech != nil {
			if err := env.controller.LoadVoices(ctx); err != nil {
				return err
			}
		}
		var setErr error
		if command == cli.CommandStability {
			setErr = env.params.SetStability(ctx, value)
		} else {
			setErr = env.params.SetSimilarityBoost(ctx, value)
		}
		env.params.Wait()
		return setErr
	})
	if err != nil {
		return r.fail(err)
	}

	current := env.params.Settings()
	fmt.Fprintf(r.Stdout, "stability=%.2f similarity=%.2f\n", current.Stability, current.SimilarityBoost)
	code, _ := r.failOnLastError(env)
	return code
}

func (r Runner) commandProvider(env *environment, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(r.Stdout, env.grammarProvider)
		return exitOK
	}

	name := strings.ToLower(strings.TrimSpace(args[0]))
	if !validGrammarProvider(name) {
		return r.fail(fmt.Errorf("%w: unknown grammar provider %q (expected openai or anthropic)", errUsage, args[0]))
	}
	if err := env.settings.Set(settings.KeyGrammarProvider, name); err != nil {
		return r.fail(err)
	}
	fmt.Fprintf(r.Stdout, "grammar provider set to %s\n", name)
	return exitOK
}

func (r Runner) commandKey(env *environment, name string, value string) int {
	if err := env.keys.Set(name, value); err != nil {
		if errors.Is(err, credentials.ErrUnknownName) {
			return r.fail(fmt.Errorf("%w: %w", errUsage, err))
		}
		return r.fail(err)
	}
	if strings.TrimSpace(value) == "" {
		fmt.Fprintf(r.Stdout, "removed %s key\n", name)
		return exitOK
	}
	fmt.Fprintf(r.Stdout, "stored %s key %s\n", name, credentials.Mask(strings.TrimSpace(value)))
	return exitOK
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		return r.fail(err)
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio output sinks found")
		return exitFailure
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}
	return exitOK
}

func (r Runner) commandDoctor(ctx context.Context, env *environment) int {
	inputs := doctor.Inputs{
		Loaded:          env.loaded,
		GrammarProvider: env.grammarProvider,
		Keys:            env.keys,
	}
	if env.speech != nil {
		inputs.Voices = env.speech
	}

	report := doctor.Run(ctx, inputs)
	fmt.Fprintln(r.Stdout, report.String())
	if report.OK() {
		return exitOK
	}
	return exitFailure
}

// inputText returns the joined arguments, or stdin when there are none.
// An interactive terminal is never read.
func (r Runner) inputText(parsed cli.Parsed) (string, error) {
	if text := parsed.Text(); text != "" {
		return text, nil
	}
	if r.Stdin == nil {
		return "", nil
	}
	if f, ok := r.Stdin.(*os.File); ok {
		info, err := f.Stat()
		if err != nil || info.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}

	data, err := io.ReadAll(io.LimitReader(bufio.NewReader(r.Stdin), maxStdinBytes))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
