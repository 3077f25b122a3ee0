// Package doctor runs readiness diagnostics for config, credentials, tools, audio, and ElevenLabs.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/voiceassist/internal/audio"
	"github.com/rbright/voiceassist/internal/config"
	"github.com/rbright/voiceassist/internal/credentials"
	"github.com/rbright/voiceassist/internal/voice"
	"golang.org/x/sync/errgroup"
)

const voicesTimeout = 5 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// KeySource resolves stored API keys.
type KeySource interface {
	Get(name string) (string, bool)
}

// VoiceLister is the part of the speech capability doctor probes.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]voice.Voice, error)
}

// Inputs carries what doctor inspects. Voices may be nil when no ElevenLabs key exists.
type Inputs struct {
	Loaded          config.Loaded
	GrammarProvider string
	Keys            KeySource
	Voices          VoiceLister

	// SelectSink defaults to audio.SelectDevice.
	SelectSink func(ctx context.Context, preference string) (audio.Selection, error)
}

// Run executes every check concurrently. Report order is stable.
func Run(ctx context.Context, in Inputs) Report {
	if in.SelectSink == nil {
		in.SelectSink = audio.SelectDevice
	}

	cfg := in.Loaded.Config
	probes := []func(context.Context) Check{
		func(context.Context) Check { return checkConfig(in.Loaded) },
		func(context.Context) Check { return checkKey(in.Keys, grammarKeyName(in.GrammarProvider)) },
		func(context.Context) Check { return checkKey(in.Keys, credentials.NameElevenLabs) },
		func(context.Context) Check {
			if !cfg.Clipboard.Enable {
				return Check{Name: "clipboard_cmd", Pass: true, Message: "clipboard disabled"}
			}
			return checkCommand(cfg.ClipboardCmd.Argv, "clipboard_cmd")
		},
		func(ctx context.Context) Check { return checkAudioSelection(ctx, cfg, in.SelectSink) },
		func(ctx context.Context) Check { return checkVoices(ctx, in.Voices) },
	}
	if cfg.Indicator.Enable && cfg.Indicator.Backend == "hypr" {
		probes = append(probes, func(context.Context) Check {
			return checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
				return strings.TrimSpace(v) != ""
			}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty")
		})
	}

	checks := make([]Check, len(probes))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, probe := range probes {
		group.Go(func() error {
			checks[i] = probe(groupCtx)
			return nil
		})
	}
	_ = group.Wait()

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("using defaults (%q not found)", loaded.Path)}
	}
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if n := len(loaded.Warnings); n > 0 {
		message = fmt.Sprintf("%s with %d warning(s)", message, n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

func grammarKeyName(provider string) string {
	if provider == config.ProviderAnthropic {
		return credentials.NameAnthropic
	}
	return credentials.NameOpenAI
}

// checkKey reports whether a credential is available without printing it.
func checkKey(keys KeySource, name string) Check {
	checkName := "key." + name
	if keys == nil {
		return Check{Name: checkName, Pass: false, Message: "credential store unavailable"}
	}
	value, ok := keys.Get(name)
	if !ok {
		return Check{
			Name:    checkName,
			Pass:    false,
			Message: fmt.Sprintf("missing; run `voiceassist key %s VALUE` or set %s", name, credentials.EnvName(name)),
		}
	}
	return Check{Name: checkName, Pass: true, Message: "present (" + credentials.Mask(value) + ")"}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live sink selection to surface fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config, selectSink func(context.Context, string) (audio.Selection, error)) Check {
	selection, err := selectSink(ctx, cfg.Audio.Sink)
	if err != nil {
		return Check{Name: "audio.sink", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.sink", Pass: true, Message: message}
}

// checkVoices probes the ElevenLabs voices endpoint.
func checkVoices(ctx context.Context, lister VoiceLister) Check {
	if lister == nil {
		return Check{Name: "elevenlabs.voices", Pass: false, Message: "skipped: no ElevenLabs key"}
	}

	voicesCtx, cancel := context.WithTimeout(ctx, voicesTimeout)
	defer cancel()
	voices, err := lister.ListVoices(voicesCtx)
	if err != nil {
		return Check{Name: "elevenlabs.voices", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	if len(voices) == 0 {
		return Check{Name: "elevenlabs.voices", Pass: false, Message: "account has no voices"}
	}
	return Check{Name: "elevenlabs.voices", Pass: true, Message: fmt.Sprintf("%d voice(s) available", len(voices))}
}
