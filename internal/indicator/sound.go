package indicator

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rbright/voiceassist/internal/config"
)

type cueKind int

const (
	cueComplete cueKind = iota + 1
	cueError
)

const (
	cueSampleRate = 16000
	cueGap        = 22 * time.Millisecond
	cueFileLimit  = 4 * time.Second
)

// note is one tone of a cue.
type note struct {
	hz     float64
	length time.Duration
	gain   float64
}

// Completion rises a major third; errors fall a fifth.
var cueNotes = map[cueKind][]note{
	cueComplete: {
		{hz: 659.25, length: 70 * time.Millisecond, gain: 0.18},
		{hz: 830.61, length: 95 * time.Millisecond, gain: 0.18},
	},
	cueError: {
		{hz: 493.88, length: 95 * time.Millisecond, gain: 0.2},
		{hz: 329.63, length: 150 * time.Millisecond, gain: 0.2},
	},
}

var cuePCM = sync.OnceValue(func() map[cueKind][]int16 {
	out := make(map[cueKind][]int16, len(cueNotes))
	for kind, notes := range cueNotes {
		out[kind] = renderNotes(notes)
	}
	return out
})

// sampleSink plays mono samples at cueSampleRate.
type sampleSink func(ctx context.Context, samples []int16) error

// emitCue prefers the configured cue file and falls back to the synthesized tones.
func emitCue(ctx context.Context, kind cueKind, cfg config.IndicatorConfig, play sampleSink) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path := cuePath(kind, cfg); path != "" {
		if err := playCueFile(ctx, path); err == nil {
			return nil
		}
	}

	samples := cueSamples(kind)
	if len(samples) == 0 || play == nil {
		return nil
	}
	return play(ctx, samples)
}

func cuePath(kind cueKind, cfg config.IndicatorConfig) string {
	switch kind {
	case cueComplete:
		return expandUserPath(cfg.SoundCompleteFile)
	case cueError:
		return expandUserPath(cfg.SoundErrorFile)
	default:
		return ""
	}
}

func expandUserPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "~" && !strings.HasPrefix(raw, "~/") {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, strings.TrimPrefix(raw[1:], "/"))
}

// playCueFile hands a sound file to pw-play with the notification media role.
func playCueFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat cue file %q: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, cueFileLimit)
	defer cancel()
	if err := exec.CommandContext(ctx, "pw-play", "--media-role", "Notification", path).Run(); err != nil {
		return fmt.Errorf("play cue file %q: %w", path, err)
	}
	return nil
}

func cueSamples(kind cueKind) []int16 {
	return cuePCM()[kind]
}

// renderNotes concatenates notes with a short silence between them.
func renderNotes(notes []note) []int16 {
	var pcm []int16
	for i, n := range notes {
		if i > 0 {
			pcm = append(pcm, make([]int16, sampleCount(cueGap))...)
		}
		pcm = append(pcm, renderNote(n)...)
	}
	return pcm
}

// renderNote synthesizes a sine tone shaped by a raised-cosine envelope, so
// it starts and ends at zero amplitude.
func renderNote(n note) []int16 {
	count := sampleCount(n.length)
	if count <= 1 || n.hz <= 0 || n.gain <= 0 {
		return nil
	}

	pcm := make([]int16, count)
	step := 2 * math.Pi * n.hz / cueSampleRate
	for i := range pcm {
		envelope := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(count-1))
		pcm[i] = int16(math.Round(math.Sin(step*float64(i)) * n.gain * envelope * math.MaxInt16))
	}
	return pcm
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
