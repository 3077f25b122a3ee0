// Package indicator handles visual state notifications and audio cue playback.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/voiceassist/internal/audio"
	"github.com/rbright/voiceassist/internal/config"
	"github.com/rbright/voiceassist/internal/hypr"
)

const (
	colorCorrecting = "rgb(cba6f7)"
	colorSpeaking   = "rgb(89b4fa)"
	colorError      = "rgb(f38ba8)"

	busyTimeout = 5 * time.Minute
)

// Notifier routes assistant activity to Hyprland or desktop notifications and
// plays completion and error cues.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	mu                    sync.Mutex
	desktopNotificationID uint32
	cuePlayer             *audio.Player
	soundMu               sync.Mutex
	cues                  sync.WaitGroup
}

// New creates a notifier from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:       cfg,
		logger:    logger,
		messages:  indicatorMessagesFromEnv(),
		cuePlayer: audio.NewPlayer(cueSampleRate, "", logger),
	}
}

// ShowCorrecting signals a grammar request in flight.
func (n *Notifier) ShowCorrecting(ctx context.Context) {
	n.show(ctx, hypr.IconInfo, busyTimeout, colorCorrecting, n.messages.correcting)
}

// ShowSpeaking signals speech generation and playback.
func (n *Notifier) ShowSpeaking(ctx context.Context) {
	n.show(ctx, hypr.IconInfo, busyTimeout, colorSpeaking, n.messages.speaking)
}

// ShowError displays an error-state indicator message.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		text = n.messages.errorText
	}
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = 1200
	}
	n.show(ctx, hypr.IconError, time.Duration(timeout)*time.Millisecond, colorError, text)
}

// CueComplete emits the success cue.
func (n *Notifier) CueComplete(ctx context.Context) {
	n.playCue(ctx, cueComplete)
}

// CueError emits the failure cue.
func (n *Notifier) CueError(ctx context.Context) {
	n.playCue(ctx, cueError)
}

// Hide dismisses the active indicator surface.
func (n *Notifier) Hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, n.dismiss)
}

// Wait blocks until queued cues finished playing.
func (n *Notifier) Wait() {
	n.cues.Wait()
}

func (n *Notifier) show(ctx context.Context, icon hypr.Icon, timeout time.Duration, color string, text string) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, hypr.Notification{Icon: icon, Timeout: timeout, Color: color, Text: text})
	})
}

// notify dispatches indicator output through the configured backend.
func (n *Notifier) notify(ctx context.Context, payload hypr.Notification) error {
	if n.desktopBackend() {
		return n.notifyDesktop(ctx, payload)
	}
	return hypr.Notify(ctx, payload)
}

// dismiss removes indicator output from the configured backend.
func (n *Notifier) dismiss(ctx context.Context) error {
	if n.desktopBackend() {
		return n.dismissDesktop(ctx)
	}
	return hypr.DismissNotify(ctx)
}

func (n *Notifier) desktopBackend() bool {
	return strings.EqualFold(strings.TrimSpace(n.cfg.Backend), "desktop")
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notifyDesktop(ctx context.Context, payload hypr.Notification) error {
	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "voiceassist-indicator"
	}

	id, err := desktopNotify(ctx, desktopNotification{
		appName:   appName,
		replaceID: replaceID,
		summary:   payload.Text,
		timeoutMS: int(payload.Timeout.Milliseconds()),
		critical:  payload.Icon == hypr.IconError,
	})
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

// dismissDesktop closes the current desktop notification ID when present.
func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(ctx context.Context, kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	cueCtx := context.WithoutCancel(ctx)
	n.cues.Add(1)
	go func() {
		defer n.cues.Done()
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		if err := emitCue(cueCtx, kind, n.cfg, n.cuePlayer.PlaySamples); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

// log emits debug-only indicator failures to the runtime logger.
func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
