package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/voiceassist/internal/ipc"
	"github.com/rbright/voiceassist/internal/provider"
	"github.com/rbright/voiceassist/internal/settings"
	"github.com/rbright/voiceassist/internal/voice"
	"github.com/stretchr/testify/require"
)

type fakeIndicator struct {
	hides         atomic.Int32
	errors        atomic.Int32
	completeCues  atomic.Int32
	errorCues     atomic.Int32
	lastErrorText atomic.Value
}

func (*fakeIndicator) ShowCorrecting(context.Context) {}
func (*fakeIndicator) ShowSpeaking(context.Context)   {}
func (f *fakeIndicator) ShowError(_ context.Context, text string) {
	f.errors.Add(1)
	f.lastErrorText.Store(text)
}
func (f *fakeIndicator) CueComplete(context.Context) { f.completeCues.Add(1) }
func (f *fakeIndicator) CueError(context.Context)    { f.errorCues.Add(1) }
func (f *fakeIndicator) Hide(context.Context)        { f.hides.Add(1) }

type fakeGrammar struct {
	calls   atomic.Int32
	correct func(ctx context.Context, text string) (string, error)
}

func (f *fakeGrammar) Correct(ctx context.Context, text string) (string, error) {
	f.calls.Add(1)
	return f.correct(ctx, text)
}

type generateCall struct {
	text     string
	voiceID  string
	settings voice.Settings
}

type fakeSpeech struct {
	mu       sync.Mutex
	calls    []generateCall
	generate func(ctx context.Context, text string) ([]byte, error)
	voices   []voice.Voice
	listErr  error
}

func (f *fakeSpeech) Generate(ctx context.Context, text string, voiceID string, s voice.Settings) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, generateCall{text: text, voiceID: voiceID, settings: s})
	f.mu.Unlock()
	if f.generate == nil {
		return []byte{1, 0, 2, 0}, nil
	}
	return f.generate(ctx, text)
}

func (f *fakeSpeech) ListVoices(context.Context) ([]voice.Voice, error) {
	return f.voices, f.listErr
}

func (f *fakeSpeech) generated() []generateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]generateCall(nil), f.calls...)
}

type fakePlayer struct {
	mu     sync.Mutex
	played [][]byte
	err    error
	stops  atomic.Int32
}

func (f *fakePlayer) Play(_ context.Context, audio []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, audio)
	return f.err
}

func (f *fakePlayer) Stop() { f.stops.Add(1) }

func (f *fakePlayer) playedAudio() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.played...)
}

var testVoice = &voice.Voice{ID: "voice-rachel", Name: "Rachel"}

func echoGrammar(reply string) *fakeGrammar {
	return &fakeGrammar{correct: func(context.Context, string) (string, error) { return reply, nil }}
}

func TestCorrectGrammarEmptyInputIsValidationOnly(t *testing.T) {
	grammar := echoGrammar("unused")
	ctrl := NewController(Dependencies{Grammar: grammar})
	ctrl.outputText = "previous"

	for _, input := range []string{"", "   \n\t"} {
		err := ctrl.CorrectGrammar(context.Background(), input)
		require.ErrorIs(t, err, ErrEmptyInput)
	}

	status := ctrl.Snapshot()
	require.Equal(t, "previous", status.OutputText)
	require.NoError(t, status.LastError)
	require.False(t, status.IsProcessing)
	require.Equal(t, int32(0), grammar.calls.Load())
}

func TestCorrectGrammarMissingCredential(t *testing.T) {
	ctrl := NewController(Dependencies{})

	err := ctrl.CorrectGrammar(context.Background(), "hello")
	require.ErrorIs(t, err, provider.ErrMissingCredential)
	require.NoError(t, ctrl.Snapshot().LastError)
}

func TestCorrectGrammarSuccessCommitsAndClearsError(t *testing.T) {
	var committed []string
	indicator := &fakeIndicator{}
	ctrl := NewController(Dependencies{
		Grammar:   echoGrammar("I went to the store."),
		Indicator: indicator,
		Committer: CommitFunc(func(_ context.Context, text string) error {
			committed = append(committed, text)
			return nil
		}),
	})
	ctrl.lastError = fmt.Errorf("earlier: %w", provider.ErrTransport)

	require.NoError(t, ctrl.CorrectGrammar(context.Background(), "i goed to the store"))

	status := ctrl.Snapshot()
	require.Equal(t, "I went to the store.", status.OutputText)
	require.NoError(t, status.LastError)
	require.False(t, status.IsProcessing)
	require.Equal(t, []string{"I went to the store."}, committed)
	require.Equal(t, int32(1), indicator.completeCues.Load())
}

func TestCorrectGrammarCommitFailureIsNotRecorded(t *testing.T) {
	ctrl := NewController(Dependencies{
		Grammar: echoGrammar("Fixed."),
		Committer: CommitFunc(func(context.Context, string) error {
			return errors.New("wl-copy missing")
		}),
	})

	require.NoError(t, ctrl.CorrectGrammar(context.Background(), "fixd"))
	status := ctrl.Snapshot()
	require.Equal(t, "Fixed.", status.OutputText)
	require.NoError(t, status.LastError)
}

func TestCorrectGrammarAuthErrorRecorded(t *testing.T) {
	indicator := &fakeIndicator{}
	grammar := &fakeGrammar{correct: func(context.Context, string) (string, error) {
		return "", fmt.Errorf("openai: %w: 401 invalid key", provider.ErrAuth)
	}}
	ctrl := NewController(Dependencies{Grammar: grammar, Indicator: indicator})
	ctrl.outputText = "previous"

	require.NoError(t, ctrl.CorrectGrammar(context.Background(), "some text"))

	status := ctrl.Snapshot()
	require.ErrorIs(t, status.LastError, provider.ErrAuth)
	require.False(t, status.IsProcessing)
	require.Equal(t, "previous", status.OutputText)
	require.Equal(t, int32(1), grammar.calls.Load())
	require.Equal(t, int32(1), indicator.errors.Load())
	require.Equal(t, int32(1), indicator.errorCues.Load())
	require.Equal(t, int32(0), indicator.completeCues.Load())
}

func TestCorrectGrammarProcessingFlagWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	grammar := &fakeGrammar{correct: func(context.Context, string) (string, error) {
		close(entered)
		<-release
		return "Done.", nil
	}}
	ctrl := NewController(Dependencies{Grammar: grammar})

	result := make(chan error, 1)
	go func() { result <- ctrl.CorrectGrammar(context.Background(), "done") }()

	<-entered
	status := ctrl.Snapshot()
	require.True(t, status.IsProcessing)
	require.False(t, status.IsGeneratingSpeech)
	require.Equal(t, StateCorrecting, status.State)

	close(release)
	require.NoError(t, <-result)
	require.False(t, ctrl.Snapshot().IsProcessing)
	require.Equal(t, StateIdle, ctrl.State())
}

func TestCorrectGrammarStaleResultDiscarded(t *testing.T) {
	releaseFirst := make(chan struct{})
	firstEntered := make(chan struct{})
	grammar := &fakeGrammar{correct: func(_ context.Context, text string) (string, error) {
		if text == "first" {
			close(firstEntered)
			<-releaseFirst
			return "First.", nil
		}
		return "Second.", nil
	}}
	indicator := &fakeIndicator{}
	ctrl := NewController(Dependencies{Grammar: grammar, Indicator: indicator})

	firstDone := make(chan error, 1)
	go func() { firstDone <- ctrl.CorrectGrammar(context.Background(), "first") }()
	<-firstEntered

	require.NoError(t, ctrl.CorrectGrammar(context.Background(), "second"))
	require.True(t, ctrl.Snapshot().IsProcessing)
	require.Equal(t, int32(1), indicator.hides.Load())

	close(releaseFirst)
	require.NoError(t, <-firstDone)

	status := ctrl.Snapshot()
	require.Equal(t, "Second.", status.OutputText)
	require.False(t, status.IsProcessing)
	require.Equal(t, int32(2), indicator.hides.Load(), "stale correction hides the indicator once idle")
}

func TestStaleCorrectionKeepsIndicatorWhileNewerRuns(t *testing.T) {
	releaseFirst := make(chan struct{})
	releaseSecond := make(chan struct{})
	firstEntered := make(chan struct{})
	secondEntered := make(chan struct{})
	grammar := &fakeGrammar{correct: func(_ context.Context, text string) (string, error) {
		if text == "first" {
			close(firstEntered)
			<-releaseFirst
			return "First.", nil
		}
		close(secondEntered)
		<-releaseSecond
		return "Second.", nil
	}}
	indicator := &fakeIndicator{}
	ctrl := NewController(Dependencies{Grammar: grammar, Indicator: indicator})

	firstDone := make(chan error, 1)
	go func() { firstDone <- ctrl.CorrectGrammar(context.Background(), "first") }()
	<-firstEntered
	secondDone := make(chan error, 1)
	go func() { secondDone <- ctrl.CorrectGrammar(context.Background(), "second") }()
	<-secondEntered

	close(releaseFirst)
	require.NoError(t, <-firstDone)
	require.Zero(t, indicator.hides.Load())
	require.True(t, ctrl.Snapshot().IsProcessing)

	close(releaseSecond)
	require.NoError(t, <-secondDone)
	require.Equal(t, int32(1), indicator.hides.Load())
	require.Equal(t, "Second.", ctrl.Snapshot().OutputText)
}

func TestSpeakValidation(t *testing.T) {
	speech := &fakeSpeech{}
	player := &fakePlayer{}
	ctrl := NewController(Dependencies{Speech: speech, Player: player})

	require.ErrorIs(t, ctrl.Speak(context.Background(), "", testVoice, voice.DefaultSettings()), ErrEmptyInput)
	require.ErrorIs(t, ctrl.Speak(context.Background(), "hello", nil, voice.DefaultSettings()), ErrNoVoiceSelected)

	status := ctrl.Snapshot()
	require.False(t, status.IsGeneratingSpeech)
	require.NoError(t, status.LastError)
	require.Empty(t, speech.generated())
	require.Empty(t, player.playedAudio())

	noSpeech := NewController(Dependencies{Player: player})
	require.ErrorIs(t, noSpeech.Speak(context.Background(), "hello", testVoice, voice.DefaultSettings()), provider.ErrMissingCredential)
}

func TestSpeakGeneratesThenPlays(t *testing.T) {
	speech := &fakeSpeech{}
	player := &fakePlayer{}
	ctrl := NewController(Dependencies{Speech: speech, Player: player})
	ctrl.lastError = fmt.Errorf("earlier: %w", provider.ErrTransport)

	err := ctrl.Speak(context.Background(), "Hello there.", testVoice, voice.Settings{Stability: 1.4, SimilarityBoost: 0.5})
	require.NoError(t, err)

	calls := speech.generated()
	require.Len(t, calls, 1)
	require.Equal(t, "Hello there.", calls[0].text)
	require.Equal(t, "voice-rachel", calls[0].voiceID)
	require.Equal(t, voice.Settings{Stability: 1, SimilarityBoost: 0.5}, calls[0].settings)
	require.Equal(t, [][]byte{{1, 0, 2, 0}}, player.playedAudio())

	status := ctrl.Snapshot()
	require.False(t, status.IsGeneratingSpeech)
	require.NoError(t, status.LastError)
}

func TestSpeakGenerationFailureRecorded(t *testing.T) {
	speech := &fakeSpeech{generate: func(context.Context, string) ([]byte, error) {
		return nil, fmt.Errorf("elevenlabs: %w: voice not found", provider.ErrInvalidVoice)
	}}
	player := &fakePlayer{}
	ctrl := NewController(Dependencies{Speech: speech, Player: player})

	require.NoError(t, ctrl.Speak(context.Background(), "Hello.", testVoice, voice.DefaultSettings()))

	status := ctrl.Snapshot()
	require.ErrorIs(t, status.LastError, provider.ErrInvalidVoice)
	require.False(t, status.IsGeneratingSpeech)
	require.Empty(t, player.playedAudio())
}

func TestSpeakPlaybackFailureRecorded(t *testing.T) {
	player := &fakePlayer{err: fmt.Errorf("%w: no sink", provider.ErrPlayback)}
	ctrl := NewController(Dependencies{Speech: &fakeSpeech{}, Player: player})

	require.NoError(t, ctrl.Speak(context.Background(), "Hello.", testVoice, voice.DefaultSettings()))
	require.ErrorIs(t, ctrl.Snapshot().LastError, provider.ErrPlayback)
}

func TestSpeakSupersededAudioDiscarded(t *testing.T) {
	releaseFirst := make(chan struct{})
	firstEntered := make(chan struct{})
	speech := &fakeSpeech{generate: func(_ context.Context, text string) ([]byte, error) {
		if text == "first" {
			close(firstEntered)
			<-releaseFirst
			return []byte{9, 9}, nil
		}
		return []byte{2, 2}, nil
	}}
	player := &fakePlayer{}
	indicator := &fakeIndicator{}
	ctrl := NewController(Dependencies{Speech: speech, Player: player, Indicator: indicator})

	firstDone := make(chan error, 1)
	go func() { firstDone <- ctrl.Speak(context.Background(), "first", testVoice, voice.DefaultSettings()) }()
	<-firstEntered

	require.NoError(t, ctrl.Speak(context.Background(), "second", testVoice, voice.DefaultSettings()))
	close(releaseFirst)
	require.NoError(t, <-firstDone)

	require.Equal(t, [][]byte{{2, 2}}, player.playedAudio())
	require.False(t, ctrl.Snapshot().IsGeneratingSpeech)
	require.Equal(t, int32(2), indicator.hides.Load())
}

func TestStopIsIdempotentAndDiscardsPendingSpeech(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	speech := &fakeSpeech{generate: func(context.Context, string) ([]byte, error) {
		close(entered)
		<-release
		return []byte{1, 1}, nil
	}}
	player := &fakePlayer{}
	indicator := &fakeIndicator{}
	ctrl := NewController(Dependencies{Speech: speech, Player: player, Indicator: indicator})

	ctrl.Stop()
	ctrl.Stop()

	done := make(chan error, 1)
	go func() { done <- ctrl.Speak(context.Background(), "Hello.", testVoice, voice.DefaultSettings()) }()
	<-entered
	require.True(t, ctrl.Snapshot().IsGeneratingSpeech)

	ctrl.Stop()
	close(release)
	require.NoError(t, <-done)

	require.Empty(t, player.playedAudio())
	require.Equal(t, int32(3), player.stops.Load())
	require.NoError(t, ctrl.Snapshot().LastError)
	require.Equal(t, int32(1), indicator.hides.Load(), "discarded speech dismisses the busy indicator")
}

func TestFlagsAreIndependent(t *testing.T) {
	releaseGrammar := make(chan struct{})
	grammarEntered := make(chan struct{})
	releaseSpeech := make(chan struct{})
	speechEntered := make(chan struct{})

	ctrl := NewController(Dependencies{
		Grammar: &fakeGrammar{correct: func(context.Context, string) (string, error) {
			close(grammarEntered)
			<-releaseGrammar
			return "Ok.", nil
		}},
		Speech: &fakeSpeech{generate: func(context.Context, string) ([]byte, error) {
			close(speechEntered)
			<-releaseSpeech
			return []byte{1, 0}, nil
		}},
		Player: &fakePlayer{},
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = ctrl.CorrectGrammar(context.Background(), "ok")
	}()
	go func() {
		defer wg.Done()
		_ = ctrl.Speak(context.Background(), "ok", testVoice, voice.DefaultSettings())
	}()
	<-grammarEntered
	<-speechEntered

	status := ctrl.Snapshot()
	require.True(t, status.IsProcessing)
	require.True(t, status.IsGeneratingSpeech)
	require.Equal(t, StateCorrectingSpeaking, status.State)

	close(releaseSpeech)
	require.Eventually(t, func() bool { return !ctrl.Snapshot().IsGeneratingSpeech }, time.Second, 5*time.Millisecond)
	require.True(t, ctrl.Snapshot().IsProcessing)

	close(releaseGrammar)
	wg.Wait()
	require.Equal(t, StateIdle, ctrl.State())
}

func TestLoadVoicesRestoresStoredSelection(t *testing.T) {
	store := settings.NewMemory()
	require.NoError(t, store.Set(settings.KeySelectedVoiceID, "voice-b"))
	speech := &fakeSpeech{voices: []voice.Voice{{ID: "voice-a", Name: "A"}, {ID: "voice-b", Name: "B"}}}
	ctrl := NewController(Dependencies{Speech: speech, Store: store})

	require.NoError(t, ctrl.LoadVoices(context.Background()))

	status := ctrl.Snapshot()
	require.Len(t, status.Voices, 2)
	require.NotNil(t, status.SelectedVoice)
	require.Equal(t, "voice-b", status.SelectedVoice.ID)
}

func TestLoadVoicesSelectsFirstAndPersists(t *testing.T) {
	store := settings.NewMemory()
	require.NoError(t, store.Set(settings.KeySelectedVoiceID, "voice-gone"))
	speech := &fakeSpeech{voices: []voice.Voice{{ID: "voice-a", Name: "A"}, {ID: "voice-b", Name: "B"}}}
	ctrl := NewController(Dependencies{Speech: speech, Store: store})

	require.NoError(t, ctrl.LoadVoices(context.Background()))
	require.Equal(t, "voice-a", ctrl.Snapshot().SelectedVoice.ID)

	var stored string
	ok, err := store.Get(settings.KeySelectedVoiceID, &stored)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "voice-a", stored)
}

func TestLoadVoicesFailureRecorded(t *testing.T) {
	speech := &fakeSpeech{listErr: fmt.Errorf("elevenlabs: %w: 401", provider.ErrAuth)}
	ctrl := NewController(Dependencies{Speech: speech})

	require.NoError(t, ctrl.LoadVoices(context.Background()))
	status := ctrl.Snapshot()
	require.ErrorIs(t, status.LastError, provider.ErrAuth)
	require.Nil(t, status.SelectedVoice)

	require.ErrorIs(t, NewController(Dependencies{}).LoadVoices(context.Background()), provider.ErrMissingCredential)
}

func TestSelectVoice(t *testing.T) {
	store := settings.NewMemory()
	speech := &fakeSpeech{voices: []voice.Voice{{ID: "voice-a"}, {ID: "voice-b"}}}
	ctrl := NewController(Dependencies{Speech: speech, Store: store})
	require.NoError(t, ctrl.LoadVoices(context.Background()))

	require.ErrorIs(t, ctrl.SelectVoice("voice-z"), ErrUnknownVoice)
	require.Equal(t, "voice-a", ctrl.Snapshot().SelectedVoice.ID)

	require.NoError(t, ctrl.SelectVoice("voice-b"))
	require.Equal(t, "voice-b", ctrl.Snapshot().SelectedVoice.ID)

	var stored string
	_, err := store.Get(settings.KeySelectedVoiceID, &stored)
	require.NoError(t, err)
	require.Equal(t, "voice-b", stored)
}

func TestPreviewSpeaksPreviewTextWithSelectedVoice(t *testing.T) {
	speech := &fakeSpeech{voices: []voice.Voice{{ID: "voice-a"}}}
	player := &fakePlayer{}
	ctrl := NewController(Dependencies{Speech: speech, Player: player})

	ctrl.Preview(context.Background(), voice.DefaultSettings())
	require.Empty(t, speech.generated())

	require.NoError(t, ctrl.LoadVoices(context.Background()))
	ctrl.Preview(context.Background(), voice.Settings{Stability: 0.2, SimilarityBoost: 0.9})

	calls := speech.generated()
	require.Len(t, calls, 1)
	require.Equal(t, DefaultPreviewText, calls[0].text)
	require.Equal(t, "voice-a", calls[0].voiceID)
	require.Equal(t, voice.Settings{Stability: 0.2, SimilarityBoost: 0.9}, calls[0].settings)
	require.Len(t, player.playedAudio(), 1)

	NewController(Dependencies{}).Preview(context.Background(), voice.DefaultSettings())
}

func TestSpeakInputPrefersOutputText(t *testing.T) {
	speech := &fakeSpeech{voices: []voice.Voice{{ID: "voice-a"}}}
	ctrl := NewController(Dependencies{Speech: speech, Grammar: echoGrammar("Corrected."), Player: &fakePlayer{}})
	require.NoError(t, ctrl.LoadVoices(context.Background()))

	require.NoError(t, ctrl.SpeakInput(context.Background(), "raw input", voice.DefaultSettings()))
	require.NoError(t, ctrl.CorrectGrammar(context.Background(), "raw input"))
	require.NoError(t, ctrl.SpeakInput(context.Background(), "raw input", voice.DefaultSettings()))

	calls := speech.generated()
	require.Len(t, calls, 2)
	require.Equal(t, "raw input", calls[0].text)
	require.Equal(t, "Corrected.", calls[1].text)
}

func TestDismissError(t *testing.T) {
	ctrl := NewController(Dependencies{})
	ctrl.lastError = provider.ErrTransport
	ctrl.DismissError()
	require.NoError(t, ctrl.Snapshot().LastError)
}

func TestHandleStatusStopAndUnknownCommand(t *testing.T) {
	player := &fakePlayer{}
	ctrl := NewController(Dependencies{Player: player})

	status := ctrl.Handle(context.Background(), ipc.Request{Command: "status"})
	require.True(t, status.OK)
	require.Equal(t, StateIdle, status.State)

	stop := ctrl.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.True(t, stop.OK)
	require.Equal(t, "stop requested", stop.Message)
	require.Equal(t, int32(1), player.stops.Load())

	unknown := ctrl.Handle(context.Background(), ipc.Request{Command: "definitely-unknown"})
	require.False(t, unknown.OK)
	require.Contains(t, unknown.Error, "unknown command")
}
