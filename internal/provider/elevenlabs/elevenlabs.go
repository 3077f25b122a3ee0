// Package elevenlabs implements speech generation and voice listing on the
// ElevenLabs API. Synthesis uses the stream-input WebSocket endpoint and returns
// raw 16-bit mono PCM once the whole utterance has arrived.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"

	"github.com/rbright/voiceassist/internal/provider"
	"github.com/rbright/voiceassist/internal/version"
	"github.com/rbright/voiceassist/internal/voice"
)

const (
	defaultBaseURL    = "https://api.elevenlabs.io"
	defaultModel      = "eleven_flash_v2_5"
	defaultSampleRate = 22050
	maxFrameBytes     = 16 << 20
)

// Option is a functional option for Synthesizer.
type Option func(*Synthesizer)

// WithModel sets the ElevenLabs model id.
func WithModel(model string) Option {
	return func(s *Synthesizer) {
		if model != "" {
			s.model = model
		}
	}
}

// WithBaseURL overrides the API origin. WebSocket URLs are derived from it.
func WithBaseURL(base string) Option {
	return func(s *Synthesizer) {
		if base != "" {
			s.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithSampleRate selects the pcm_<rate> output format.
func WithSampleRate(rate int) Option {
	return func(s *Synthesizer) {
		if rate > 0 {
			s.sampleRate = rate
		}
	}
}

// WithHTTPClient replaces the client used for REST calls.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Synthesizer) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// Synthesizer implements provider.SpeechGenerator.
type Synthesizer struct {
	apiKey     string
	model      string
	baseURL    string
	sampleRate int
	httpClient *http.Client
}

// New constructs a Synthesizer. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("elevenlabs: %w", provider.ErrMissingCredential)
	}
	s := &Synthesizer{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// SampleRate is the PCM rate Generate returns.
func (s *Synthesizer) SampleRate() int {
	return s.sampleRate
}

// OutputFormat is the ElevenLabs output_format value.
func (s *Synthesizer) OutputFormat() string {
	return fmt.Sprintf("pcm_%d", s.sampleRate)
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// openMessage starts the stream; the text must be a single space.
type openMessage struct {
	Text          string        `json:"text"`
	VoiceSettings voiceSettings `json:"voice_settings"`
	XiAPIKey      string        `json:"xi_api_key"`
}

type textMessage struct {
	Text string `json:"text"`
}

type audioMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// streamURL derives the stream-input WebSocket URL for voiceID.
func (s *Synthesizer) streamURL(voiceID string) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", s.baseURL, err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	// Path keeps the raw id and RawPath the escaped one, so reserved characters are escaped once.
	escapedBase := strings.TrimRight(u.EscapedPath(), "/")
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/text-to-speech/" + voiceID + "/stream-input"
	u.RawPath = escapedBase + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream-input"
	q := url.Values{}
	q.Set("model_id", s.model)
	q.Set("output_format", s.OutputFormat())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Generate implements provider.SpeechGenerator. Audio is returned only after the
// server marks the stream final; a stream that breaks early returns no audio.
func (s *Synthesizer) Generate(ctx context.Context, text string, voiceID string, settings voice.Settings) ([]byte, error) {
	if strings.TrimSpace(voiceID) == "" {
		return nil, fmt.Errorf("elevenlabs: %w: empty voice id", provider.ErrInvalidVoice)
	}

	wsURL, err := s.streamURL(voiceID)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: %w: %w", provider.ErrTransport, err)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: s.httpClient,
		HTTPHeader: http.Header{
			"xi-api-key": []string{s.apiKey},
			"User-Agent": []string{version.UserAgent()},
		},
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("elevenlabs: dial: %w: %w", kindForStatus(resp.StatusCode), err)
		}
		return nil, fmt.Errorf("elevenlabs: dial: %w: %w", provider.ErrTransport, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxFrameBytes)

	clamped := settings.Clamped()
	messages := []any{
		openMessage{
			Text:          " ",
			VoiceSettings: voiceSettings{Stability: clamped.Stability, SimilarityBoost: clamped.SimilarityBoost},
			XiAPIKey:      s.apiKey,
		},
		textMessage{Text: strings.TrimSpace(text) + " "},
		textMessage{Text: ""},
	}
	for _, msg := range messages {
		payload, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("elevenlabs: encode message: %w", err)
		}
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			return nil, fmt.Errorf("elevenlabs: send: %w: %w", provider.ErrTransport, err)
		}
	}

	audio, err := readAudio(ctx, conn)
	if err != nil {
		return nil, err
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")
	return audio, nil
}

// readAudio collects decoded PCM until the final frame.
func readAudio(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	var audio []byte
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure && len(audio) > 0 {
				return audio, nil
			}
			var closeErr websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Reason != "" {
				return nil, fmt.Errorf("elevenlabs: stream closed: %w: %w", kindForMessage(closeErr.Reason), err)
			}
			return nil, fmt.Errorf("elevenlabs: read: %w: %w", provider.ErrTransport, err)
		}

		var msg audioMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("elevenlabs: %w: decode frame: %w", provider.ErrTransport, err)
		}
		if msg.Error != "" || (msg.Message != "" && msg.Audio == "" && !msg.IsFinal) {
			detail := strings.TrimSpace(msg.Error + " " + msg.Message)
			return nil, fmt.Errorf("elevenlabs: %w: %s", kindForMessage(detail), detail)
		}
		if msg.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				return nil, fmt.Errorf("elevenlabs: %w: decode audio: %w", provider.ErrTransport, err)
			}
			audio = append(audio, chunk...)
		}
		if msg.IsFinal {
			if len(audio) == 0 {
				return nil, fmt.Errorf("elevenlabs: %w: stream finished without audio", provider.ErrTransport)
			}
			return audio, nil
		}
	}
}

type voicesResponse struct {
	Voices []struct {
		VoiceID  string `json:"voice_id"`
		Name     string `json:"name"`
		Category string `json:"category"`
	} `json:"voices"`
}

// ListVoices implements provider.SpeechGenerator.
func (s *Synthesizer) ListVoices(ctx context.Context) ([]voice.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w: %w", provider.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: %w: unexpected status %d", provider.KindForStatus(resp.StatusCode), resp.StatusCode)
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w: decode: %w", provider.ErrTransport, err)
	}

	voices := make([]voice.Voice, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		if v.VoiceID == "" {
			continue
		}
		voices = append(voices, voice.Voice{ID: v.VoiceID, Name: v.Name, Category: v.Category})
	}
	return voices, nil
}

// kindForStatus maps handshake statuses; voice lookups fail with 4xx.
func kindForStatus(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return provider.ErrInvalidVoice
	default:
		return provider.KindForStatus(status)
	}
}

// kindForMessage classifies server-sent error text.
func kindForMessage(text string) error {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "api key"), strings.Contains(lower, "api_key"),
		strings.Contains(lower, "unauthorized"), strings.Contains(lower, "authenticat"):
		return provider.ErrAuth
	case strings.Contains(lower, "voice"):
		return provider.ErrInvalidVoice
	default:
		return provider.ErrTransport
	}
}
