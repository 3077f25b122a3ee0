package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/rbright/voiceassist/internal/provider"
)

// DefaultSampleRate matches the default ElevenLabs PCM output format.
const DefaultSampleRate = 22050

// playFunc renders samples until they run out or stop is closed.
type playFunc func(ctx context.Context, samples []int16, stop <-chan struct{}) error

// Player plays s16le mono PCM through one Pulse output sink.
// Starting a new playback halts the one in progress.
type Player struct {
	sampleRate int
	sink       string
	logger     *slog.Logger
	play       playFunc

	mu      sync.Mutex
	current *playback
}

type playback struct {
	stop chan struct{}
	once sync.Once
}

func (p *playback) halt() {
	p.once.Do(func() { close(p.stop) })
}

func (p *playback) halted() bool {
	select {
	case <-p.stop:
		return true
	default:
		return false
	}
}

// NewPlayer builds a Pulse-backed player. sink may be empty or "default".
func NewPlayer(sampleRate int, sink string, logger *slog.Logger) *Player {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	p := &Player{
		sampleRate: sampleRate,
		sink:       sink,
		logger:     logger,
	}
	p.play = p.playPulse
	return p
}

// SampleRate returns the rate PCM input is expected at.
func (p *Player) SampleRate() int {
	return p.sampleRate
}

// Play blocks until audio finished, Stop was called, or ctx ended.
// Being stopped is not an error.
func (p *Player) Play(ctx context.Context, audio []byte) error {
	return p.PlaySamples(ctx, DecodePCM16(audio))
}

// PlaySamples is Play for already decoded mono samples.
func (p *Player) PlaySamples(ctx context.Context, samples []int16) error {
	if len(samples) == 0 {
		return nil
	}

	current := &playback{stop: make(chan struct{})}
	p.mu.Lock()
	if p.current != nil {
		p.current.halt()
	}
	p.current = current
	p.mu.Unlock()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			current.halt()
		case <-done:
		}
	}()

	err := p.play(ctx, samples, current.stop)

	p.mu.Lock()
	if p.current == current {
		p.current = nil
	}
	p.mu.Unlock()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil && !current.halted() {
		return fmt.Errorf("%w: %w", provider.ErrPlayback, err)
	}
	return nil
}

// Stop halts the active playback at the next buffer. Safe with nothing playing.
func (p *Player) Stop() {
	p.mu.Lock()
	current := p.current
	p.current = nil
	p.mu.Unlock()

	if current != nil {
		current.halt()
		if p.logger != nil {
			p.logger.Debug("playback stopped")
		}
	}
}

// Playing reports whether a playback is in progress.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

func (p *Player) playPulse(_ context.Context, samples []int16, stop <-chan struct{}) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	opts := []pulse.PlaybackOption{
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(p.sampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName("voiceassist speech"),
	}
	if p.sink != "" && p.sink != "default" {
		sink, err := client.SinkByID(p.sink)
		if err != nil {
			return fmt.Errorf("resolve sink %q: %w", p.sink, err)
		}
		opts = append(opts, pulse.PlaybackSink(sink))
	}

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		select {
		case <-stop:
			return 0, pulse.EndOfData
		default:
		}
		if cursor >= len(samples) {
			return 0, pulse.EndOfData
		}

		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(reader, opts...)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play speech stream: %w", err)
	}
	return nil
}

// DecodePCM16 converts little-endian signed 16-bit PCM into samples.
// A trailing odd byte is dropped.
func DecodePCM16(raw []byte) []int16 {
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return samples
}
