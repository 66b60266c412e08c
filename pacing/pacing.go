// Package pacing simulates human typing cadence for outbound messages.
package pacing

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Level is the humanization degree.
type Level int

const (
	// Off dispatches immediately.
	Off Level = iota
	// Sentence applies typing delays and short pauses between chunks.
	Sentence
	// Heavy adds occasional thinking pauses and sentence-level flushing.
	Heavy
)

func (l Level) String() string {
	switch l {
	case Off:
		return "off"
	case Sentence:
		return "sentence"
	case Heavy:
		return "heavy"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel parses "off", "sentence" or "heavy".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "none":
		return Off, nil
	case "sentence":
		return Sentence, nil
	case "heavy":
		return Heavy, nil
	}
	return Off, fmt.Errorf("unknown humanization level %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	v, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// codeFloorFactor raises the minimum delay for segments carrying a fence.
const codeFloorFactor = 1.25

// Config holds the humanization settings.
type Config struct {
	Level Level

	// CharDelay is the simulated typing time per character.
	CharDelay time.Duration
	// MinTyping and MaxTyping bound the typing delay of one segment.
	MinTyping time.Duration
	MaxTyping time.Duration

	// PauseMin and PauseMax bound the pause between output chunks.
	PauseMin time.Duration
	PauseMax time.Duration

	// ThinkingChance is the probability that a pause becomes a thinking
	// pause (Heavy only).
	ThinkingChance float64
	ThinkingMin    time.Duration
	ThinkingMax    time.Duration

	// SentenceFlush requests sentence-level segmentation regardless of Level.
	SentenceFlush bool
}

// DefaultConfig returns settings for the given level.
func DefaultConfig(level Level) Config {
	return Config{
		Level:          level,
		CharDelay:      25 * time.Millisecond,
		MinTyping:      400 * time.Millisecond,
		MaxTyping:      4 * time.Second,
		PauseMin:       300 * time.Millisecond,
		PauseMax:       900 * time.Millisecond,
		ThinkingChance: 0.15,
		ThinkingMin:    1500 * time.Millisecond,
		ThinkingMax:    3500 * time.Millisecond,
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Simulator.
type Option func(*Simulator)

// WithRand sets the random source. r is guarded by this simulator's lock
// only, so it must not be handed to another Simulator. Options reused
// across simulators should use WithSeed.
func WithRand(r *rand.Rand) Option {
	return func(s *Simulator) {
		s.rng = r
	}
}

// WithSeed gives each simulator built with the option its own source
// seeded with seed1 and seed2.
func WithSeed(seed1, seed2 uint64) Option {
	return func(s *Simulator) {
		s.rng = rand.New(rand.NewPCG(seed1, seed2))
	}
}

// WithSleep replaces the wait implementation.
func WithSleep(fn SleepFunc) Option {
	return func(s *Simulator) {
		s.sleep = fn
	}
}

// Simulator computes and applies delivery delays. It is safe for
// concurrent use.
type Simulator struct {
	cfg   Config
	mu    sync.Mutex
	rng   *rand.Rand
	sleep SleepFunc
}

// New creates a Simulator.
func New(cfg Config, opts ...Option) *Simulator {
	s := &Simulator{
		cfg:   cfg,
		sleep: Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// Config returns the simulator settings.
func (s *Simulator) Config() Config {
	return s.cfg
}

// Enabled reports whether any delay is applied.
func (s *Simulator) Enabled() bool {
	return s.cfg.Level != Off
}

// FineGrained reports whether segmentation should flush at sentence ends.
func (s *Simulator) FineGrained() bool {
	return s.cfg.SentenceFlush || s.cfg.Level == Heavy
}

// Delay returns the typing delay for a segment.
func (s *Simulator) Delay(segment string) time.Duration {
	if !s.Enabled() {
		return 0
	}
	d := time.Duration(utf8.RuneCountInString(segment)) * s.cfg.CharDelay
	floor := s.cfg.MinTyping
	ceiling := s.cfg.MaxTyping
	if strings.Contains(segment, "```") {
		floor = time.Duration(float64(floor) * codeFloorFactor)
	}
	if ceiling < floor {
		ceiling = floor
	}
	return min(max(d, floor), ceiling)
}

// Wait sleeps for d unless the context ends first.
func (s *Simulator) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return s.sleep(ctx, d)
}

// Pause describes the gap inserted between two output chunks.
type Pause struct {
	Duration time.Duration
	Thinking bool
}

// NextPause draws the pause before the next output chunk.
func (s *Simulator) NextPause() Pause {
	if !s.Enabled() {
		return Pause{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Level == Heavy && s.cfg.ThinkingChance > 0 && s.rng.Float64() < s.cfg.ThinkingChance {
		return Pause{Duration: s.between(s.cfg.ThinkingMin, s.cfg.ThinkingMax), Thinking: true}
	}
	return Pause{Duration: s.between(s.cfg.PauseMin, s.cfg.PauseMax)}
}

// BetweenChunks waits out one inter-chunk pause. A thinking pause calls
// signal halfway through so the activity indicator stays visible.
func (s *Simulator) BetweenChunks(ctx context.Context, signal func(context.Context)) error {
	p := s.NextPause()
	if p.Duration <= 0 {
		return nil
	}
	if !p.Thinking || signal == nil {
		return s.sleep(ctx, p.Duration)
	}
	half := p.Duration / 2
	if err := s.sleep(ctx, half); err != nil {
		return err
	}
	signal(ctx)
	return s.sleep(ctx, p.Duration-half)
}

func (s *Simulator) between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.rng.Int64N(int64(hi-lo)+1))
}

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
