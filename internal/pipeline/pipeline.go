// Package pipeline wires the streaming/animation core together: marker
// scanning of chunked LLM text, single-flight emotion playback, parameter
// animation, idle motion, cursor tracking and sound cues, all pushed to one
// rendering model per frame.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/metamuses/musekit/internal/bus"
	"github.com/metamuses/musekit/internal/config"
	"github.com/metamuses/musekit/internal/emotion"
	"github.com/metamuses/musekit/internal/live2d"
	"github.com/metamuses/musekit/internal/marker"
	"github.com/metamuses/musekit/internal/queue"
	"github.com/metamuses/musekit/internal/sound"
)

// Options collects the injected collaborators. Model and Player may be nil;
// the pipeline then animates without a render target or audio output.
type Options struct {
	Config *config.Config
	Logger zerolog.Logger
	Bus    *bus.EventBus
	Model  live2d.Model
	Player sound.Player

	// Typed callback slots toward the host UI.
	OnLiteral func(text string)
	OnMotion  func(motion string)
}

// Pipeline is one avatar session.
type Pipeline struct {
	cfg    *config.Config
	logger zerolog.Logger
	bus    *bus.EventBus
	model  live2d.Model

	scanner  *marker.Scanner
	queue    *queue.Queue[emotion.Emotion]
	animator *live2d.ParamAnimator
	idle     *live2d.IdleAnimator
	tracker  *live2d.MouseTracker
	sounds   *sound.Manager

	onLiteral func(string)
	onMotion  func(string)

	mu         sync.Mutex
	transient  map[live2d.ParamID]struct{}
	lastUpdate time.Time
	closed     bool
}

func New(opts Options) (*Pipeline, error) {
	if err := emotion.Validate(); err != nil {
		return nil, fmt.Errorf("emotion registry: %w", err)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	evbus := opts.Bus
	if evbus == nil {
		evbus = bus.NewEventBus()
	}

	p := &Pipeline{
		cfg:       cfg,
		logger:    opts.Logger.With().Str("component", "pipeline").Logger(),
		bus:       evbus,
		model:     opts.Model,
		animator:  live2d.NewParamAnimator(),
		idle:      live2d.NewIdleAnimator(),
		tracker:   live2d.NewMouseTracker(),
		sounds:    sound.NewManager(opts.Player, opts.Logger),
		onLiteral: opts.OnLiteral,
		onMotion:  opts.OnMotion,
		transient: make(map[live2d.ParamID]struct{}),
	}

	p.idle.SetEnabled(cfg.Avatar.IdleAnimation)
	p.idle.SetBlinkRate(cfg.Avatar.BlinkMinGap, cfg.Avatar.BlinkMaxGap)
	p.idle.SetBlinkDuration(cfg.Avatar.BlinkDuration)
	p.tracker.SetEnabled(cfg.Avatar.MouseTracking)
	p.sounds.SetEnabled(cfg.Sound.Enabled)
	p.sounds.SetVolume(cfg.Sound.Volume)
	p.sounds.SetOnFailure(func(path string, err error) {
		evbus.Publish(bus.SoundFailed{Path: path, Err: err})
	})

	if opts.Model != nil {
		p.animator.SetSource(func(id live2d.ParamID) (float32, bool) {
			return opts.Model.ParameterValue(id.String())
		})
	}

	p.scanner = marker.NewScanner(emotion.MarkerOpen, emotion.MarkerClose)
	p.scanner.OnLiteral = func(text string) error {
		if p.onLiteral != nil {
			p.onLiteral(text)
		}
		return nil
	}
	p.scanner.OnMarker = func(token string) error {
		p.handleMarker(token)
		return nil
	}

	p.queue = queue.New[emotion.Emotion](opts.Logger)
	p.queue.AddHandler(p.handleEmotion)

	return p, nil
}

// Bus exposes the session's event bus.
func (p *Pipeline) Bus() *bus.EventBus {
	return p.bus
}

// Sounds exposes the cue manager for preloading and user volume controls.
func (p *Pipeline) Sounds() *sound.Manager {
	return p.sounds
}

// Idle exposes the idle animator for user preference toggles.
func (p *Pipeline) Idle() *live2d.IdleAnimator {
	return p.idle
}

// Tracker exposes the cursor tracker.
func (p *Pipeline) Tracker() *live2d.MouseTracker {
	return p.tracker
}

// AddEmotionHandler appends an extra handler to the playback chain. Handlers
// run in registration order after the built-in one.
func (p *Pipeline) AddEmotionHandler(h queue.Handler[emotion.Emotion]) {
	p.queue.AddHandler(h)
}

// PreloadSounds warms every profile's cue.
func (p *Pipeline) PreloadSounds(ctx context.Context) {
	var paths []string
	for _, e := range emotion.All() {
		if path := emotion.GetProfile(e).SoundPath; path != "" {
			paths = append(paths, path)
		}
	}
	p.sounds.PreloadAll(ctx, paths)
}

// Feed consumes one raw text chunk from the LLM stream.
func (p *Pipeline) Feed(chunk string) error {
	return p.scanner.Consume(chunk)
}

// EndStream terminates the current text stream, flushing any buffered
// literal. A trailing unterminated marker is dropped.
func (p *Pipeline) EndStream() error {
	return p.scanner.End()
}

// DetectAndEnqueue scans a complete text for emotion markers and enqueues
// them in text order, returning the count found.
func (p *Pipeline) DetectAndEnqueue(text string) (int, error) {
	matches, err := emotion.Detect(text)
	if err != nil {
		return 0, err
	}
	for _, m := range matches {
		p.enqueue(m.Emotion, m.Offset)
	}
	return len(matches), nil
}

// WaitIdle blocks until the emotion queue has fully drained. Test and
// shutdown helper.
func (p *Pipeline) WaitIdle() {
	p.queue.Wait()
}

// QueueLen returns the number of emotions awaiting playback.
func (p *Pipeline) QueueLen() int {
	return p.queue.Len()
}

// ClearQueue drops pending emotions without interrupting the one currently
// playing.
func (p *Pipeline) ClearQueue() {
	p.queue.Clear()
}

// Close shuts the session down.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.queue.Close()
	p.sounds.StopAll()
}

func (p *Pipeline) handleMarker(token string) {
	e, ok := emotion.FromMarker(token)
	if !ok {
		// Well-delimited but unrecognized: dropped from playback and
		// display, surfaced on the bus for whoever wants to know.
		p.logger.Debug().Str("token", token).Msg("Unknown marker token")
		p.bus.Publish(bus.UnknownMarker{Token: token})
		return
	}
	p.enqueue(e, -1)
}

func (p *Pipeline) enqueue(e emotion.Emotion, offset int) {
	p.queue.Enqueue(e)
	p.bus.Publish(bus.EmotionQueued{Emotion: e.String(), Offset: offset})
}

// handleEmotion is the built-in per-item handler: resolve the profile, fire
// the sound cue without waiting on it, animate the parameter offsets, select
// the motion, hold, then return to idle only if nothing else is queued.
func (p *Pipeline) handleEmotion(ctx context.Context, e emotion.Emotion) error {
	prof := emotion.GetProfile(e)

	p.idle.Pause()
	p.bus.Publish(bus.EmotionStarted{Emotion: e.String(), Motion: prof.Motion})

	if prof.SoundPath != "" {
		p.sounds.Play(ctx, prof.SoundPath)
	}

	if len(prof.Offsets) > 0 {
		p.animator.AnimateTo(prof.Offsets, p.avatarCfg().TransitionDuration, live2d.EaseOutCubic)
		p.rememberTransient(prof.Offsets)
	}

	if p.onMotion != nil {
		p.onMotion(prof.Motion)
	}

	hold := p.holdFor(prof)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(hold):
	}

	p.bus.Publish(bus.EmotionFinished{Emotion: e.String(), Held: hold})

	// Lookahead: only the last queued emotion hands control back to idle,
	// so the avatar never idles between two rapidly queued emotions.
	if p.queue.Len() == 0 {
		p.returnToIdle()
	}
	return nil
}

func (p *Pipeline) holdFor(prof emotion.Profile) time.Duration {
	cfg := p.avatarCfg()
	if cfg.HoldOverride > 0 {
		return cfg.HoldOverride
	}
	if prof.Hold > 0 {
		return prof.Hold
	}
	return cfg.DefaultHold
}

func (p *Pipeline) avatarCfg() config.AvatarConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Avatar
}

func (p *Pipeline) rememberTransient(offsets map[live2d.ParamID]float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range offsets {
		p.transient[id] = struct{}{}
	}
}

func (p *Pipeline) returnToIdle() {
	neutral := emotion.GetProfile(emotion.Neutral)
	if p.onMotion != nil {
		p.onMotion(neutral.Motion)
	}

	p.mu.Lock()
	targets := make(map[live2d.ParamID]float32, len(p.transient))
	for id := range p.transient {
		targets[id] = live2d.DefaultValue(id)
	}
	p.transient = make(map[live2d.ParamID]struct{})
	p.mu.Unlock()

	if len(targets) > 0 {
		p.animator.AnimateTo(targets, p.avatarCfg().TransitionDuration, live2d.EaseInOutCubic)
	}

	p.idle.Resume()
	p.bus.Publish(bus.IdleResumed{})
}

// Update computes one frame: discrete animation over neutral defaults, plus
// additive idle and tracking layers, pushed to the model. The merged snapshot
// is returned for callers that render elsewhere.
func (p *Pipeline) Update(now time.Time) map[live2d.ParamID]float32 {
	p.mu.Lock()
	dt := float32(1.0 / 60.0)
	if !p.lastUpdate.IsZero() {
		if d := now.Sub(p.lastUpdate); d > 0 {
			dt = float32(d.Seconds())
		}
	}
	p.lastUpdate = now
	p.mu.Unlock()

	p.animator.Update(now)

	frame := make(map[live2d.ParamID]float32, live2d.ParamCount)
	frame[live2d.EyeLOpen] = live2d.DefaultValue(live2d.EyeLOpen)
	frame[live2d.EyeROpen] = live2d.DefaultValue(live2d.EyeROpen)
	for id := live2d.ParamID(0); id < live2d.ParamCount; id++ {
		if v, ok := p.animator.Current(id); ok {
			frame[id] = v
		}
	}

	for id, v := range p.tracker.Update(dt) {
		frame[id] += v
	}

	for id, v := range p.idle.Update(now) {
		frame[id] += v
	}

	frame[live2d.EyeLOpen] = clamp01(frame[live2d.EyeLOpen])
	frame[live2d.EyeROpen] = clamp01(frame[live2d.EyeROpen])
	frame[live2d.MouthOpenY] = clamp01(frame[live2d.MouthOpenY])

	live2d.ApplyToModel(p.model, frame)
	return frame
}

// ApplyConfig re-applies the runtime-tunable settings, used with
// config.Watch.
func (p *Pipeline) ApplyConfig(cfg *config.Config) {
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()

	p.idle.SetEnabled(cfg.Avatar.IdleAnimation)
	p.idle.SetBlinkRate(cfg.Avatar.BlinkMinGap, cfg.Avatar.BlinkMaxGap)
	p.idle.SetBlinkDuration(cfg.Avatar.BlinkDuration)
	p.tracker.SetEnabled(cfg.Avatar.MouseTracking)
	p.sounds.SetEnabled(cfg.Sound.Enabled)
	p.sounds.SetVolume(cfg.Sound.Volume)
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
