// Package sound manages short audio cues keyed by asset path. Actual decoding
// and output belong to the host environment; the manager coordinates
// preloading, overlap-safe playback, volume and enablement on top of an
// injected Player.
package sound

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Player loads playable handles for asset paths. Implementations may hit the
// network; Load failures are absorbed by the manager.
type Player interface {
	Load(ctx context.Context, path string) (Handle, error)
}

// Handle is one warmed audio asset. Clone returns an independent instance so
// overlapping triggers of the same cue do not cut each other off.
type Handle interface {
	Clone() Handle
	SetVolume(v float64)
	Play(ctx context.Context) error
	Stop()
}

type Manager struct {
	mu sync.Mutex

	player  Player
	logger  zerolog.Logger
	handles map[string]Handle
	active  map[string][]Handle

	volume  float64
	enabled bool

	// onFailure observes load/playback failures for telemetry; the failure
	// never reaches the animation path either way.
	onFailure func(path string, err error)
}

func NewManager(player Player, logger zerolog.Logger) *Manager {
	return &Manager{
		player:  player,
		logger:  logger.With().Str("component", "sound").Logger(),
		handles: make(map[string]Handle),
		active:  make(map[string][]Handle),
		volume:  1.0,
		enabled: true,
	}
}

// SetOnFailure installs a failure observer.
func (m *Manager) SetOnFailure(fn func(path string, err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFailure = fn
}

// Preload warms a handle for the path. Repeated preloads are no-ops; a load
// failure is logged and reported, never returned.
func (m *Manager) Preload(ctx context.Context, path string) {
	if path == "" {
		return
	}

	m.mu.Lock()
	if _, ok := m.handles[path]; ok {
		m.mu.Unlock()
		return
	}
	player := m.player
	m.mu.Unlock()

	if player == nil {
		return
	}

	h, err := player.Load(ctx, path)
	if err != nil {
		m.fail(path, err, "Sound preload failed")
		return
	}

	m.mu.Lock()
	h.SetVolume(m.volume)
	m.handles[path] = h
	m.mu.Unlock()
}

// PreloadAll warms a batch, continuing past individual failures.
func (m *Manager) PreloadAll(ctx context.Context, paths []string) {
	for _, p := range paths {
		m.Preload(ctx, p)
	}
}

// Play starts the cue asynchronously. The handle is cloned so concurrent
// plays of the same path overlap instead of restarting each other. All
// failures are logged; the caller never waits and never sees an error.
func (m *Manager) Play(ctx context.Context, path string) {
	if path == "" {
		return
	}

	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return
	}
	h, ok := m.handles[path]
	volume := m.volume
	m.mu.Unlock()

	if !ok {
		m.Preload(ctx, path)
		m.mu.Lock()
		h, ok = m.handles[path]
		m.mu.Unlock()
		if !ok {
			return
		}
	}

	clone := h.Clone()
	clone.SetVolume(volume)

	m.mu.Lock()
	m.active[path] = append(m.active[path], clone)
	m.mu.Unlock()

	go func() {
		if err := clone.Play(ctx); err != nil {
			m.fail(path, err, "Sound playback failed")
		}
		m.mu.Lock()
		clones := m.active[path]
		for i, c := range clones {
			if c == clone {
				m.active[path] = append(clones[:i], clones[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
	}()
}

// Stop halts every active instance of one cue.
func (m *Manager) Stop(path string) {
	m.mu.Lock()
	clones := m.active[path]
	delete(m.active, path)
	m.mu.Unlock()

	for _, c := range clones {
		c.Stop()
	}
}

// StopAll halts every active cue.
func (m *Manager) StopAll() {
	m.mu.Lock()
	all := m.active
	m.active = make(map[string][]Handle)
	m.mu.Unlock()

	for _, clones := range all {
		for _, c := range clones {
			c.Stop()
		}
	}
}

// SetVolume applies to cached handles and all subsequent plays. Values clamp
// to [0,1].
func (m *Manager) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	m.mu.Lock()
	m.volume = v
	for _, h := range m.handles {
		h.SetVolume(v)
	}
	m.mu.Unlock()
}

func (m *Manager) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// SetEnabled toggles playback. Disabling stops everything currently playing.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	m.mu.Unlock()

	if !enabled {
		m.StopAll()
	}
}

func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *Manager) fail(path string, err error, msg string) {
	m.logger.Warn().Err(err).Str("path", path).Msg(msg)

	m.mu.Lock()
	fn := m.onFailure
	m.mu.Unlock()
	if fn != nil {
		fn(path, err)
	}
}
