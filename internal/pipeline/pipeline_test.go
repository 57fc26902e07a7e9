package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metamuses/musekit/internal/bus"
	"github.com/metamuses/musekit/internal/config"
	"github.com/metamuses/musekit/internal/emotion"
	"github.com/metamuses/musekit/internal/live2d"
	"github.com/metamuses/musekit/internal/sound"
)

const streamedReply = "<|EMOTE_THINK|> Hmm... <|EMOTE_SURPRISED|> Wow! <|EMOTE_HAPPY|> That is amazing!"

// testConfig shrinks holds and transitions so a full playback cycle completes
// in a few milliseconds.
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Avatar.HoldOverride = 5 * time.Millisecond
	cfg.Avatar.TransitionDuration = time.Millisecond
	cfg.Avatar.MouseTracking = false
	return cfg
}

type recorder struct {
	mu       sync.Mutex
	literals []string
	motions  []string
}

func (r *recorder) literal(text string) {
	r.mu.Lock()
	r.literals = append(r.literals, text)
	r.mu.Unlock()
}

func (r *recorder) motion(m string) {
	r.mu.Lock()
	r.motions = append(r.motions, m)
	r.mu.Unlock()
}

func (r *recorder) snapshot() (literals, motions []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.literals...), append([]string(nil), r.motions...)
}

type fakeModel struct {
	mu     sync.Mutex
	params map[string]float32
}

func newFakeModel() *fakeModel {
	return &fakeModel{params: make(map[string]float32)}
}

func (m *fakeModel) ParameterValue(name string) (float32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.params[name]
	return v, ok
}

func (m *fakeModel) SetParameterValue(name string, value float32) {
	m.mu.Lock()
	m.params[name] = value
	m.mu.Unlock()
}

func (m *fakeModel) get(name string) (float32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.params[name]
	return v, ok
}

type nullPlayer struct{}

func (nullPlayer) Load(context.Context, string) (sound.Handle, error) {
	return nullHandle{}, nil
}

type nullHandle struct{}

func (nullHandle) Clone() sound.Handle        { return nullHandle{} }
func (nullHandle) SetVolume(float64)          {}
func (nullHandle) Play(context.Context) error { return nil }
func (nullHandle) Stop()                      {}

func newTestPipeline(t *testing.T, rec *recorder) *Pipeline {
	t.Helper()
	p, err := New(Options{
		Config:    testConfig(),
		Logger:    zerolog.Nop(),
		Player:    nullPlayer{},
		OnLiteral: rec.literal,
		OnMotion:  rec.motion,
	})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestPipeline_StreamedMarkersPlayInOrder(t *testing.T) {
	rec := &recorder{}
	p := newTestPipeline(t, rec)

	require.NoError(t, p.Feed(streamedReply))
	require.NoError(t, p.EndStream())
	p.WaitIdle()

	literals, motions := rec.snapshot()
	assert.Equal(t, " Hmm...  Wow!  That is amazing!", strings.Join(literals, ""))
	assert.Equal(t, []string{"think", "surprise", "happy", "idle"}, motions)
}

func TestPipeline_ChunkBoundariesDoNotChangePlayback(t *testing.T) {
	for _, size := range []int{1, 2, 3, 5, 7, 16} {
		rec := &recorder{}
		p := newTestPipeline(t, rec)

		for i := 0; i < len(streamedReply); i += size {
			end := i + size
			if end > len(streamedReply) {
				end = len(streamedReply)
			}
			require.NoError(t, p.Feed(streamedReply[i:end]))
		}
		require.NoError(t, p.EndStream())
		p.WaitIdle()

		literals, motions := rec.snapshot()
		assert.Equal(t, " Hmm...  Wow!  That is amazing!", strings.Join(literals, ""), "chunk size %d", size)
		assert.Equal(t, []string{"think", "surprise", "happy", "idle"}, motions, "chunk size %d", size)
	}
}

func TestPipeline_AdjacentMarkersIdleOnlyAfterLast(t *testing.T) {
	rec := &recorder{}
	p := newTestPipeline(t, rec)

	var mu sync.Mutex
	idleResumes := 0
	p.Bus().Subscribe(bus.KindIdleResumed, func(bus.Event) {
		mu.Lock()
		idleResumes++
		mu.Unlock()
	})

	require.NoError(t, p.Feed("<|EMOTE_THINK|><|EMOTE_SURPRISED|><|EMOTE_HAPPY|>"))
	require.NoError(t, p.EndStream())
	p.WaitIdle()

	_, motions := rec.snapshot()
	assert.Equal(t, []string{"think", "surprise", "happy", "idle"}, motions)

	// events are delivered asynchronously
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return idleResumes == 1
	}, time.Second, time.Millisecond)
}

func TestPipeline_DetectAndEnqueue(t *testing.T) {
	rec := &recorder{}
	p := newTestPipeline(t, rec)

	n, err := p.DetectAndEnqueue(streamedReply)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	p.WaitIdle()
	_, motions := rec.snapshot()
	assert.Equal(t, []string{"think", "surprise", "happy", "idle"}, motions)
}

func TestPipeline_UnknownMarkerDropped(t *testing.T) {
	rec := &recorder{}
	p := newTestPipeline(t, rec)

	unknown := make(chan string, 1)
	p.Bus().Subscribe(bus.KindUnknownMarker, func(ev bus.Event) {
		unknown <- ev.(bus.UnknownMarker).Token
	})

	require.NoError(t, p.Feed("before <|EMOTE_DANCING|> after"))
	require.NoError(t, p.EndStream())
	p.WaitIdle()

	literals, motions := rec.snapshot()
	assert.Equal(t, "before  after", strings.Join(literals, ""))
	assert.Empty(t, motions, "unknown markers never reach playback")

	select {
	case token := <-unknown:
		assert.Equal(t, "<|EMOTE_DANCING|>", token)
	case <-time.After(time.Second):
		t.Fatal("unknown marker event never published")
	}
}

func TestPipeline_TrailingUnterminatedMarkerDropped(t *testing.T) {
	rec := &recorder{}
	p := newTestPipeline(t, rec)

	require.NoError(t, p.Feed("goodbye <|EMOTE_SAD"))
	require.NoError(t, p.EndStream())
	p.WaitIdle()

	literals, motions := rec.snapshot()
	assert.Equal(t, "goodbye ", strings.Join(literals, ""))
	assert.Empty(t, motions)
}

func TestPipeline_EmotionEventsPublished(t *testing.T) {
	rec := &recorder{}
	p := newTestPipeline(t, rec)

	started := make(chan bus.EmotionStarted, 8)
	finished := make(chan bus.EmotionFinished, 8)
	p.Bus().Subscribe(bus.KindEmotionStarted, func(ev bus.Event) {
		started <- ev.(bus.EmotionStarted)
	})
	p.Bus().Subscribe(bus.KindEmotionFinished, func(ev bus.Event) {
		finished <- ev.(bus.EmotionFinished)
	})

	require.NoError(t, p.Feed("<|EMOTE_ANGRY|>"))
	require.NoError(t, p.EndStream())
	p.WaitIdle()

	select {
	case ev := <-started:
		assert.Equal(t, "angry", ev.Emotion)
		assert.Equal(t, "angry", ev.Motion)
	case <-time.After(time.Second):
		t.Fatal("no started event")
	}
	select {
	case ev := <-finished:
		assert.Equal(t, "angry", ev.Emotion)
		assert.Equal(t, 5*time.Millisecond, ev.Held)
	case <-time.After(time.Second):
		t.Fatal("no finished event")
	}
}

func TestPipeline_HoldPrecedence(t *testing.T) {
	cfg := testConfig()
	p := &Pipeline{cfg: cfg}

	// override wins over the profile hold
	cfg.Avatar.HoldOverride = 7 * time.Millisecond
	got := p.holdFor(emotion.Profile{Hold: 42 * time.Millisecond})
	assert.Equal(t, 7*time.Millisecond, got)

	// profile hold wins over the default
	cfg.Avatar.HoldOverride = 0
	got = p.holdFor(emotion.Profile{Hold: 42 * time.Millisecond})
	assert.Equal(t, 42*time.Millisecond, got)

	// default fills in for profiles without a hold
	got = p.holdFor(emotion.Profile{})
	assert.Equal(t, cfg.Avatar.DefaultHold, got)
}

func TestPipeline_UpdatePushesFrameToModel(t *testing.T) {
	model := newFakeModel()
	p, err := New(Options{
		Config: testConfig(),
		Logger: zerolog.Nop(),
		Model:  model,
	})
	require.NoError(t, err)
	defer p.Close()

	now := time.Now()
	frame := p.Update(now)
	require.NotEmpty(t, frame)

	// idle layer over defaults keeps the eyes in range and on the model
	v, ok := model.get("ParamEyeLOpen")
	require.True(t, ok)
	assert.GreaterOrEqual(t, v, float32(0))
	assert.LessOrEqual(t, v, float32(1))

	if _, ok := model.get("ParamBreath"); !ok {
		t.Error("breathing offset never reached the model")
	}
}

func TestPipeline_UpdateClampsEyesDuringBlink(t *testing.T) {
	rec := &recorder{}
	p := newTestPipeline(t, rec)

	now := time.Now()
	p.Update(now)
	p.Idle().TriggerBlink()
	for i := 1; i <= 30; i++ {
		frame := p.Update(now.Add(time.Duration(i) * 10 * time.Millisecond))
		if v := frame[live2d.EyeLOpen]; v < 0 || v > 1 {
			t.Fatalf("eye openness %f outside [0,1]", v)
		}
	}
}

func TestPipeline_ClearQueueKeepsInFlight(t *testing.T) {
	rec := &recorder{}
	cfg := testConfig()
	// a long hold keeps the first emotion in flight while we clear
	cfg.Avatar.HoldOverride = 100 * time.Millisecond
	p, err := New(Options{
		Config:   cfg,
		Logger:   zerolog.Nop(),
		OnMotion: rec.motion,
	})
	require.NoError(t, err)
	defer p.Close()

	n, err := p.DetectAndEnqueue("<|EMOTE_THINK|><|EMOTE_SAD|><|EMOTE_ANGRY|>")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	p.ClearQueue()
	p.WaitIdle()

	_, motions := rec.snapshot()
	// at most the in-flight emotion plays, and idle always returns
	assert.LessOrEqual(t, len(motions), 2)
	if len(motions) > 0 {
		assert.Equal(t, "idle", motions[len(motions)-1])
	}
}
