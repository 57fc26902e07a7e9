package live2d

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

type BlinkState int

const (
	BlinkWaiting BlinkState = iota
	BlinkBlinking
)

// IdleAnimator produces continuous additive offsets for breathing, head sway
// and periodic blinking. Eye offsets are relative to a fully open eye, so a
// mid-blink snapshot carries EyeLOpen/EyeROpen near -1.
//
// Pause freezes output without losing phase; discrete emotions use it to take
// over temporarily. SetEnabled(false) turns the animator off outright and is
// meant for a persistent user preference.
type IdleAnimator struct {
	mu sync.Mutex

	enabled bool
	paused  bool

	blinkState    BlinkState
	lastBlinkEnd  time.Time
	blinkStart    time.Time
	blinkInterval time.Duration
	blinkDuration time.Duration
	minBlinkGap   time.Duration
	maxBlinkGap   time.Duration
	blinkPending  bool

	breathRate float32
	breathAmp  float32

	swayRateX float32
	swayAmpX  float32
	swayRateZ float32
	swayAmpZ  float32

	// phaseOffset decorrelates concurrent instances so two avatars on the
	// same page never breathe in sync.
	phaseOffset float64

	epoch       time.Time
	initialized bool
}

func NewIdleAnimator() *IdleAnimator {
	ia := &IdleAnimator{
		enabled:       true,
		blinkDuration: 180 * time.Millisecond,
		minBlinkGap:   2 * time.Second,
		maxBlinkGap:   6 * time.Second,
		breathRate:    0.24,
		breathAmp:     0.5,
		swayRateX:     0.11,
		swayAmpX:      2.2,
		swayRateZ:     0.08,
		swayAmpZ:      1.6,
		phaseOffset:   rand.Float64() * 100,
	}
	ia.blinkInterval = randomDuration(ia.minBlinkGap, ia.maxBlinkGap)
	return ia
}

// SetBlinkRate bounds the randomized gap between blinks.
func (ia *IdleAnimator) SetBlinkRate(minGap, maxGap time.Duration) {
	ia.mu.Lock()
	defer ia.mu.Unlock()
	ia.minBlinkGap = minGap
	ia.maxBlinkGap = maxGap
	ia.blinkInterval = randomDuration(minGap, maxGap)
}

// SetBlinkDuration sets the full close-then-open time of one blink.
func (ia *IdleAnimator) SetBlinkDuration(d time.Duration) {
	ia.mu.Lock()
	defer ia.mu.Unlock()
	if d > 0 {
		ia.blinkDuration = d
	}
}

// SetBreathing configures the breathing sine wave.
func (ia *IdleAnimator) SetBreathing(rate, amplitude float32) {
	ia.mu.Lock()
	defer ia.mu.Unlock()
	ia.breathRate = rate
	ia.breathAmp = amplitude
}

// SetEnabled turns the animator on or off entirely.
func (ia *IdleAnimator) SetEnabled(enabled bool) {
	ia.mu.Lock()
	defer ia.mu.Unlock()
	ia.enabled = enabled
}

func (ia *IdleAnimator) IsEnabled() bool {
	ia.mu.Lock()
	defer ia.mu.Unlock()
	return ia.enabled
}

// Pause freezes output while keeping internal phase state.
func (ia *IdleAnimator) Pause() {
	ia.mu.Lock()
	defer ia.mu.Unlock()
	ia.paused = true
}

// Resume unfreezes output and re-arms the blink timer, so a long pause does
// not trip an immediately overdue blink.
func (ia *IdleAnimator) Resume() {
	ia.mu.Lock()
	defer ia.mu.Unlock()
	ia.paused = false
	ia.blinkState = BlinkWaiting
	ia.blinkPending = false
	ia.lastBlinkEnd = time.Time{} // re-anchored on the next Update
	ia.blinkInterval = randomDuration(ia.minBlinkGap, ia.maxBlinkGap)
	ia.initialized = false
}

func (ia *IdleAnimator) IsPaused() bool {
	ia.mu.Lock()
	defer ia.mu.Unlock()
	return ia.paused
}

// TriggerBlink forces a blink on the next Update if one is not already in
// progress.
func (ia *IdleAnimator) TriggerBlink() {
	ia.mu.Lock()
	defer ia.mu.Unlock()
	if ia.blinkState == BlinkWaiting {
		ia.blinkPending = true
	}
}

func (ia *IdleAnimator) State() BlinkState {
	ia.mu.Lock()
	defer ia.mu.Unlock()
	return ia.blinkState
}

// Update advances the blink machine to now and returns this frame's additive
// offsets. A disabled or paused animator returns nil.
func (ia *IdleAnimator) Update(now time.Time) map[ParamID]float32 {
	ia.mu.Lock()
	defer ia.mu.Unlock()

	if !ia.enabled || ia.paused {
		return nil
	}

	if !ia.initialized {
		ia.epoch = now
		ia.lastBlinkEnd = now
		ia.initialized = true
	}

	ia.updateBlink(now)

	out := make(map[ParamID]float32, 5)

	t := now.Sub(ia.epoch).Seconds() + ia.phaseOffset

	breath := float32(math.Sin(2*math.Pi*float64(ia.breathRate)*t))*0.5 + 0.5
	out[BreathParam] = breath * ia.breathAmp

	out[AngleX] = float32(math.Sin(2*math.Pi*float64(ia.swayRateX)*t)) * ia.swayAmpX
	// fixed quarter-turn shift keeps the two axes from tracing a line
	out[AngleZ] = float32(math.Sin(2*math.Pi*float64(ia.swayRateZ)*t+math.Pi/2)) * ia.swayAmpZ

	lOpen, rOpen := ia.eyeOpenness(now, t)
	out[EyeLOpen] = lOpen - 1
	out[EyeROpen] = rOpen - 1

	return out
}

func (ia *IdleAnimator) updateBlink(now time.Time) {
	switch ia.blinkState {
	case BlinkWaiting:
		if ia.blinkPending || now.Sub(ia.lastBlinkEnd) >= ia.blinkInterval {
			ia.blinkPending = false
			ia.blinkState = BlinkBlinking
			ia.blinkStart = now
		}
	case BlinkBlinking:
		if now.Sub(ia.blinkStart) >= ia.blinkDuration {
			ia.blinkState = BlinkWaiting
			ia.lastBlinkEnd = now
			ia.blinkInterval = randomDuration(ia.minBlinkGap, ia.maxBlinkGap)
		}
	}
}

// eyeOpenness returns per-eye openness in [0,1]: linear close over the first
// half of the blink, linear open over the second, with a slight sinusoidal
// left/right asymmetry that vanishes at both fully open and fully closed.
func (ia *IdleAnimator) eyeOpenness(now time.Time, t float64) (left, right float32) {
	if ia.blinkState != BlinkBlinking {
		return 1, 1
	}

	progress := float32(now.Sub(ia.blinkStart)) / float32(ia.blinkDuration)
	var openness float32
	if progress < 0.5 {
		openness = 1 - progress*2
	} else {
		openness = (progress - 0.5) * 2
	}
	openness = clamp(openness, 0, 1)

	asym := float32(math.Sin(t*5)) * 0.08 * openness * (1 - openness) * 4
	return openness, clamp(openness+asym, 0, 1)
}

func randomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Float64()*float64(max-min))
}
