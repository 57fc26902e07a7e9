package live2d

import (
	"sync"
	"time"
)

// retargetTolerance is how close from and to must be for AnimateTo to treat
// the request as already satisfied and schedule nothing.
const retargetTolerance = 1e-4

type animTarget struct {
	from     float32
	to       float32
	start    time.Time
	duration time.Duration
	easing   Easing
}

// ParamAnimator interpolates named parameters toward requested targets. Each
// parameter holds either a cached static value or one in-flight target; a new
// target for the same parameter retargets from wherever the previous one left
// off.
type ParamAnimator struct {
	mu sync.Mutex

	current map[ParamID]float32
	targets map[ParamID]*animTarget

	// source is the external "what is this parameter right now" hook used
	// the first time a parameter is animated. Optional.
	source func(ParamID) (float32, bool)
}

func NewParamAnimator() *ParamAnimator {
	return &ParamAnimator{
		current: make(map[ParamID]float32),
		targets: make(map[ParamID]*animTarget),
	}
}

// SetSource installs the hook consulted for a parameter's starting value when
// nothing has been cached for it yet.
func (a *ParamAnimator) SetSource(fn func(ParamID) (float32, bool)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.source = fn
}

// AnimateTo schedules an animation per parameter from its current value to
// the requested one. A nil easing falls back to EaseOutCubic. Parameters
// already at their target (within tolerance) are left untouched; a
// non-positive duration applies the values immediately.
func (a *ParamAnimator) AnimateTo(params map[ParamID]float32, duration time.Duration, easing Easing) {
	if easing == nil {
		easing = EaseOutCubic
	}
	if duration <= 0 {
		a.SetImmediate(params)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	for id, to := range params {
		from := a.currentLocked(id)
		if abs(from-to) < retargetTolerance {
			delete(a.targets, id)
			a.current[id] = to
			continue
		}
		a.targets[id] = &animTarget{
			from:     from,
			to:       to,
			start:    now,
			duration: duration,
			easing:   easing,
		}
	}
}

// SetImmediate overwrites cached values and cancels any in-flight targets for
// the given parameters without animating.
func (a *ParamAnimator) SetImmediate(params map[ParamID]float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, v := range params {
		a.current[id] = v
		delete(a.targets, id)
	}
}

// Update advances every in-flight target to now and returns the partial
// snapshot of parameters that changed this tick. A target that reaches full
// progress still reports its exact final value once before being removed.
func (a *ParamAnimator) Update(now time.Time) map[ParamID]float32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.targets) == 0 {
		return nil
	}

	snapshot := make(map[ParamID]float32, len(a.targets))
	for id, t := range a.targets {
		progress := float32(1)
		if t.duration > 0 {
			progress = clamp(float32(now.Sub(t.start))/float32(t.duration), 0, 1)
		}

		value := t.from + (t.to-t.from)*t.easing(progress)
		if progress >= 1 {
			value = t.to
			delete(a.targets, id)
		}

		a.current[id] = value
		snapshot[id] = value
	}
	return snapshot
}

// Cancel removes the in-flight target for one parameter, keeping whatever
// value it had reached.
func (a *ParamAnimator) Cancel(id ParamID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.targets, id)
}

// CancelAll removes every in-flight target without reverting cached values.
func (a *ParamAnimator) CancelAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.targets = make(map[ParamID]*animTarget)
}

// Current returns the cached value for a parameter and whether one exists.
func (a *ParamAnimator) Current(id ParamID) (float32, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.current[id]
	return v, ok
}

// IsAnimating reports whether a parameter has an in-flight target.
func (a *ParamAnimator) IsAnimating(id ParamID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.targets[id]
	return ok
}

// ActiveCount returns the number of in-flight targets.
func (a *ParamAnimator) ActiveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.targets)
}

func (a *ParamAnimator) currentLocked(id ParamID) float32 {
	if v, ok := a.current[id]; ok {
		return v
	}
	if a.source != nil {
		if v, ok := a.source(id); ok {
			a.current[id] = v
			return v
		}
	}
	return 0
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
