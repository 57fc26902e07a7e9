package live2d

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// MouseTracker converts cursor position into head-pose parameter targets with
// exponential lerp smoothing, so the head follows the pointer without
// snapping.
type MouseTracker struct {
	mu sync.Mutex

	enabled   bool
	target    mgl32.Vec2 // normalized, -1..1 on both axes
	current   mgl32.Vec2
	smoothing float32

	headRange float32
	bodyRange float32
}

func NewMouseTracker() *MouseTracker {
	return &MouseTracker{
		enabled:   true,
		smoothing: 8.0,
		headRange: 30,
		bodyRange: 10,
	}
}

func (mt *MouseTracker) SetEnabled(enabled bool) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.enabled = enabled
}

// SetCursor updates the tracking target from a cursor position inside a
// viewport of the given size. Positions outside the viewport clamp to its
// edges.
func (mt *MouseTracker) SetCursor(x, y, width, height float32) {
	if width <= 0 || height <= 0 {
		return
	}
	nx := clamp(x/width*2-1, -1, 1)
	// screen Y grows downward; parameter Y grows upward
	ny := clamp(-(y/height*2 - 1), -1, 1)

	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.target = mgl32.Vec2{nx, ny}
}

// Center eases the head back toward the neutral pose.
func (mt *MouseTracker) Center() {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.target = mgl32.Vec2{}
}

// Update advances smoothing by dt seconds and returns the head-pose targets
// for this frame. Disabled trackers return nil.
func (mt *MouseTracker) Update(dt float32) map[ParamID]float32 {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if !mt.enabled {
		return nil
	}

	lerpFactor := 1 - float32(math.Exp(float64(-mt.smoothing*dt)))
	delta := mt.target.Sub(mt.current).Mul(lerpFactor)
	mt.current = mt.current.Add(delta)

	return map[ParamID]float32{
		AngleX:     mt.current.X() * mt.headRange,
		AngleY:     mt.current.Y() * mt.headRange,
		AngleZ:     mt.current.X() * mt.current.Y() * -10,
		EyeBallX:   mt.current.X(),
		EyeBallY:   mt.current.Y(),
		BodyAngleX: mt.current.X() * mt.bodyRange,
	}
}

// Current returns the smoothed normalized cursor position.
func (mt *MouseTracker) Current() mgl32.Vec2 {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.current
}
