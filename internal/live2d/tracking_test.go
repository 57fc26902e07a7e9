package live2d

import (
	"testing"
)

func TestMouseTracker_ConvergesTowardCursor(t *testing.T) {
	mt := NewMouseTracker()

	// cursor at the right edge, vertical center of an 800x600 viewport
	mt.SetCursor(800, 300, 800, 600)

	var out map[ParamID]float32
	for i := 0; i < 120; i++ {
		out = mt.Update(1.0 / 60.0)
	}

	cur := mt.Current()
	if cur.X() < 0.95 {
		t.Errorf("smoothed X = %f, want near 1", cur.X())
	}
	if cur.Y() < -0.05 || cur.Y() > 0.05 {
		t.Errorf("smoothed Y = %f, want near 0", cur.Y())
	}
	if out[AngleX] < 25 {
		t.Errorf("AngleX = %f, want near full head range", out[AngleX])
	}
	if out[EyeBallX] < 0.9 {
		t.Errorf("EyeBallX = %f, want near 1", out[EyeBallX])
	}
}

func TestMouseTracker_SmoothingIsGradual(t *testing.T) {
	mt := NewMouseTracker()
	mt.SetCursor(800, 0, 800, 600)

	mt.Update(1.0 / 60.0)
	after1 := mt.Current()
	if after1.X() >= 1 {
		t.Error("tracker snapped to target in a single frame")
	}
	if after1.X() <= 0 {
		t.Error("tracker did not move toward target")
	}
}

func TestMouseTracker_CenterReturnsToNeutral(t *testing.T) {
	mt := NewMouseTracker()
	mt.SetCursor(0, 600, 800, 600)
	for i := 0; i < 60; i++ {
		mt.Update(1.0 / 60.0)
	}

	mt.Center()
	for i := 0; i < 120; i++ {
		mt.Update(1.0 / 60.0)
	}

	cur := mt.Current()
	if cur.X() < -0.05 || cur.X() > 0.05 || cur.Y() < -0.05 || cur.Y() > 0.05 {
		t.Errorf("position after Center = (%f, %f), want near origin", cur.X(), cur.Y())
	}
}

func TestMouseTracker_DisabledReturnsNil(t *testing.T) {
	mt := NewMouseTracker()
	mt.SetEnabled(false)
	if out := mt.Update(1.0 / 60.0); out != nil {
		t.Errorf("disabled tracker returned %v, want nil", out)
	}
}

func TestMouseTracker_CursorClampedToViewport(t *testing.T) {
	mt := NewMouseTracker()
	mt.SetCursor(-500, 5000, 800, 600)
	for i := 0; i < 240; i++ {
		mt.Update(1.0 / 60.0)
	}

	cur := mt.Current()
	if cur.X() < -1.01 || cur.Y() < -1.01 || cur.X() > 1.01 || cur.Y() > 1.01 {
		t.Errorf("position = (%f, %f), want clamped to [-1,1]", cur.X(), cur.Y())
	}
}
