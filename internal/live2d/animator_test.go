package live2d

import (
	"testing"
	"time"
)

func TestParamAnimator_AnimatesToTarget(t *testing.T) {
	a := NewParamAnimator()

	a.AnimateTo(map[ParamID]float32{AngleX: 10}, 100*time.Millisecond, Linear)
	if !a.IsAnimating(AngleX) {
		t.Fatal("expected in-flight target for AngleX")
	}

	start := time.Now()
	snap := a.Update(start.Add(50 * time.Millisecond))
	v, ok := snap[AngleX]
	if !ok {
		t.Fatal("midpoint snapshot missing AngleX")
	}
	if v <= 0 || v >= 10 {
		t.Errorf("midpoint value = %f, want strictly between 0 and 10", v)
	}

	snap = a.Update(start.Add(200 * time.Millisecond))
	if snap[AngleX] != 10 {
		t.Errorf("final value = %f, want exactly 10", snap[AngleX])
	}
	if a.IsAnimating(AngleX) {
		t.Error("target should be removed after completing")
	}

	// the frame after completion reports nothing for this parameter
	snap = a.Update(start.Add(300 * time.Millisecond))
	if _, ok := snap[AngleX]; ok {
		t.Error("completed target reported twice")
	}
}

func TestParamAnimator_IdempotentTarget(t *testing.T) {
	a := NewParamAnimator()

	a.SetImmediate(map[ParamID]float32{AngleX: 5})
	a.AnimateTo(map[ParamID]float32{AngleX: 5}, time.Second, EaseOutCubic)

	if a.ActiveCount() != 0 {
		t.Error("animating to the current value should schedule nothing")
	}
	if v, _ := a.Current(AngleX); v != 5 {
		t.Errorf("current = %f, want 5", v)
	}
}

func TestParamAnimator_RetargetCollapses(t *testing.T) {
	a := NewParamAnimator()

	a.AnimateTo(map[ParamID]float32{AngleX: 10}, 100*time.Millisecond, Linear)
	a.Update(time.Now().Add(50 * time.Millisecond))

	// retarget mid-flight: one active target, starting from wherever we are
	a.AnimateTo(map[ParamID]float32{AngleX: -10}, 100*time.Millisecond, Linear)
	if a.ActiveCount() != 1 {
		t.Errorf("active targets = %d, want 1", a.ActiveCount())
	}
}

func TestParamAnimator_SetImmediateCancelsTarget(t *testing.T) {
	a := NewParamAnimator()

	a.AnimateTo(map[ParamID]float32{MouthForm: 1}, time.Second, Linear)
	a.SetImmediate(map[ParamID]float32{MouthForm: -1})

	if a.IsAnimating(MouthForm) {
		t.Error("SetImmediate should cancel the in-flight target")
	}
	if v, _ := a.Current(MouthForm); v != -1 {
		t.Errorf("current = %f, want -1", v)
	}
}

func TestParamAnimator_CancelKeepsValue(t *testing.T) {
	a := NewParamAnimator()

	a.AnimateTo(map[ParamID]float32{AngleZ: 20}, 100*time.Millisecond, Linear)
	a.Update(time.Now().Add(50 * time.Millisecond))
	mid, _ := a.Current(AngleZ)

	a.Cancel(AngleZ)
	if a.IsAnimating(AngleZ) {
		t.Error("Cancel should remove the target")
	}
	if v, _ := a.Current(AngleZ); v != mid {
		t.Errorf("current = %f, want the canceled midpoint %f", v, mid)
	}
}

func TestParamAnimator_ZeroDurationAppliesImmediately(t *testing.T) {
	a := NewParamAnimator()

	a.AnimateTo(map[ParamID]float32{BodyAngleX: 3}, 0, Linear)
	if a.ActiveCount() != 0 {
		t.Error("zero duration should not leave an in-flight target")
	}
	if v, _ := a.Current(BodyAngleX); v != 3 {
		t.Errorf("current = %f, want 3", v)
	}
}

func TestParamAnimator_SourceHook(t *testing.T) {
	a := NewParamAnimator()
	a.SetSource(func(id ParamID) (float32, bool) {
		if id == EyeLOpen {
			return 1, true
		}
		return 0, false
	})

	a.AnimateTo(map[ParamID]float32{EyeLOpen: 0.5}, 100*time.Millisecond, Linear)
	snap := a.Update(time.Now())
	// starts from the hook's value, not the type default
	if v := snap[EyeLOpen]; v < 0.5 || v > 1 {
		t.Errorf("first frame = %f, want within [0.5, 1]", v)
	}
}

func TestParamAnimator_CancelAll(t *testing.T) {
	a := NewParamAnimator()

	a.AnimateTo(map[ParamID]float32{AngleX: 1, AngleY: 2, AngleZ: 3}, time.Second, Linear)
	a.CancelAll()
	if a.ActiveCount() != 0 {
		t.Errorf("active targets = %d, want 0", a.ActiveCount())
	}
}

func TestEasings_Endpoints(t *testing.T) {
	easings := map[string]Easing{
		"linear":         Linear,
		"easeOutCubic":   EaseOutCubic,
		"easeInOutCubic": EaseInOutCubic,
		"easeOutQuad":    EaseOutQuad,
		"easeInOutQuad":  EaseInOutQuad,
	}

	for name, fn := range easings {
		if got := fn(0); got < -1e-6 || got > 1e-6 {
			t.Errorf("%s(0) = %f, want 0", name, got)
		}
		if got := fn(1); got < 1-1e-6 || got > 1+1e-6 {
			t.Errorf("%s(1) = %f, want 1", name, got)
		}
		for _, x := range []float32{0.1, 0.25, 0.5, 0.75, 0.9} {
			if got := fn(x); got < -1e-6 || got > 1+1e-6 {
				t.Errorf("%s(%f) = %f, outside [0,1]", name, x, got)
			}
		}
	}
}

func TestParameters_LerpAddScale(t *testing.T) {
	var a, b Parameters
	a.Set(AngleX, 0)
	b.Set(AngleX, 10)

	mid := a.Lerp(&b, 0.5)
	if got := mid.Get(AngleX); got != 5 {
		t.Errorf("Lerp midpoint = %f, want 5", got)
	}
	lo := a.Lerp(&b, 0)
	if got := lo.Get(AngleX); got != 0 {
		t.Errorf("Lerp(0) = %f, want 0", got)
	}
	hi := a.Lerp(&b, 1)
	if got := hi.Get(AngleX); got != 10 {
		t.Errorf("Lerp(1) = %f, want 10", got)
	}

	sum := a.Add(&b)
	if sum.Get(AngleX) != 10 {
		t.Errorf("Add = %f, want 10", sum.Get(AngleX))
	}

	scaled := b.Scale(0.5)
	if scaled.Get(AngleX) != 5 {
		t.Errorf("Scale = %f, want 5", scaled.Get(AngleX))
	}
}

func TestParamIDFromName(t *testing.T) {
	if got := ParamIDFromName("ParamAngleX"); got != AngleX {
		t.Errorf("ParamIDFromName(ParamAngleX) = %v", got)
	}
	if got := ParamIDFromName("ParamNope"); got != -1 {
		t.Errorf("unknown name = %v, want -1", got)
	}
}
