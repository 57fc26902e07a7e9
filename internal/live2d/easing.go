package live2d

import "math"

// Easing maps animation progress in [0,1] to eased progress in [0,1].
type Easing func(t float32) float32

func Linear(t float32) float32 {
	return t
}

func EaseOutCubic(t float32) float32 {
	return 1 - float32(math.Pow(float64(1-t), 3))
}

func EaseInOutCubic(t float32) float32 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - float32(math.Pow(float64(-2*t+2), 3))/2
}

func EaseOutQuad(t float32) float32 {
	return t * (2 - t)
}

func EaseInOutQuad(t float32) float32 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - float32(math.Pow(float64(-2*t+2), 2))/2
}
