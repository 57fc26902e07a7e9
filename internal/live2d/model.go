package live2d

// Model is the opaque rendering handle the animation core pushes parameter
// values into. Implementations live with the renderer; lookups for names the
// model does not carry must be reported via the bool return rather than
// panicking.
type Model interface {
	ParameterValue(name string) (float32, bool)
	SetParameterValue(name string, value float32)
}

// ApplyToModel pushes a partial parameter snapshot to a model. It is
// best-effort: a nil model or an unknown parameter is skipped silently.
func ApplyToModel(m Model, snapshot map[ParamID]float32) {
	if m == nil {
		return
	}
	for id, value := range snapshot {
		if id < 0 || id >= ParamCount {
			continue
		}
		m.SetParameterValue(ParamNames[id], value)
	}
}
