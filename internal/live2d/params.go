// Package live2d drives a Live2D-style model: a fixed parameter schema, a
// target-based parameter animator, procedural idle motion, and cursor
// tracking. Rendering itself lives outside; callers hand the package an
// opaque Model handle.
package live2d

type ParamID int

const (
	AngleX ParamID = iota
	AngleY
	AngleZ
	EyeLOpen
	EyeROpen
	EyeBallX
	EyeBallY
	BrowLY
	BrowRY
	MouthOpenY
	MouthForm
	BodyAngleX
	BodyAngleY
	BodyAngleZ
	BreathParam
	ParamCount
)

// ParamNames maps ParamID to the Cubism parameter identifiers used by model
// files and the rendering runtime.
var ParamNames = [ParamCount]string{
	"ParamAngleX",
	"ParamAngleY",
	"ParamAngleZ",
	"ParamEyeLOpen",
	"ParamEyeROpen",
	"ParamEyeBallX",
	"ParamEyeBallY",
	"ParamBrowLY",
	"ParamBrowRY",
	"ParamMouthOpenY",
	"ParamMouthForm",
	"ParamBodyAngleX",
	"ParamBodyAngleY",
	"ParamBodyAngleZ",
	"ParamBreath",
}

func (id ParamID) String() string {
	if id < 0 || id >= ParamCount {
		return "ParamUnknown"
	}
	return ParamNames[id]
}

// ParamIDFromName resolves a Cubism parameter identifier, returning -1 when
// the name is not part of the schema.
func ParamIDFromName(name string) ParamID {
	for i, n := range ParamNames {
		if n == name {
			return ParamID(i)
		}
	}
	return -1
}

// Parameters is one full snapshot of the model's numeric channels.
type Parameters [ParamCount]float32

func NewParameters() Parameters {
	return Parameters{}
}

func (p *Parameters) Set(id ParamID, value float32) {
	p[id] = value
}

func (p *Parameters) Get(id ParamID) float32 {
	return p[id]
}

func (p *Parameters) Reset() {
	for i := range p {
		p[i] = 0
	}
}

func (p *Parameters) Lerp(target *Parameters, t float32) Parameters {
	if t <= 0 {
		return *p
	}
	if t >= 1 {
		return *target
	}

	var result Parameters
	for i := range p {
		result[i] = p[i] + (target[i]-p[i])*t
	}
	return result
}

func (p *Parameters) Add(other *Parameters) Parameters {
	var result Parameters
	for i := range p {
		result[i] = p[i] + other[i]
	}
	return result
}

func (p *Parameters) Scale(factor float32) Parameters {
	var result Parameters
	for i := range p {
		result[i] = p[i] * factor
	}
	return result
}

func (p *Parameters) ToSlice() []float32 {
	return p[:]
}

// DefaultValue returns a parameter's neutral resting value. Eyes rest open;
// every other channel rests at zero.
func DefaultValue(id ParamID) float32 {
	if id == EyeLOpen || id == EyeROpen {
		return 1
	}
	return 0
}

func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
