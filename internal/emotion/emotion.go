// Package emotion defines the closed set of companion emotions and the
// per-emotion playback profiles resolved during queue processing.
package emotion

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/metamuses/musekit/internal/live2d"
)

type Emotion int

const (
	Neutral Emotion = iota
	Happy
	Sad
	Angry
	Think
	Surprise
	Awkward
	Question
	Curious
	emotionCount
)

var emotionNames = [emotionCount]string{
	"neutral",
	"happy",
	"sad",
	"angry",
	"think",
	"surprise",
	"awkward",
	"question",
	"curious",
}

func (e Emotion) String() string {
	if e < 0 || e >= emotionCount {
		return "unknown"
	}
	return emotionNames[e]
}

// Profile bundles everything keyed by an emotion: its marker text in the LLM
// stream, the motion to select, parameter offsets for the transition, an
// optional sound cue, and how long the expression holds before the next
// queued emotion or idle takes over.
type Profile struct {
	Marker    string
	Motion    string
	Offsets   map[live2d.ParamID]float32
	SoundPath string
	Hold      time.Duration
}

const (
	MarkerOpen  = "<|"
	MarkerClose = "|>"
)

var profiles = [emotionCount]Profile{
	Neutral: {
		Marker:  "<|EMOTE_NEUTRAL|>",
		Motion:  "idle",
		Offsets: map[live2d.ParamID]float32{},
		Hold:    2 * time.Second,
	},
	Happy: {
		Marker: "<|EMOTE_HAPPY|>",
		Motion: "happy",
		Offsets: map[live2d.ParamID]float32{
			live2d.MouthForm:  0.8,
			live2d.EyeLOpen:   1.0,
			live2d.EyeROpen:   1.0,
			live2d.BrowLY:     0.3,
			live2d.BrowRY:     0.3,
			live2d.AngleZ:     5,
			live2d.BodyAngleZ: 2,
		},
		SoundPath: "sounds/happy.mp3",
		Hold:      3 * time.Second,
	},
	Sad: {
		Marker: "<|EMOTE_SAD|>",
		Motion: "sad",
		Offsets: map[live2d.ParamID]float32{
			live2d.MouthForm: -0.6,
			live2d.EyeLOpen:  0.55,
			live2d.EyeROpen:  0.55,
			live2d.BrowLY:    -0.4,
			live2d.BrowRY:    -0.4,
			live2d.AngleY:    -8,
		},
		SoundPath: "sounds/sad.mp3",
		Hold:      3500 * time.Millisecond,
	},
	Angry: {
		Marker: "<|EMOTE_ANGRY|>",
		Motion: "angry",
		Offsets: map[live2d.ParamID]float32{
			live2d.MouthForm:  -0.8,
			live2d.BrowLY:     -0.7,
			live2d.BrowRY:     -0.7,
			live2d.EyeLOpen:   0.7,
			live2d.EyeROpen:   0.7,
			live2d.BodyAngleX: 3,
		},
		SoundPath: "sounds/angry.mp3",
		Hold:      3 * time.Second,
	},
	Think: {
		Marker: "<|EMOTE_THINK|>",
		Motion: "think",
		Offsets: map[live2d.ParamID]float32{
			live2d.AngleX:   -12,
			live2d.AngleY:   6,
			live2d.AngleZ:   -8,
			live2d.EyeBallX: -0.5,
			live2d.EyeBallY: 0.4,
			live2d.BrowLY:   -0.2,
		},
		SoundPath: "sounds/think.mp3",
		Hold:      4 * time.Second,
	},
	Surprise: {
		Marker: "<|EMOTE_SURPRISED|>",
		Motion: "surprise",
		Offsets: map[live2d.ParamID]float32{
			live2d.EyeLOpen:   1.0,
			live2d.EyeROpen:   1.0,
			live2d.MouthOpenY: 0.7,
			live2d.BrowLY:     0.6,
			live2d.BrowRY:     0.6,
			live2d.AngleY:     4,
		},
		SoundPath: "sounds/surprise.mp3",
		Hold:      2500 * time.Millisecond,
	},
	Awkward: {
		Marker: "<|EMOTE_AWKWARD|>",
		Motion: "awkward",
		Offsets: map[live2d.ParamID]float32{
			live2d.AngleZ:     10,
			live2d.EyeBallX:   0.6,
			live2d.MouthForm:  -0.3,
			live2d.BodyAngleZ: -3,
		},
		SoundPath: "sounds/awkward.mp3",
		Hold:      3 * time.Second,
	},
	Question: {
		Marker: "<|EMOTE_QUESTION|>",
		Motion: "question",
		Offsets: map[live2d.ParamID]float32{
			live2d.AngleZ:   -12,
			live2d.BrowLY:   0.4,
			live2d.BrowRY:   -0.1,
			live2d.EyeBallY: 0.3,
		},
		SoundPath: "sounds/question.mp3",
		Hold:      3 * time.Second,
	},
	Curious: {
		Marker: "<|EMOTE_CURIOUS|>",
		Motion: "curious",
		Offsets: map[live2d.ParamID]float32{
			live2d.AngleX:     8,
			live2d.AngleY:     3,
			live2d.EyeLOpen:   1.0,
			live2d.EyeROpen:   1.0,
			live2d.EyeBallX:   0.3,
			live2d.BodyAngleY: 2,
		},
		SoundPath: "sounds/curious.mp3",
		Hold:      3 * time.Second,
	},
}

// GetProfile returns the playback profile for an emotion.
func GetProfile(e Emotion) Profile {
	if e < 0 || e >= emotionCount {
		return profiles[Neutral]
	}
	return profiles[e]
}

// All returns every emotion in declaration order.
func All() []Emotion {
	out := make([]Emotion, emotionCount)
	for i := range out {
		out[i] = Emotion(i)
	}
	return out
}

// FromMarker resolves a complete marker token (delimiters included) to its
// emotion. The second return is false for well-delimited but unknown tokens.
func FromMarker(token string) (Emotion, bool) {
	for i := Emotion(0); i < emotionCount; i++ {
		if profiles[i].Marker == token {
			return i, true
		}
	}
	return Neutral, false
}

// IsMarkerShaped reports whether s carries the marker delimiters without
// claiming the body is a known emotion.
func IsMarkerShaped(s string) bool {
	return strings.HasPrefix(s, MarkerOpen) && strings.HasSuffix(s, MarkerClose) &&
		len(s) > len(MarkerOpen)+len(MarkerClose)
}

// Match is one marker occurrence found by Detect.
type Match struct {
	Emotion Emotion
	Offset  int
}

// Detect scans a complete text for every occurrence of every known marker and
// returns the matches sorted by text offset. Adjacent markers with no
// separating text and repeated identical markers are each counted.
//
// Two matches at the same offset would mean two profiles share a marker
// string; the registry rejects that at init, so Detect reports it as an
// invariant violation instead of picking a winner.
func Detect(text string) ([]Match, error) {
	var matches []Match
	for i := Emotion(0); i < emotionCount; i++ {
		marker := profiles[i].Marker
		from := 0
		for {
			idx := strings.Index(text[from:], marker)
			if idx < 0 {
				break
			}
			matches = append(matches, Match{Emotion: i, Offset: from + idx})
			from += idx + len(marker)
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Offset < matches[b].Offset
	})

	for i := 1; i < len(matches); i++ {
		if matches[i].Offset == matches[i-1].Offset {
			return nil, fmt.Errorf("emotion: markers %q and %q matched at the same offset %d",
				profiles[matches[i-1].Emotion].Marker, profiles[matches[i].Emotion].Marker, matches[i].Offset)
		}
	}

	return matches, nil
}

// Validate checks the registry invariants: every emotion has a motion and a
// marker wrapped in the delimiter pair, markers are unique, and no marker is a
// prefix of another. The sound path may be empty (Neutral carries none).
func Validate() error {
	seen := make(map[string]Emotion, emotionCount)
	for i := Emotion(0); i < emotionCount; i++ {
		p := profiles[i]
		if p.Motion == "" {
			return fmt.Errorf("emotion %s: missing motion name", i)
		}
		if p.Offsets == nil {
			return fmt.Errorf("emotion %s: missing parameter offsets", i)
		}
		if !IsMarkerShaped(p.Marker) {
			return fmt.Errorf("emotion %s: marker %q not delimited by %q/%q", i, p.Marker, MarkerOpen, MarkerClose)
		}
		if prev, dup := seen[p.Marker]; dup {
			return fmt.Errorf("emotion %s: marker %q already used by %s", i, p.Marker, prev)
		}
		seen[p.Marker] = i
	}
	for a := Emotion(0); a < emotionCount; a++ {
		for b := Emotion(0); b < emotionCount; b++ {
			if a != b && strings.HasPrefix(profiles[b].Marker, profiles[a].Marker) {
				return fmt.Errorf("emotion: marker %q is a prefix of %q", profiles[a].Marker, profiles[b].Marker)
			}
		}
	}
	return nil
}
