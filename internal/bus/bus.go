// Package bus provides an internal event bus for component communication.
// Events form a closed, typed union: each kind has its own payload struct, so
// subscribers never dig values out of loosely-typed maps.
package bus

import (
	"sync"
	"time"
)

// Kind discriminates the event union.
type Kind int

const (
	KindEmotionQueued Kind = iota
	KindEmotionStarted
	KindEmotionFinished
	KindIdleResumed
	KindUnknownMarker
	KindSoundFailed
	KindStreamClosed
)

// Event is the sealed union of bus payloads.
type Event interface {
	Kind() Kind
}

// EmotionQueued fires when a detected marker enters the playback queue.
type EmotionQueued struct {
	Emotion string
	Offset  int
}

// EmotionStarted fires when the queue hands an emotion to its handler chain.
type EmotionStarted struct {
	Emotion string
	Motion  string
}

// EmotionFinished fires after an emotion's hold completes.
type EmotionFinished struct {
	Emotion string
	Held    time.Duration
}

// IdleResumed fires when the queue drains to empty and the avatar returns to
// idle.
type IdleResumed struct{}

// UnknownMarker fires for a well-delimited token whose body is not a known
// emotion. The token is dropped from playback and display either way; this is
// the observable trace of it.
type UnknownMarker struct {
	Token string
}

// SoundFailed fires when a cue failed to load or play.
type SoundFailed struct {
	Path string
	Err  error
}

// StreamClosed fires when the upstream text stream terminates.
type StreamClosed struct {
	Err error
}

func (EmotionQueued) Kind() Kind   { return KindEmotionQueued }
func (EmotionStarted) Kind() Kind  { return KindEmotionStarted }
func (EmotionFinished) Kind() Kind { return KindEmotionFinished }
func (IdleResumed) Kind() Kind     { return KindIdleResumed }
func (UnknownMarker) Kind() Kind   { return KindUnknownMarker }
func (SoundFailed) Kind() Kind     { return KindSoundFailed }
func (StreamClosed) Kind() Kind    { return KindStreamClosed }

// Handler receives published events. Handlers type-switch or assert on the
// concrete payload for their kind.
type Handler func(Event)

// EventBus is a simple pub/sub event bus.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
}

func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[Kind][]Handler),
	}
}

// Subscribe adds a handler for an event kind.
func (b *EventBus) Subscribe(kind Kind, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[kind] = append(b.handlers[kind], handler)
}

// SubscribeMultiple adds a handler for multiple event kinds.
func (b *EventBus) SubscribeMultiple(kinds []Kind, handler Handler) {
	for _, k := range kinds {
		b.Subscribe(k, handler)
	}
}

// Publish sends an event to all subscribed handlers without blocking the
// publisher.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Kind()]))
	copy(handlers, b.handlers[event.Kind()])
	b.mu.RUnlock()

	for _, handler := range handlers {
		go handler(event)
	}
}

// PublishSync sends an event and waits for all handlers to complete.
func (b *EventBus) PublishSync(event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Kind()]))
	copy(handlers, b.handlers[event.Kind()])
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, handler := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			h(event)
		}(handler)
	}
	wg.Wait()
}

// Clear removes all handlers.
func (b *EventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[Kind][]Handler)
}
