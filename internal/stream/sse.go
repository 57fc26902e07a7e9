package stream

import (
	"bufio"
	"io"
	"strings"
)

// SSEEvent represents a Server-Sent Event
type SSEEvent struct {
	Event string
	Data  string
	ID    string
}

// SSEReader reads SSE events from a stream. The chat API exposes the same
// chunk payloads over SSE for clients that cannot hold a WebSocket open.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// ReadEvent reads the next SSE event
func (s *SSEReader) ReadEvent() (*SSEEvent, error) {
	event := &SSEEvent{
		Event: "message", // default event type
	}

	var dataLines []string

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && (len(dataLines) > 0 || event.Event != "message") {
				// Return partial event on EOF
				event.Data = strings.Join(dataLines, "\n")
				return event, nil
			}
			return nil, err
		}

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		// Empty line signals end of event
		if line == "" {
			if len(dataLines) > 0 || event.Event != "message" || event.ID != "" {
				event.Data = strings.Join(dataLines, "\n")
				return event, nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			// Comment, ignore
			continue
		}

		colonIdx := strings.Index(line, ":")
		var field, value string

		if colonIdx == -1 {
			field = line
			value = ""
		} else {
			field = line[:colonIdx]
			value = line[colonIdx+1:]
			if len(value) > 0 && value[0] == ' ' {
				value = value[1:]
			}
		}

		switch field {
		case "event":
			event.Event = value
		case "data":
			dataLines = append(dataLines, value)
		case "id":
			event.ID = value
		}
	}
}

// StreamText reads SSE events until EOF, handing every chunk payload to
// onChunk. Events that are not chat chunks are skipped; a "done" event ends
// the stream early with a nil error.
func StreamText(r io.Reader, onChunk func(text string)) error {
	sse := NewSSEReader(r)
	for {
		ev, err := sse.ReadEvent()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		switch ev.Event {
		case "done":
			return nil
		case "message", "chunk":
			if ev.Data == "" {
				continue
			}
			msg, err := ParseChunk([]byte(ev.Data))
			if err != nil {
				// plain-text data lines stream through as-is
				onChunk(ev.Data)
				continue
			}
			if msg.Type == "done" {
				return nil
			}
			if msg.Content != "" {
				onChunk(msg.Content)
			}
		}
	}
}
