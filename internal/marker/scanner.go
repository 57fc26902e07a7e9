// Package marker splits a chunked text stream into literal spans and complete
// delimited marker tokens, regardless of how the stream is chunked.
package marker

import "strings"

type scanState int

const (
	outsideTag scanState = iota
	insideTag
)

// Scanner is an incremental tokenizer for one text stream. Chunks of any size
// may be fed to Consume, including chunks that split a marker in the middle;
// literal spans and complete marker tokens come back through the two callback
// slots in original document order.
type Scanner struct {
	open  string
	close string

	// minRetained is the buffered length below which Consume holds literal
	// text back instead of emitting it, so an open delimiter split across
	// chunks is never flushed prematurely.
	minRetained int

	buf   strings.Builder
	state scanState

	// OnLiteral receives display text with all complete markers removed.
	OnLiteral func(text string) error
	// OnMarker receives one complete marker token, delimiters included.
	// Tokens are never split across calls.
	OnMarker func(token string) error
}

// NewScanner builds a scanner for the given delimiter pair. Empty delimiters
// fall back to the companion marker format <|...|>.
func NewScanner(open, close string) *Scanner {
	if open == "" {
		open = "<|"
	}
	if close == "" {
		close = "|>"
	}
	return &Scanner{
		open:        open,
		close:       close,
		minRetained: len(open) - 1,
	}
}

// SetMinRetained raises the holdback threshold; buffered literal text is only
// emitted once it exceeds n bytes.
func (s *Scanner) SetMinRetained(n int) {
	if n >= len(s.open)-1 {
		s.minRetained = n
	}
}

// Consume appends a chunk and emits as much as can be decided. It loops until
// neither a literal span nor a complete marker can be produced from what is
// buffered. Callback errors abort the call; the unemitted remainder stays
// buffered.
func (s *Scanner) Consume(chunk string) error {
	if chunk != "" {
		s.buf.WriteString(chunk)
	}

	for {
		progressed, err := s.step()
		if err != nil {
			return err
		}
		if !progressed {
			return nil
		}
	}
}

func (s *Scanner) step() (bool, error) {
	buf := s.buf.String()
	if buf == "" {
		return false, nil
	}

	switch s.state {
	case outsideTag:
		idx := strings.Index(buf, s.open)
		if idx < 0 {
			// Hold back enough bytes to cover a split open delimiter.
			holdback := len(s.open) - 1
			if s.minRetained > holdback {
				holdback = s.minRetained
			}
			if len(buf) <= holdback {
				return false, nil
			}
			literal := buf[:len(buf)-holdback]
			s.setBuffer(buf[len(buf)-holdback:])
			return true, s.emitLiteral(literal)
		}
		if idx > 0 {
			literal := buf[:idx]
			s.setBuffer(buf[idx:])
			s.state = insideTag
			return true, s.emitLiteral(literal)
		}
		s.state = insideTag
		return true, nil

	case insideTag:
		idx := strings.Index(buf[len(s.open):], s.close)
		if idx < 0 {
			return false, nil
		}
		end := len(s.open) + idx + len(s.close)
		token := buf[:end]
		s.setBuffer(buf[end:])
		s.state = outsideTag
		return true, s.emitMarker(token)
	}

	return false, nil
}

// End terminates the stream. Buffered literal text is flushed; a trailing
// unterminated tag is discarded so a truncated marker never leaks into
// display text.
func (s *Scanner) End() error {
	buf := s.buf.String()
	s.buf.Reset()

	if s.state == outsideTag && buf != "" {
		return s.emitLiteral(buf)
	}
	s.state = outsideTag
	return nil
}

// Reset drops buffered state so the scanner can take a fresh stream.
func (s *Scanner) Reset() {
	s.buf.Reset()
	s.state = outsideTag
}

func (s *Scanner) setBuffer(rest string) {
	s.buf.Reset()
	s.buf.WriteString(rest)
}

func (s *Scanner) emitLiteral(text string) error {
	if s.OnLiteral == nil {
		return nil
	}
	return s.OnLiteral(text)
}

func (s *Scanner) emitMarker(token string) error {
	if s.OnMarker == nil {
		return nil
	}
	return s.OnMarker(token)
}
