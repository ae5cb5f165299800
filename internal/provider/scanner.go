package provider

import "bytes"

// objectScanner splits a byte stream of concatenated JSON objects. Bytes
// outside objects (array brackets, commas, whitespace) are discarded. Braces
// inside string literals do not count toward nesting.
type objectScanner struct {
	buf []byte
}

func (s *objectScanner) Write(p []byte) {
	s.buf = append(s.buf, p...)
}

// Next returns the next complete top-level object. It reports false when the
// buffer holds no complete object yet; the partial bytes are kept for the next
// Write.
func (s *objectScanner) Next() ([]byte, bool) {
	start := bytes.IndexByte(s.buf, '{')
	if start < 0 {
		s.buf = s.buf[:0]
		return nil, false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s.buf); i++ {
		c := s.buf[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				obj := make([]byte, i+1-start)
				copy(obj, s.buf[start:i+1])
				s.buf = append(s.buf[:0], s.buf[i+1:]...)
				return obj, true
			}
		}
	}

	s.buf = append(s.buf[:0], s.buf[start:]...)
	return nil, false
}

// Len reports how many unconsumed bytes are buffered.
func (s *objectScanner) Len() int {
	return len(s.buf)
}
