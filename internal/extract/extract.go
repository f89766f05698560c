// Package extract carves embedded JSON documents out of larger payloads.
package extract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/AlexGustafsson/metube/internal/buffer"
)

var (
	ErrAnchorMissing = errors.New("anchor not found")
	ErrUnbalanced    = errors.New("unbalanced span")
)

// Span narrows buf in place to the balanced open/close span following the
// first occurrence of anchor. On error the content of buf is left untouched.
func Span(buf *buffer.Buffer, anchor string, open byte, close byte) error {
	start, end, err := Find(buf.Bytes(), anchor, open, close)
	if err != nil {
		return err
	}
	return buf.Trim(start, end)
}

// Find returns the bounds [start, end) of the balanced span starting at the
// first open following anchor. The span includes both the opening and
// closing character.
//
// The data following anchor is assumed to be JSON. Characters within string
// literals are not counted, so a title such as "[live] {4k}" does not affect
// the depth, while an unterminated literal leaves the span unbalanced.
func Find(data []byte, anchor string, open byte, close byte) (int, int, error) {
	index := bytes.Index(data, []byte(anchor))
	if index == -1 {
		return 0, 0, fmt.Errorf("%w: %q", ErrAnchorMissing, anchor)
	}

	offset := index + len(anchor)
	start := bytes.IndexByte(data[offset:], open)
	if start == -1 {
		return 0, 0, fmt.Errorf("%w: no %q after %q", ErrUnbalanced, open, anchor)
	}
	start += offset

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(data); i++ {
		c := data[i]

		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return start, i + 1, nil
			}
		}
	}

	return 0, 0, fmt.Errorf("%w: %q after %q never closed", ErrUnbalanced, open, anchor)
}
