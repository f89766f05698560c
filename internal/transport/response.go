package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/AlexGustafsson/metube/internal/buffer"
)

// Response is a fully read response.
type Response struct {
	// StatusCode is the numeric status of the status line, or zero if the
	// status line could not be parsed.
	StatusCode int
	// Header is the raw header block, excluding the terminating empty line.
	Header []byte
	Body   *buffer.Buffer
}

// HeaderValue returns the value of the first header field named name.
// Names are matched case-insensitively.
func (r *Response) HeaderValue(name string) (string, bool) {
	return headerValue(r.Header, name)
}

// readHeader reads header lines until the empty line terminating the block.
// The block must fit within limit bytes.
func readHeader(reader *bufio.Reader, limit int) ([]byte, error) {
	var header []byte
	for {
		line, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, fmt.Errorf("%w: header line too long", ErrMalformedHeader)
		} else if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedHeader, err)
		}

		if len(header)+len(line) > limit {
			return nil, fmt.Errorf("%w: header exceeds %d bytes", ErrMalformedHeader, limit)
		}

		if len(bytes.TrimRight(line, "\r\n")) == 0 {
			if len(header) == 0 {
				return nil, fmt.Errorf("%w: missing status line", ErrMalformedHeader)
			}
			return header, nil
		}

		header = append(header, line...)
	}
}

// parseStatusCode parses the status code of a status line such as
// "HTTP/1.1 200 OK".
func parseStatusCode(header []byte) int {
	line, _, _ := bytes.Cut(header, []byte("\n"))
	_, rest, ok := bytes.Cut(line, []byte(" "))
	if !ok || len(rest) < 3 {
		return 0
	}
	code, err := strconv.Atoi(string(rest[:3]))
	if err != nil {
		return 0
	}
	return code
}

func headerValue(header []byte, name string) (string, bool) {
	lines := bytes.Split(header, []byte("\n"))
	// The first line is the status line
	for _, line := range lines[1:] {
		key, value, ok := bytes.Cut(line, []byte(":"))
		if !ok || !bytes.EqualFold(bytes.TrimSpace(key), []byte(name)) {
			continue
		}
		return string(bytes.TrimSpace(value)), true
	}
	return "", false
}

// contentLength returns the first maximal run of decimal digits following
// the Content-Length header name. A run too long to represent is malformed.
func contentLength(header []byte) (int, bool, error) {
	value, ok := headerValue(header, "Content-Length")
	if !ok {
		return 0, false, nil
	}

	start := -1
	end := len(value)
	for i := 0; i < len(value); i++ {
		isDigit := value[i] >= '0' && value[i] <= '9'
		if start == -1 && isDigit {
			start = i
		} else if start != -1 && !isDigit {
			end = i
			break
		}
	}
	if start == -1 {
		return 0, false, nil
	}

	n, err := strconv.Atoi(value[start:end])
	if err != nil {
		return 0, false, fmt.Errorf("%w: invalid content length %q", ErrMalformedHeader, value)
	}
	return n, true, nil
}

func isChunked(header []byte) bool {
	value, ok := headerValue(header, "Transfer-Encoding")
	return ok && bytes.Contains(bytes.ToLower([]byte(value)), []byte("chunked"))
}

// readBody reads the body framed as described by header into body.
func readBody(reader *bufio.Reader, header []byte, body *buffer.Buffer) error {
	n, ok, err := contentLength(header)
	if err != nil {
		return err
	}
	if ok && n > 0 {
		if err := body.ReadFull(reader, n); err != nil {
			if errors.Is(err, buffer.ErrAllocationFailed) {
				return err
			}
			return fmt.Errorf("%w: %w", ErrTruncatedBody, err)
		}
		return nil
	}

	if isChunked(header) {
		return readChunked(reader, body)
	}

	return nil
}

// readChunked decodes a chunked body. Trailer fields following the last
// chunk are not read, the connection is closed afterwards anyway.
func readChunked(reader *bufio.Reader, body *buffer.Buffer) error {
	for {
		line, err := readLine(reader)
		if err != nil {
			return fmt.Errorf("%w: reading chunk size: %w", ErrChunkDecodeFailed, err)
		}

		size, err := parseChunkSize(line)
		if err != nil {
			return err
		}

		if size == 0 {
			return nil
		}

		if err := body.ReadFull(reader, size); err != nil {
			if errors.Is(err, buffer.ErrAllocationFailed) {
				return err
			}
			return fmt.Errorf("%w: reading chunk data: %w", ErrChunkDecodeFailed, err)
		}

		terminator, err := readLine(reader)
		if err != nil {
			return fmt.Errorf("%w: reading chunk terminator: %w", ErrChunkDecodeFailed, err)
		}
		if terminator != "\r\n" && terminator != "\n" {
			return fmt.Errorf("%w: unexpected data after chunk", ErrChunkDecodeFailed)
		}
	}
}

// readLine reads a single line. Lines longer than the reader's buffer are
// rejected.
func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return "", errors.New("line too long")
	} else if err != nil {
		return "", err
	}
	return string(line), nil
}

// parseChunkSize parses a hex chunk-size line, ignoring the trailing CRLF
// and any chunk extensions.
func parseChunkSize(line string) (int, error) {
	line = strings.TrimRight(line, "\r\n")
	line, _, _ = strings.Cut(line, ";")
	line = strings.TrimSpace(line)

	size, err := strconv.ParseUint(line, 16, 31)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid chunk size %q", ErrChunkDecodeFailed, line)
	}
	return int(size), nil
}
