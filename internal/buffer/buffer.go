package buffer

import (
	"errors"
	"io"
)

var (
	ErrAllocationFailed = errors.New("buffer allocation failed")
	ErrOutOfRange       = errors.New("span out of range")
)

// MaxSize bounds buffers created without an explicit limit.
const MaxSize = 1 << 30

var _ io.Writer = (*Buffer)(nil)

// Buffer is a growable byte container holding a single response body.
// Content is only ever appended to while a fetch is in progress. Once the
// fetch is done, the logical content may be narrowed in place using Trim.
type Buffer struct {
	data  []byte
	limit int
}

// New creates a buffer with an initial capacity. A limit of zero or less
// means the buffer may grow up to MaxSize.
func New(capacity int, limit int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{
		data:  make([]byte, 0, capacity),
		limit: limit,
	}
}

// FromBytes creates a buffer holding a copy of p.
func FromBytes(p []byte) *Buffer {
	b := New(len(p), 0)
	b.data = append(b.data, p...)
	return b
}

// Write implements io.Writer. Writes that would grow the buffer past its
// limit are rejected as a whole with ErrAllocationFailed.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) > b.available() {
		return 0, ErrAllocationFailed
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

// ReadFull reads exactly n bytes from r into the buffer.
func (b *Buffer) ReadFull(r io.Reader, n int) error {
	if n <= 0 {
		return nil
	}
	if n > b.available() {
		return ErrAllocationFailed
	}
	b.data = growTo(b.data, len(b.data)+n)
	start := len(b.data)
	b.data = b.data[:start+n]
	if _, err := io.ReadFull(r, b.data[start:]); err != nil {
		b.data = b.data[:start]
		return err
	}
	return nil
}

// Trim narrows the logical content to data[start:end] without allocating.
func (b *Buffer) Trim(start int, end int) error {
	if start < 0 || end > len(b.data) || start > end {
		return ErrOutOfRange
	}
	n := copy(b.data, b.data[start:end])
	b.data = b.data[:n]
	return nil
}

// Bytes returns the logical content. The slice is only valid until the next
// modification of the buffer.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// String returns the logical content as a string.
func (b *Buffer) String() string {
	return string(b.Bytes())
}

// Len returns the length of the logical content.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Ready reports whether the buffer holds any content.
func (b *Buffer) Ready() bool {
	return b != nil && len(b.data) > 0
}

// Reset drops the content but keeps the allocation.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}

// available returns the number of bytes that may still be appended.
func (b *Buffer) available() int {
	limit := b.limit
	if limit <= 0 {
		limit = MaxSize
	}
	return limit - len(b.data)
}

func growTo(data []byte, size int) []byte {
	if cap(data) >= size {
		return data
	}
	capacity := 2 * cap(data)
	if capacity < size {
		capacity = size
	}
	grown := make([]byte, len(data), capacity)
	copy(grown, data)
	return grown
}
