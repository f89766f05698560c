package buffer

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferWrite(t *testing.T) {
	b := New(0, 0)
	assert.False(t, b.Ready())

	n, err := b.Write([]byte("hello "))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	_, err = b.Write([]byte("world"))
	require.NoError(t, err)

	assert.True(t, b.Ready())
	assert.Equal(t, "hello world", b.String())
	assert.Equal(t, 11, b.Len())
}

func TestBufferLimit(t *testing.T) {
	b := New(4, 8)

	_, err := b.Write([]byte("12345"))
	require.NoError(t, err)

	_, err = b.Write([]byte("6789"))
	assert.ErrorIs(t, err, ErrAllocationFailed)
	assert.Equal(t, "12345", b.String())

	err = b.ReadFull(bytes.NewReader([]byte("abcd")), 4)
	assert.ErrorIs(t, err, ErrAllocationFailed)
}

func TestBufferUnboundedLimit(t *testing.T) {
	testCases := []struct {
		name string
		n    int
	}{
		{name: "above max size", n: MaxSize + 1},
		{name: "overflowing int", n: int(^uint(0) >> 1)},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			b := FromBytes([]byte("x"))
			err := b.ReadFull(bytes.NewReader(nil), testCase.n)
			assert.ErrorIs(t, err, ErrAllocationFailed)
			assert.Equal(t, "x", b.String())
		})
	}
}

func TestBufferReadFull(t *testing.T) {
	b := New(0, 0)
	r := bytes.NewReader([]byte("abcdefgh"))

	require.NoError(t, b.ReadFull(r, 3))
	require.NoError(t, b.ReadFull(r, 2))
	assert.Equal(t, "abcde", b.String())

	err := b.ReadFull(r, 10)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "abcde", b.String())
}

func TestBufferTrim(t *testing.T) {
	b := FromBytes([]byte("prefix{body}suffix"))

	require.NoError(t, b.Trim(6, 12))
	assert.Equal(t, "{body}", b.String())

	assert.ErrorIs(t, b.Trim(3, 100), ErrOutOfRange)
	assert.ErrorIs(t, b.Trim(4, 2), ErrOutOfRange)
}

func TestNilBuffer(t *testing.T) {
	var b *Buffer
	assert.False(t, b.Ready())
	assert.Equal(t, 0, b.Len())
	assert.Nil(t, b.Bytes())
}
