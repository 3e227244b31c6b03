// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package sendbuf

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/pion/publisher/internal/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pattern(n int, offset int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i + offset)
	}

	return b
}

func TestWriterChunksFillingBuffer(t *testing.T) {
	sock := test.NewMockSocket(0)
	w := NewWriter(sock, MinSize)

	var expected []byte
	for _, size := range []int{100, 200, 136} {
		chunk := pattern(size, len(expected))
		expected = append(expected, chunk...)

		n, err := w.Write(chunk)
		require.NoError(t, err)
		assert.Equal(t, size, n)
	}

	writes := sock.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, expected, writes[0])
	assert.Equal(t, 0, w.Buffered())
}

func TestWriterSmallWritesStayBuffered(t *testing.T) {
	sock := test.NewMockSocket(0)
	w := NewWriter(sock, MinSize)

	n, err := w.Write(pattern(535, 0))
	require.NoError(t, err)
	assert.Equal(t, 535, n)
	assert.Empty(t, sock.Writes())
	assert.Equal(t, 535, w.Buffered())

	require.NoError(t, w.Flush())
	require.Len(t, sock.Writes(), 1)
	assert.Equal(t, 0, w.Buffered())

	require.NoError(t, w.Flush())
	assert.Len(t, sock.Writes(), 1, "flushing an empty buffer must not touch the socket")
}

func TestWriterLargeWrite(t *testing.T) {
	sock := test.NewMockSocket(0)
	w := NewWriter(sock, MinSize)

	head := pattern(36, 0)
	_, err := w.Write(head)
	require.NoError(t, err)

	large := pattern(1300, 36)
	n, err := w.Write(large)
	require.NoError(t, err)
	assert.Equal(t, 1300, n)

	writes := sock.Writes()
	require.Len(t, writes, 2)
	assert.Len(t, writes[0], MinSize)
	assert.Len(t, writes[1], MinSize)
	assert.Equal(t, 1336-2*MinSize, w.Buffered())

	require.NoError(t, w.Flush())
	assert.Equal(t, append(head, large...), sock.Bytes())
}

func TestWriterShortSocketWrites(t *testing.T) {
	sock := test.NewMockSocket(100)
	w := NewWriter(sock, MinSize)

	data := pattern(2000, 0)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	assert.Equal(t, data, sock.Bytes())
	for _, write := range sock.Writes() {
		assert.LessOrEqual(t, len(write), 100)
	}
}

func TestWriterErrors(t *testing.T) {
	t.Run("write failure", func(t *testing.T) {
		sock := test.NewMockSocket(0)
		w := NewWriter(sock, MinSize)
		sock.FailNext(errors.New("connection reset")) //nolint:err113

		_, err := w.Write(pattern(MinSize, 0))
		assert.ErrorIs(t, err, ErrWriteFailed)
	})

	t.Run("zero byte send", func(t *testing.T) {
		sock := test.NewMockSocket(0)
		w := NewWriter(sock, MinSize)
		_, err := w.Write(pattern(10, 0))
		require.NoError(t, err)

		sock.ZeroNext(1)
		assert.ErrorIs(t, w.Flush(), ErrClosedByPeer)
		assert.Equal(t, 10, w.Buffered(), "failed flush keeps the data")

		require.NoError(t, w.Flush())
		assert.Equal(t, pattern(10, 0), sock.Bytes())
	})

	t.Run("partial send then failure", func(t *testing.T) {
		sock := test.NewMockSocket(0)
		w := NewWriter(sock, MinSize)
		_, err := w.Write([]byte("0123456789"))
		require.NoError(t, err)

		sock.PartialNext(5, errors.New("connection reset")) //nolint:err113
		assert.ErrorIs(t, w.Flush(), ErrWriteFailed)
		assert.Equal(t, 5, w.Buffered(), "accepted bytes leave the buffer")

		require.NoError(t, w.Flush())
		assert.Equal(t, []byte("0123456789"), sock.Bytes())
	})

	t.Run("partial send while filling", func(t *testing.T) {
		sock := test.NewMockSocket(0)
		w := NewWriter(sock, MinSize)
		data := pattern(MinSize+20, 0)

		sock.PartialNext(100, errors.New("connection reset")) //nolint:err113
		n, err := w.Write(data)
		assert.ErrorIs(t, err, ErrWriteFailed)
		assert.Equal(t, MinSize, n)
		assert.Equal(t, MinSize-100, w.Buffered())

		_, err = w.Write(data[n:])
		require.NoError(t, err)
		require.NoError(t, w.Flush())
		assert.Equal(t, data, sock.Bytes())
	})

	t.Run("eof", func(t *testing.T) {
		sock := test.NewMockSocket(0)
		w := NewWriter(sock, MinSize)
		_, err := w.Write(pattern(10, 0))
		require.NoError(t, err)

		sock.FailNext(io.EOF)
		err = w.Flush()
		assert.ErrorIs(t, err, ErrClosedByPeer)
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestClampSize(t *testing.T) {
	assert.Equal(t, MinSize, ClampSize(0))
	assert.Equal(t, MinSize, ClampSize(100))
	assert.Equal(t, DefaultSize, ClampSize(DefaultSize))
	assert.Equal(t, MaxSize, ClampSize(1<<20))

	w := NewWriter(&bytes.Buffer{}, 10)
	assert.Equal(t, MinSize, w.Size())
}
