package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {
	t.Run("segments", func(t *testing.T) {
		buff := New(4, 16)
		require.True(t, buff.Append([]byte("hel")))
		require.True(t, buff.AppendByte('l'))
		require.True(t, buff.Append([]byte("o")))
		hello := buff.Finish()
		require.True(t, buff.Append([]byte("world")))
		require.Equal(t, 5, buff.SegmentLength())
		world := buff.Finish()

		require.Equal(t, "hello", string(hello))
		require.Equal(t, "world", string(world))
		require.Equal(t, 10, buff.Len())
	})

	t.Run("limit", func(t *testing.T) {
		buff := New(0, 4)
		require.True(t, buff.Append([]byte("abcd")))
		require.False(t, buff.AppendByte('e'))
		require.False(t, buff.Append([]byte("e")))
		require.Equal(t, "abcd", string(buff.Preview()))
	})

	t.Run("trunc and discard", func(t *testing.T) {
		buff := New(0, 16)
		buff.Append([]byte("key"))
		key := buff.Finish()
		buff.Append([]byte("value\r"))
		buff.Trunc(1)
		require.Equal(t, "value", string(buff.Preview()))
		buff.Trunc(100)
		require.Empty(t, buff.Preview())
		buff.Append([]byte("other"))
		buff.Discard()
		require.Zero(t, buff.SegmentLength())
		require.Equal(t, "key", string(key))
	})

	t.Run("clear", func(t *testing.T) {
		buff := New(0, 8)
		buff.Append([]byte("12345678"))
		buff.Finish()
		buff.Clear()
		require.True(t, buff.Append([]byte("abcdefgh")))
	})
}
