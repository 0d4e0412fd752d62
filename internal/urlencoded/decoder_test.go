package urlencoded

import (
	"net/url"
	"strings"
	"testing"

	"github.com/dchest/uniuri"
	"github.com/google/go-cmp/cmp"
	"github.com/rrwifi/webserver/http/status"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("no escaping", func(t *testing.T) {
		decoded, buff, err := Decode([]byte("/hello"), nil)
		require.NoError(t, err)
		require.Equal(t, "/hello", string(decoded))
		require.Empty(t, buff)
	})

	t.Run("corners", func(t *testing.T) {
		decoded, _, err := Decode([]byte("%2fhello%2F"), nil)
		require.NoError(t, err)
		require.Equal(t, "/hello/", string(decoded))
	})

	t.Run("plus is kept", func(t *testing.T) {
		decoded, _, err := Decode([]byte("a+b%20c"), nil)
		require.NoError(t, err)
		require.Equal(t, "a+b c", string(decoded))
	})

	t.Run("incomplete sequence", func(t *testing.T) {
		_, _, err := Decode([]byte("abc%2"), nil)
		require.ErrorIs(t, err, status.ErrURLDecoding)
	})

	t.Run("invalid code", func(t *testing.T) {
		_, _, err := Decode([]byte("%2j"), nil)
		require.ErrorIs(t, err, status.ErrURLDecoding)
	})

	t.Run("appends to buffer", func(t *testing.T) {
		buff := []byte("prev")
		decoded, buff, err := ExtendedDecode([]byte("a+b"), buff)
		require.NoError(t, err)
		require.Equal(t, "a b", string(decoded))
		require.Equal(t, "preva b", string(buff))
	})
}

func TestExtendedDecodeRoundTrip(t *testing.T) {
	for i := 0; i < 50; i++ {
		original := uniuri.NewLenChars(32, []byte("abc XYZ/?&=+%#\"'~.-_\x01\xfe"))
		encoded := url.QueryEscape(original)
		decoded, _, err := ExtendedDecode([]byte(encoded), nil)
		require.NoError(t, err)
		require.Equal(t, original, string(decoded))
	}
}

func TestDecodeString(t *testing.T) {
	decoded, _, err := DecodeString("my%22print%22+1.gcode", nil)
	require.NoError(t, err)
	require.Equal(t, `my"print"+1.gcode`, decoded)

	decoded, buff, err := DecodeString("plain.gcode", []byte("prev"))
	require.NoError(t, err)
	require.Equal(t, "plain.gcode", decoded)
	require.Equal(t, "prev", string(buff))

	_, _, err = DecodeString("100%.gcode", nil)
	require.ErrorIs(t, err, status.ErrURLDecoding)
}

func TestParse(t *testing.T) {
	type pair struct{ Key, Value string }

	parse := func(data string) ([]pair, error) {
		var pairs []pair
		_, err := Parse([]byte(data), nil, func(key, value string) {
			pairs = append(pairs, pair{strings.Clone(key), strings.Clone(value)})
		})

		return pairs, err
	}

	t.Run("pairs", func(t *testing.T) {
		pairs, err := parse("name=foo&size=2+kb&flag&path=%2Fgcodes%2Fa.g&&name=bar")
		require.NoError(t, err)
		want := []pair{
			{"name", "foo"},
			{"size", "2 kb"},
			{"flag", ""},
			{"path", "/gcodes/a.g"},
			{"name", "bar"},
		}
		require.Empty(t, cmp.Diff(want, pairs))
	})

	t.Run("empty value", func(t *testing.T) {
		pairs, err := parse("a=")
		require.NoError(t, err)
		require.Equal(t, []pair{{"a", ""}}, pairs)
	})

	t.Run("bad escape", func(t *testing.T) {
		_, err := parse("a=%zz")
		require.ErrorIs(t, err, status.ErrURLDecoding)
	})
}
