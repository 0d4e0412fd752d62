package urlencoded

import (
	"bytes"

	"github.com/indigo-web/utils/uf"
	"github.com/rrwifi/webserver/http/status"
	"github.com/rrwifi/webserver/internal/hexconv"
)

// Decode resolves %XX sequences. Decoded bytes are appended to dst, which is returned back
// as buffer. If src contains nothing to decode, it is returned as is and dst stays untouched.
func Decode(src, dst []byte) (decoded, buffer []byte, err error) {
	return decode(src, dst, false)
}

// ExtendedDecode is Decode that also turns '+' into a space, as required for query
// strings and form bodies.
func ExtendedDecode(src, dst []byte) (decoded, buffer []byte, err error) {
	return decode(src, dst, true)
}

// DecodeString is Decode for strings. The result may point into src or into the returned
// buffer.
func DecodeString(src string, dst []byte) (decoded string, buffer []byte, err error) {
	d, buffer, err := Decode(uf.S2B(src), dst)
	return uf.B2S(d), buffer, err
}

func decode(src, dst []byte, plus bool) (decoded, buffer []byte, err error) {
	next := nextSpecial(src, plus)
	if next == -1 {
		return src, dst, nil
	}

	head := len(dst)

	for next != -1 {
		dst = append(dst, src[:next]...)

		if src[next] == '+' {
			dst = append(dst, ' ')
			src = src[next+1:]
		} else {
			if next+2 >= len(src) {
				return nil, dst[:head], status.ErrURLDecoding
			}

			a, b := hexconv.Halfbyte[src[next+1]], hexconv.Halfbyte[src[next+2]]
			if a|b > 0x0f {
				return nil, dst[:head], status.ErrURLDecoding
			}

			dst = append(dst, a<<4|b)
			src = src[next+3:]
		}

		next = nextSpecial(src, plus)
	}

	dst = append(dst, src...)

	return dst[head:], dst, nil
}

func nextSpecial(src []byte, plus bool) int {
	if !plus {
		return bytes.IndexByte(src, '%')
	}

	for i, c := range src {
		if c == '%' || c == '+' {
			return i
		}
	}

	return -1
}

// Parse splits an application/x-www-form-urlencoded payload into decoded pairs. A key
// without '=' gets an empty value, empty pairs (e.g. "a=1&&b=2") are skipped. Decoded
// values are stored in dst, therefore they stay valid as long as dst isn't overwritten.
func Parse(data, dst []byte, add func(key, value string)) (buffer []byte, err error) {
	for len(data) > 0 {
		var pair []byte
		if amp := bytes.IndexByte(data, '&'); amp == -1 {
			pair, data = data, nil
		} else {
			pair, data = data[:amp], data[amp+1:]
		}

		if len(pair) == 0 {
			continue
		}

		var rawKey, rawValue []byte
		if eq := bytes.IndexByte(pair, '='); eq == -1 {
			rawKey = pair
		} else {
			rawKey, rawValue = pair[:eq], pair[eq+1:]
		}

		var key, value []byte
		if key, dst, err = ExtendedDecode(rawKey, dst); err != nil {
			return dst, err
		}

		if value, dst, err = ExtendedDecode(rawValue, dst); err != nil {
			return dst, err
		}

		add(uf.B2S(key), uf.B2S(value))
	}

	return dst, nil
}
