package proto

import "github.com/indigo-web/utils/uf"

type Protocol uint8

const (
	Unknown Protocol = iota
	HTTP10
	HTTP11
)

func (p Protocol) String() string {
	switch p {
	case HTTP10:
		return "HTTP/1.0"
	case HTTP11:
		return "HTTP/1.1"
	default:
		return ""
	}
}

// FromBytes parses a protocol token. Only HTTP/1.0 and HTTP/1.1 are recognized.
func FromBytes(raw []byte) Protocol {
	switch uf.B2S(raw) {
	case "HTTP/1.1":
		return HTTP11
	case "HTTP/1.0":
		return HTTP10
	default:
		return Unknown
	}
}
