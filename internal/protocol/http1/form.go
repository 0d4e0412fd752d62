package http1

import (
	"io"

	"github.com/rrwifi/webserver/http"
	"github.com/rrwifi/webserver/http/status"
	"github.com/rrwifi/webserver/internal/urlencoded"
)

// formDecoder reads a whole application/x-www-form-urlencoded body and appends the decoded
// pairs to the request arguments, after the query ones.
type formDecoder struct {
	raw     []byte
	decoded []byte
	limit   int
}

func newFormDecoder(limit int) *formDecoder {
	return &formDecoder{
		raw:     make([]byte, 0, limit),
		decoded: make([]byte, 0, limit),
		limit:   limit,
	}
}

func (f *formDecoder) Decode(request *http.Request, body http.Retriever) error {
	f.raw = f.raw[:0]
	f.decoded = f.decoded[:0]

	for {
		piece, err := body.Retrieve()
		if len(f.raw)+len(piece) > f.limit {
			return status.ErrBodyTooLarge
		}

		f.raw = append(f.raw, piece...)

		if err == io.EOF {
			break
		} else if err != nil {
			return err
		}
	}

	var err error
	f.decoded, err = urlencoded.Parse(f.raw, f.decoded, func(key, value string) {
		request.Args.Add(key, value)
	})

	return err
}
