package http1

import (
	"errors"
	"io"

	"github.com/indigo-web/chunkedbody"
	"github.com/rrwifi/webserver/config"
	"github.com/rrwifi/webserver/http"
	"github.com/rrwifi/webserver/http/status"
	"github.com/rrwifi/webserver/transport"
)

type bodyMode uint8

const (
	bodyNone bodyMode = iota
	bodyPlain
	bodyChunked
	bodyUntilEOF
)

// Body retrieves the request body from the client piece by piece. The pieces are slices of
// the client read buffer, so they are valid until the next Retrieve.
type Body struct {
	client   transport.Client
	chunked  *chunkedbody.Parser
	maxSize  int64
	mode     bodyMode
	left     int64
	received int64
}

var _ http.Retriever = new(Body)

func NewBody(client transport.Client, chunked *chunkedbody.Parser, cfg config.Body) *Body {
	return &Body{
		client:  client,
		chunked: chunked,
		maxSize: cfg.MaxSize,
	}
}

// Init prepares the body for the request. The return value reports whether there's any
// body at all.
func (b *Body) Init(request *http.Request) bool {
	b.received = 0

	switch {
	case request.Chunked:
		b.mode = bodyChunked
	case request.ContentLength > 0:
		b.mode = bodyPlain
		b.left = request.ContentLength
	case request.ContentLength == http.ContentLengthUnknown:
		b.mode = bodyUntilEOF
	default:
		b.mode = bodyNone
	}

	return b.mode != bodyNone
}

// UntilEOF reports whether the body is terminated by the connection close only.
func (b *Body) UntilEOF() bool {
	return b.mode == bodyUntilEOF
}

func (b *Body) Retrieve() ([]byte, error) {
	switch b.mode {
	case bodyPlain:
		return b.plain()
	case bodyChunked:
		return b.chunk()
	case bodyUntilEOF:
		return b.untilEOF()
	default:
		return nil, io.EOF
	}
}

func (b *Body) plain() (body []byte, err error) {
	if b.left == 0 {
		b.mode = bodyNone
		return nil, io.EOF
	}

	data, err := b.client.Read()
	if err != nil {
		return nil, err
	}

	if int64(len(data)) >= b.left {
		body, data = data[:b.left], data[b.left:]
		b.client.Unread(data)
		b.left = 0
		b.mode = bodyNone

		return body, io.EOF
	}

	b.left -= int64(len(data))
	return data, nil
}

func (b *Body) chunk() ([]byte, error) {
	for {
		data, err := b.client.Read()
		if err != nil {
			return nil, err
		}

		chunk, extra, err := b.chunked.Parse(data, false)
		switch err {
		case nil, io.EOF:
		default:
			return nil, status.ErrBadChunk
		}

		b.client.Unread(extra)

		if b.received += int64(len(chunk)); b.received > b.maxSize {
			return nil, status.ErrBodyTooLarge
		}

		if err == io.EOF {
			b.mode = bodyNone
			return chunk, io.EOF
		}

		if len(chunk) > 0 {
			return chunk, nil
		}
	}
}

func (b *Body) untilEOF() ([]byte, error) {
	data, err := b.client.Read()
	if err != nil {
		if errors.Is(err, status.ErrDisconnect) {
			b.mode = bodyNone
			return nil, io.EOF
		}

		return nil, err
	}

	if b.received += int64(len(data)); b.received > b.maxSize {
		return nil, status.ErrBodyTooLarge
	}

	return data, nil
}
