package http

import (
	"errors"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	json "github.com/json-iterator/go"
	"github.com/rrwifi/webserver/config"
	"github.com/rrwifi/webserver/http/mime"
	"github.com/rrwifi/webserver/http/proto"
	"github.com/rrwifi/webserver/http/status"
	"github.com/rrwifi/webserver/kv"
	"github.com/rrwifi/webserver/transport"
)

const crlf = "\r\n"

var (
	crlfBytes = []byte(crlf)
	colonsp   = []byte(": ")
)

// maxChunkPrefix is the longest chunk size line: 16 hex digits and CRLF.
const maxChunkPrefix = 16 + len(crlf)

// Response writes the response directly into the connection. Headers are accumulated
// until the head is sent by one of Send methods. After that, only the body can be
// written, and a header change has no effect.
type Response struct {
	cfg            *config.Config
	client         transport.Client
	request        *Request
	buff           []byte
	headers        []kv.Pair
	defaultHeaders defaultHeaders
	contentLength  int64
	code           status.Code
	chunked        bool
	started        bool
	finished       bool
	written        int64
}

func NewResponse(cfg *config.Config, client transport.Client) *Response {
	return &Response{
		cfg:            cfg,
		client:         client,
		buff:           make([]byte, 0, max(1, cfg.NET.WriteBufferSize.Default)),
		headers:        make([]kv.Pair, 0, 4),
		defaultHeaders: preprocessDefaultHeaders(cfg.Headers.Default),
		contentLength:  ContentLengthNotSet,
	}
}

func (r *Response) bind(request *Request) {
	r.request = request
}

// SendHeader adds a header to the response. If first is set, the header is put in front
// of all previously added ones. After the head was sent, status.ErrHeadersSent is returned
// and nothing happens.
func (r *Response) SendHeader(key, value string, first bool) error {
	if r.started {
		return status.ErrHeadersSent
	}

	header := kv.Pair{Key: key, Value: value}
	if first {
		r.headers = append(r.headers, kv.Pair{})
		copy(r.headers[1:], r.headers)
		r.headers[0] = header
	} else {
		r.headers = append(r.headers, header)
	}

	return nil
}

// SetContentLength declares the length of the body sent afterwards. ContentLengthUnknown
// makes the body either chunked (HTTP/1.1) or terminated by the connection close (HTTP/1.0).
func (r *Response) SetContentLength(n int64) {
	r.contentLength = n
}

// Send transmits a complete response. If a content length was declared before, it's used
// instead of the length of body.
func (r *Response) Send(code status.Code, contentType mime.MIME, body string) error {
	length := r.contentLength
	if length == ContentLengthNotSet {
		length = int64(len(body))
	}

	return r.SendBytes(code, length, contentType, uf.S2B(body), true)
}

// SendBytes sends the head and the first piece of the body. Negative length means
// the length is unknown, unless declared by SetContentLength. If last isn't set, the rest
// of the body must be sent via SendContent.
func (r *Response) SendBytes(
	code status.Code, length int64, contentType mime.MIME, data []byte, last bool,
) error {
	if r.started {
		return status.ErrHeadersSent
	}

	if length < 0 {
		length = r.contentLength
		if length == ContentLengthNotSet {
			length = ContentLengthUnknown
		}
	}

	if err := r.writeHead(code, length, contentType); err != nil {
		return err
	}

	return r.SendContent(data, last)
}

// SendContent sends a piece of the body. Setting last finishes the response.
func (r *Response) SendContent(data []byte, last bool) error {
	switch {
	case r.finished:
		return status.ErrResponseFinished
	case !r.started:
		return status.ErrInternalServerError
	}

	if len(data) > 0 {
		if err := r.writeBody(data); err != nil {
			return err
		}
	}

	if last {
		return r.finish()
	}

	return nil
}

// StreamFile sends the file as a complete response. The file is closed afterwards. Files
// with .gz extension are sent with Content-Encoding: gzip, unless contentType itself is a
// compressed one.
func (r *Response) StreamFile(file File, contentType mime.MIME) (err error) {
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if strings.HasSuffix(file.Name(), ".gz") && !mime.Compressed(contentType) {
		if err = r.SendHeader("Content-Encoding", "gzip", false); err != nil {
			return err
		}
	}

	if err = r.writeHead(status.OK, file.Size(), contentType); err != nil {
		return err
	}

	unit := make([]byte, max(1, r.cfg.NET.DownloadUnitSize))

	for {
		n, rerr := file.Read(unit)
		if n > 0 {
			if err = r.writeBody(unit[:n]); err != nil {
				return err
			}
		}

		switch rerr {
		case nil:
		case io.EOF:
			return r.finish()
		default:
			// the head is already gone, so the client will see a truncated body
			r.finished = true
			return rerr
		}
	}
}

// JSON serializes the model and sends it as a complete response.
func (r *Response) JSON(code status.Code, model any) error {
	data, err := json.ConfigCompatibleWithStandardLibrary.Marshal(model)
	if err != nil {
		return err
	}

	return r.SendBytes(code, int64(len(data)), mime.JSON, data, true)
}

// Error sends a response with the error's status code and its message as body. If
// anything was already sent, nothing happens.
func (r *Response) Error(err error) error {
	if r.started {
		return nil
	}

	msg := err.Error()
	var herr status.HTTPError
	if !errors.As(err, &herr) {
		msg = string(status.Text(status.InternalServerError))
	}

	return r.Send(status.CodeOf(err), mime.Plain, msg)
}

// Started reports whether the head was already transmitted.
func (r *Response) Started() bool {
	return r.started
}

// Finished reports whether the response was completed.
func (r *Response) Finished() bool {
	return r.finished
}

// Code returns the status code sent, or zero if the head wasn't sent yet.
func (r *Response) Code() status.Code {
	return r.code
}

// Written returns the number of body bytes sent.
func (r *Response) Written() int64 {
	return r.written
}

// Flush transmits everything staged. A started response is marked finished, and a chunked
// one gets its terminator.
func (r *Response) Flush() error {
	if r.started && !r.finished {
		return r.finish()
	}

	return r.flush()
}

func (r *Response) Reset() {
	r.buff = r.buff[:0]
	r.headers = r.headers[:0]
	r.defaultHeaders.Reset()
	r.contentLength = ContentLengthNotSet
	r.code = 0
	r.chunked = false
	r.started = false
	r.finished = false
	r.written = 0
}

func (r *Response) protocol() proto.Protocol {
	if r.request == nil || r.request.Protocol == proto.Unknown {
		return proto.HTTP11
	}

	return r.request.Protocol
}

func (r *Response) writeHead(code status.Code, length int64, contentType mime.MIME) error {
	if r.started {
		return status.ErrHeadersSent
	}

	r.started = true
	r.code = code
	protocol := r.protocol()

	if err := r.reserve(len("HTTP/1.1 000 ") + len(status.Text(code)) + len(crlf)); err != nil {
		return err
	}

	r.buff = append(r.buff, protocol.String()...)
	r.buff = append(r.buff, ' ')
	r.buff = strconv.AppendUint(r.buff, uint64(code), 10)
	r.buff = append(r.buff, ' ')
	r.buff = append(r.buff, status.Text(code)...)
	r.crlf()

	if len(contentType) > 0 {
		r.defaultHeaders.Exclude("Content-Type")
		if err := r.appendHeader("Content-Type", contentType); err != nil {
			return err
		}
	}

	for _, header := range r.headers {
		r.defaultHeaders.Exclude(header.Key)
		if err := r.appendHeader(header.Key, header.Value); err != nil {
			return err
		}
	}

	for _, header := range r.defaultHeaders {
		if header.Excluded {
			continue
		}

		if err := r.reserve(len(header.Full)); err != nil {
			return err
		}

		if err := r.safeAppend(uf.S2B(header.Full)); err != nil {
			return err
		}
	}

	switch {
	case length >= 0:
		if err := r.appendHeader("Content-Length", strconv.FormatInt(length, 10)); err != nil {
			return err
		}
	case protocol == proto.HTTP11:
		r.chunked = true
		if err := r.appendHeader("Transfer-Encoding", "chunked"); err != nil {
			return err
		}
	}

	if err := r.appendHeader("Connection", "close"); err != nil {
		return err
	}

	return r.safeAppend(crlfBytes)
}

func (r *Response) writeBody(data []byte) error {
	r.written += int64(len(data))

	if !r.chunked {
		return r.safeAppend(data)
	}

	if cap(r.buff)-len(r.buff) < maxChunkPrefix {
		if err := r.flush(); err != nil {
			return err
		}
	}

	r.buff = strconv.AppendUint(r.buff, uint64(len(data)), 16)
	r.crlf()
	if err := r.safeAppend(data); err != nil {
		return err
	}

	return r.safeAppend(crlfBytes)
}

func (r *Response) finish() error {
	r.finished = true

	if r.chunked {
		if err := r.safeAppend([]byte("0\r\n\r\n")); err != nil {
			return err
		}
	}

	return r.flush()
}

func (r *Response) appendHeader(key, value string) error {
	if err := r.reserve(len(key) + len(value) + len(": \r\n")); err != nil {
		return err
	}

	if err := r.safeAppend(uf.S2B(key)); err != nil {
		return err
	}

	if err := r.safeAppend(colonsp); err != nil {
		return err
	}

	if err := r.safeAppend(uf.S2B(value)); err != nil {
		return err
	}

	return r.safeAppend(crlfBytes)
}

// reserve makes room for n more bytes. The buffer grows up to NET.WriteBufferSize.Maximal,
// so the head normally leaves in a single write; otherwise the buffer is flushed.
func (r *Response) reserve(n int) error {
	size := len(r.buff) + n
	if size <= cap(r.buff) {
		return nil
	}

	if size <= r.cfg.NET.WriteBufferSize.Maximal {
		grown := make([]byte, len(r.buff), min(max(2*cap(r.buff), size), r.cfg.NET.WriteBufferSize.Maximal))
		copy(grown, r.buff)
		r.buff = grown
		return nil
	}

	return r.flush()
}

// safeAppend appends data into the bounded buffer. If data doesn't fit, the buffer is
// filled till full and flushed as many times as needed.
func (r *Response) safeAppend(data []byte) error {
	for len(data) > 0 {
		freeSpace := cap(r.buff) - len(r.buff)

		if len(data) <= freeSpace {
			r.buff = append(r.buff, data...)
			return nil
		}

		r.buff = append(r.buff, data[:freeSpace]...)
		if err := r.flush(); err != nil {
			return err
		}

		data = data[freeSpace:]
	}

	return nil
}

func (r *Response) flush() (err error) {
	if len(r.buff) > 0 {
		err = r.client.Write(r.buff)
		r.buff = r.buff[:0]
	}

	return err
}

// crlf is used only where the free space is known to be sufficient.
func (r *Response) crlf() {
	r.buff = append(r.buff, crlf...)
}

type defaultHeader struct {
	Excluded bool
	Key      string
	Full     string
}

type defaultHeaders []defaultHeader

func preprocessDefaultHeaders(headers map[string]string) defaultHeaders {
	processed := make(defaultHeaders, 0, len(headers))

	for key, value := range headers {
		serialized := key + ": " + value + crlf
		processed = append(processed, defaultHeader{
			Key:  serialized[:len(key)],
			Full: serialized,
		})
	}

	// map iteration order is random, but the head must be stable
	slices.SortFunc(processed, func(a, b defaultHeader) int {
		return strings.Compare(a.Key, b.Key)
	})

	return processed
}

func (d defaultHeaders) Exclude(key string) {
	for i, header := range d {
		if strcomp.EqualFold(header.Key, key) {
			d[i].Excluded = true
		}
	}
}

func (d defaultHeaders) Reset() {
	for i := range d {
		d[i].Excluded = false
	}
}
