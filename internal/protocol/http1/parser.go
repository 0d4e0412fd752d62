package http1

import (
	"bytes"
	"math"
	"strings"

	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	"github.com/rrwifi/webserver/config"
	"github.com/rrwifi/webserver/http"
	"github.com/rrwifi/webserver/http/method"
	"github.com/rrwifi/webserver/http/proto"
	"github.com/rrwifi/webserver/http/status"
	"github.com/rrwifi/webserver/internal/buffer"
	"github.com/rrwifi/webserver/internal/urlencoded"
)

type parserState uint8

const (
	eMethod parserState = iota + 1
	eTarget
	eProtocol
	eHeaderKey
	eHeaderValue
	eHeaderValueCRLFCR
)

// Parser is an incremental request head parser. It may be fed with arbitrary pieces of
// the stream; Parse reports done as soon as the blank line is met, returning the bytes
// following it as extra.
type Parser struct {
	state         parserState
	headersNumber int
	keyLen        int
	contentLength int64
	cfg           *config.Config
	request       *http.Request
	requestLine   *buffer.Buffer
	headers       *buffer.Buffer
	decoded       []byte
}

func NewParser(cfg *config.Config, request *http.Request, requestLine, headers *buffer.Buffer) *Parser {
	return &Parser{
		state:         eMethod,
		contentLength: -1,
		cfg:           cfg,
		request:       request,
		requestLine:   requestLine,
		headers:       headers,
		decoded:       make([]byte, 0, cfg.URI.RequestLineSize.Maximal),
	}
}

func (p *Parser) Parse(data []byte) (done bool, extra []byte, err error) {
	request := p.request
	requestLine := p.requestLine
	headers := p.headers

	switch p.state {
	case eMethod:
		goto method
	case eTarget:
		goto target
	case eProtocol:
		goto protocol
	case eHeaderKey:
		goto headerKey
	case eHeaderValue:
		goto headerValue
	case eHeaderValueCRLFCR:
		goto headerValueCRLFCR
	default:
		panic("unreachable code")
	}

method:
	for i := 0; i < len(data); i++ {
		if data[i] == ' ' {
			var methodValue []byte
			if requestLine.SegmentLength() == 0 {
				methodValue = data[:i]
			} else {
				if !requestLine.Append(data[:i]) {
					return true, nil, status.ErrMethodNotImplemented
				}

				methodValue = requestLine.Preview()
				requestLine.Discard()
			}

			if len(methodValue) == 0 {
				return true, nil, status.ErrBadRequest
			}

			request.Method = method.Parse(uf.B2S(methodValue))
			if request.Method == method.Unknown {
				return true, nil, status.ErrMethodNotImplemented
			}

			data = data[i+1:]
			goto target
		}

		if data[i] == '\n' {
			return true, nil, status.ErrBadRequest
		}
	}

	if !requestLine.Append(data) {
		return true, nil, status.ErrMethodNotImplemented
	}

	p.state = eMethod
	return false, nil, nil

target:
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case ' ':
			if !requestLine.Append(data[:i]) {
				return true, nil, status.ErrURITooLong
			}

			if err = p.parseTarget(requestLine.Finish()); err != nil {
				return true, nil, err
			}

			data = data[i+1:]
			goto protocol
		case '\r', '\n':
			return true, nil, status.ErrBadRequest
		}
	}

	if !requestLine.Append(data) {
		return true, nil, status.ErrURITooLong
	}

	p.state = eTarget
	return false, nil, nil

protocol:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			if !requestLine.Append(data) {
				return true, nil, status.ErrTooLongRequestLine
			}

			p.state = eProtocol
			return false, nil, nil
		}

		var protocol proto.Protocol
		if requestLine.SegmentLength() == 0 {
			protocol = proto.FromBytes(stripCR(data[:lf]))
		} else {
			if !requestLine.Append(data[:lf]) {
				return true, nil, status.ErrTooLongRequestLine
			}

			protocol = proto.FromBytes(stripCR(requestLine.Preview()))
			requestLine.Discard()
		}

		if protocol == proto.Unknown {
			return true, nil, status.ErrHTTPVersionNotSupported
		}

		request.Protocol = protocol
		data = data[lf+1:]
		// fallthrough to headerKey
	}

headerKey:
	{
		if len(data) == 0 {
			p.state = eHeaderKey
			return false, nil, nil
		}

		if headers.SegmentLength() == 0 {
			switch data[0] {
			case '\n':
				return p.complete(data[1:])
			case '\r':
				data = data[1:]
				goto headerValueCRLFCR
			}
		}

		colon := bytes.IndexByte(data, ':')
		if lf := bytes.IndexByte(data, '\n'); lf != -1 && (colon == -1 || lf < colon) {
			return true, nil, status.ErrBadRequest
		}

		if colon == -1 {
			if !headers.Append(data) {
				return true, nil, status.ErrHeaderFieldsTooLarge
			}

			p.state = eHeaderKey
			return false, nil, nil
		}

		if !headers.Append(data[:colon]) {
			return true, nil, status.ErrHeaderFieldsTooLarge
		}

		if p.keyLen = headers.SegmentLength(); p.keyLen == 0 {
			return true, nil, status.ErrBadRequest
		}

		if p.headersNumber++; p.headersNumber > p.cfg.Headers.Number.Maximal {
			return true, nil, status.ErrTooManyHeaders
		}

		data = data[colon+1:]
		// fallthrough to headerValue
	}

headerValue:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			if !headers.Append(data) {
				return true, nil, status.ErrHeaderFieldsTooLarge
			}

			p.state = eHeaderValue
			return false, nil, nil
		}

		if !headers.Append(data[:lf]) {
			return true, nil, status.ErrHeaderFieldsTooLarge
		}

		data = data[lf+1:]
		if err = p.header(); err != nil {
			return true, nil, err
		}

		goto headerKey
	}

headerValueCRLFCR:
	if len(data) == 0 {
		p.state = eHeaderValueCRLFCR
		return false, nil, nil
	}

	if data[0] == '\n' {
		return p.complete(data[1:])
	}

	return true, nil, status.ErrBadRequest
}

// parseTarget splits the raw request-target into path and query, decoding both.
func (p *Parser) parseTarget(raw []byte) (err error) {
	request := p.request
	request.URI = uf.B2S(raw)

	if len(raw) == 0 || raw[0] != '/' {
		return status.ErrBadRequest
	}

	// fragments are never sent by well-behaved clients, so simply reject them
	if bytes.IndexByte(raw, '#') != -1 {
		return status.ErrBadRequest
	}

	rawPath, query := raw, []byte(nil)
	if q := bytes.IndexByte(raw, '?'); q != -1 {
		rawPath, query = raw[:q], raw[q+1:]
	}

	request.RawPath = uf.B2S(rawPath)
	request.Query = uf.B2S(query)

	var path []byte
	if path, p.decoded, err = urlencoded.Decode(rawPath, p.decoded); err != nil {
		return err
	}

	for _, c := range path {
		if isProhibitedChar(c) {
			return status.ErrBadRequest
		}
	}

	request.Path = uf.B2S(path)

	p.decoded, err = urlencoded.Parse(query, p.decoded, func(key, value string) {
		request.Args.Add(key, value)
	})
	if err != nil {
		return status.ErrBadParams
	}

	return nil
}

// header processes a complete header line, sitting in the current segment of the headers
// buffer. Only subscribed headers and those the request refers to stay in the buffer.
func (p *Parser) header() error {
	segment := p.headers.Preview()
	key := uf.B2S(segment[:p.keyLen])
	value := uf.B2S(trimSpaces(segment[p.keyLen:]))
	request := p.request
	keep := p.collected(key)

	switch len(key) {
	case 4:
		if strcomp.EqualFold(key, "Host") {
			request.Host = value
			keep = true
		}
	case 12:
		if strcomp.EqualFold(key, "Content-Type") {
			request.ContentType = value
			keep = true
		}
	case 14:
		if strcomp.EqualFold(key, "Content-Length") {
			length, ok := parseContentLength(value)
			if !ok || (p.contentLength != -1 && p.contentLength != length) {
				return status.ErrBadRequest
			}

			p.contentLength = length
		}
	case 17:
		if strcomp.EqualFold(key, "Transfer-Encoding") {
			chunked, err := parseTransferEncoding(value)
			if err != nil {
				return err
			}

			request.Chunked = request.Chunked || chunked
		}
	}

	if !keep {
		p.headers.Discard()
		return nil
	}

	p.headers.Finish()
	if p.collected(key) {
		request.Headers.Add(key, value)
	}

	return nil
}

func (p *Parser) collected(key string) bool {
	for _, name := range p.cfg.Headers.Collect {
		if strcomp.EqualFold(name, key) {
			return true
		}
	}

	return false
}

// complete derives the body properties once the head is over.
func (p *Parser) complete(extra []byte) (done bool, rest []byte, err error) {
	request := p.request

	switch {
	case request.Chunked:
		request.ContentLength = http.ContentLengthUnknown
	case p.contentLength != -1:
		request.ContentLength = p.contentLength
	case request.Method.HasBody():
		request.ContentLength = http.ContentLengthUnknown
	default:
		request.ContentLength = http.ContentLengthNotSet
	}

	if request.ContentLength > p.cfg.Body.MaxSize {
		p.Reset()
		return true, nil, status.ErrBodyTooLarge
	}

	hasBody := request.ContentLength > 0 || request.ContentLength == http.ContentLengthUnknown
	if hasBody {
		request.Body, request.Boundary, err = bodyKind(request.ContentType)
	}

	p.Reset()
	return true, extra, err
}

// Reset brings the parser to its initial state. Strings of the parsed request stay valid
// until the next request is parsed.
func (p *Parser) Reset() {
	p.state = eMethod
	p.headersNumber = 0
	p.keyLen = 0
	p.contentLength = -1
	p.requestLine.Clear()
	p.headers.Clear()
	p.decoded = p.decoded[:0]
}

func bodyKind(contentType string) (kind http.BodyKind, boundary string, err error) {
	mediaType, params := contentType, ""
	if semicolon := strings.IndexByte(contentType, ';'); semicolon != -1 {
		mediaType, params = contentType[:semicolon], contentType[semicolon+1:]
	}

	mediaType = strings.TrimSpace(mediaType)

	switch {
	case strcomp.EqualFold(mediaType, "application/x-www-form-urlencoded"):
		return http.BodyForm, "", nil
	case len(mediaType) > len("multipart/") && strcomp.EqualFold(mediaType[:len("multipart/")], "multipart/"):
		boundary, found := param(params, "boundary")
		if !found || len(boundary) == 0 || len(boundary) > maxBoundaryLen {
			return http.BodyNone, "", status.ErrBadBoundary
		}

		return http.BodyMultipart, boundary, nil
	default:
		return http.BodyOpaque, "", nil
	}
}

// param finds a parameter in a list like `a=b; c="d e"`. Quoted values may contain any
// characters except the double quote.
func param(params, name string) (value string, found bool) {
	for len(params) > 0 {
		params = strings.TrimLeft(params, " \t;")
		eq := strings.IndexByte(params, '=')
		if eq == -1 {
			return "", false
		}

		key := strings.TrimSpace(params[:eq])
		params = strings.TrimLeft(params[eq+1:], " \t")

		if len(params) > 0 && params[0] == '"' {
			end := strings.IndexByte(params[1:], '"')
			if end == -1 {
				value, params = params[1:], ""
			} else {
				value, params = params[1:end+1], params[end+2:]
			}
		} else {
			end := strings.IndexByte(params, ';')
			if end == -1 {
				end = len(params)
			}

			value, params = strings.TrimSpace(params[:end]), params[end:]
		}

		if strcomp.EqualFold(key, name) {
			return value, true
		}
	}

	return "", false
}

func parseContentLength(value string) (length int64, ok bool) {
	if len(value) == 0 {
		return 0, false
	}

	for i := 0; i < len(value); i++ {
		c := value[i]
		if c < '0' || c > '9' {
			return 0, false
		}

		if length > (math.MaxInt64-int64(c-'0'))/10 {
			return 0, false
		}

		length = length*10 + int64(c-'0')
	}

	return length, true
}

// parseTransferEncoding accepts only chunked (optionally preceded by identity) encoding.
func parseTransferEncoding(value string) (chunked bool, err error) {
	for len(value) > 0 {
		var token string
		if comma := strings.IndexByte(value, ','); comma == -1 {
			token, value = value, ""
		} else {
			token, value = value[:comma], value[comma+1:]
		}

		token = strings.TrimSpace(token)

		switch {
		case len(token) == 0, strcomp.EqualFold(token, "identity"):
		case strcomp.EqualFold(token, "chunked"):
			if len(strings.TrimSpace(value)) > 0 {
				// chunked must always be the last one
				return false, status.ErrBadEncoding
			}

			chunked = true
		default:
			return false, status.ErrBadEncoding
		}
	}

	return chunked, nil
}

func trimSpaces(b []byte) []byte {
	b = stripCR(b)

	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}

	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}

	return b
}

func stripCR(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		return b[:len(b)-1]
	}

	return b
}

func isProhibitedChar(c byte) bool {
	return c < 0x20 || c == 0x7f
}
