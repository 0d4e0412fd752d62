package http

import (
	"net"

	"github.com/rrwifi/webserver/http/method"
	"github.com/rrwifi/webserver/http/proto"
	"github.com/rrwifi/webserver/kv"
	"github.com/rrwifi/webserver/transport"
)

type (
	Args    = *kv.Storage
	Headers = *kv.Storage
)

// Handler processes a request. Returning status.ErrNotFound without writing anything makes
// the request fall through to the not-found handler. Any other error with nothing written
// results in a response with the error's status code.
type Handler func(*Request) error

// UploadHandler receives file parts of a multipart body piece by piece.
type UploadHandler func(*Request, *Upload)

const (
	// ContentLengthUnknown means the request has a body, but its size is not known in
	// advance (chunked encoding, or a body method without Content-Length).
	ContentLengthUnknown int64 = -1
	// ContentLengthNotSet means the request has no body.
	ContentLengthNotSet int64 = -2
)

// BodyKind is the way the body is going to be processed, derived from Content-Type.
type BodyKind uint8

const (
	BodyNone BodyKind = iota
	BodyForm
	BodyMultipart
	BodyOpaque
)

// Request represents an HTTP request. There's exactly one instance per connection, reset
// before every parse.
type Request struct {
	// Method is an enum representing the request method.
	Method method.Method
	// RawPath is the path exactly as received, without the query.
	RawPath string
	// Path is the percent-decoded path, guaranteed to be free of control characters.
	Path string
	// URI is the full original request-target.
	URI string
	// Query is the raw query string, without the leading question mark.
	Query string
	// Args holds query arguments followed by form arguments, in order of appearance.
	// Duplicates are kept.
	Args Args
	// Headers holds subscribed headers only, in arrival order. Lookup is case-insensitive.
	Headers Headers
	// Host is the value of the Host header, which is retained regardless of subscription.
	Host string
	// ContentLength is either the declared body length or one of ContentLengthUnknown and
	// ContentLengthNotSet.
	ContentLength int64
	ContentType   string
	Body          BodyKind
	// Boundary is set for multipart bodies only.
	Boundary string
	Chunked  bool
	Protocol proto.Protocol
	// Upload is the state of the file part currently being received.
	Upload *Upload
	Remote net.Addr

	client   transport.Client
	response *Response
	postdata *Postdata
}

func NewRequest(client transport.Client, response *Response, args, headers *kv.Storage) *Request {
	request := &Request{
		Args:          args,
		Headers:       headers,
		ContentLength: ContentLengthNotSet,
		Protocol:      proto.HTTP11,
		Upload:        new(Upload),
		Remote:        client.Remote(),
		client:        client,
		response:      response,
		postdata:      new(Postdata),
	}
	response.bind(request)

	return request
}

// Arg returns the first argument with the name, or an empty string.
func (r *Request) Arg(name string) string {
	return r.Args.Value(name)
}

func (r *Request) HasArg(name string) bool {
	return r.Args.Has(name)
}

// ArgAt returns the value of the i-th argument. Out of range index results in an empty string.
func (r *Request) ArgAt(i int) string {
	return r.Args.At(i).Value
}

func (r *Request) ArgName(i int) string {
	return r.Args.At(i).Key
}

func (r *Request) ArgsCount() int {
	return r.Args.Len()
}

// Header returns the value of a subscribed header, or an empty string.
func (r *Request) Header(name string) string {
	return r.Headers.Value(name)
}

// HasHeader reports whether the header is present and non-empty.
func (r *Request) HasHeader(name string) bool {
	return len(r.Headers.Value(name)) > 0
}

func (r *Request) HeaderAt(i int) string {
	return r.Headers.At(i).Value
}

func (r *Request) HeaderName(i int) string {
	return r.Headers.At(i).Key
}

func (r *Request) HeadersCount() int {
	return r.Headers.Len()
}

func (r *Request) HostHeader() string {
	return r.Host
}

// Client returns the raw connection.
func (r *Request) Client() transport.Client {
	return r.client
}

// PostLength returns the body length, if known.
func (r *Request) PostLength() int64 {
	return r.ContentLength
}

// ReadPostdata reads the opaque body. Returns io.EOF when there's nothing left.
func (r *Request) ReadPostdata(buf []byte) (int, error) {
	return r.postdata.Read(buf)
}

// Postdata returns the body reader.
func (r *Request) Postdata() *Postdata {
	return r.postdata
}

// Respond returns the response writer of the connection.
func (r *Request) Respond() *Response {
	return r.response
}

// Reset clears all the per-request state.
func (r *Request) Reset() {
	r.Method = method.Unknown
	r.RawPath = ""
	r.Path = ""
	r.URI = ""
	r.Query = ""
	r.Args.Clear()
	r.Headers.Clear()
	r.Host = ""
	r.ContentLength = ContentLengthNotSet
	r.ContentType = ""
	r.Body = BodyNone
	r.Boundary = ""
	r.Chunked = false
	r.Protocol = proto.HTTP11
	r.Upload.reset()
	r.postdata.Reset(nil)
	r.response.Reset()
}
