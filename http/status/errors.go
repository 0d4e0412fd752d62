package status

import "errors"

// Kind classifies an error by the way the server reacts to it.
type Kind uint8

const (
	// HandlerError is anything not recognized: it comes from a route callback, and the
	// callback is fully responsible for the response.
	HandlerError Kind = iota
	// ParseError means the request is malformed. The connection is closed after a
	// best-effort error response.
	ParseError
	// TimeoutError means the head or the body didn't arrive in time. The connection is
	// closed silently.
	TimeoutError
	// TransportDisconnect means the client went away.
	TransportDisconnect
	// RouteNotFound means no route matched the request.
	RouteNotFound
)

func (k Kind) String() string {
	switch k {
	case ParseError:
		return "parse"
	case TimeoutError:
		return "timeout"
	case TransportDisconnect:
		return "disconnect"
	case RouteNotFound:
		return "not-found"
	default:
		return "handler"
	}
}

type HTTPError struct {
	Message string
	Code    Code
	Kind    Kind
}

// NewError returns an error for route callbacks. Its code is used for the response when
// the callback didn't write anything.
func NewError(code Code, message string) error {
	return newKindError(HandlerError, code, message)
}

func newParseError(code Code, message string) error {
	return newKindError(ParseError, code, message)
}

func newKindError(kind Kind, code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
		Kind:    kind,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

// KindOf returns the kind of the error, looking through wrapped errors.
func KindOf(err error) Kind {
	var herr HTTPError
	if errors.As(err, &herr) {
		return herr.Kind
	}

	return HandlerError
}

// CodeOf returns the status code carried by the error, or InternalServerError if there's none.
func CodeOf(err error) Code {
	var herr HTTPError
	if errors.As(err, &herr) && herr.Code >= 100 {
		return herr.Code
	}

	return InternalServerError
}

var (
	ErrTimeout         = newKindError(TimeoutError, RequestTimeout, "timed out waiting for the client")
	ErrDisconnect      = newKindError(TransportDisconnect, CloseConnection, "client disconnected")
	ErrCloseConnection = newKindError(TransportDisconnect, CloseConnection, "actively closing the connection")
	ErrNotFound        = newKindError(RouteNotFound, NotFound, "not found")

	ErrBadRequest              = newParseError(BadRequest, "bad request")
	ErrTooLongRequestLine      = newParseError(BadRequest, "request line is too long")
	ErrURLDecoding             = newParseError(BadRequest, "invalid urlencoded sequence")
	ErrBadParams               = newParseError(BadRequest, "bad URI params")
	ErrBadEncoding             = newParseError(BadRequest, "bad request encoding")
	ErrBadChunk                = newParseError(BadRequest, "malformed chunk-encoded data")
	ErrBadBoundary             = newParseError(BadRequest, "bad multipart boundary")
	ErrBadMultipart            = newParseError(BadRequest, "malformed multipart body")
	ErrFieldTooLarge           = newParseError(RequestEntityTooLarge, "multipart field is too large")
	ErrBodyTooLarge            = newParseError(RequestEntityTooLarge, "request body is too large")
	ErrHeaderFieldsTooLarge    = newParseError(RequestHeaderFieldsTooLarge, "too large headers section")
	ErrTooManyHeaders          = newParseError(RequestHeaderFieldsTooLarge, "too many headers")
	ErrURITooLong              = newParseError(RequestURITooLong, "request URI too long")
	ErrMethodNotImplemented    = newParseError(NotImplemented, "request method is not supported")
	ErrHTTPVersionNotSupported = newParseError(HTTPVersionNotSupported, "HTTP version not supported")
	ErrInternalServerError     = NewError(InternalServerError, "internal server error")

	// ErrHeadersSent is returned by the response writer when a header is added after
	// the head was already transmitted.
	ErrHeadersSent = newKindError(HandlerError, InternalServerError, "headers are already sent")
	// ErrResponseFinished is returned when writing after the last body piece.
	ErrResponseFinished = newKindError(HandlerError, InternalServerError, "response is already finished")
)
