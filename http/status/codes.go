package status

type (
	Code   uint16
	Status string
)

// Codes known to the device firmware. Anything else is still accepted by the
// response writer, but goes out with an empty reason phrase.
const (
	Continue           Code = 100
	SwitchingProtocols Code = 101

	OK                   Code = 200
	Created              Code = 201
	Accepted             Code = 202
	NonAuthoritativeInfo Code = 203
	NoContent            Code = 204
	ResetContent         Code = 205
	PartialContent       Code = 206

	MultipleChoices   Code = 300
	MovedPermanently  Code = 301
	Found             Code = 302
	SeeOther          Code = 303
	NotModified       Code = 304
	UseProxy          Code = 305
	TemporaryRedirect Code = 307

	BadRequest                   Code = 400
	Unauthorized                 Code = 401
	PaymentRequired              Code = 402
	Forbidden                    Code = 403
	NotFound                     Code = 404
	MethodNotAllowed             Code = 405
	NotAcceptable                Code = 406
	ProxyAuthRequired            Code = 407
	RequestTimeout               Code = 408
	Conflict                     Code = 409
	Gone                         Code = 410
	LengthRequired               Code = 411
	PreconditionFailed           Code = 412
	RequestEntityTooLarge        Code = 413
	RequestURITooLong            Code = 414
	UnsupportedMediaType         Code = 415
	RequestedRangeNotSatisfiable Code = 416
	ExpectationFailed            Code = 417
	RequestHeaderFieldsTooLarge  Code = 431

	InternalServerError     Code = 500
	NotImplemented          Code = 501
	BadGateway              Code = 502
	ServiceUnavailable      Code = 503
	GatewayTimeout          Code = 504
	HTTPVersionNotSupported Code = 505

	// CloseConnection isn't a real status code. It marks errors after which nothing can be
	// written back, so the connection is simply dropped.
	CloseConnection Code = 1
)

var texts = map[Code]Status{
	Continue:                     "Continue",
	SwitchingProtocols:           "Switching Protocols",
	OK:                           "OK",
	Created:                      "Created",
	Accepted:                     "Accepted",
	NonAuthoritativeInfo:         "Non-Authoritative Information",
	NoContent:                    "No Content",
	ResetContent:                 "Reset Content",
	PartialContent:               "Partial Content",
	MultipleChoices:              "Multiple Choices",
	MovedPermanently:             "Moved Permanently",
	Found:                        "Found",
	SeeOther:                     "See Other",
	NotModified:                  "Not Modified",
	UseProxy:                     "Use Proxy",
	TemporaryRedirect:            "Temporary Redirect",
	BadRequest:                   "Bad Request",
	Unauthorized:                 "Unauthorized",
	PaymentRequired:              "Payment Required",
	Forbidden:                    "Forbidden",
	NotFound:                     "Not Found",
	MethodNotAllowed:             "Method Not Allowed",
	NotAcceptable:                "Not Acceptable",
	ProxyAuthRequired:            "Proxy Authentication Required",
	RequestTimeout:               "Request Time-out",
	Conflict:                     "Conflict",
	Gone:                         "Gone",
	LengthRequired:               "Length Required",
	PreconditionFailed:           "Precondition Failed",
	RequestEntityTooLarge:        "Request Entity Too Large",
	RequestURITooLong:            "Request-URI Too Large",
	UnsupportedMediaType:         "Unsupported Media Type",
	RequestedRangeNotSatisfiable: "Requested range not satisfiable",
	ExpectationFailed:            "Expectation Failed",
	RequestHeaderFieldsTooLarge:  "Request Header Fields Too Large",
	InternalServerError:          "Internal Server Error",
	NotImplemented:               "Not Implemented",
	BadGateway:                   "Bad Gateway",
	ServiceUnavailable:           "Service Unavailable",
	GatewayTimeout:               "Gateway Time-out",
	HTTPVersionNotSupported:      "HTTP Version not supported",
}

// Text returns a reason phrase for the code, or an empty string if the code is unknown.
func Text(code Code) Status {
	return texts[code]
}
