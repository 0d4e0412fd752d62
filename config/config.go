package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rrwifi/webserver/http/mime"
	"gopkg.in/yaml.v2"
)

type (
	HeadersNumber struct {
		Default int `yaml:"default"`
		Maximal int `yaml:"maximal"`
	}

	HeadersSpace struct {
		Default int `yaml:"default"`
		Maximal int `yaml:"maximal"`
	}

	BodyForm struct {
		// MaxSize limits a whole application/x-www-form-urlencoded body.
		MaxSize int `yaml:"maxSize"`
		// FieldMaxSize limits a single non-file multipart part value.
		FieldMaxSize int `yaml:"fieldMaxSize"`
		// PartHeaderMaxSize limits a single header line of a multipart part.
		PartHeaderMaxSize int `yaml:"partHeaderMaxSize"`
		// EntriesPrealloc is the number of preallocated seats for request arguments.
		EntriesPrealloc int `yaml:"entriesPrealloc"`
	}

	NETWriteBufferSize struct {
		Default int `yaml:"default"`
		Maximal int `yaml:"maximal"`
	}

	URIRequestLineSize struct {
		Default int `yaml:"default"`
		Maximal int `yaml:"maximal"`
	}
)

type (
	URI struct {
		// RequestLineSize is a shared buffer storing the decoded path and query arguments. Also
		// used to store method and protocol when they are split among reads.
		RequestLineSize URIRequestLineSize `yaml:"requestLineSize"`
	}

	Headers struct {
		// Number is responsible for the collected headers storage size.
		// Default value is an initial size of the storage.
		// Maximal value is maximum number of headers allowed in a request, whether they're
		// collected or not
		Number HeadersNumber `yaml:"number"`
		// Space limits the amount of memory occupied by request headers.
		Space HeadersSpace `yaml:"space"`
		// Collect is the initial list of header names retained in Request.Headers. Every other
		// header is discarded right after being parsed.
		Collect []string `yaml:"collect" test:"nullable"`
		// Default headers are included into every response implicitly, unless explicitly
		// overridden by a handler.
		Default map[string]string `yaml:"default"`
	}

	Body struct {
		// MaxSize describes the maximal size of a body, that can be processed.
		MaxSize int64 `yaml:"maxSize"`
		// Form is either application/x-www-form-urlencoded or multipart/form-data.
		Form BodyForm `yaml:"form"`
		// UploadBufferSize is the size of the Upload chunk buffer. Values above http.UploadBufLen
	// are clamped to it.
		UploadBufferSize int `yaml:"uploadBufferSize"`
	}

	NET struct {
		// ReadBufferSize is a size of buffer in bytes which will be used to read from
		// socket
		ReadBufferSize int `yaml:"readBufferSize"`
		// HeadTimeout is the maximal time to wait for the request head to arrive. If nothing
		// came in, the connection is closed without a response.
		HeadTimeout time.Duration `yaml:"headTimeout"`
		// BodyTimeout bounds every single read of the request body.
		BodyTimeout time.Duration `yaml:"bodyTimeout"`
		// CloseTimeout is how long to wait for the client to close the connection after
		// the response is complete. The connection is closed forcefully afterwards.
		CloseTimeout time.Duration `yaml:"closeTimeout"`
		// AcceptInterruptPeriod controls how often will the Accept() call be interrupted
		// in order to check whether it's time to stop.
		AcceptInterruptPeriod time.Duration `yaml:"acceptInterruptPeriod"`
		// WriteBufferSize stages the response before it is transmitted. The buffer starts with
	// the default size and may grow up to the maximal one to keep the response head in
	// a single write.
		WriteBufferSize NETWriteBufferSize `yaml:"writeBufferSize"`
		// DownloadUnitSize is the size of a single piece when streaming files.
		DownloadUnitSize int `yaml:"downloadUnitSize"`
	}

	Static struct {
		// Index is appended to static paths ending with a slash.
		Index string `yaml:"index"`
		// ResolveCacheTTL defines how long a resolved static file path is remembered.
		// Negative value disables the cache.
		ResolveCacheTTL time.Duration `yaml:"resolveCacheTTL"`
		// NotFoundType is the Content-Type of the default not-found response.
		NotFoundType mime.MIME `yaml:"notFoundType"`
	}
)

// Config holds settings used across various parts of the server, mainly restrictions,
// limitations, timeouts and pre-allocations.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	URI     URI     `yaml:"uri"`
	Headers Headers `yaml:"headers"`
	Body    Body    `yaml:"body"`
	NET     NET     `yaml:"net"`
	Static  Static  `yaml:"static"`
}

// Default returns default config. Those are tuned for a device with a few dozens of
// kilobytes of free memory.
func Default() *Config {
	return &Config{
		URI: URI{
			RequestLineSize: URIRequestLineSize{
				Default: 256,
				Maximal: 2 * 1024,
			},
		},
		Headers: Headers{
			Number: HeadersNumber{
				Default: 4,
				Maximal: 32,
			},
			Space: HeadersSpace{
				Default: 256,
				Maximal: 2 * 1024,
			},
			Default: map[string]string{
				"Cache-Control": "no-cache, no-store, must-revalidate",
				"Pragma":        "no-cache",
				"Expires":       "0",
			},
		},
		Body: Body{
			MaxSize: 64 * 1024 * 1024,
			Form: BodyForm{
				MaxSize:           4 * 1024,
				FieldMaxSize:      1024,
				PartHeaderMaxSize: 512,
				EntriesPrealloc:   4,
			},
			UploadBufferSize: 2048,
		},
		NET: NET{
			ReadBufferSize:        1460,
			HeadTimeout:           1000 * time.Millisecond,
			BodyTimeout:           2000 * time.Millisecond,
			CloseTimeout:          2000 * time.Millisecond,
			AcceptInterruptPeriod: 5 * time.Second,
			WriteBufferSize: NETWriteBufferSize{
				Default: 1460,
				Maximal: 4 * 1024,
			},
			DownloadUnitSize: 1460,
		},
		Static: Static{
			Index:           "index.htm",
			ResolveCacheTTL: 10 * time.Second,
			NotFoundType:    mime.Plain,
		},
	}
}

// Load reads a YAML document over the defaults. Fields missing in the document keep
// their default values.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var ErrInvalid = errors.New("invalid config")

// Validate reports sizes and timeouts the server can't operate with.
func (c *Config) Validate() error {
	positive := []struct {
		name  string
		value int64
	}{
		{"uri.requestLineSize.default", int64(c.URI.RequestLineSize.Default)},
		{"headers.number.maximal", int64(c.Headers.Number.Maximal)},
		{"headers.space.default", int64(c.Headers.Space.Default)},
		{"body.maxSize", c.Body.MaxSize},
		{"body.form.maxSize", int64(c.Body.Form.MaxSize)},
		{"body.form.fieldMaxSize", int64(c.Body.Form.FieldMaxSize)},
		{"body.form.partHeaderMaxSize", int64(c.Body.Form.PartHeaderMaxSize)},
		{"body.uploadBufferSize", int64(c.Body.UploadBufferSize)},
		{"net.readBufferSize", int64(c.NET.ReadBufferSize)},
		{"net.headTimeout", int64(c.NET.HeadTimeout)},
		{"net.bodyTimeout", int64(c.NET.BodyTimeout)},
		{"net.closeTimeout", int64(c.NET.CloseTimeout)},
		{"net.acceptInterruptPeriod", int64(c.NET.AcceptInterruptPeriod)},
		{"net.writeBufferSize.default", int64(c.NET.WriteBufferSize.Default)},
		{"net.downloadUnitSize", int64(c.NET.DownloadUnitSize)},
	}

	for _, field := range positive {
		if field.value <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalid, field.name)
		}
	}

	ranges := []struct {
		name             string
		initial, maximal int
	}{
		{"uri.requestLineSize", c.URI.RequestLineSize.Default, c.URI.RequestLineSize.Maximal},
		{"headers.number", c.Headers.Number.Default, c.Headers.Number.Maximal},
		{"headers.space", c.Headers.Space.Default, c.Headers.Space.Maximal},
		{"net.writeBufferSize", c.NET.WriteBufferSize.Default, c.NET.WriteBufferSize.Maximal},
	}

	for _, r := range ranges {
		if r.initial < 0 || r.initial > r.maximal {
			return fmt.Errorf("%w: %s.default must be within [0, %s.maximal]", ErrInvalid, r.name, r.name)
		}
	}

	if c.Body.Form.EntriesPrealloc < 0 {
		return fmt.Errorf("%w: body.form.entriesPrealloc must not be negative", ErrInvalid)
	}

	return nil
}
