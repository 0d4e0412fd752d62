package http1

import (
	"errors"
	"io"
	"time"

	"github.com/indigo-web/chunkedbody"
	"github.com/rrwifi/webserver/config"
	"github.com/rrwifi/webserver/http"
	"github.com/rrwifi/webserver/http/status"
	"github.com/rrwifi/webserver/internal/buffer"
	"github.com/rrwifi/webserver/kv"
	"github.com/rrwifi/webserver/router"
	"github.com/rrwifi/webserver/transport"
)

// Suit serves a single connection: exactly one request and one response, after which
// the connection is closed.
type Suit struct {
	cfg       *config.Config
	router    router.Router
	client    transport.Client
	request   *http.Request
	parser    *Parser
	body      *Body
	form      *formDecoder
	multipart *multipartDecoder
}

func New(
	cfg *config.Config,
	r router.Router,
	client transport.Client,
	request *http.Request,
	parser *Parser,
	body *Body,
) *Suit {
	return &Suit{
		cfg:       cfg,
		router:    r,
		client:    client,
		request:   request,
		parser:    parser,
		body:      body,
		form:      newFormDecoder(cfg.Body.Form.MaxSize),
		multipart: newMultipartDecoder(cfg),
	}
}

// Initialize is the same constructor as just New, but allocates everything by itself.
func Initialize(cfg *config.Config, r router.Router, client transport.Client) *Suit {
	response := http.NewResponse(cfg, client)
	request := http.NewRequest(
		client, response,
		kv.NewPrealloc(cfg.Body.Form.EntriesPrealloc),
		kv.NewPrealloc(cfg.Headers.Number.Default).Fold(),
	)
	requestLine := buffer.New(cfg.URI.RequestLineSize.Default, cfg.URI.RequestLineSize.Maximal)
	headers := buffer.New(cfg.Headers.Space.Default, cfg.Headers.Space.Maximal)
	body := NewBody(client, chunkedbody.NewParser(chunkedbody.DefaultSettings()), cfg.Body)

	return New(cfg, r, client, request, NewParser(cfg, request, requestLine, headers), body)
}

// OnUpload registers an observer called on every upload event before the route's upload
// handler.
func (s *Suit) OnUpload(observe func(*http.Upload)) {
	s.multipart.observe = observe
}

// Request returns the request of the connection. Its fields stay valid after Serve returns.
func (s *Suit) Request() *http.Request {
	return s.request
}

// Serve processes the request and closes the connection. The returned error is
// informational: by the time it's returned, everything possible was already sent.
// status.ErrNotFound is returned when the request ended up in the not-found handler.
func (s *Suit) Serve() error {
	if err := s.readHead(); err != nil {
		switch status.KindOf(err) {
		case status.TimeoutError, status.TransportDisconnect:
			_ = s.client.Close()
		default:
			s.fail(err)
			s.closeWait()
		}

		return err
	}

	err := s.handle()
	s.closeWait()

	return err
}

func (s *Suit) readHead() error {
	s.request.Reset()
	s.parser.Reset()
	s.client.SetTimeout(s.cfg.NET.HeadTimeout)

	for {
		data, err := s.client.Read()
		if err != nil {
			return err
		}

		done, extra, err := s.parser.Parse(data)
		if err != nil {
			return err
		}

		if done {
			s.client.Unread(extra)
			return nil
		}
	}
}

func (s *Suit) handle() error {
	request := s.request
	response := request.Respond()

	s.client.SetTimeout(s.cfg.NET.BodyTimeout)
	if s.body.Init(request) {
		request.Postdata().Reset(s.body)
	}

	handler, onUpload := s.router.Match(request)

	var err error
	switch request.Body {
	case http.BodyForm:
		err = s.form.Decode(request, s.body)
	case http.BodyMultipart:
		err = s.multipart.Decode(request, s.body, onUpload)
	}

	if err != nil {
		// a partially received body means the request is not dispatched at all
		if s.client.Connected() && status.KindOf(err) != status.TimeoutError {
			s.fail(err)
		}

		return err
	}

	err = s.dispatch(handler)
	if ferr := response.Flush(); ferr != nil && err == nil {
		err = ferr
	}

	if !s.body.UntilEOF() {
		if derr := s.drain(); derr != nil && err == nil {
			err = derr
		}
	}

	return err
}

func (s *Suit) dispatch(handler http.Handler) error {
	request := s.request
	response := request.Respond()

	if handler != nil {
		err := handler(request)
		switch {
		case err == nil:
			return nil
		case response.Started():
			return err
		case !errors.Is(err, status.ErrNotFound):
			_ = response.Error(err)
			return err
		}
	}

	if err := s.router.NotFound(request); err != nil {
		if !response.Started() {
			_ = response.Error(err)
		}

		return err
	}

	return status.ErrNotFound
}

// drain reads out whatever is left of the body, so the client doesn't get a reset while
// it still sends.
func (s *Suit) drain() error {
	for {
		_, err := s.body.Retrieve()
		switch {
		case err == nil:
		case err == io.EOF, errors.Is(err, status.ErrDisconnect):
			return nil
		default:
			return err
		}
	}
}

// fail sends the best-effort error response.
func (s *Suit) fail(err error) {
	response := s.request.Respond()
	if response.Started() {
		return
	}

	if response.Error(err) == nil {
		_ = response.Flush()
	}
}

// closeWait waits for the client to close the connection, bounded by NET.CloseTimeout
// in total, and closes it afterwards anyway.
func (s *Suit) closeWait() {
	deadline := time.Now().Add(s.cfg.NET.CloseTimeout)

	for s.client.Connected() {
		left := time.Until(deadline)
		if left <= 0 {
			break
		}

		s.client.SetTimeout(left)
		if _, err := s.client.Read(); err != nil {
			break
		}
	}

	_ = s.client.Close()
}
