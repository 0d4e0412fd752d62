package webserver

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/rrwifi/webserver/config"
	"github.com/rrwifi/webserver/http"
	"github.com/rrwifi/webserver/http/method"
	"github.com/rrwifi/webserver/http/status"
	"github.com/rrwifi/webserver/internal/protocol/http1"
	"github.com/rrwifi/webserver/metrics"
	"github.com/rrwifi/webserver/router/inbuilt"
	"github.com/rrwifi/webserver/transport"
	"github.com/rs/zerolog"
)

// App serves a single client at a time: the connection is accepted, exactly one request
// is processed and the connection is closed before the next one is accepted.
type App struct {
	addr    string
	cfg     *config.Config
	router  *inbuilt.Router
	logger  zerolog.Logger
	metrics *metrics.Collector
	tcp     *transport.TCP
	hooks   hooks
}

// New returns a new App instance listening on addr, e.g. ":80".
func New(addr string) *App {
	cfg := config.Default()

	return &App{
		addr:    addr,
		cfg:     cfg,
		router:  inbuilt.New().Configure(cfg.Static),
		logger:  zerolog.New(os.Stderr).With().Timestamp().Logger(),
		metrics: metrics.New(),
		tcp:     transport.NewTCP(),
	}
}

// Tune replaces the default config. Headers subscribed via CollectHeaders before are kept.
func (a *App) Tune(cfg *config.Config) *App {
	cfg.Headers.Collect = append(cfg.Headers.Collect, a.cfg.Headers.Collect...)
	a.cfg = cfg
	a.router.Configure(cfg.Static)
	return a
}

// Logger replaces the default logger.
func (a *App) Logger(logger zerolog.Logger) *App {
	a.logger = logger
	return a
}

// Metrics returns the collector the app reports to.
func (a *App) Metrics() *metrics.Collector {
	return a.metrics
}

// NotifyOnStart calls the callback as soon as the listener is bound.
func (a *App) NotifyOnStart(cb func()) *App {
	a.hooks.OnStart = cb
	return a
}

// NotifyOnStop calls the callback after the listener is closed.
func (a *App) NotifyOnStop(cb func()) *App {
	a.hooks.OnStop = cb
	return a
}

// On registers a handler for the exact path. If upload isn't passed, the global one
// set by OnFileUpload is used.
func (a *App) On(path string, m method.Method, handler http.Handler, upload ...http.UploadHandler) *App {
	a.router.On(path, m, handler, upload...)
	return a
}

// OnPrefix registers a handler for every path starting with prefix. Exact routes always
// take precedence.
func (a *App) OnPrefix(prefix string, m method.Method, handler http.Handler, upload ...http.UploadHandler) *App {
	a.router.OnPrefix(prefix, m, handler, upload...)
	return a
}

// Static serves files of fs under root by GET requests starting with prefix.
func (a *App) Static(prefix string, fs http.FS, root, cacheControl string) *App {
	a.router.Static(prefix, fs, root, cacheControl)
	return a
}

func (a *App) OnNotFound(handler http.Handler) *App {
	a.router.OnNotFound(handler)
	return a
}

func (a *App) OnFileUpload(upload http.UploadHandler) *App {
	a.router.OnFileUpload(upload)
	return a
}

// CollectHeaders subscribes to request headers. Only subscribed ones are available
// via Request.Header, everything else is dropped right after being parsed.
func (a *App) CollectHeaders(names ...string) *App {
	a.cfg.Headers.Collect = append(a.cfg.Headers.Collect, names...)
	return a
}

// Addr returns the address the app is bound to. Valid only after the start was notified.
func (a *App) Addr() net.Addr {
	return a.tcp.Addr()
}

// Serve binds the listener and serves clients one by one until the context is done.
func (a *App) Serve(ctx context.Context) error {
	if err := a.tcp.Bind(a.addr); err != nil {
		return err
	}

	a.logger.Info().Str("addr", a.tcp.Addr().String()).Msg("listening")
	callIfNotNil(a.hooks.OnStart)

	stop := context.AfterFunc(ctx, a.tcp.Stop)
	defer stop()

	err := a.tcp.Listen(a.cfg.NET.AcceptInterruptPeriod, a.HandleClient)
	if cerr := a.tcp.Close(); cerr != nil && err == nil {
		err = cerr
	}

	callIfNotNil(a.hooks.OnStop)
	a.logger.Info().Err(err).Msg("stopped")

	return err
}

// HandleClient serves the connection synchronously. The connection is closed afterwards.
func (a *App) HandleClient(conn net.Conn) {
	client := transport.NewClient(conn, a.cfg.NET.HeadTimeout, make([]byte, a.cfg.NET.ReadBufferSize))
	a.ServeClient(client)
}

// ServeClient serves a request of an already established client and closes it.
func (a *App) ServeClient(client transport.Client) {
	start := time.Now()
	suit := http1.Initialize(a.cfg, a.router, client)
	request := suit.Request()
	log := a.logger.With().Stringer("remote", addr{client.Remote()}).Logger()

	suit.OnUpload(func(upload *http.Upload) {
		a.metrics.Upload(upload)

		switch upload.Status {
		case http.UploadStart:
			log.Debug().Str("file", upload.Filename).Str("type", upload.Type).Msg("upload started")
		case http.UploadEnd:
			log.Debug().Str("file", upload.Filename).Int("size", upload.TotalSize).Msg("upload finished")
		case http.UploadAborted:
			log.Warn().Str("file", upload.Filename).Int("size", upload.TotalSize).Msg("upload aborted")
		}
	})

	err := suit.Serve()
	cost := time.Since(start)

	if request.Method != method.Unknown {
		a.metrics.Request(request.Method)
	}
	a.metrics.Response(request.Respond().Code())
	a.metrics.Error(err)
	a.metrics.Cost(cost)

	var event *zerolog.Event
	switch status.KindOf(err) {
	case status.ParseError, status.TimeoutError, status.TransportDisconnect:
		event = log.Warn()
	case status.RouteNotFound:
		event = log.Debug()
	default:
		if err == nil {
			event = log.Debug()
		} else {
			event = log.Error()
		}
	}

	event.
		Err(err).
		Stringer("method", request.Method).
		Str("path", request.Path).
		Uint16("code", uint16(request.Respond().Code())).
		Dur("cost", cost).
		Msg("served")
}

type hooks struct {
	OnStart, OnStop func()
}

func callIfNotNil(f func()) {
	if f != nil {
		f()
	}
}

// addr makes a nil net.Addr printable.
type addr struct {
	net.Addr
}

func (a addr) String() string {
	if a.Addr == nil {
		return "unknown"
	}

	return a.Addr.String()
}
