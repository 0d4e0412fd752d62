package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/rrwifi/webserver"
	"github.com/rrwifi/webserver/config"
	"github.com/rrwifi/webserver/fsys"
	"github.com/rrwifi/webserver/http"
	"github.com/rrwifi/webserver/http/method"
	"github.com/rrwifi/webserver/http/status"
	"github.com/rs/zerolog"
)

var (
	addr       = flag.String("addr", ":80", "address to listen on")
	configPath = flag.String("config", "", "path to a YAML config")
	www        = flag.String("www", "www", "directory the web UI is served from")
	spoolDir   = flag.String("spool", "spool", "directory uploaded files are saved to")
	device     = flag.String("printer", "", "serial device of the printer; empty means a loopback stub")
	debug      = flag.Bool("debug", false, "log every request")
)

func main() {
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *configPath).Msg("cannot load config")
	}

	printer, err := openPrinter(*device)
	if err != nil {
		logger.Fatal().Err(err).Str("device", *device).Msg("cannot open printer")
	}
	defer printer.Close()

	spool, err := newSpool(*spoolDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", *spoolDir).Msg("cannot prepare spool")
	}

	app := webserver.New(*addr).Tune(cfg).Logger(logger)
	setup(app, newBridge(printer, cfg.NET.DownloadUnitSize), spool, fsys.Dir(*www))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err = app.Serve(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func setup(app *webserver.App, bridge *bridge, spool *spool, ui http.FS) {
	app.
		CollectHeaders("Accept-Encoding").
		OnPrefix("/rr_", method.ANY, bridge.Handle).
		On("/metrics", method.GET, func(request *http.Request) error {
			var buf bytes.Buffer
			if err := app.Metrics().WriteText(&buf); err != nil {
				return err
			}

			return request.Respond().SendBytes(
				status.OK, int64(buf.Len()), "text/plain; version=0.0.4", buf.Bytes(), true,
			)
		}).
		Static("/", ui, "/", "max-age=3600").
		OnFileUpload(spool.Handle).
		OnNotFound(notFound)
}

func notFound(request *http.Request) error {
	return request.Respond().JSON(status.NotFound, map[string]string{
		"err": "404: " + request.URI + " NOT FOUND",
	})
}

func loadConfig(path string) (*config.Config, error) {
	if len(path) == 0 {
		return config.Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return config.Load(f)
}
