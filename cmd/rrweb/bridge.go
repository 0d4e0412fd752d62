package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	json "github.com/json-iterator/go"
	"github.com/rrwifi/webserver/http"
	"github.com/rrwifi/webserver/http/mime"
	"github.com/rrwifi/webserver/http/status"
)

// Printer executes requests of the web UI. A request is the full request URI on a single
// line, optionally followed by the body. A reply is its length on a single line, followed
// by the JSON document itself.
type Printer interface {
	Exchange(uri string, body io.Reader) (reply io.Reader, length int64, err error)
	Close() error
}

func openPrinter(device string) (Printer, error) {
	if len(device) == 0 {
		return loopback{}, nil
	}

	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	return &serial{port: f, reader: bufio.NewReader(f)}, nil
}

type serial struct {
	port   io.ReadWriteCloser
	reader *bufio.Reader
}

func (s *serial) Exchange(uri string, body io.Reader) (io.Reader, int64, error) {
	if _, err := io.WriteString(s.port, uri+"\n"); err != nil {
		return nil, 0, err
	}

	if body != nil {
		if _, err := io.Copy(s.port, body); err != nil {
			return nil, 0, err
		}
	}

	line, err := s.reader.ReadString('\n')
	if err != nil {
		return nil, 0, err
	}

	length, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil || length < 0 {
		return nil, 0, fmt.Errorf("bad reply length %q", line)
	}

	return io.LimitReader(s.reader, length), length, nil
}

func (s *serial) Close() error {
	return s.port.Close()
}

// loopback answers every request by itself. Used when there's no printer attached.
type loopback struct{}

func (loopback) Exchange(uri string, body io.Reader) (io.Reader, int64, error) {
	var received int64
	if body != nil {
		n, err := io.Copy(io.Discard, body)
		if err != nil {
			return nil, 0, err
		}

		received = n
	}

	reply, err := json.ConfigCompatibleWithStandardLibrary.Marshal(map[string]any{
		"err":      0,
		"request":  uri,
		"received": received,
	})
	if err != nil {
		return nil, 0, err
	}

	return strings.NewReader(string(reply)), int64(len(reply)), nil
}

func (loopback) Close() error {
	return nil
}

// bridge forwards /rr_ requests to the printer and streams the replies back.
type bridge struct {
	printer Printer
	unit    int
}

func newBridge(printer Printer, unit int) *bridge {
	return &bridge{printer: printer, unit: unit}
}

func (b *bridge) Handle(request *http.Request) error {
	uri := request.URI
	var body io.Reader

	if length := request.PostLength(); length > 0 {
		separator := "?"
		if strings.IndexByte(uri, '?') != -1 {
			separator = "&"
		}

		uri += separator + "length=" + strconv.FormatInt(length, 10)
		body = request.Postdata()
	}

	reply, length, err := b.printer.Exchange(uri, body)
	if err != nil {
		return status.NewError(status.ServiceUnavailable, "printer is not responding")
	}

	response := request.Respond()
	buf := make([]byte, b.unit)
	n, err := io.ReadFull(reply, buf[:min(int64(len(buf)), length)])
	if err != nil {
		return status.NewError(status.ServiceUnavailable, "printer is not responding")
	}

	left := length - int64(n)
	if err = response.SendBytes(status.OK, length, mime.JSON, buf[:n], left == 0); err != nil {
		return err
	}

	for left > 0 {
		n, err = reply.Read(buf[:min(int64(len(buf)), left)])
		left -= int64(n)
		if n > 0 {
			if werr := response.SendContent(buf[:n], left == 0); werr != nil {
				return werr
			}
		}

		if err != nil && left > 0 {
			// the head is gone already, so the client just sees a truncated reply
			return fmt.Errorf("printer reply: %w", err)
		}
	}

	return nil
}
