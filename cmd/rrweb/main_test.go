package main

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/dchest/uniuri"
	"github.com/rrwifi/webserver"
	"github.com/rrwifi/webserver/config"
	"github.com/rrwifi/webserver/fsys"
	"github.com/rrwifi/webserver/http"
	"github.com/rrwifi/webserver/kv"
	"github.com/rrwifi/webserver/transport/dummy"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakePrinter struct {
	uri   string
	body  []byte
	reply string
}

func (f *fakePrinter) Exchange(uri string, body io.Reader) (io.Reader, int64, error) {
	f.uri = uri
	if body != nil {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, 0, err
		}

		f.body = data
	}

	return strings.NewReader(f.reply), int64(len(f.reply)), nil
}

func (*fakePrinter) Close() error {
	return nil
}

func newRequest(client *dummy.Client) *http.Request {
	return http.NewRequest(client, http.NewResponse(config.Default(), client), kv.New(), kv.New().Fold())
}

func TestBridge(t *testing.T) {
	t.Run("fragmented reply", func(t *testing.T) {
		reply := `{"status":"I","coords":` + strings.Repeat(" ", 3000) + `}`
		printer := &fakePrinter{reply: reply}
		client := dummy.NewMockClient()
		request := newRequest(client)
		request.URI = "/rr_status?type=1"

		require.NoError(t, newBridge(printer, 1460).Handle(request))
		require.Equal(t, "/rr_status?type=1", printer.uri)
		written := client.Written()
		require.Contains(t, written, "Content-Length: "+strconv.Itoa(len(reply))+"\r\n")
		require.True(t, strings.HasSuffix(written, "\r\n\r\n"+reply))
	})

	t.Run("body is forwarded", func(t *testing.T) {
		printer := &fakePrinter{reply: `{"err":0}`}
		client := dummy.NewMockClient([]byte("G28\nG1 X10\n"))
		request := newRequest(client)
		request.URI = "/rr_upload?name=0:/gcodes/a.g"
		request.ContentLength = 11
		request.Postdata().Reset(sliceBody("G28\nG1 X10\n"))

		require.NoError(t, newBridge(printer, 1460).Handle(request))
		require.Equal(t, "/rr_upload?name=0:/gcodes/a.g&length=11", printer.uri)
		require.Equal(t, "G28\nG1 X10\n", string(printer.body))
	})

	t.Run("loopback", func(t *testing.T) {
		reply, length, err := loopback{}.Exchange("/rr_connect", nil)
		require.NoError(t, err)
		data, err := io.ReadAll(reply)
		require.NoError(t, err)
		require.Equal(t, int64(len(data)), length)
		require.Contains(t, string(data), `"request":"/rr_connect"`)
	})
}

type sliceBody string

func (s sliceBody) Retrieve() ([]byte, error) {
	return []byte(s), io.EOF
}

func TestSpool(t *testing.T) {
	dir := t.TempDir()
	s, err := newSpool(dir, zerolog.Nop())
	require.NoError(t, err)

	upload := new(http.Upload)
	emit := func(status http.UploadStatus) {
		upload.Status = status
		s.Handle(nil, upload)
	}

	payload := uniuri.NewLen(3000)
	upload.Start("file", "../../etc/part.g", "text/plain")
	emit(http.UploadStart)
	for _, piece := range []string{payload[:2048], payload[2048:]} {
		upload.CurrentSize = copy(upload.Buf[:], piece)
		emit(http.UploadWrite)
	}
	emit(http.UploadEnd)

	data, err := os.ReadFile(filepath.Join(dir, "part.g"))
	require.NoError(t, err)
	require.Equal(t, payload, string(data))

	upload.Start("file", "broken.g", "text/plain")
	emit(http.UploadStart)
	upload.CurrentSize = copy(upload.Buf[:], "G28")
	emit(http.UploadWrite)
	emit(http.UploadAborted)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "part.g", entries[0].Name())
}

func TestSetup(t *testing.T) {
	ui := fstest.MapFS{
		"index.htm": {Data: []byte("<html></html>")},
	}
	spool, err := newSpool(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	app := webserver.New(":0").Logger(zerolog.Nop())
	setup(app, newBridge(&fakePrinter{reply: "{}"}, 1460), spool, fsys.New(ui))

	for _, tc := range []struct {
		raw, want string
	}{
		{"GET / HTTP/1.1\r\n\r\n", "<html></html>"},
		{"GET /rr_connect HTTP/1.1\r\n\r\n", "\r\n\r\n{}"},
		{"GET /missing HTTP/1.1\r\n\r\n", `{"err":"404: /missing NOT FOUND"}`},
		{"GET /metrics HTTP/1.1\r\n\r\n", `rrweb_requests_total{method="GET"} 3`},
	} {
		client := dummy.NewMockClient([]byte(tc.raw))
		app.ServeClient(client)
		require.Contains(t, client.Written(), tc.want, tc.raw)
	}
}
