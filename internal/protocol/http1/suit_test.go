package http1

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dchest/uniuri"
	"github.com/rrwifi/webserver/config"
	"github.com/rrwifi/webserver/http"
	"github.com/rrwifi/webserver/http/method"
	"github.com/rrwifi/webserver/http/mime"
	"github.com/rrwifi/webserver/http/status"
	"github.com/rrwifi/webserver/router/inbuilt"
	"github.com/rrwifi/webserver/router/simple"
	"github.com/rrwifi/webserver/transport/dummy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(cfg *config.Config, r *inbuilt.Router, n int, raw string) (*Suit, *dummy.Client, error) {
	client := dummy.NewMockClient(splitIntoParts([]byte(raw), n)...)
	suit := Initialize(cfg, r, client)

	return suit, client, suit.Serve()
}

func TestSuit(t *testing.T) {
	t.Run("GET with query", func(t *testing.T) {
		r := inbuilt.New().On("/status", method.GET, func(request *http.Request) error {
			return request.Respond().JSON(status.OK, map[string]string{"id": request.Arg("id")})
		})

		for _, n := range []int{1, 5, 1460} {
			_, client, err := serve(config.Default(), r, n, "GET /status?id=42 HTTP/1.1\r\nHost: printer\r\n\r\n")
			require.NoError(t, err)
			written := client.Written()
			require.True(t, strings.HasPrefix(written, "HTTP/1.1 200 OK\r\nContent-Type: application/json\r\n"))
			require.True(t, strings.HasSuffix(written, "\r\n\r\n"+`{"id":"42"}`))
			require.Contains(t, written, "Connection: close\r\n")
			require.True(t, client.Closed())
		}
	})

	t.Run("head timeout", func(t *testing.T) {
		called := false
		r := inbuilt.New().On("/", method.ANY, func(*http.Request) error {
			called = true
			return nil
		})

		client := dummy.NewMockClient().TimeoutAfter()
		cfg := config.Default()
		err := Initialize(cfg, r, client).Serve()
		require.ErrorIs(t, err, status.ErrTimeout)
		require.Empty(t, client.Written())
		require.True(t, client.Closed())
		require.False(t, called)
		require.Equal(t, cfg.NET.HeadTimeout, client.Timeouts()[0])
	})

	t.Run("partial head timeout", func(t *testing.T) {
		client := dummy.NewMockClient([]byte("GET /status HT")).TimeoutAfter()
		err := Initialize(config.Default(), inbuilt.New(), client).Serve()
		require.ErrorIs(t, err, status.ErrTimeout)
		require.Empty(t, client.Written())
		require.True(t, client.Closed())
	})

	t.Run("parse error", func(t *testing.T) {
		_, client, err := serve(config.Default(), inbuilt.New(), 1460, "BREW /pot HTTP/1.1\r\n\r\n")
		require.ErrorIs(t, err, status.ErrMethodNotImplemented)
		require.True(t, strings.HasPrefix(client.Written(), "HTTP/1.1 501 Not Implemented\r\n"))
		require.True(t, client.Closed())
	})

	t.Run("not found", func(t *testing.T) {
		_, client, err := serve(config.Default(), inbuilt.New(), 1460, "GET /nope HTTP/1.1\r\n\r\n")
		require.ErrorIs(t, err, status.ErrNotFound)
		written := client.Written()
		require.True(t, strings.HasPrefix(written, "HTTP/1.1 404 Not Found\r\n"))
		require.True(t, strings.HasSuffix(written, "Not found: /nope"))
	})

	t.Run("handler falls through", func(t *testing.T) {
		r := inbuilt.New().
			OnPrefix("/", method.GET, func(*http.Request) error {
				return status.ErrNotFound
			}).
			OnNotFound(func(request *http.Request) error {
				return request.Respond().Send(status.NotFound, mime.Plain, "custom")
			})

		_, client, err := serve(config.Default(), r, 1460, "GET /x HTTP/1.1\r\n\r\n")
		require.ErrorIs(t, err, status.ErrNotFound)
		require.True(t, strings.HasSuffix(client.Written(), "\r\n\r\ncustom"))
	})

	t.Run("handler error", func(t *testing.T) {
		badGCode := status.NewError(status.BadRequest, "bad gcode")
		r := inbuilt.New().On("/rr_gcode", method.GET, func(*http.Request) error {
			return badGCode
		})

		_, client, err := serve(config.Default(), r, 1460, "GET /rr_gcode HTTP/1.1\r\n\r\n")
		require.ErrorIs(t, err, badGCode)
		require.True(t, strings.HasPrefix(client.Written(), "HTTP/1.1 400 Bad Request\r\n"))
		require.True(t, strings.HasSuffix(client.Written(), "bad gcode"))

		r = inbuilt.New().On("/", method.GET, func(*http.Request) error {
			return errors.New("printer is on fire")
		})
		_, client, _ = serve(config.Default(), r, 1460, "GET / HTTP/1.1\r\n\r\n")
		require.True(t, strings.HasPrefix(client.Written(), "HTTP/1.1 500 Internal Server Error\r\n"))
		require.NotContains(t, client.Written(), "fire")
	})

	t.Run("error after the response started", func(t *testing.T) {
		r := inbuilt.New().On("/", method.GET, func(request *http.Request) error {
			if err := request.Respond().SendBytes(status.OK, 10, mime.Plain, []byte("half"), false); err != nil {
				return err
			}

			return io.ErrUnexpectedEOF
		})

		_, client, err := serve(config.Default(), r, 1460, "GET / HTTP/1.1\r\n\r\n")
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
		require.True(t, strings.HasPrefix(client.Written(), "HTTP/1.1 200 OK\r\n"))
		require.Equal(t, 1, strings.Count(client.Written(), "HTTP/1.1"))
	})

	t.Run("silent handler", func(t *testing.T) {
		r := inbuilt.New().On("/", method.GET, func(*http.Request) error {
			return nil
		})

		_, client, err := serve(config.Default(), r, 1460, "GET / HTTP/1.1\r\n\r\n")
		require.NoError(t, err)
		require.Empty(t, client.Written())
		require.True(t, client.Closed())
	})

	t.Run("postdata", func(t *testing.T) {
		payload := uniuri.NewLen(3000)
		var received []byte

		r := inbuilt.New().OnPrefix("/rr_upload", method.POST, func(request *http.Request) error {
			require.Equal(t, int64(len(payload)), request.PostLength())
			buf := make([]byte, 256)

			for {
				n, err := request.ReadPostdata(buf)
				received = append(received, buf[:n]...)
				if err == io.EOF {
					break
				} else if err != nil {
					return err
				}
			}

			return request.Respond().Send(status.OK, mime.JSON, `{"err":0}`)
		})

		raw := "POST /rr_upload?name=0:/gcodes/a.g HTTP/1.1\r\nContent-Length: 3000\r\n\r\n" + payload
		suit, client, err := serve(config.Default(), r, 1000, raw)
		require.NoError(t, err)
		require.Equal(t, payload, string(received))
		require.Equal(t, "0:/gcodes/a.g", suit.Request().Arg("name"))
		require.True(t, strings.HasSuffix(client.Written(), `{"err":0}`))
	})

	t.Run("unread body is drained", func(t *testing.T) {
		r := inbuilt.New().On("/", method.POST, func(request *http.Request) error {
			return request.Respond().Send(status.OK, mime.Plain, "ok")
		})

		raw := "POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"
		suit, _, err := serve(config.Default(), r, 10, raw)
		require.NoError(t, err)
		_, err = suit.body.Retrieve()
		require.Equal(t, io.EOF, err)
	})

	t.Run("form", func(t *testing.T) {
		r := inbuilt.New().On("/set", method.POST, func(request *http.Request) error {
			require.Equal(t, []pair{{"a", "1"}, {"b", "2 3"}}, request.Args.Expose())
			return request.Respond().Send(status.OK, mime.Plain, "ok")
		})

		raw := "POST /set?a=1 HTTP/1.1\r\nContent-Type: application/x-www-form-urlencoded\r\n" +
			"Content-Length: 5\r\n\r\nb=2+3"
		_, client, err := serve(config.Default(), r, 1460, raw)
		require.NoError(t, err)
		require.True(t, strings.HasSuffix(client.Written(), "ok"))
	})

	t.Run("upload", func(t *testing.T) {
		payload := uniuri.NewLen(5000)
		recorder := newUploadRecorder()
		var name string

		r := inbuilt.New().On("/upload", method.POST, func(request *http.Request) error {
			name = request.Arg("name")
			return request.Respond().Send(status.OK, mime.Plain, "uploaded")
		}, recorder.Handle)

		body := multipartBody("XyZ",
			part{Name: "name", Value: "foo"},
			part{Name: "file", Filename: "test.gz", Type: "application/x-gzip", Value: payload},
		)
		raw := "POST /upload HTTP/1.1\r\nContent-Type: multipart/form-data; boundary=XyZ\r\n" +
			"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body

		client := dummy.NewMockClient(splitIntoParts([]byte(raw), 1460)...)
		suit := Initialize(config.Default(), r, client)
		var observed int
		suit.OnUpload(func(*http.Upload) { observed++ })

		require.NoError(t, suit.Serve())
		assert.Equal(t, "foo", name)
		assert.Equal(t, 1, recorder.Count(http.UploadStart))
		assert.Equal(t, 3, recorder.Count(http.UploadWrite))
		assert.Equal(t, 1, recorder.Count(http.UploadEnd))
		assert.Equal(t, 5000, recorder.events[len(recorder.events)-1].TotalSize)
		assert.Equal(t, payload, recorder.files["test.gz"].String())
		assert.Equal(t, 5, observed)
		assert.True(t, strings.HasSuffix(client.Written(), "uploaded"))

		cfg := config.Default()
		timeouts := client.Timeouts()
		require.Len(t, timeouts, 3)
		assert.Equal(t, []time.Duration{cfg.NET.HeadTimeout, cfg.NET.BodyTimeout}, timeouts[:2])
		assert.LessOrEqual(t, timeouts[2], cfg.NET.CloseTimeout)
		assert.Positive(t, timeouts[2])
	})

	t.Run("close wait is bounded in total", func(t *testing.T) {
		r := inbuilt.New().On("/", method.GET, func(request *http.Request) error {
			return request.Respond().Send(status.OK, mime.Plain, "ok")
		})

		cfg := config.Default()
		cfg.NET.CloseTimeout = 50 * time.Millisecond
		client := dummy.NewMockClient([]byte("GET / HTTP/1.1\r\n\r\n")).LoopReads()

		done := make(chan error, 1)
		go func() {
			done <- Initialize(cfg, r, client).Serve()
		}()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("the client keeps the connection busy past the close timeout")
		}

		require.True(t, strings.HasSuffix(client.Written(), "\r\n\r\nok"))
		require.True(t, client.Closed())

		for _, timeout := range client.Timeouts()[2:] {
			require.LessOrEqual(t, timeout, cfg.NET.CloseTimeout)
		}
	})

	t.Run("upload aborted", func(t *testing.T) {
		recorder := newUploadRecorder()
		called := false

		r := inbuilt.New().On("/upload", method.POST, func(*http.Request) error {
			called = true
			return nil
		}, recorder.Handle)

		body := multipartBody("XyZ", part{Name: "file", Filename: "test.gz", Value: uniuri.NewLen(5000)})
		raw := "POST /upload HTTP/1.1\r\nContent-Type: multipart/form-data; boundary=XyZ\r\n" +
			"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body[:3000]

		_, client, err := serve(config.Default(), r, 1460, raw)
		require.ErrorIs(t, err, status.ErrDisconnect)
		require.False(t, called)
		require.Equal(t, 1, recorder.Count(http.UploadAborted))
		require.Empty(t, client.Written())
	})

	t.Run("bad multipart", func(t *testing.T) {
		called := false
		r := inbuilt.New().On("/upload", method.POST, func(*http.Request) error {
			called = true
			return nil
		})

		body := "--XyZ\r\nContent-Disposition: form-data\r\n\r\n1\r\n--XyZ--"
		raw := "POST /upload HTTP/1.1\r\nContent-Type: multipart/form-data; boundary=XyZ\r\n" +
			"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body

		_, client, err := serve(config.Default(), r, 1460, raw)
		require.ErrorIs(t, err, status.ErrBadMultipart)
		require.False(t, called)
		require.True(t, strings.HasPrefix(client.Written(), "HTTP/1.1 400 Bad Request\r\n"))
	})

	t.Run("global upload handler", func(t *testing.T) {
		recorder := newUploadRecorder()
		r := inbuilt.New().OnFileUpload(recorder.Handle)

		body := multipartBody("XyZ", part{Name: "file", Filename: "a.txt", Value: "data"})
		raw := "POST /nowhere HTTP/1.1\r\nContent-Type: multipart/form-data; boundary=XyZ\r\n" +
			"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body

		_, client, err := serve(config.Default(), r, 1460, raw)
		require.ErrorIs(t, err, status.ErrNotFound)
		require.Equal(t, []http.UploadStatus{http.UploadStart, http.UploadWrite, http.UploadEnd}, recorder.Statuses())
		require.Contains(t, client.Written(), "404 Not Found")
	})

	t.Run("simple router", func(t *testing.T) {
		r := simple.New(func(request *http.Request) error {
			return request.Respond().Send(status.OK, mime.Plain, request.Path)
		}, nil)

		client := dummy.NewMockClient([]byte("GET /any/path HTTP/1.0\r\n\r\n"))
		require.NoError(t, Initialize(config.Default(), r, client).Serve())
		require.True(t, strings.HasPrefix(client.Written(), "HTTP/1.0 200 OK\r\n"))
		require.True(t, strings.HasSuffix(client.Written(), "/any/path"))
	})
}
