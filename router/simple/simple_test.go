package simple

import (
	"testing"

	"github.com/rrwifi/webserver/config"
	"github.com/rrwifi/webserver/http"
	"github.com/rrwifi/webserver/http/mime"
	"github.com/rrwifi/webserver/http/status"
	"github.com/rrwifi/webserver/kv"
	"github.com/rrwifi/webserver/transport/dummy"
	"github.com/stretchr/testify/require"
)

func TestRouter(t *testing.T) {
	client := dummy.NewMockClient()
	request := http.NewRequest(client, http.NewResponse(config.Default(), client), kv.New(), kv.New().Fold())
	request.Path = "/anything"

	var uploads int
	r := New(func(request *http.Request) error {
		return request.Respond().Send(status.OK, mime.Plain, request.Path)
	}, func(*http.Request, *http.Upload) {
		uploads++
	})

	handler, upload := r.Match(request)
	require.NotNil(t, handler)
	require.NoError(t, handler(request))
	require.Contains(t, client.Written(), "\r\n\r\n/anything")

	upload(request, request.Upload)
	require.Equal(t, 1, uploads)

	client = dummy.NewMockClient()
	request = http.NewRequest(client, http.NewResponse(config.Default(), client), kv.New(), kv.New().Fold())
	request.Path = "/missing"
	require.NoError(t, r.NotFound(request))
	require.Contains(t, client.Written(), "HTTP/1.1 404 Not Found\r\n")
	require.Contains(t, client.Written(), "Not found: /missing")
}
