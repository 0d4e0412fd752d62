package simple

import (
	"github.com/rrwifi/webserver/http"
	"github.com/rrwifi/webserver/http/mime"
	"github.com/rrwifi/webserver/http/status"
	"github.com/rrwifi/webserver/router"
)

var _ router.Router = Router{}

// Router passes every request to a single handler.
type Router struct {
	handler http.Handler
	upload  http.UploadHandler
}

func New(handler http.Handler, upload http.UploadHandler) Router {
	return Router{
		handler: handler,
		upload:  upload,
	}
}

func (r Router) Match(*http.Request) (http.Handler, http.UploadHandler) {
	return r.handler, r.upload
}

func (r Router) NotFound(request *http.Request) error {
	return request.Respond().Send(status.NotFound, mime.Plain, "Not found: "+request.Path)
}
