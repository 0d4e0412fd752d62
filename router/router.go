package router

import "github.com/rrwifi/webserver/http"

type Router interface {
	// Match returns the handler of the route matching the request together with the upload
	// handler in charge of its file parts. Nil handler means no route matched; the upload
	// handler may still be set.
	Match(request *http.Request) (http.Handler, http.UploadHandler)
	// NotFound responds to a request no route matched.
	NotFound(request *http.Request) error
}
