package inbuilt

import (
	"strings"

	"github.com/rrwifi/webserver/config"
	"github.com/rrwifi/webserver/http"
	"github.com/rrwifi/webserver/http/method"
	"github.com/rrwifi/webserver/http/status"
	"github.com/rrwifi/webserver/router"
)

var _ router.Router = new(Router)

type Kind uint8

const (
	// Exact routes match the request path as a whole.
	Exact Kind = iota
	// Prefix routes match every path starting with the route path.
	Prefix
)

type Route struct {
	Kind    Kind
	Method  method.Method
	Path    string
	Handler http.Handler
	// Upload is nil, if the route relies on the router-wide upload handler.
	Upload http.UploadHandler
}

// Router keeps routes in registration order. Exact routes always take precedence over
// prefix ones, regardless of the order they were registered in. Among the routes of the
// same kind, the first registered one wins.
type Router struct {
	exact    []Route
	prefix   []Route
	notFound http.Handler
	upload   http.UploadHandler
	static   config.Static
}

func New() *Router {
	return &Router{
		static: config.Default().Static,
	}
}

// Configure sets the settings used by static file routes registered afterwards and by
// the default not-found response.
func (r *Router) Configure(cfg config.Static) *Router {
	r.static = cfg
	return r
}

// On registers an exact route. The optional upload handler receives the file parts of
// multipart requests to the route. Without one, the router-wide handler is used.
func (r *Router) On(path string, m method.Method, handler http.Handler, upload ...http.UploadHandler) *Router {
	r.exact = append(r.exact, newRoute(Exact, path, m, handler, upload))
	return r
}

// OnPrefix registers a route matching every path starting with the prefix.
func (r *Router) OnPrefix(prefix string, m method.Method, handler http.Handler, upload ...http.UploadHandler) *Router {
	r.prefix = append(r.prefix, newRoute(Prefix, prefix, m, handler, upload))
	return r
}

// OnNotFound replaces the default not-found response.
func (r *Router) OnNotFound(handler http.Handler) *Router {
	r.notFound = handler
	return r
}

// OnFileUpload sets the router-wide upload handler. It also receives file parts of requests
// that matched no route.
func (r *Router) OnFileUpload(upload http.UploadHandler) *Router {
	r.upload = upload
	return r
}

// Routes returns all the registered routes, exact ones first.
func (r *Router) Routes() []Route {
	return append(append([]Route(nil), r.exact...), r.prefix...)
}

func (r *Router) Match(request *http.Request) (http.Handler, http.UploadHandler) {
	for _, route := range r.exact {
		if route.Path == request.Path && route.Method.Matches(request.Method) {
			return route.Handler, r.uploadOf(route)
		}
	}

	for _, route := range r.prefix {
		if strings.HasPrefix(request.Path, route.Path) && route.Method.Matches(request.Method) {
			return route.Handler, r.uploadOf(route)
		}
	}

	return nil, r.upload
}

func (r *Router) NotFound(request *http.Request) error {
	if r.notFound != nil {
		return r.notFound(request)
	}

	return request.Respond().Send(status.NotFound, r.static.NotFoundType, "Not found: "+request.Path)
}

func (r *Router) uploadOf(route Route) http.UploadHandler {
	if route.Upload != nil {
		return route.Upload
	}

	return r.upload
}

func newRoute(kind Kind, path string, m method.Method, handler http.Handler, upload []http.UploadHandler) Route {
	route := Route{
		Kind:    kind,
		Method:  m,
		Path:    path,
		Handler: handler,
	}

	if len(upload) > 0 {
		route.Upload = upload[0]
	}

	return route
}
