package inbuilt

import (
	"path"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rrwifi/webserver/http"
	"github.com/rrwifi/webserver/http/method"
	"github.com/rrwifi/webserver/http/mime"
	"github.com/rrwifi/webserver/http/status"
)

// Static serves files under root of the fs for GET requests starting with prefix. Paths
// ending with a slash get the index file appended. If a file is missing, its gzipped
// version (.gz) is tried. Non-empty cacheControl is sent as Cache-Control header.
func (r *Router) Static(prefix string, fs http.FS, root, cacheControl string) *Router {
	resolver := newResolver(fs, r.static.ResolveCacheTTL)
	index := r.static.Index

	return r.OnPrefix(prefix, method.GET, func(request *http.Request) error {
		rel := strings.TrimPrefix(request.Path, prefix)
		if !isSafe(rel) {
			return status.ErrNotFound
		}

		filepath := path.Join("/", root, rel)
		if len(rel) == 0 || rel[len(rel)-1] == '/' {
			filepath = path.Join(filepath, index)
		}

		contentType := mime.ByPath(filepath)
		resolved, found := resolver.Resolve(filepath)
		if !found {
			return status.ErrNotFound
		}

		file, err := fs.Open(resolved)
		if err != nil {
			resolver.Forget(filepath)
			return status.ErrNotFound
		}

		response := request.Respond()
		if len(cacheControl) > 0 {
			_ = response.SendHeader("Cache-Control", cacheControl, false)
		}

		return response.StreamFile(file, contentType)
	})
}

// resolver maps a requested file path onto the path of an existing file. Results are
// remembered for a while, as the existence check is pretty slow on flash filesystems.
type resolver struct {
	fs    http.FS
	cache *cache.Cache
}

func newResolver(fs http.FS, ttl time.Duration) *resolver {
	r := &resolver{fs: fs}
	if ttl > 0 {
		r.cache = cache.New(ttl, 2*ttl)
	}

	return r
}

// Resolve returns either the path itself or the path of its gzipped version.
func (r *resolver) Resolve(filepath string) (resolved string, found bool) {
	if r.cache != nil {
		if cached, ok := r.cache.Get(filepath); ok {
			resolved = cached.(string)
			return resolved, len(resolved) > 0
		}
	}

	switch {
	case r.fs.Exists(filepath):
		resolved = filepath
	case !strings.HasSuffix(filepath, ".gz") && r.fs.Exists(filepath+".gz"):
		resolved = filepath + ".gz"
	}

	if r.cache != nil {
		r.cache.Set(filepath, resolved, cache.DefaultExpiration)
	}

	return resolved, len(resolved) > 0
}

func (r *resolver) Forget(filepath string) {
	if r.cache != nil {
		r.cache.Delete(filepath)
	}
}

// isSafe checks for path traversal, i.e. any ".." segment.
func isSafe(p string) bool {
	for len(p) > 0 {
		var segment string
		if slash := strings.IndexByte(p, '/'); slash == -1 {
			segment, p = p, ""
		} else {
			segment, p = p[:slash], p[slash+1:]
		}

		if segment == ".." {
			return false
		}
	}

	return true
}
