package fsys

import (
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/rrwifi/webserver/http"
)

var _ http.FS = new(FS)

// FS exposes an io/fs filesystem as http.FS. Directories are treated as missing files.
type FS struct {
	fsys fs.FS
}

func New(fsys fs.FS) *FS {
	return &FS{fsys: fsys}
}

// Dir serves the directory of the host filesystem.
func Dir(root string) *FS {
	return New(os.DirFS(root))
}

func (f *FS) Open(p string) (http.File, error) {
	fd, err := f.fsys.Open(name(p))
	if err != nil {
		return nil, err
	}

	stat, err := fd.Stat()
	if err != nil {
		_ = fd.Close()
		return nil, err
	}

	if stat.IsDir() {
		_ = fd.Close()
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}

	return &file{
		File: fd,
		name: p,
		size: stat.Size(),
	}, nil
}

func (f *FS) Exists(p string) bool {
	stat, err := fs.Stat(f.fsys, name(p))
	return err == nil && !stat.IsDir()
}

// name converts an absolute slash-separated path into the io/fs form.
func name(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if len(p) == 0 {
		return "."
	}

	return p
}

type file struct {
	fs.File
	name string
	size int64
}

func (f *file) Name() string {
	return f.name
}

func (f *file) Size() int64 {
	return f.size
}
