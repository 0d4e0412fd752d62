package http

import "io"

// File is an opened file ready to be streamed.
type File interface {
	io.ReadCloser
	// Name is the name the file was opened by.
	Name() string
	Size() int64
}

// FS is the filesystem capability. Paths are always slash-separated and absolute.
type FS interface {
	Open(path string) (File, error)
	Exists(path string) bool
}
