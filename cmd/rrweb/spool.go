package main

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rrwifi/webserver/http"
	"github.com/rs/zerolog"
)

// spool saves uploaded files. Every file is written under a unique temporary name first
// and renamed into its own name once it's complete, so a broken upload never shadows
// a good file.
type spool struct {
	dir    string
	logger zerolog.Logger
	file   *os.File
	failed bool
}

func newSpool(dir string, logger zerolog.Logger) (*spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	return &spool{dir: dir, logger: logger}, nil
}

func (s *spool) Handle(_ *http.Request, upload *http.Upload) {
	switch upload.Status {
	case http.UploadStart:
		s.start()
	case http.UploadWrite:
		s.write(upload.Data())
	case http.UploadEnd:
		s.finish(upload.Filename)
	case http.UploadAborted:
		s.discard()
	}
}

func (s *spool) start() {
	s.discard()
	s.failed = false

	f, err := os.Create(filepath.Join(s.dir, "."+uuid.NewString()+".part"))
	if err != nil {
		s.logger.Error().Err(err).Msg("spool: cannot create file")
		s.failed = true
		return
	}

	s.file = f
}

func (s *spool) write(data []byte) {
	if s.file == nil || s.failed {
		return
	}

	if _, err := s.file.Write(data); err != nil {
		s.logger.Error().Err(err).Str("file", s.file.Name()).Msg("spool: write failed")
		s.failed = true
	}
}

func (s *spool) finish(filename string) {
	if s.file == nil {
		return
	}

	if s.failed {
		s.discard()
		return
	}

	tmp := s.file.Name()
	err := s.file.Close()
	s.file = nil
	if err == nil {
		err = os.Rename(tmp, filepath.Join(s.dir, filepath.Base(filepath.Clean("/"+filename))))
	}

	if err != nil {
		s.logger.Error().Err(err).Str("file", filename).Msg("spool: cannot save file")
		_ = os.Remove(tmp)
	}
}

func (s *spool) discard() {
	if s.file == nil {
		return
	}

	_ = s.file.Close()
	_ = os.Remove(s.file.Name())
	s.file = nil
}
