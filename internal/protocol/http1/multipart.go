package http1

import (
	"bytes"
	"io"

	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	"github.com/rrwifi/webserver/config"
	"github.com/rrwifi/webserver/http"
	"github.com/rrwifi/webserver/http/mime"
	"github.com/rrwifi/webserver/http/status"
	"github.com/rrwifi/webserver/internal/buffer"
	"github.com/rrwifi/webserver/internal/urlencoded"
)

// maxBoundaryLen is generous, as RFC 2046 limits the boundary by 70 characters.
const maxBoundaryLen = 200

// maxPaddingLen bounds the whitespace allowed after a boundary.
const maxPaddingLen = 64

type multipartState uint8

const (
	mPreamble multipartState = iota
	mBoundary
	mHeaders
	mField
	mFile
)

// multipartDecoder decodes multipart/form-data bodies in a streaming manner. Field parts are
// added to the request arguments, file parts are passed to the upload handler in pieces of
// at most http.UploadBufLen bytes. The body is never held in memory as a whole.
type multipartDecoder struct {
	cfg         *config.Config
	window      []byte
	carry       []byte
	eof         bool
	store       *buffer.Buffer
	delim       []byte
	uploadLimit int
	observe     func(*http.Upload)
	scratch     []byte

	name, filename, contentType string
}

func newMultipartDecoder(cfg *config.Config) *multipartDecoder {
	form := cfg.Body.Form
	windowSize := cfg.NET.ReadBufferSize + form.PartHeaderMaxSize + maxBoundaryLen + maxPaddingLen

	return &multipartDecoder{
		cfg:         cfg,
		window:      make([]byte, 0, windowSize),
		store:       buffer.New(form.FieldMaxSize, form.MaxSize),
		delim:       make([]byte, 0, len("\n--")+maxBoundaryLen),
		uploadLimit: max(1, min(cfg.Body.UploadBufferSize, http.UploadBufLen)),
	}
}

// Decode processes the whole multipart body. If the body breaks off in the middle of a file
// part, the upload handler is notified with http.UploadAborted exactly once. onUpload may
// be nil, in which case files are consumed silently.
func (m *multipartDecoder) Decode(request *http.Request, body http.Retriever, onUpload http.UploadHandler) error {
	m.reset(request.Boundary)
	upload := request.Upload
	state := mPreamble
	inFile := false

	for {
		w := m.window

		switch state {
		case mPreamble:
			dashBoundary := m.delim[1:]
			if i := bytes.Index(w, dashBoundary); i != -1 {
				m.consume(i + len(dashBoundary))
				state = mBoundary
				continue
			}

			m.consume(max(0, len(w)-len(dashBoundary)+1))
		case mBoundary:
			if len(w) >= 2 && w[0] == '-' && w[1] == '-' {
				// the closing delimiter. Whatever follows is the epilogue
				return nil
			}

			if lf := bytes.IndexByte(w, '\n'); lf != -1 {
				if len(bytes.TrimSpace(w[:lf])) != 0 {
					return status.ErrBadMultipart
				}

				m.consume(lf + 1)
				m.name, m.filename, m.contentType = "", "", ""
				state = mHeaders
				continue
			}

			if len(w) > maxPaddingLen {
				return status.ErrBadMultipart
			}
		case mHeaders:
			lf := bytes.IndexByte(w, '\n')
			if lf == -1 {
				if len(w) > m.cfg.Body.Form.PartHeaderMaxSize {
					return status.ErrHeaderFieldsTooLarge
				}

				break
			}

			if lf > m.cfg.Body.Form.PartHeaderMaxSize {
				return status.ErrHeaderFieldsTooLarge
			}

			line := stripCR(w[:lf])
			if len(line) > 0 {
				if err := m.partHeader(line); err != nil {
					return err
				}

				m.consume(lf + 1)
				continue
			}

			m.consume(lf + 1)

			if len(m.name) == 0 {
				return status.ErrBadMultipart
			}

			if len(m.filename) == 0 {
				state = mField
				continue
			}

			if len(m.contentType) == 0 {
				m.contentType = mime.Plain
			}

			upload.Start(m.name, m.filename, m.contentType)
			m.emit(request, upload, onUpload, http.UploadStart)
			inFile = true
			state = mFile
			continue
		case mField, mFile:
			end, next, found := m.findDelimiter(w)

			if state == mField {
				if m.store.SegmentLength()+end > m.cfg.Body.Form.FieldMaxSize || !m.store.Append(w[:end]) {
					return status.ErrFieldTooLarge
				}
			} else {
				m.write(request, upload, onUpload, w[:end])
			}

			if !found {
				m.consume(end)
				break
			}

			if state == mField {
				request.Args.Add(m.name, uf.B2S(m.store.Finish()))
			} else {
				if upload.CurrentSize > 0 {
					m.emit(request, upload, onUpload, http.UploadWrite)
				}

				m.emit(request, upload, onUpload, http.UploadEnd)
				inFile = false
			}

			m.consume(next)
			state = mBoundary
			continue
		}

		if err := m.fill(body); err != nil {
			if err == io.ErrUnexpectedEOF {
				err = status.ErrBadMultipart
			}

			if inFile {
				m.emit(request, upload, onUpload, http.UploadAborted)
			}

			return err
		}
	}
}

// findDelimiter looks for the delimiter in the window. If it isn't found, end is the
// amount of bytes that are guaranteed to not be a part of a delimiter.
func (m *multipartDecoder) findDelimiter(w []byte) (end, next int, found bool) {
	if i := bytes.Index(w, m.delim); i != -1 {
		end = i
		if end > 0 && w[end-1] == '\r' {
			end--
		}

		return end, i + len(m.delim), true
	}

	// the tail may contain the beginning of the delimiter including the preceding CR
	return max(0, len(w)-len(m.delim)), 0, false
}

func (m *multipartDecoder) partHeader(line []byte) error {
	colon := bytes.IndexByte(line, ':')
	if colon == -1 {
		return status.ErrBadMultipart
	}

	key := uf.B2S(trimSpaces(line[:colon]))
	value := uf.B2S(trimSpaces(line[colon+1:]))

	switch {
	case strcomp.EqualFold(key, "Content-Disposition"):
		semicolon := bytes.IndexByte(uf.S2B(value), ';')
		if semicolon == -1 {
			return status.ErrBadMultipart
		}

		params := value[semicolon+1:]
		name, _ := param(params, "name")
		filename, _ := param(params, "filename")

		var err error
		if m.name, err = m.saveDecoded(name); err != nil {
			return err
		}

		m.filename, err = m.saveDecoded(filename)
		return err
	case strcomp.EqualFold(key, "Content-Type"):
		var err error
		m.contentType, err = m.save(value)
		return err
	}

	return nil
}

// save copies the string into the request-lived storage, as the window gets overwritten.
func (m *multipartDecoder) save(str string) (string, error) {
	if len(str) == 0 {
		return "", nil
	}

	if !m.store.Append(uf.S2B(str)) {
		return "", status.ErrFieldTooLarge
	}

	return uf.B2S(m.store.Finish()), nil
}

// saveDecoded resolves the %XX escapes browsers put into quoted names. A name that isn't
// a valid escape sequence is kept as is, since a bare '%' is a legal file name character.
func (m *multipartDecoder) saveDecoded(str string) (string, error) {
	decoded, scratch, err := urlencoded.DecodeString(str, m.scratch[:0])
	m.scratch = scratch
	if err != nil {
		decoded = str
	}

	return m.save(decoded)
}

func (m *multipartDecoder) write(
	request *http.Request, upload *http.Upload, onUpload http.UploadHandler, data []byte,
) {
	for len(data) > 0 {
		n := copy(upload.Buf[upload.CurrentSize:m.uploadLimit], data)
		upload.CurrentSize += n
		upload.TotalSize += n
		data = data[n:]

		if upload.CurrentSize == m.uploadLimit {
			m.emit(request, upload, onUpload, http.UploadWrite)
			upload.CurrentSize = 0
		}
	}
}

func (m *multipartDecoder) emit(
	request *http.Request, upload *http.Upload, onUpload http.UploadHandler, s http.UploadStatus,
) {
	upload.Status = s

	if m.observe != nil {
		m.observe(upload)
	}

	if onUpload != nil {
		onUpload(request, upload)
	}
}

// fill moves more body into the window. Pieces not fitting in are carried over.
func (m *multipartDecoder) fill(body http.Retriever) error {
	if len(m.carry) == 0 {
		if m.eof {
			return io.ErrUnexpectedEOF
		}

		data, err := body.Retrieve()
		switch err {
		case nil:
		case io.EOF:
			m.eof = true
		default:
			return err
		}

		m.carry = data
	}

	n := copy(m.window[len(m.window):cap(m.window)], m.carry)
	m.window = m.window[:len(m.window)+n]
	m.carry = m.carry[n:]

	return nil
}

func (m *multipartDecoder) consume(n int) {
	m.window = m.window[:copy(m.window, m.window[n:])]
}

func (m *multipartDecoder) reset(boundary string) {
	m.window = m.window[:0]
	m.carry = nil
	m.eof = false
	m.store.Clear()
	m.delim = append(append(m.delim[:0], "\n--"...), boundary...)
	m.name, m.filename, m.contentType = "", "", ""
}
