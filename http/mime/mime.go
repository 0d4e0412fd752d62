package mime

import (
	"path"
	"strings"
)

type MIME = string

const (
	OctetStream    MIME = "application/octet-stream"
	Plain          MIME = "text/plain"
	HTML           MIME = "text/html"
	XML            MIME = "text/xml"
	JSON           MIME = "application/json"
	FormUrlencoded MIME = "application/x-www-form-urlencoded"
	Multipart      MIME = "multipart/form-data"
	XGZIP          MIME = "application/x-gzip"
	GZIP           MIME = "application/gzip"
	ZIP            MIME = "application/zip"
	CSS            MIME = "text/css"
	JS             MIME = "application/javascript"
	GIF            MIME = "image/gif"
	JPEG           MIME = "image/jpeg"
	PNG            MIME = "image/png"
	SVG            MIME = "image/svg+xml"
	ICO            MIME = "image/x-icon"
	GCode          MIME = "text/x-gcode"
)

var Extension = map[string]MIME{
	".htm":   HTML,
	".html":  HTML,
	".css":   CSS,
	".js":    JS,
	".json":  JSON,
	".xml":   XML,
	".txt":   Plain,
	".png":   PNG,
	".gif":   GIF,
	".jpg":   JPEG,
	".jpeg":  JPEG,
	".svg":   SVG,
	".ico":   ICO,
	".gz":    XGZIP,
	".zip":   ZIP,
	".g":     GCode,
	".gcode": GCode,
}

// ByPath returns the MIME for the file extension of the path, falling back to text/plain
// as the printer web UI does.
func ByPath(p string) MIME {
	if m, ok := Extension[strings.ToLower(path.Ext(p))]; ok {
		return m
	}

	return Plain
}

// Compressed reports whether the MIME already denotes compressed content, so a .gz file
// served with it must not be announced as Content-Encoding: gzip.
func Compressed(m MIME) bool {
	switch m {
	case XGZIP, GZIP, OctetStream, ZIP:
		return true
	default:
		return false
	}
}
