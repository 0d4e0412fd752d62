package http

type UploadStatus uint8

const (
	UploadStart UploadStatus = iota
	UploadWrite
	UploadEnd
	UploadAborted
)

func (u UploadStatus) String() string {
	switch u {
	case UploadStart:
		return "start"
	case UploadWrite:
		return "write"
	case UploadEnd:
		return "end"
	case UploadAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// UploadBufLen is the capacity of the upload buffer.
const UploadBufLen = 2048

// Upload is the state of a single file part. It is re-initialised for every part and never
// holds more than UploadBufLen bytes.
type Upload struct {
	Status   UploadStatus
	Name     string
	Filename string
	Type     string
	// TotalSize is the number of bytes of the current part received so far.
	TotalSize int
	// CurrentSize is the number of valid bytes in Buf.
	CurrentSize int
	Buf         [UploadBufLen]byte
}

// Data returns the valid part of the buffer.
func (u *Upload) Data() []byte {
	return u.Buf[:u.CurrentSize]
}

// Start initialises the upload for a new file part.
func (u *Upload) Start(name, filename, contentType string) {
	u.Status = UploadStart
	u.Name = name
	u.Filename = filename
	u.Type = contentType
	u.TotalSize = 0
	u.CurrentSize = 0
}

func (u *Upload) reset() {
	u.Start("", "", "")
}
