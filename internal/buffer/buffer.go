package buffer

// Buffer is a bounded region of memory holding several independent byte sequences (segments)
// one after another. A segment is built by appending into it and is sealed by Finish. Sealed
// segments stay valid until Clear.
type Buffer struct {
	memory []byte
	begin  int
	limit  int
}

func New(initialSize, maxSize int) *Buffer {
	return &Buffer{
		memory: make([]byte, 0, initialSize),
		limit:  maxSize,
	}
}

// Append writes data into the current segment. If this would exceed the limit, nothing
// is written and false is returned.
func (b *Buffer) Append(data []byte) (ok bool) {
	if len(b.memory)+len(data) > b.limit {
		return false
	}

	b.memory = append(b.memory, data...)
	return true
}

// AppendByte is Append for a single byte.
func (b *Buffer) AppendByte(c byte) (ok bool) {
	if len(b.memory) >= b.limit {
		return false
	}

	b.memory = append(b.memory, c)
	return true
}

// SegmentLength returns the length of the current (unsealed) segment.
func (b *Buffer) SegmentLength() int {
	return len(b.memory) - b.begin
}

// Trunc cuts the last n bytes off the current segment. Sealed segments are never touched.
func (b *Buffer) Trunc(n int) {
	if seglen := b.SegmentLength(); n > seglen {
		n = seglen
	}

	b.memory = b.memory[:len(b.memory)-n]
}

// Discard drops the current segment.
func (b *Buffer) Discard() {
	b.memory = b.memory[:b.begin]
}

// Preview returns the current segment without sealing it.
func (b *Buffer) Preview() []byte {
	return b.memory[b.begin:]
}

// Finish seals the current segment and returns it.
func (b *Buffer) Finish() []byte {
	segment := b.memory[b.begin:]
	b.begin = len(b.memory)

	return segment
}

// Len returns total number of bytes occupied by all segments.
func (b *Buffer) Len() int {
	return len(b.memory)
}

// Clear invalidates all the segments. The memory is reused.
func (b *Buffer) Clear() {
	b.begin = 0
	b.memory = b.memory[:0]
}
