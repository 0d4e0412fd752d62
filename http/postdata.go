package http

import "io"

type Retriever interface {
	// Retrieve reads and returns a piece of body available for processing. The last piece
	// comes together with io.EOF.
	Retrieve() ([]byte, error)
}

// Postdata is the reader of an opaque request body.
type Postdata struct {
	retriever Retriever
	pending   []byte
	err       error
	consumed  int64
}

// Reset binds the postdata to a new body. Nil retriever means there's no body.
func (p *Postdata) Reset(r Retriever) {
	p.retriever = r
	p.pending = nil
	p.err = nil
	p.consumed = 0
	if r == nil {
		p.err = io.EOF
	}
}

func (p *Postdata) Read(b []byte) (n int, err error) {
	for len(p.pending) == 0 {
		if p.err != nil {
			return 0, p.err
		}

		p.pending, p.err = p.retriever.Retrieve()
	}

	n = copy(b, p.pending)
	p.pending = p.pending[n:]
	p.consumed += int64(n)

	return n, nil
}

// Bytes reads the whole remaining body. Must be used with care, as the body may be large.
func (p *Postdata) Bytes() ([]byte, error) {
	return io.ReadAll(p)
}

// Discard reads out the rest of the body. Returns nil if the body was read completely.
func (p *Postdata) Discard() error {
	p.pending = nil

	for p.err == nil {
		_, p.err = p.retriever.Retrieve()
	}

	if p.err == io.EOF {
		return nil
	}

	return p.err
}

// Consumed returns the number of bytes read so far.
func (p *Postdata) Consumed() int64 {
	return p.consumed
}
