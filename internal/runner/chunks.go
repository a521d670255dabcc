package runner

import (
	"bytes"
	"io"
	"iter"
)

// DefaultChunkSize is the read size used when Chunks is given a non-positive size.
const DefaultChunkSize = 32 * 1024

// Chunks returns the bytes of r as a lazy sequence of chunks, in read order.
// The sequence is finite and single-use: it ends at EOF or after yielding the
// first read error, and ranging over it a second time yields nothing.
func Chunks(r io.Reader, size int) iter.Seq2[[]byte, error] {
	if size <= 0 {
		size = DefaultChunkSize
	}
	consumed := false
	return func(yield func([]byte, error) bool) {
		if consumed {
			return
		}
		consumed = true
		for {
			buf := make([]byte, size)
			n, err := r.Read(buf)
			if n > 0 {
				if !yield(buf[:n], nil) {
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// Concat drains seq and joins its chunks in the order they were produced.
// On a read error it returns the bytes collected so far along with the error.
func Concat(seq iter.Seq2[[]byte, error]) ([]byte, error) {
	var buf bytes.Buffer
	for chunk, err := range seq {
		if err != nil {
			return buf.Bytes(), err
		}
		buf.Write(chunk)
	}
	return buf.Bytes(), nil
}
