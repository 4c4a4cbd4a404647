package streamio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Writer emits one JSON-encoded record per line, LF-terminated (spec §6).
type Writer struct {
	w       *bufio.Writer
	closers []io.Closer
}

// NewWriter constructs a Writer over w. When compress is true, output is
// wrapped in an LZ4 frame the way internal/rbtree/lz4.go block-compresses
// tree data -- here applied to the whole output stream via lz4.NewWriter's
// framing instead of a single compressed block, since the record stream is
// unbounded.
func NewWriter(w io.Writer, compress bool) *Writer {
	var closers []io.Closer

	if compress {
		lzw := lz4.NewWriter(w)
		closers = append(closers, lzw)
		w = lzw
	}

	return &Writer{w: bufio.NewWriter(w), closers: closers}
}

// Write encodes v as one JSON line.
func (w *Writer) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	if err := w.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}

	return nil
}

// Flush flushes buffered output and closes any compression framing.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	for _, c := range w.closers {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close output framing: %w", err)
		}
	}

	return nil
}
