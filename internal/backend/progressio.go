package backend

import "io"

// CountingReader wraps a reader and reports cumulative bytes through a
// ProgressFunc. Adapters wrap their transfer streams with it so every
// protocol reports progress the same way.
type CountingReader struct {
	r     io.Reader
	total int64
	read  int64
	fn    ProgressFunc
}

// NewCountingReader wraps r. total may be zero when unknown; fn may be nil.
func NewCountingReader(r io.Reader, total int64, fn ProgressFunc) *CountingReader {
	return &CountingReader{r: r, total: total, fn: fn}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.read += int64(n)
		if c.fn != nil {
			c.fn(c.read, c.total)
		}
	}
	return n, err
}

// CountingWriter is the write-side counterpart of CountingReader.
type CountingWriter struct {
	w       io.Writer
	total   int64
	written int64
	fn      ProgressFunc
}

// NewCountingWriter wraps w. total may be zero when unknown; fn may be nil.
func NewCountingWriter(w io.Writer, total int64, fn ProgressFunc) *CountingWriter {
	return &CountingWriter{w: w, total: total, fn: fn}
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if n > 0 {
		c.written += int64(n)
		if c.fn != nil {
			c.fn(c.written, c.total)
		}
	}
	return n, err
}
