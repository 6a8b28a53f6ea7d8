// Package utils holds small helpers shared by the CLI.
package utils

import (
	"bytes"
	"io"
	"sync"
)

// DeferredWriter buffers writes until Flush. The TUI owns the terminal while
// it runs, so log output is held back and replayed after it exits.
type DeferredWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (d *DeferredWriter) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.Write(p)
}

// Flush writes the buffered output to w one line per Write call, which is
// what zerolog.ConsoleWriter expects, and resets the buffer.
func (d *DeferredWriter) Flush(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		line, err := d.buf.ReadBytes('\n')
		if len(line) > 0 {
			if _, werr := w.Write(line); werr != nil {
				d.buf.Reset()
				return werr
			}
		}
		if err != nil {
			break
		}
	}

	d.buf.Reset()
	return nil
}
