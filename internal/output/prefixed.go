package output

import (
	"bytes"
	"hash/fnv"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Color palette for lock-name prefixes
var colorPalette = []*color.Color{
	color.New(color.FgCyan),
	color.New(color.FgYellow),
	color.New(color.FgGreen),
	color.New(color.FgMagenta),
	color.New(color.FgBlue),
	color.New(color.FgHiCyan),
	color.New(color.FgHiYellow),
	color.New(color.FgHiGreen),
}

// ColorFor picks a stable color for a lock name, so the same lock is always
// shown the same way across runs.
func ColorFor(name string) *color.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return colorPalette[int(h.Sum32()%uint32(len(colorPalette)))]
}

// PrefixedWriter prefixes each line written by a child process with the name
// of the lock it runs under. Partial lines are buffered until their newline
// arrives, so stdout and stderr sharing a mutex never interleave mid-line.
type PrefixedWriter struct {
	out    io.Writer
	prefix string
	color  *color.Color
	mu     *sync.Mutex
	buf    bytes.Buffer
}

// NewPrefixedWriter creates a PrefixedWriter. Writers that share an output
// should share mu.
func NewPrefixedWriter(out io.Writer, prefix string, c *color.Color, mu *sync.Mutex) *PrefixedWriter {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	if c == nil {
		c = ColorFor(prefix)
	}
	return &PrefixedWriter{
		out:    out,
		prefix: prefix,
		color:  c,
		mu:     mu,
	}
}

// Write implements io.Writer.
func (w *PrefixedWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := w.buf.Next(idx + 1)
		if err := w.writeLine(line); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// writeLine writes one line with the colored prefix. Caller holds mu.
func (w *PrefixedWriter) writeLine(line []byte) error {
	if _, err := w.color.Fprintf(w.out, "%s | ", w.prefix); err != nil {
		return err
	}
	_, err := w.out.Write(line)
	return err
}

// Flush writes a trailing partial line, terminated with a newline.
func (w *PrefixedWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() == 0 {
		return nil
	}
	line := append(w.buf.Bytes(), '\n')
	w.buf.Reset()
	return w.writeLine(line)
}
