// Package console writes the human-readable request report.
package console

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/marcogenualdo/reqlog/internal/request"
)

const (
	openDelimiter  = "--- Incoming GET Request ---"
	closeDelimiter = "--------------------------"
)

// Printer serialises writes so reports from concurrent requests never
// interleave.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// Request writes the report block for in as a single write.
func (p *Printer) Request(in *request.Incoming) error {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "\n%s\n", openDelimiter)
	fmt.Fprintf(&buf, "Path: %s\n", in.Path)
	fmt.Fprintf(&buf, "Query Parameters: %s\n", in.Query)
	buf.WriteString("Headers:\n")
	for _, f := range in.Headers {
		fmt.Fprintf(&buf, "  %s: %s\n", f.Name, f.Value)
	}
	fmt.Fprintf(&buf, "%s\n", closeDelimiter)

	return p.write(buf.Bytes())
}

func (p *Printer) Starting(addr string) error {
	return p.write([]byte(fmt.Sprintf("Starting request logger on %s\nPress Ctrl+C to stop the server.\n", addr)))
}

func (p *Printer) Stopping() error {
	return p.write([]byte("\nStopping request logger.\n"))
}

func (p *Printer) write(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.out.Write(b)
	return err
}
