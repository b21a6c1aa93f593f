// Package headers keeps request header fields in the order they arrived.
package headers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var ErrMalformedHead = errors.New("malformed request head")

// Field is a single header line as received, name spelling included.
type Field struct {
	Name  string
	Value string
}

// List is an ordered sequence of header fields. Lookups are
// case-insensitive as HTTP requires.
type List []Field

// Get returns the first value for name, or "".
func (l List) Get(name string) string {
	for _, f := range l {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Values returns every value for name in arrival order.
func (l List) Values(name string) []string {
	var out []string
	for _, f := range l {
		if strings.EqualFold(f.Name, name) {
			out = append(out, f.Value)
		}
	}
	return out
}

// ParseHead reads the header fields out of a raw HTTP/1.x request head. The
// request line is skipped and parsing stops at the first empty line.
// Obsolete line folding is joined onto the previous field.
func ParseHead(head []byte) (List, error) {
	lines := bytes.Split(head, []byte("\n"))
	if len(lines) == 0 || len(bytes.TrimSpace(lines[0])) == 0 {
		return nil, fmt.Errorf("%w: missing request line", ErrMalformedHead)
	}

	var list List
	for _, line := range lines[1:] {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 {
			break
		}

		if line[0] == ' ' || line[0] == '\t' {
			if len(list) == 0 {
				return nil, fmt.Errorf("%w: continuation before first field", ErrMalformedHead)
			}
			last := &list[len(list)-1]
			last.Value = strings.TrimSpace(last.Value + " " + strings.TrimSpace(string(line)))
			continue
		}

		name, value, found := bytes.Cut(line, []byte(":"))
		if !found || len(bytes.TrimSpace(name)) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedHead, line)
		}

		list = append(list, Field{
			Name:  string(bytes.TrimSpace(name)),
			Value: string(bytes.TrimSpace(value)),
		})
	}

	return list, nil
}

// FromHTTP builds a List from a parsed http.Header. Arrival order is gone by
// then, so Host comes first and the remaining names follow sorted.
func FromHTTP(h http.Header, host string) List {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make(List, 0, len(h)+1)
	if host != "" && len(h.Values("Host")) == 0 {
		list = append(list, Field{Name: "Host", Value: host})
	}
	for _, name := range names {
		for _, value := range h[name] {
			list = append(list, Field{Name: name, Value: value})
		}
	}
	return list
}
