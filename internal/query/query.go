// Package query parses URL query strings into an ordered parameter mapping.
//
// url.Values would lose the order in which parameter names first appear,
// which is the order the console report lists them in.
package query

import (
	"net/url"
	"strconv"
	"strings"
)

// Params maps parameter names to every value supplied for them. Names keep
// the order of their first appearance and values keep arrival order.
type Params struct {
	keys   []string
	values map[string][]string
}

// Parse splits rawQuery on '&' and then on the first '='. Repeated names
// accumulate. Empty segments are skipped, a bare name yields an empty value
// and a segment with broken percent-encoding keeps its raw text.
func Parse(rawQuery string) Params {
	var p Params
	for rawQuery != "" {
		var segment string
		segment, rawQuery, _ = strings.Cut(rawQuery, "&")
		if segment == "" {
			continue
		}
		key, value, _ := strings.Cut(segment, "=")
		p.Add(unescape(key), unescape(value))
	}
	return p
}

func unescape(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return strings.ReplaceAll(s, "+", " ")
	}
	return decoded
}

// Add appends value to the values of key.
func (p *Params) Add(key, value string) {
	if p.values == nil {
		p.values = make(map[string][]string)
	}
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = append(p.values[key], value)
}

func (p Params) Len() int {
	return len(p.keys)
}

func (p Params) Has(key string) bool {
	_, exists := p.values[key]
	return exists
}

// Keys returns the parameter names in first-appearance order.
func (p Params) Keys() []string {
	keys := make([]string, len(p.keys))
	copy(keys, p.keys)
	return keys
}

// Get returns the first value of key, or "" when key is absent.
func (p Params) Get(key string) string {
	if vs := p.values[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Values returns every value of key in arrival order.
func (p Params) Values(key string) []string {
	vs := p.values[key]
	if vs == nil {
		return nil
	}
	out := make([]string, len(vs))
	copy(out, vs)
	return out
}

// URLValues converts p into url.Values, dropping name order.
func (p Params) URLValues() url.Values {
	out := make(url.Values, len(p.keys))
	for _, key := range p.keys {
		out[key] = p.Values(key)
	}
	return out
}

// Encode serializes p back into a query string. Pairs are grouped by name in
// first-appearance order, values in arrival order.
func (p Params) Encode() string {
	var b strings.Builder
	for _, key := range p.keys {
		keyEscaped := url.QueryEscape(key)
		for _, value := range p.values[key] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(keyEscaped)
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(value))
		}
	}
	return b.String()
}

// String renders p as {"a": ["1", "2"]}.
func (p Params) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, key := range p.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Quote(key))
		b.WriteString(": [")
		for j, value := range p.values[key] {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(value))
		}
		b.WriteByte(']')
	}
	b.WriteByte('}')
	return b.String()
}
