package request

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/marcogenualdo/reqlog/internal/capture"
	"github.com/marcogenualdo/reqlog/internal/headers"
	"github.com/marcogenualdo/reqlog/internal/query"
)

// Incoming is the per-request view the console report is built from.
type Incoming struct {
	Method  string
	Target  string
	Path    string
	Query   query.Params
	Headers headers.List
}

// SplitTarget splits a request target into its path and raw query. Origin
// form targets are split at the first '?'; absolute form targets go through
// url.Parse. Fragments are dropped.
func SplitTarget(target string) (string, string) {
	if strings.HasPrefix(target, "/") || target == "*" {
		target, _, _ = strings.Cut(target, "#")
		path, rawQuery, _ := strings.Cut(target, "?")
		return path, rawQuery
	}

	u, err := url.Parse(target)
	if err != nil {
		path, rawQuery, _ := strings.Cut(target, "?")
		return path, rawQuery
	}
	return u.EscapedPath(), u.RawQuery
}

// FromHTTP builds an Incoming from r. Headers come from the raw request head
// when the connection was captured, otherwise from r.Header.
func FromHTTP(r *http.Request) *Incoming {
	target := r.RequestURI
	if target == "" {
		target = r.URL.RequestURI()
	}
	path, rawQuery := SplitTarget(target)

	return &Incoming{
		Method:  r.Method,
		Target:  target,
		Path:    path,
		Query:   query.Parse(rawQuery),
		Headers: headerList(r, target),
	}
}

func headerList(r *http.Request, target string) headers.List {
	if cc, ok := capture.FromContext(r.Context()); ok {
		if head, ok := cc.Head(r.Method, target); ok {
			if list, err := headers.ParseHead(head); err == nil {
				return list
			}
		}
	}
	return headers.FromHTTP(r.Header, r.Host)
}
