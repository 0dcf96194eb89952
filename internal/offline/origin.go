package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Response is a stored copy of an origin response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Origin is where assets come from when the cache cannot answer.
type Origin interface {
	Fetch(ctx context.Context, path string) (*Response, error)
}

// HandlerOrigin fetches from an in-process handler, such as the embedded
// asset server.
type HandlerOrigin struct {
	Handler http.Handler
}

func (o HandlerOrigin) Fetch(ctx context.Context, path string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	rec := &recorder{header: make(http.Header)}
	o.Handler.ServeHTTP(rec, req)
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	return &Response{Status: rec.status, Header: rec.header, Body: rec.body.Bytes()}, nil
}

type recorder struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(p)
}

func (r *recorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}

// HTTPOrigin fetches from an upstream server.
type HTTPOrigin struct {
	Base   *url.URL
	Client *http.Client
}

func NewHTTPOrigin(base string, client *http.Client) (*HTTPOrigin, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("asset upstream %q: %w", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("asset upstream %q: scheme must be http or https", base)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPOrigin{Base: u, Client: client}, nil
}

func (o *HTTPOrigin) Fetch(ctx context.Context, path string) (*Response, error) {
	// path is a cache key and may carry a query.
	p, query, _ := strings.Cut(path, "?")
	target := *o.Base
	target.Path = strings.TrimSuffix(o.Base.Path, "/") + p
	target.RawPath = ""
	target.RawQuery = query
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", target.String(), err)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body}, nil
}
