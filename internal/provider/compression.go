// File: internal/provider/compression.go
package provider

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// Pools for decompression readers to reduce allocation overhead across the
// many small poll responses a single analysis produces.
var (
	gzipReaderPool = sync.Pool{
		New: func() interface{} {
			return new(gzip.Reader)
		},
	}
	brotliReaderPool = sync.Pool{
		New: func() interface{} {
			return brotli.NewReader(nil)
		},
	}
)

// emptyReader safely parks pooled readers between uses.
var emptyReader = strings.NewReader("")

// compressionTransport is an http.RoundTripper that advertises gzip and
// brotli support on outgoing requests and transparently decompresses the
// response body.
type compressionTransport struct {
	base http.RoundTripper
}

func newCompressionTransport(base http.RoundTripper) *compressionTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &compressionTransport{base: base}
}

func (ct *compressionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "br, gzip, identity")
	}

	resp, err := ct.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := decompressResponse(resp); err != nil {
		// The body stream may be partially consumed at this point, so the
		// response cannot be salvaged.
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to initialize response decompression: %w", err)
	}
	return resp, nil
}

// decompressResponse wraps resp.Body with the decoder matching its
// Content-Encoding header, returning pooled readers on Close.
func decompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "", "identity":
		return nil

	case "gzip":
		zr := gzipReaderPool.Get().(*gzip.Reader)
		if err := zr.Reset(resp.Body); err != nil {
			gzipReaderPool.Put(zr)
			return fmt.Errorf("gzip initialization error: %w", err)
		}
		resp.Body = &closeWrapper{
			ReadCloser:   zr,
			originalBody: resp.Body,
			poolCallback: func() {
				_ = zr.Reset(emptyReader)
				gzipReaderPool.Put(zr)
			},
		}

	case "br":
		br := brotliReaderPool.Get().(*brotli.Reader)
		if err := br.Reset(resp.Body); err != nil {
			brotliReaderPool.Put(br)
			return fmt.Errorf("brotli initialization error: %w", err)
		}
		resp.Body = &closeWrapper{
			ReadCloser:   io.NopCloser(br),
			originalBody: resp.Body,
			poolCallback: func() {
				_ = br.Reset(emptyReader)
				brotliReaderPool.Put(br)
			},
		}

	default:
		return fmt.Errorf("unsupported Content-Encoding: %s", encoding)
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// closeWrapper closes the decompression reader and the underlying body, and
// runs the pool return callback exactly once.
type closeWrapper struct {
	io.ReadCloser
	originalBody io.ReadCloser
	poolCallback func()
}

func (w *closeWrapper) Close() error {
	if w.poolCallback != nil {
		w.poolCallback()
		w.poolCallback = nil
	}
	err1 := w.ReadCloser.Close()
	err2 := w.originalBody.Close()
	return errors.Join(err1, err2)
}
