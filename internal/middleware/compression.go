package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// brotliLevel trades a little ratio for speed on large snapshots.
const brotliLevel = 5

type encoder interface {
	io.WriteCloser
	Reset(io.Writer)
	Flush() error
}

var (
	gzipPool = sync.Pool{New: func() interface{} {
		return gzip.NewWriter(io.Discard)
	}}
	brotliPool = sync.Pool{New: func() interface{} {
		return brotli.NewWriterLevel(io.Discard, brotliLevel)
	}}
)

func poolFor(encoding string) *sync.Pool {
	if encoding == "br" {
		return &brotliPool
	}
	return &gzipPool
}

// negotiateEncoding picks br over gzip from an Accept-Encoding header.
// Codings listed with q=0 are refused.
func negotiateEncoding(header string) string {
	var br, gz bool
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if q := strings.TrimSpace(params); strings.HasPrefix(q, "q=") {
			if v, err := strconv.ParseFloat(q[2:], 64); err == nil && v == 0 {
				continue
			}
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "br":
			br = true
		case "gzip":
			gz = true
		}
	}
	switch {
	case br:
		return "br"
	case gz:
		return "gzip"
	}
	return ""
}

// compressWriter encodes the body lazily so bodiless responses stay empty.
type compressWriter struct {
	http.ResponseWriter
	encoding    string
	enc         encoder
	wroteHeader bool
	compress    bool
}

func (w *compressWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	h := w.Header()
	if status != http.StatusNoContent && status != http.StatusNotModified &&
		status >= http.StatusOK && h.Get("Content-Encoding") == "" {
		w.compress = true
		h.Set("Content-Encoding", w.encoding)
		h.Del("Content-Length")
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *compressWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if !w.compress {
		return w.ResponseWriter.Write(b)
	}
	if w.enc == nil {
		w.enc = poolFor(w.encoding).Get().(encoder)
		w.enc.Reset(w.ResponseWriter)
	}
	return w.enc.Write(b)
}

// Flush pushes buffered compressed bytes to the client.
func (w *compressWriter) Flush() {
	if w.enc != nil {
		w.enc.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *compressWriter) Close() {
	if w.enc == nil {
		return
	}
	w.enc.Close()
	w.enc.Reset(io.Discard)
	poolFor(w.encoding).Put(w.enc)
	w.enc = nil
}

func isUpgrade(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

// Compress returns a middleware that compresses responses with brotli or
// gzip, whichever the client prefers (brotli wins ties). Websocket upgrades
// are passed through untouched so the connection can be hijacked.
func Compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")
		if isUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}
		encoding := negotiateEncoding(r.Header.Get("Accept-Encoding"))
		if encoding == "" {
			next.ServeHTTP(w, r)
			return
		}

		cw := &compressWriter{ResponseWriter: w, encoding: encoding}
		defer cw.Close()
		next.ServeHTTP(cw, r)
	})
}
