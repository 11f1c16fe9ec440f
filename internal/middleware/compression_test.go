package middleware

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
)

// snapshotPayload mimics a simulation snapshot with n nodes.
func snapshotPayload(n int) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"id":"sim","alpha":0.05,"running":true,"ticks":42,"nodes":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteString(",")
		}
		fmt.Fprintf(&buf, `{"id":"node_%d","x":%.4f,"y":%.4f}`, i, float64(i%97)*3.25, float64(i%89)*2.5)
	}
	buf.WriteString(`]}`)
	return buf.Bytes()
}

func payloadHandler(payload []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(payload)
	})
}

func decode(t *testing.T, encoding string, body io.Reader) []byte {
	t.Helper()
	var r io.Reader
	switch encoding {
	case "gzip":
		gr, err := gzip.NewReader(body)
		if err != nil {
			t.Fatalf("failed to create gzip reader: %v", err)
		}
		defer gr.Close()
		r = gr
	case "br":
		r = brotli.NewReader(body)
	default:
		r = body
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read %s body: %v", encoding, err)
	}
	return out
}

func TestNegotiateEncoding(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"gzip", "gzip"},
		{"gzip, deflate", "gzip"},
		{"deflate", ""},
		{"br", "br"},
		{"gzip, deflate, br", "br"},
		{"br;q=0, gzip", "gzip"},
		{"gzip;q=0", ""},
		{"GZIP", "gzip"},
		{"br;q=0.5", "br"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if got := negotiateEncoding(tt.header); got != tt.want {
				t.Errorf("negotiateEncoding(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestCompress(t *testing.T) {
	payload := snapshotPayload(1000)

	tests := []struct {
		name           string
		acceptEncoding string
		wantEncoding   string
		maxRatio       float64
	}{
		{"gzip", "gzip", "gzip", 0.40},
		{"brotli", "br", "br", 0.40},
		{"prefers brotli", "gzip, br", "br", 0.40},
		{"identity", "", "", 1},
		{"unsupported", "deflate", "", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Compress(payloadHandler(payload))
			req := httptest.NewRequest(http.MethodGet, "/api/simulations/x", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rr.Code)
			}
			if got := rr.Header().Get("Content-Encoding"); got != tt.wantEncoding {
				t.Fatalf("expected Content-Encoding %q, got %q", tt.wantEncoding, got)
			}
			if vary := rr.Header().Get("Vary"); vary != "Accept-Encoding" {
				t.Errorf("expected Vary: Accept-Encoding, got %q", vary)
			}

			ratio := float64(rr.Body.Len()) / float64(len(payload))
			if ratio > tt.maxRatio {
				t.Errorf("compressed to %.2f of original, want at most %.2f", ratio, tt.maxRatio)
			}
			if body := decode(t, tt.wantEncoding, rr.Body); !bytes.Equal(body, payload) {
				t.Error("decompressed body doesn't match original payload")
			}
		})
	}
}

func TestCompress_BodilessResponses(t *testing.T) {
	for _, status := range []int{http.StatusNoContent, http.StatusNotModified} {
		handler := Compress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		req := httptest.NewRequest(http.MethodGet, "/api/simulations/x", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Header().Get("Content-Encoding") != "" || rr.Body.Len() != 0 {
			t.Errorf("status %d should not be encoded, got %q with %d bytes",
				status, rr.Header().Get("Content-Encoding"), rr.Body.Len())
		}
	}
}

func TestCompress_SkipsWebsocketUpgrade(t *testing.T) {
	handler := Compress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(*compressWriter); ok {
			t.Error("upgrade requests must get the raw ResponseWriter")
		}
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/simulations/x/ws", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestCompress_PreEncodedPassthrough(t *testing.T) {
	handler := Compress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "identity")
		w.Write([]byte("raw"))
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "br")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Body.String() != "raw" {
		t.Errorf("a handler that sets its own encoding should not be re-encoded, got %q", rr.Body.String())
	}
}

func TestCompress_PooledWritersAreReset(t *testing.T) {
	handler := Compress(payloadHandler([]byte(strings.Repeat("abc", 100))))
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if body := decode(t, "gzip", rr.Body); string(body) != strings.Repeat("abc", 100) {
			t.Fatalf("request %d decoded to unexpected body", i)
		}
	}
}

func benchmarkCompress(b *testing.B, encoding string) {
	payload := snapshotPayload(10000)
	handler := Compress(payloadHandler(payload))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/simulations/x", nil)
		req.Header.Set("Accept-Encoding", encoding)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func BenchmarkGzipCompression(b *testing.B)   { benchmarkCompress(b, "gzip") }
func BenchmarkBrotliCompression(b *testing.B) { benchmarkCompress(b, "br") }
