package middleware

import (
	"bufio"
	"net"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// BrotliConfig tunes the compression middleware.
type BrotliConfig struct {
	// Quality is the brotli level, 0..11.
	Quality int
	// MinLength is the smallest body worth compressing.
	MinLength int
	// Skipper bypasses compression for matching requests.
	Skipper func(c *gin.Context) bool
}

// DefaultBrotliConfig favours speed over ratio for JSON APIs.
var DefaultBrotliConfig = BrotliConfig{
	Quality:   4,
	MinLength: 1024,
}

// Brotli compresses responses for clients that accept "br".
func Brotli() gin.HandlerFunc {
	return BrotliWithConfig(DefaultBrotliConfig)
}

// BrotliWithConfig compresses responses for clients that accept "br".
// Bodies are buffered until MinLength bytes are seen; shorter bodies are
// sent as-is. Upgrades, event streams and already-encoded or binary
// payloads pass through untouched.
func BrotliWithConfig(cfg BrotliConfig) gin.HandlerFunc {
	if cfg.Quality < brotli.BestSpeed || cfg.Quality > brotli.BestCompression {
		cfg.Quality = DefaultBrotliConfig.Quality
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultBrotliConfig.MinLength
	}

	return func(c *gin.Context) {
		if isStreamingRequest(c.Request) || !acceptsBrotli(c.Request) ||
			(cfg.Skipper != nil && cfg.Skipper(c)) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		bw := &brotliWriter{ResponseWriter: c.Writer, cfg: cfg}
		c.Writer = bw
		defer func() {
			if err := bw.finish(); err != nil {
				_ = c.Error(err)
			}
		}()
		c.Next()
	}
}

type brotliWriter struct {
	gin.ResponseWriter
	cfg BrotliConfig
	buf []byte
	br  *brotli.Writer
	// decided is set once the body is known to be compressed or passed through.
	decided bool
}

func (w *brotliWriter) Write(data []byte) (int, error) {
	if w.decided {
		if w.br != nil {
			return w.br.Write(data)
		}
		return w.ResponseWriter.Write(data)
	}

	w.buf = append(w.buf, data...)
	if len(w.buf) < w.cfg.MinLength {
		return len(data), nil
	}
	if err := w.decide(true); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (w *brotliWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// decide commits to compressing (when allowed) or to plain output and
// drains the buffer accordingly.
func (w *brotliWriter) decide(large bool) error {
	w.decided = true
	buf := w.buf
	w.buf = nil

	if large && compressible(w.ResponseWriter.Header()) {
		h := w.ResponseWriter.Header()
		h.Set("Content-Encoding", "br")
		h.Del("Content-Length")
		w.br = brotli.NewWriterLevel(w.ResponseWriter, w.cfg.Quality)
		_, err := w.br.Write(buf)
		return err
	}
	_, err := w.ResponseWriter.Write(buf)
	return err
}

// Flush commits to plain output for small bodies so streaming endpoints keep working.
func (w *brotliWriter) Flush() {
	if !w.decided {
		_ = w.decide(false)
	}
	if w.br != nil {
		_ = w.br.Flush()
	}
	w.ResponseWriter.Flush()
}

// Hijack lets a handler that was not filtered out take over the connection.
func (w *brotliWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.decided = true
	return w.ResponseWriter.Hijack()
}

func (w *brotliWriter) finish() error {
	if !w.decided {
		if len(w.buf) == 0 {
			w.decided = true
			return nil
		}
		if err := w.decide(false); err != nil {
			return err
		}
	}
	if w.br != nil {
		return w.br.Close()
	}
	return nil
}

// compressible rejects responses that are already encoded or are binary media.
func compressible(h http.Header) bool {
	if h.Get("Content-Encoding") != "" {
		return false
	}
	ct := strings.ToLower(h.Get("Content-Type"))
	switch {
	case ct == "":
		return true
	case strings.HasPrefix(ct, "image/"), strings.HasPrefix(ct, "video/"),
		strings.HasPrefix(ct, "audio/"), strings.HasPrefix(ct, "application/pdf"),
		strings.HasPrefix(ct, "application/zip"), strings.HasPrefix(ct, "application/octet-stream"):
		return false
	}
	return true
}

// isStreamingRequest matches requests whose responses must not be buffered.
func isStreamingRequest(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream") ||
		strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, q, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if !strings.EqualFold(strings.TrimSpace(name), "br") {
			continue
		}
		return strings.ReplaceAll(strings.TrimSpace(q), " ", "") != "q=0"
	}
	return false
}
