package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the minimum response size in bytes before compression is applied
	MinSize int
	// Level is the gzip compression level (gzip.BestSpeed to gzip.BestCompression)
	Level int
	// CompressibleTypes lists media types worth compressing. Thumbnails and
	// annotated JPEGs are already compressed and are not listed.
	CompressibleTypes []string
}

// DefaultCompressionConfig compresses JSON and text responses of 1KB or more.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		Level:   gzip.DefaultCompression,
		CompressibleTypes: []string{
			"application/json",
			"text/plain",
			"text/html",
		},
	}
}

var (
	gzipPoolsMu sync.Mutex
	gzipPools   = map[int]*sync.Pool{}
)

// gzipPool returns the writer pool for a compression level.
func gzipPool(level int) *sync.Pool {
	gzipPoolsMu.Lock()
	defer gzipPoolsMu.Unlock()

	p, ok := gzipPools[level]
	if !ok {
		p = &sync.Pool{New: func() interface{} {
			w, err := gzip.NewWriterLevel(io.Discard, level)
			if err != nil {
				w = gzip.NewWriter(io.Discard)
			}
			return w
		}}
		gzipPools[level] = p
	}
	return p
}

// gzipResponseWriter buffers up to MinSize bytes before deciding whether to
// compress.
type gzipResponseWriter struct {
	http.ResponseWriter
	gzipWriter *gzip.Writer
	pool       *sync.Pool
	config     CompressionConfig
	buffer     []byte
	statusCode int
	decided    bool
}

func newGzipResponseWriter(w http.ResponseWriter, config CompressionConfig) *gzipResponseWriter {
	return &gzipResponseWriter{
		ResponseWriter: w,
		config:         config,
		pool:           gzipPool(config.Level),
		statusCode:     http.StatusOK,
		buffer:         make([]byte, 0, config.MinSize+1),
	}
}

// WriteHeader captures the status code until the compression decision.
func (g *gzipResponseWriter) WriteHeader(statusCode int) {
	if !g.decided {
		g.statusCode = statusCode
	}
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	if g.decided {
		if g.gzipWriter != nil {
			return g.gzipWriter.Write(data)
		}
		return g.ResponseWriter.Write(data)
	}

	g.buffer = append(g.buffer, data...)
	if len(g.buffer) > g.config.MinSize {
		if err := g.finalize(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (g *gzipResponseWriter) compressible() bool {
	contentType := g.Header().Get("Content-Type")
	if contentType == "" || g.Header().Get("Content-Encoding") != "" {
		return false
	}

	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, c := range g.config.CompressibleTypes {
		if mediaType == c {
			return true
		}
	}
	return false
}

// finalize writes headers and the buffered body.
func (g *gzipResponseWriter) finalize() error {
	if g.decided {
		return nil
	}
	g.decided = true

	buffered := g.buffer
	g.buffer = nil

	if len(buffered) < g.config.MinSize || !g.compressible() {
		g.ResponseWriter.WriteHeader(g.statusCode)
		_, err := g.ResponseWriter.Write(buffered)
		return err
	}

	g.Header().Del("Content-Length")
	g.Header().Set("Content-Encoding", "gzip")
	g.Header().Add("Vary", "Accept-Encoding")

	g.gzipWriter = g.pool.Get().(*gzip.Writer)
	g.gzipWriter.Reset(g.ResponseWriter)

	g.ResponseWriter.WriteHeader(g.statusCode)
	_, err := g.gzipWriter.Write(buffered)
	return err
}

// Close flushes the response and returns the gzip writer to its pool.
func (g *gzipResponseWriter) Close() error {
	if err := g.finalize(); err != nil {
		return err
	}
	if g.gzipWriter == nil {
		return nil
	}
	err := g.gzipWriter.Close()
	g.pool.Put(g.gzipWriter)
	g.gzipWriter = nil
	return err
}

// Flush implements http.Flusher
func (g *gzipResponseWriter) Flush() {
	if err := g.finalize(); err != nil {
		return
	}
	if g.gzipWriter != nil {
		g.gzipWriter.Flush()
	}
	if flusher, ok := g.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Compression returns a middleware that compresses responses using gzip
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			gzw := newGzipResponseWriter(w, config)
			defer func() {
				if err := gzw.Close(); err != nil {
					accessLog.Debug("gzip close: %v", err)
				}
			}()

			next.ServeHTTP(gzw, r)
		})
	}
}
