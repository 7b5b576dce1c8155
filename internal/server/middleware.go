package server

import (
	"compress/gzip"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// recoverPanic turns handler panics into a 500 and logs them.
func (h *Handler) recoverPanic() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error().Interface("panic", rec).Str("path", ctx.Request.URL.Path).Msg("handler panic")
				ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		ctx.Next()
	}
}

func (h *Handler) accessLog() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		h.logger.Info().
			Str("method", ctx.Request.Method).
			Str("path", ctx.Request.URL.Path).
			Int("status", ctx.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// cors answers preflight requests and tags responses for browser clients.
func cors(origins []string) gin.HandlerFunc {
	wildcard := slices.Contains(origins, "*")
	return func(ctx *gin.Context) {
		origin := ctx.GetHeader("Origin")
		switch {
		case wildcard:
			ctx.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(origins, origin):
			ctx.Header("Access-Control-Allow-Origin", origin)
			ctx.Header("Vary", "Origin")
		}
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}

// gzipResponses compresses bodies for clients that accept gzip.
func gzipResponses() gin.HandlerFunc {
	pool := sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodOptions || ctx.Request.Method == http.MethodHead ||
			!strings.Contains(ctx.GetHeader("Accept-Encoding"), "gzip") {
			ctx.Next()
			return
		}
		gz := pool.Get().(*gzip.Writer)
		gz.Reset(ctx.Writer)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			pool.Put(gz)
		}()
		ctx.Header("Content-Encoding", "gzip")
		ctx.Writer.Header().Add("Vary", "Accept-Encoding")
		ctx.Writer = &gzipWriter{ResponseWriter: ctx.Writer, gz: gz}
		ctx.Next()
	}
}

type gzipWriter struct {
	gin.ResponseWriter
	gz *gzip.Writer
}

func (g *gzipWriter) Write(b []byte) (int, error) {
	g.Header().Del("Content-Length")
	return g.gz.Write(b)
}

func (g *gzipWriter) WriteString(s string) (int, error) {
	return g.Write([]byte(s))
}

// limitBody caps request bodies.
func limitBody(max int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodPost && ctx.Request.Body != nil {
			ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, max)
		}
		ctx.Next()
	}
}
