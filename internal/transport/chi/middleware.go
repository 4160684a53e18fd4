package chi

import (
	"errors"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cypherrag/internal/logger"
)

// recoverJSON turns a handler panic into a JSON 500. http.ErrAbortHandler is re-raised.
func recoverJSON(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				log.Error("handler panic",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLog puts a request-scoped logger in the context and writes one
// summary line per request, including the pipeline's usage headers.
func requestLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := chiMiddleware.GetReqID(r.Context())
			if id != "" {
				w.Header().Set("X-Request-ID", id)
			}

			reqLog := log.With(zap.String("request_id", id))
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logger.ContextWithLogger(r.Context(), reqLog)))

			level := zap.InfoLevel
			if ww.Status() >= http.StatusInternalServerError {
				level = zap.WarnLevel
			}
			reqLog.Log(level, "http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("llm_calls", ww.Header().Get(HeaderLLMCalls)),
				zap.String("llm_tokens", ww.Header().Get(HeaderLLMTokens)),
				zap.String("embedding_tokens", ww.Header().Get(HeaderEmbeddingTokens)),
			)
		})
	}
}
