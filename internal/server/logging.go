package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/contracts-extractor/internal/common"
)

type accessInfoKey struct{}

// accessInfo is filled in by inner handlers for the access log line.
type accessInfo struct {
	subject string
}

// noteSubject records the authenticated caller for the access log.
func noteSubject(ctx context.Context, sub string) {
	if info, ok := ctx.Value(accessInfoKey{}).(*accessInfo); ok {
		info.subject = sub
	}
}

// accessLog logs one line per request and hands chi's request ID to the
// pipeline through the common request-ID context key.
func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()
			rid := chimiddleware.GetReqID(ctx)
			if rid != "" {
				ctx = common.WithRequestID(ctx, rid)
			} else {
				ctx, rid = common.EnsureRequestID(ctx)
			}

			info := &accessInfo{}
			ctx = context.WithValue(ctx, accessInfoKey{}, info)

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			level := slog.LevelInfo
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []any{
				"req_id", rid,
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"remote", r.RemoteAddr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			}
			if info.subject != "" {
				attrs = append(attrs, "subject", info.subject)
			}
			logger.Log(ctx, level, "http.request", attrs...)
		})
	}
}
