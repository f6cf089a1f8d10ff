package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/KotFed0t/portfolio_tracker/utils"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const RequestIDHeader = "X-Request-Id"

// Logger puts a request id into the request context, echoes it in the
// response header and logs the request start and finish.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()

		ctx := utils.CtxWithRqID(r.Context(), r.Header.Get(RequestIDHeader))
		rqID := utils.GetRequestIDFromCtx(ctx)
		w.Header().Set(RequestIDHeader, rqID)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		slog.Info(
			"start request",
			slog.String("rqID", rqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)

		defer func() {
			slog.Info(
				"request finished",
				slog.String("rqID", rqID),
				slog.Int("status", ww.Status()),
				slog.String("request duration", fmt.Sprintf("%.2fs", time.Since(now).Seconds())),
			)
		}()

		next.ServeHTTP(ww, r.WithContext(ctx))
	})
}
