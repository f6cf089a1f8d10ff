package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KotFed0t/portfolio_tracker/utils"
	"github.com/stretchr/testify/assert"
)

func TestLogger_PropagatesRequestID(t *testing.T) {
	var seen string
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = utils.GetRequestIDFromCtx(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/summary", nil)
	req.Header.Set(RequestIDHeader, "rq-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "rq-1", seen)
	assert.Equal(t, "rq-1", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestLogger_GeneratesRequestID(t *testing.T) {
	var seen string
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = utils.GetRequestIDFromCtx(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}
