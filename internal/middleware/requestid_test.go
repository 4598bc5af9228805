package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	send := func(header string) (string, string) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("X-Request-ID", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return seen, rec.Header().Get("X-Request-ID")
	}

	ctxID, echoed := send("client-abc-123")
	if ctxID != "client-abc-123" || echoed != "client-abc-123" {
		t.Fatalf("forwarded id not propagated: ctx=%q header=%q", ctxID, echoed)
	}

	ctxID, echoed = send("")
	if ctxID == "" || ctxID != echoed {
		t.Fatalf("generated id mismatch: ctx=%q header=%q", ctxID, echoed)
	}

	oversized := strings.Repeat("x", maxRequestIDLen+1)
	ctxID, _ = send(oversized)
	if ctxID == oversized || ctxID == "" {
		t.Fatalf("oversized forwarded id should be replaced, got %q", ctxID)
	}
}

func TestRequestIDFromContextMissing(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("RequestIDFromContext(empty) = %q, want \"\"", got)
	}
}
