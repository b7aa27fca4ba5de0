package security

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func okHandler(captured *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil && r.Body != nil {
			data, _ := io.ReadAll(r.Body)
			*captured = string(data)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestBodyLimitPassesSmallBodies(t *testing.T) {
	var got string
	rec := httptest.NewRecorder()
	BodyLimit{Max: 10}.Middleware(okHandler(&got)).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(`{"a":1}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `{"a":1}`, got)
}

func TestBodyLimitRejectsStreamedOversize(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader("excessive"))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	BodyLimit{Max: 5}.Middleware(okHandler(nil)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Contains(t, rec.Body.String(), "PAYLOAD_TOO_LARGE")
}

func TestBodyLimitRejectsDeclaredLength(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader("content"))
	req.ContentLength = 100
	rec := httptest.NewRecorder()
	BodyLimit{Max: 5}.Middleware(okHandler(nil)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHeadersSetsHSTSOnlyOverTLS(t *testing.T) {
	h := Headers{EnableHSTS: true, HSTSIncludeSubdomains: true}.Middleware(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "https://studio.example.com", nil)
	req.TLS = &tls.ConnectionState{}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))

	plain := httptest.NewRecorder()
	h.ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "http://studio.example.com", nil))
	require.Empty(t, plain.Header().Get("Strict-Transport-Security"))
}
