package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/listingest/internal/core"
)

func ownerEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(core.OwnerIDFromContext(r.Context())))
	})
}

func TestAPIKeyAuth(t *testing.T) {
	owners := map[string]string{"k-alice": "alice", "k-bob": "bob"}

	tests := []struct {
		name       string
		required   bool
		apiKey     string
		ownerHdr   string
		wantStatus int
		wantOwner  string
	}{
		{"required valid key", true, "k-bob", "", http.StatusOK, "bob"},
		{"required missing key", true, "", "", http.StatusUnauthorized, ""},
		{"required wrong key", true, "nope", "", http.StatusForbidden, ""},
		{"header ignored when key matches", true, "k-alice", "mallory", http.StatusOK, "alice"},
		{"optional no key uses header", false, "", "carol", http.StatusOK, "carol"},
		{"optional anonymous", false, "", "", http.StatusOK, core.AnonymousOwner},
		{"optional wrong key still rejected", false, "nope", "", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := APIKeyAuth(tt.required, owners)(ownerEcho())
			req := httptest.NewRequest(http.MethodGet, "/api/lists", nil)
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			if tt.ownerHdr != "" {
				req.Header.Set(OwnerHeader, tt.ownerHdr)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantOwner != "" {
				assert.Equal(t, tt.wantOwner, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"success":false`)
			}
		})
	}
}

func TestLogger_CapturesOwnerAndStatus(t *testing.T) {
	var captured *responseWriter
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = w.(*responseWriter)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})
	h := Logger(APIKeyAuth(false, nil)(inner))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(OwnerHeader, "dana")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, http.StatusTeapot, captured.status)
	assert.Equal(t, len("short and stout"), captured.bytes)
	assert.Equal(t, "dana", captured.owner)
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		headers map[string]string
		want    string
	}{
		{"untrusted source keeps remote", []string{"10.0.0.0/8"}, "203.0.113.5:4000",
			map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.5:4000"},
		{"trusted real ip", []string{"10.0.0.0/8"}, "10.1.2.3:4000",
			map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted forwarded for first hop", []string{"127.0.0.1"}, "127.0.0.1:9",
			map[string]string{"X-Forwarded-For": "5.6.7.8, 10.0.0.1"}, "5.6.7.8"},
		{"invalid header ignored", []string{"10.0.0.0/8"}, "10.0.0.1:1",
			map[string]string{"X-Real-IP": "not-an-ip"}, "10.0.0.1:1"},
		{"no trusted proxies", nil, "10.0.0.1:1",
			map[string]string{"X-Real-IP": "1.2.3.4"}, "10.0.0.1:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTrustedProxies_SkipsInvalid(t *testing.T) {
	got := ParseTrustedProxies([]string{"10.0.0.0/8", " ", "garbage", "::1"})
	assert.Len(t, got, 2)
}
