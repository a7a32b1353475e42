package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecurity(opt SecurityOptions, pre gin.HandlerFunc, prep func(*http.Request)) http.Header {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if pre != nil {
		r.Use(pre)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/api/v1/report/today", func(c *gin.Context) { c.String(http.StatusOK, "report") })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/report/today", nil)
	if prep != nil {
		prep(req)
	}
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders(t *testing.T) {
	withRID := func(c *gin.Context) {
		c.Header(requestIDHeader, "rid-1")
		c.Next()
	}
	viaTLS := func(r *http.Request) { r.TLS = &tls.ConnectionState{} }
	viaProxy := func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "HTTPS") }

	cases := []struct {
		name  string
		opt   SecurityOptions
		pre   gin.HandlerFunc
		prep  func(*http.Request)
		want  map[string]string
		unset []string
	}{
		{
			name: "baseline only",
			want: map[string]string{
				"X-Content-Type-Options": "nosniff",
				"X-Frame-Options":        "DENY",
				"Referrer-Policy":        "no-referrer",
			},
			unset: []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security", "Access-Control-Expose-Headers"},
		},
		{
			name:  "policy and no-store",
			opt:   SecurityOptions{NoStore: true, EnablePolicy: true},
			want:  map[string]string{"X-Permitted-Cross-Domain-Policies": "none", "Cache-Control": "no-store", "Pragma": "no-cache", "Expires": "0"},
			unset: []string{"Strict-Transport-Security"},
		},
		{
			name:  "hsts skipped on plain http",
			opt:   SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour},
			unset: []string{"Strict-Transport-Security"},
		},
		{
			name: "hsts over tls",
			opt:  SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour},
			prep: viaTLS,
			want: map[string]string{"Strict-Transport-Security": "max-age=86400; includeSubDomains; preload"},
		},
		{
			name: "hsts default max-age behind proxy",
			opt:  SecurityOptions{EnableHSTS: true},
			prep: viaProxy,
			want: map[string]string{"Strict-Transport-Security": "max-age=15552000; includeSubDomains; preload"},
		},
		{
			name: "expose request id",
			pre:  withRID,
			want: map[string]string{"Access-Control-Expose-Headers": requestIDHeader},
		},
		{
			name: "append to existing expose list",
			pre: func(c *gin.Context) {
				c.Header("Access-Control-Expose-Headers", "ETag")
				withRID(c)
			},
			want: map[string]string{"Access-Control-Expose-Headers": "ETag, " + requestIDHeader},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := serveSecurity(tc.opt, tc.pre, tc.prep)
			for k, v := range tc.want {
				if got := h.Get(k); got != v {
					t.Fatalf("%s = %q; want %q", k, got, v)
				}
			}
			for _, k := range tc.unset {
				if got := h.Get(k); got != "" {
					t.Fatalf("%s unexpectedly set to %q", k, got)
				}
			}
		})
	}
}

func TestIsHTTPS(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	tlsReq := httptest.NewRequest(http.MethodGet, "/", nil)
	tlsReq.TLS = &tls.ConnectionState{}
	proxied := httptest.NewRequest(http.MethodGet, "/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "https")

	if isHTTPS(plain) || !isHTTPS(tlsReq) || !isHTTPS(proxied) {
		t.Fatalf("isHTTPS: plain=%v tls=%v proxied=%v", isHTTPS(plain), isHTTPS(tlsReq), isHTTPS(proxied))
	}
}
