package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		trustProxy bool
		want       string
	}{
		{"direct", "203.0.113.7:4242", "", "", false, "203.0.113.7"},
		{"proxy headers ignored when untrusted", "10.0.0.1:80", "203.0.113.7", "", false, "10.0.0.1"},
		{"xff single", "10.0.0.1:80", "203.0.113.7", "", true, "203.0.113.7"},
		{"xff chain takes first", "10.0.0.1:80", "203.0.113.7, 10.0.0.2, 10.0.0.3", "", true, "203.0.113.7"},
		{"xri fallback", "10.0.0.1:80", "", "203.0.113.9", true, "203.0.113.9"},
		{"no port", "203.0.113.7", "", "", false, "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := ClientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFloatParam(t *testing.T) {
	req := httptest.NewRequest("GET", "/?lat=45.5&bad=abc", nil)

	if v, err := FloatParam(req, "lat", 0); err != nil || v != 45.5 {
		t.Errorf("FloatParam(lat) = %v, %v", v, err)
	}
	if v, err := FloatParam(req, "alt", 100); err != nil || v != 100 {
		t.Errorf("FloatParam(alt) default = %v, %v", v, err)
	}
	if _, err := FloatParam(req, "bad", 0); err == nil {
		t.Error("FloatParam(bad): expected error")
	}

	if _, err := RequiredFloatParam(req, "missing"); err == nil {
		t.Error("RequiredFloatParam(missing): expected error")
	}
	if v, err := RequiredFloatParam(req, "lat"); err != nil || v != 45.5 {
		t.Errorf("RequiredFloatParam(lat) = %v, %v", v, err)
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusBadRequest, "boom")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if w.Body.String() != "{\"error\":\"boom\"}\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}
