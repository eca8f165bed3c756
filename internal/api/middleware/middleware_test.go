package middleware

import (
	"ChatApp/internal/pkg/consts"
	"ChatApp/internal/pkg/logger"
	"ChatApp/internal/pkg/security"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (*security.Identity, error) {
	if token != "good" {
		return nil, security.ErrInvalidCredential
	}
	return &security.Identity{UserID: "u1", Email: "u1@example.com"}, nil
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestAuthMiddleware(t *testing.T) {
	r := newEngine()
	r.GET("/me", AuthMiddleware(stubVerifier{}), func(c *gin.Context) {
		identity := CurrentIdentity(c)
		if identity == nil {
			c.String(http.StatusInternalServerError, "no identity")
			return
		}
		c.String(http.StatusOK, c.GetString(consts.CtxUserID))
	})

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{name: "valid", header: "Bearer good", wantCode: 200},
		{name: "missing", header: "", wantCode: 401},
		{name: "wrong scheme", header: "Basic good", wantCode: 401},
		{name: "bad token", header: "Bearer bad", wantCode: 401},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if tt.wantCode == 200 {
				if w.Body.String() != "u1" {
					t.Errorf("body = %q, want u1", w.Body.String())
				}
				return
			}
			var env struct {
				Code int `json:"code"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode body %q: %v", w.Body.String(), err)
			}
			if env.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", env.Code, tt.wantCode)
			}
		})
	}
}

func TestTraceMiddleware(t *testing.T) {
	r := newEngine()
	r.Use(TraceMiddleware())
	r.GET("/t", func(c *gin.Context) {
		c.String(http.StatusOK, logger.TraceID(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.Header.Set(TraceHeader, "trace-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "trace-123" || w.Header().Get(TraceHeader) != "trace-123" {
		t.Errorf("propagated trace = %q / %q", w.Body.String(), w.Header().Get(TraceHeader))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))
	if w.Body.String() == "" || w.Body.String() != w.Header().Get(TraceHeader) {
		t.Errorf("generated trace = %q / %q", w.Body.String(), w.Header().Get(TraceHeader))
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := newEngine()
	r.Use(CORSMiddleware([]string{"https://chat.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://chat.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "https://chat.example.com" {
		t.Errorf("preflight = %d, allow origin %q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got allow header %q", got)
	}
}

func TestOriginAllowed(t *testing.T) {
	if !OriginAllowed(nil, "https://a") || !OriginAllowed([]string{"*"}, "https://a") {
		t.Error("empty list and wildcard should allow any origin")
	}
	if OriginAllowed([]string{"https://b"}, "https://a") {
		t.Error("unlisted origin allowed")
	}
}

