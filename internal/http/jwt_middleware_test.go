package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"dado-auth/internal/service"
)

func protectedRouter(jwtSvc *service.JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", JWTAuthMiddleware(jwtSvc), func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if !ok || claims.UserID != "user@example.com" {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.Status(http.StatusOK)
	})
	return r
}

func doProtected(r http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body["error"]
}

func TestJWTAuthMiddleware_AllowsValidSession(t *testing.T) {
	jwtSvc := service.NewJWTServiceWithStore("secret", 15*time.Minute, service.NewMemoryRevocationStore())
	token, err := jwtSvc.IssueSession("user@example.com")
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	rec := doProtected(protectedRouter(jwtSvc), "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = doProtected(protectedRouter(jwtSvc), "bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected case-insensitive scheme, got %d", rec.Code)
	}
}

func TestJWTAuthMiddleware_RejectsMissingToken(t *testing.T) {
	jwtSvc := service.NewJWTServiceWithStore("secret", 15*time.Minute, service.NewMemoryRevocationStore())

	for _, header := range []string{"", "Bearer ", "Bearer", "abc"} {
		rec := doProtected(protectedRouter(jwtSvc), header)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
		if got := errorMessage(t, rec); got != "Acceso denegado" {
			t.Fatalf("header %q: unexpected message %q", header, got)
		}
	}
}

func TestJWTAuthMiddleware_RejectsInvalidToken(t *testing.T) {
	jwtSvc := service.NewJWTServiceWithStore("secret", 15*time.Minute, service.NewMemoryRevocationStore())
	other := service.NewJWTService("other-secret", 15*time.Minute)
	forged, err := other.IssueSession("user@example.com")
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	for _, token := range []string{"garbage", forged} {
		rec := doProtected(protectedRouter(jwtSvc), "Bearer "+token)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		if got := errorMessage(t, rec); got != "Token inválido" {
			t.Fatalf("unexpected message %q", got)
		}
	}
}

func TestJWTAuthMiddleware_OtherSchemesReachVerification(t *testing.T) {
	jwtSvc := service.NewJWTServiceWithStore("secret", 15*time.Minute, service.NewMemoryRevocationStore())
	token, err := jwtSvc.IssueSession("user@example.com")
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	for _, header := range []string{"Token abc", "Basic abc"} {
		rec := doProtected(protectedRouter(jwtSvc), header)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("header %q: expected 403, got %d", header, rec.Code)
		}
		if got := errorMessage(t, rec); got != "Token inválido" {
			t.Fatalf("header %q: unexpected message %q", header, got)
		}
	}

	rec := doProtected(protectedRouter(jwtSvc), "Token "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected the credential to be accepted whatever the scheme, got %d", rec.Code)
	}
}

func TestJWTAuthMiddleware_RejectsRevokedToken(t *testing.T) {
	ctx := context.Background()
	jwtSvc := service.NewJWTServiceWithStore("secret", 15*time.Minute, service.NewMemoryRevocationStore())
	token, err := jwtSvc.IssueSession("user@example.com")
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	claims, err := jwtSvc.ParseSession(ctx, token)
	if err != nil {
		t.Fatalf("parse session: %v", err)
	}
	if err := jwtSvc.Revoke(ctx, claims); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	rec := doProtected(protectedRouter(jwtSvc), "Bearer "+token)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for revoked token, got %d", rec.Code)
	}
}
