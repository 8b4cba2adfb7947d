package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/moshaveran/moshaver-backend/internal/services"
)

// Router backed by a verification service with no Redis, no mail client and
// no user repo; every storage-touching call must surface its own HTTP
// status through the error envelope.
func newVerificationRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := testLogger(t)

	svc := services.NewVerificationService(log, nil, nil, nil, "testsecret", 0, 0)
	handler := NewVerificationHandler(log, svc)

	router := gin.New()
	router.POST("/api/auth/request-code", handler.RequestCode)
	router.POST("/api/auth/verify", handler.VerifyCode)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequestCodeInvalidEmail(t *testing.T) {
	router := newVerificationRouter(t)

	rec := postJSON(t, router, "/api/auth/request-code", `{"email":"not-an-address"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid_email") {
		t.Fatalf("expected invalid_email code, got %s", rec.Body.String())
	}
}

func TestRequestCodeStoreUnavailable(t *testing.T) {
	router := newVerificationRouter(t)

	rec := postJSON(t, router, "/api/auth/request-code", `{"email":"someone@example.com"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "verification_unavailable") {
		t.Fatalf("expected verification_unavailable code, got %s", rec.Body.String())
	}
}

func TestVerifyCodeStoreUnavailable(t *testing.T) {
	router := newVerificationRouter(t)

	rec := postJSON(t, router, "/api/auth/verify", `{"email":"someone@example.com","code":"123456"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestVerifyCodeMissingFields(t *testing.T) {
	router := newVerificationRouter(t)

	rec := postJSON(t, router, "/api/auth/verify", `{"email":"someone@example.com"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
