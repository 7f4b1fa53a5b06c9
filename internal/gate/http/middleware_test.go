// Package http provides the gatekeeper middleware chain tests.
package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/gatekeeper/internal/auth/domain"
	authService "github.com/allisson/gatekeeper/internal/auth/service"
	gateDomain "github.com/allisson/gatekeeper/internal/gate/domain"
	"github.com/allisson/gatekeeper/internal/httputil"
)

// TestMain sets Gin to test mode for all tests in this package.
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTokenService(t *testing.T) authService.TokenService {
	t.Helper()
	tokenService, err := authService.NewTokenService([]byte("middleware-test-secret-key-0123456789"))
	require.NoError(t, err)
	return tokenService
}

func issueToken(t *testing.T, tokenService authService.TokenService, subject string, role authDomain.Role) string {
	t.Helper()
	token, _, err := tokenService.Issue(subject, role, time.Hour)
	require.NoError(t, err)
	return token
}

// createGateRouter builds a router with the admission chain and a terminal
// handler echoing the identity headers the chain set on the request.
func createGateRouter(t *testing.T, tokenService authService.TokenService) *gin.Engine {
	t.Helper()

	classifier := gateDomain.NewClassifier(gateDomain.DefaultProtectedPrefixes, "/api")
	mapper := gateDomain.NewActionMapper([]string{"/api/admins"})
	logger := testLogger()

	router := gin.New()
	router.Use(SecurityHeadersMiddleware())
	router.Use(ClassifyMiddleware(classifier))
	router.Use(AuthenticationMiddleware(tokenService, DefaultSessionCookie, "/login", nil, logger))
	router.Use(AuthorizationMiddleware(authDomain.DefaultRolePolicies(), mapper, nil, logger))
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"subject": c.Request.Header.Get("X-Auth-Subject"),
			"role":    c.Request.Header.Get("X-Auth-Role"),
		})
	})

	return router
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	router := createGateRouter(t, newTestTokenService(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/help", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
}

func TestSecurityHeaders_PresentOnRejections(t *testing.T) {
	router := createGateRouter(t, newTestTokenService(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/merchants", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestAuthenticationMiddleware_UnprotectedPath_NoCredential(t *testing.T) {
	router := createGateRouter(t, newTestTokenService(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/help", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthenticationMiddleware_BrowserPath_RedirectsToLogin(t *testing.T) {
	router := createGateRouter(t, newTestTokenService(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestAuthenticationMiddleware_APIPath_MissingCredential(t *testing.T) {
	router := createGateRouter(t, newTestTokenService(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/merchants", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var response httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "unauthorized", response.Error)
	assert.Equal(t, "Unauthorized", response.Message)
}

func TestAuthenticationMiddleware_APIPath_InvalidCredential(t *testing.T) {
	router := createGateRouter(t, newTestTokenService(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/merchants", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var response httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "unauthorized", response.Error)
	assert.Equal(t, "Invalid Token", response.Message)
}

func TestAuthenticationMiddleware_BrowserPath_InvalidCookie_Redirects(t *testing.T) {
	router := createGateRouter(t, newTestTokenService(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/merchants", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: "garbage"})
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestAuthenticationMiddleware_BearerHeader(t *testing.T) {
	tokenService := newTestTokenService(t)
	router := createGateRouter(t, tokenService)
	token := issueToken(t, tokenService, "ops@example.com", authDomain.RoleAdmin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/merchants", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ops@example.com", response["subject"])
	assert.Equal(t, "admin", response["role"])
}

func TestAuthenticationMiddleware_BearerHeader_CaseInsensitive(t *testing.T) {
	tokenService := newTestTokenService(t)
	router := createGateRouter(t, tokenService)
	token := issueToken(t, tokenService, "ops@example.com", authDomain.RoleAdmin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/merchants", nil)
	req.Header.Set("Authorization", "bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthenticationMiddleware_SessionCookie(t *testing.T) {
	tokenService := newTestTokenService(t)
	router := createGateRouter(t, tokenService)
	token := issueToken(t, tokenService, "viewer@example.com", authDomain.RoleViewer)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: token})
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "viewer@example.com", response["subject"])
}

func TestAuthenticationMiddleware_HeaderWinsOverCookie(t *testing.T) {
	tokenService := newTestTokenService(t)
	router := createGateRouter(t, tokenService)
	headerToken := issueToken(t, tokenService, "header@example.com", authDomain.RoleAdmin)
	cookieToken := issueToken(t, tokenService, "cookie@example.com", authDomain.RoleViewer)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/merchants", nil)
	req.Header.Set("Authorization", "Bearer "+headerToken)
	req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: cookieToken})
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "header@example.com", response["subject"])
}

func TestAuthenticationMiddleware_SpoofedIdentityHeadersReplaced(t *testing.T) {
	tokenService := newTestTokenService(t)
	router := createGateRouter(t, tokenService)
	token := issueToken(t, tokenService, "real@example.com", authDomain.RoleViewer)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/merchants", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Auth-Subject", "spoofed@example.com")
	req.Header.Set("X-Auth-Role", "admin")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "real@example.com", response["subject"])
	assert.Equal(t, "viewer", response["role"])
}

func TestAuthorizationMiddleware_RoleMatrix(t *testing.T) {
	tokenService := newTestTokenService(t)
	router := createGateRouter(t, tokenService)

	tests := []struct {
		name           string
		role           authDomain.Role
		method         string
		path           string
		expectedStatus int
	}{
		{
			name:           "Viewer_Get_Allowed",
			role:           authDomain.RoleViewer,
			method:         http.MethodGet,
			path:           "/api/merchants",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Viewer_Post_Forbidden",
			role:           authDomain.RoleViewer,
			method:         http.MethodPost,
			path:           "/api/merchants",
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "Viewer_Approve_Forbidden",
			role:           authDomain.RoleViewer,
			method:         http.MethodPost,
			path:           "/api/merchant/kyc/123/approve",
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "Manager_Approve_Allowed",
			role:           authDomain.RoleManager,
			method:         http.MethodPost,
			path:           "/api/merchant/kyc/123/approve",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Manager_Reject_Allowed",
			role:           authDomain.RoleManager,
			method:         http.MethodPost,
			path:           "/api/riders/7/reject",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Manager_ManageAdmins_Forbidden",
			role:           authDomain.RoleManager,
			method:         http.MethodGet,
			path:           "/api/admins",
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "Admin_ManageAdmins_Allowed",
			role:           authDomain.RoleAdmin,
			method:         http.MethodPost,
			path:           "/api/admins/123",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "UnknownRole_TreatedAsViewer_Get_Allowed",
			role:           authDomain.Role("auditor"),
			method:         http.MethodGet,
			path:           "/api/merchants",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "UnknownRole_TreatedAsViewer_Post_Forbidden",
			role:           authDomain.Role("auditor"),
			method:         http.MethodPost,
			path:           "/api/merchants",
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := issueToken(t, tokenService, "subject@example.com", tt.role)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("Authorization", "Bearer "+token)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestAuthorizationMiddleware_ForbiddenResponseBody(t *testing.T) {
	tokenService := newTestTokenService(t)
	router := createGateRouter(t, tokenService)
	token := issueToken(t, tokenService, "viewer@example.com", authDomain.RoleViewer)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/merchant/kyc/123/approve", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)

	var response httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "forbidden", response.Error)
	assert.Equal(t, "Forbidden: role viewer lacks capability approve", response.Message)
}

func TestAuthorizationMiddleware_WithoutAuthentication_FailsClosed(t *testing.T) {
	classifier := gateDomain.NewClassifier(gateDomain.DefaultProtectedPrefixes, "/api")
	mapper := gateDomain.NewActionMapper(nil)

	// A chain missing the authentication middleware must refuse, not guess.
	router := gin.New()
	router.Use(ClassifyMiddleware(classifier))
	router.Use(AuthorizationMiddleware(authDomain.DefaultRolePolicies(), mapper, nil, testLogger()))
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/merchants", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
