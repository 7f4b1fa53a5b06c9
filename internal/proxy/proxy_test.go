package proxy

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

	"github.com/allisson/gatekeeper/internal/httputil"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// closeNotifyRecorder adds the http.CloseNotifier method that
// httputil.ReverseProxy requires from gin's response writer and that
// httptest.ResponseRecorder does not provide.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newCloseNotifyRecorder() *closeNotifyRecorder {
	return &closeNotifyRecorder{httptest.NewRecorder(), make(chan bool, 1)}
}

func (c *closeNotifyRecorder) CloseNotify() <-chan bool { return c.closed }

func createProxyRouter(t *testing.T, baseURL string, timeout time.Duration) *gin.Engine {
	t.Helper()

	upstream, err := NewUpstream(baseURL, timeout, testLogger())
	require.NoError(t, err)

	router := gin.New()
	router.NoRoute(upstream.Handler())
	return router
}

func TestUpstream_ForwardsRequests(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backend", "admin-app")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `","subject":"` + r.Header.Get("X-Auth-Subject") + `"}`))
	}))
	defer backend.Close()

	router := createProxyRouter(t, backend.URL, 5*time.Second)

	w := newCloseNotifyRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/merchants", nil)
	req.Header.Set("X-Auth-Subject", "ops@example.com")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "admin-app", w.Header().Get("X-Backend"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "/api/merchants", body["path"])
	assert.Equal(t, "ops@example.com", body["subject"])
}

func TestUpstream_RewritesHostHeader(t *testing.T) {
	var seenHost string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenHost = r.Host
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	upstream, err := NewUpstream(backend.URL, 5*time.Second, testLogger())
	require.NoError(t, err)

	router := gin.New()
	router.NoRoute(upstream.Handler())

	w := newCloseNotifyRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Host = "gateway.example.com"
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, upstream.Target().Host, seenHost)
}

func TestUpstream_UnreachableBackend_BadGateway(t *testing.T) {
	// A closed port: connections are refused immediately.
	router := createProxyRouter(t, "http://127.0.0.1:1", time.Second)

	w := newCloseNotifyRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var response httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "bad_gateway", response.Error)
}

func TestUpstream_SlowBackend_GatewayTimeout(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	router := createProxyRouter(t, backend.URL, 50*time.Millisecond)

	w := newCloseNotifyRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestNewUpstream_InvalidURL(t *testing.T) {
	_, err := NewUpstream("http://bad url with spaces", time.Second, testLogger())
	assert.Error(t, err)
}
