// Package proxy forwards admitted requests to the upstream admin application.
package proxy

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	apphttputil "github.com/allisson/gatekeeper/internal/httputil"
)

// Upstream is a reverse proxy to the admin application behind the gatekeeper.
// Requests reach it only after passing admission control; it forwards them
// unchanged apart from the identity headers the authentication middleware set.
type Upstream struct {
	proxy  *httputil.ReverseProxy
	target *url.URL
	logger *slog.Logger
}

// NewUpstream creates an Upstream forwarding to baseURL.
func NewUpstream(baseURL string, timeout time.Duration, logger *slog.Logger) (*Upstream, error) {
	target, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          1000,
		MaxIdleConnsPerHost:   1000,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}

	reverseProxy := httputil.NewSingleHostReverseProxy(target)
	reverseProxy.Transport = transport

	originalDirector := reverseProxy.Director
	reverseProxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = target.Host
	}

	reverseProxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		statusCode := http.StatusBadGateway
		message := "upstream unavailable"
		if isTimeoutError(err) {
			statusCode = http.StatusGatewayTimeout
			message = "upstream timed out"
		}

		logger.Error("upstream request failed",
			slog.String("path", r.URL.Path),
			slog.Int("status_code", statusCode),
			slog.Any("error", err),
		)

		apphttputil.MakeJSONResponse(w, statusCode, apphttputil.ErrorResponse{
			Error:   "bad_gateway",
			Message: message,
		})
	}

	return &Upstream{
		proxy:  reverseProxy,
		target: target,
		logger: logger,
	}, nil
}

// Handler returns the Gin handler that forwards the request upstream.
func (u *Upstream) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		u.proxy.ServeHTTP(c.Writer, c.Request)
	}
}

// Target returns the upstream base URL.
func (u *Upstream) Target() *url.URL {
	return u.target
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
