package httpclient

import (
	"net/http"
	"time"

	"storefront-orders/internal/core/logger"

	"go.uber.org/zap"
)

// LoggingRoundTripper logs every outbound call made to a remote service.
type LoggingRoundTripper struct {
	// Service names the remote side in log entries (e.g. "stripe", "resend").
	Service string
	// Proxied is the underlying RoundTripper to execute the request.
	Proxied http.RoundTripper
}

// RoundTrip executes the request and logs method, path, status and latency.
// Query strings and headers are left out since they may carry credentials.
func (lrt *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	log := logger.Get().With(
		zap.String("service", lrt.Service),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
	)

	log.Debug("Outbound request started")

	resp, err := lrt.Proxied.RoundTrip(req)

	duration := time.Since(start)

	if err != nil {
		log.Error("Outbound request failed", zap.Duration("duration", duration), zap.Error(err))
		return nil, err
	}

	fields := []zap.Field{zap.Int("status_code", resp.StatusCode), zap.Duration("duration", duration)}
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		log.Warn("Outbound request completed with error status", fields...)
	} else {
		log.Debug("Outbound request completed", fields...)
	}

	return resp, nil
}

// NewClient returns an http.Client with logging middleware.
func NewClient(service string, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &LoggingRoundTripper{
			Service: service,
			Proxied: http.DefaultTransport,
		},
		Timeout: timeout,
	}
}
