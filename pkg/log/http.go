package log

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const headerRequestID = "X-Request-ID"

// Transport returns an http.RoundTripper that:
//  1. Generates an X-Request-ID for the outgoing request unless one is set.
//  2. Creates a child logger with request metadata and injects it into the request context.
//  3. Logs the completed round trip with status and latency, or the transport error.
func Transport(base http.RoundTripper, logger zerolog.Logger) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &loggingTransport{base: base, logger: logger}
}

type loggingTransport struct {
	base   http.RoundTripper
	logger zerolog.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	reqID := req.Header.Get(headerRequestID)
	if reqID == "" {
		reqID = uuid.New().String()
	}

	child := t.logger.With().
		Str(FieldRequestID, reqID).
		Str(FieldMethod, req.Method).
		Str(FieldPath, req.URL.Path).
		Logger()

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(WithLogger(req.Context(), child))
	req.Header.Set(headerRequestID, reqID)

	resp, err := t.base.RoundTrip(req)
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		child.Warn().Err(err).Float64(FieldLatency, latency).Msg("request failed")
		return nil, err
	}

	child.Debug().
		Int(FieldStatus, resp.StatusCode).
		Float64(FieldLatency, latency).
		Msg("request completed")
	return resp, nil
}
