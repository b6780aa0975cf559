package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"iggrowth/pkg/apierr"
)

// The platform reports most failures as HTTP 200 with status "fail" and a
// human-readable message. These prefixes are the de facto protocol contract
// for an API that documents nothing; keep the matching centralized here.
const (
	rateLimitPrefix     = "Please wait a few minutes"
	actionBlockedPrefix = "This action was blocked."
)

// ClassifyResponse classifies a decoded API response envelope. It returns nil
// for success, otherwise a classified *apierr.Error carrying the raw payload
// for unrecognized failures.
func ClassifyResponse(sr *StatusResponse, rawBody string) *apierr.Error {
	if sr.Status != "fail" {
		return nil
	}
	if strings.HasPrefix(sr.Message, rateLimitPrefix) {
		return apierr.New(apierr.TypeRateLimited, "rate limited: %s", sr.Message)
	}
	if strings.HasPrefix(sr.FeedbackMessage, actionBlockedPrefix) {
		return apierr.New(apierr.TypeActionBlocked, "action blocked: %s", sr.FeedbackMessage)
	}
	return apierr.NewWithPayload(apierr.TypeUnrecognized, rawBody, "unrecognized failure response")
}

// ClassifyTransportError classifies an error raised before a response envelope
// could be decoded. Connection resets, timeouts, TLS failures and malformed
// bodies are transient; anything else is unrecognized.
func ClassifyTransportError(err error) *apierr.Error {
	var already *apierr.Error
	if errors.As(err, &already) {
		return already
	}

	if isTransient(err) {
		return apierr.New(apierr.TypeNetworkTransient, "transient network failure: %v", err)
	}
	return apierr.New(apierr.TypeUnrecognized, "request failed: %v", err)
}

func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var jsonErr *json.SyntaxError
	if errors.As(err, &jsonErr) {
		// truncated or non-JSON body, typically a dropped connection or an
		// intermediary error page
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}
	// http.Client wraps context deadline exceeded for request timeouts
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
