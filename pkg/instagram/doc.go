// Package instagram provides a client for the platform's undocumented
// private API.
//
// This package includes:
//   - A cookie-session HTTP client whose calls run through the retry executor
//   - Type-safe models for API responses
//   - Helper functions for constructing API endpoints
//   - The response classifier that turns the platform's ad hoc failure
//     messages into the error taxonomy
//   - A lazy cursor pager for paginated listings
//
// Failure classification is the protocol contract: the API reports most
// failures as HTTP 200 with status "fail" and a human-readable message, so
// the classifier matches on the known message prefixes and treats everything
// else as unrecognized (fatal, surfaced with the raw payload).
//
// A Client owns one authenticated session and is not safe for concurrent
// use; the platform is cookie-affine and parallel calls on one session risk
// tripping abuse detection.
package instagram
