package buddyline

import (
	"encoding/json"
	"net/http"
)

// classifyTransport maps a transport-level failure (timeout, refused
// connection, DNS) to a *NetworkError. op names the logical call for
// diagnostics only; it never carries secrets.
func classifyTransport(op string, err error) error {
	return &NetworkError{Op: op, Err: err}
}

// classifyStatus maps an HTTP status code and response body to the closed
// error taxonomy. It returns nil for every 2xx status; body validity on
// success paths is the caller's concern (see classifyBody). The mapping is
// total: every non-2xx status resolves to exactly one taxonomy member.
func classifyStatus(statusCode int, body []byte) error {
	switch {
	case statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices:
		return nil
	case statusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case statusCode == http.StatusForbidden:
		return ErrForbidden
	case statusCode == http.StatusNotFound:
		return ErrNotFound
	case statusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return &ServerError{
		StatusCode: statusCode,
		Message:    serverMessage(statusCode, body),
		RawBody:    body,
	}
}

// classifyBody validates a successful response body. An empty body is the
// caller's decision (the gateway substitutes an empty object); a non-empty
// body that is not valid JSON is a malformed response.
func classifyBody(body []byte) error {
	if len(body) == 0 {
		return nil
	}
	if !json.Valid(body) {
		return ErrMalformedResponse
	}
	return nil
}

// serverMessage pulls a human-readable message out of an error body. Buddyline
// (and WordPress/BuddyPress generally) report errors as {"message": "..."}.
func serverMessage(statusCode int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	if text := http.StatusText(statusCode); text != "" {
		return text
	}
	return "unexpected response status"
}
