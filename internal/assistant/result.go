package assistant

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Kind classifies the outcome of a Query.
type Kind string

const (
	KindOK           Kind = "ok"
	KindTimeout      Kind = "timeout"
	KindHTTPError    Kind = "http_error"
	KindMalformed    Kind = "malformed"
	KindTransport    Kind = "transport"
	KindUnconfigured Kind = "unconfigured"
)

// Result is the outcome of one assistant call. Query never returns an error;
// every failure is described by Kind and the fields that accompany it.
//
// Content and TokensUsed are set for KindOK. StatusCode and Body are set for
// KindHTTPError. Timeout is set for KindTimeout. Err carries the underlying
// cause for every non-OK kind except KindUnconfigured.
type Result struct {
	Kind       Kind
	Section    string
	Content    string
	TokensUsed int
	StatusCode int
	Body       string
	Timeout    time.Duration
	Err        error
}

// OK reports whether the assistant returned usable content.
func (r Result) OK() bool {
	return r.Kind == KindOK
}

// Message describes a failed result for logs and fallback payloads.
func (r Result) Message() string {
	switch r.Kind {
	case KindOK:
		return ""
	case KindTimeout:
		return fmt.Sprintf("Request timed out after %s seconds", formatSeconds(r.Timeout))
	case KindUnconfigured:
		return "No assistant configured for tenant"
	case KindHTTPError:
		return fmt.Sprintf("assistant returned status %d: %s", r.StatusCode, r.Body)
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return "Unknown error"
}

type timeoutPayload struct {
	Error   string `json:"error"`
	Section string `json:"section"`
	Rows    []any  `json:"rows"`
	Message string `json:"message"`
}

type failurePayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Rows    []any  `json:"rows"`
}

type unconfiguredPayload struct {
	Error   string         `json:"error"`
	Section string         `json:"section"`
	Data    map[string]any `json:"data"`
}

// Payload returns the text handed to the response parser: the assistant's
// reply on success, or a JSON document describing the failure otherwise.
// Fallback documents always parse and carry an "error" key.
func (r Result) Payload() string {
	var v any

	switch r.Kind {
	case KindOK:
		return r.Content
	case KindTimeout:
		v = timeoutPayload{
			Error:   "Request timeout",
			Section: r.Section,
			Rows:    []any{},
			Message: r.Message(),
		}
	case KindUnconfigured:
		v = unconfiguredPayload{
			Error:   r.Message(),
			Section: r.Section,
			Data:    map[string]any{},
		}
	default:
		v = failurePayload{
			Error:   fmt.Sprintf("Failed to extract %s", r.Section),
			Message: r.Message(),
			Rows:    []any{},
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":"Failed to extract %s","rows":[]}`, r.Section)
	}
	return string(b)
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
