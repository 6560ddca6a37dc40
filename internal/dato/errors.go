package dato

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrJobPending is returned when an async job has no result after the poll budget
var ErrJobPending = errors.New("job result not available")

// APIError is a non-2xx response from the Content Management API
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Codes      []string
	// Message is the remote message, kept verbatim
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if len(e.Codes) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Codes, ", "))
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// HasCode reports whether the remote error carries the given DatoCMS error code
func (e *APIError) HasCode(code string) bool {
	for _, c := range e.Codes {
		if c == code {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsPermissionDenied reports whether err means the token may not access the resource
func IsPermissionDenied(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized ||
		apiErr.StatusCode == http.StatusForbidden ||
		apiErr.HasCode("INSUFFICIENT_PERMISSIONS")
}

type errorDocument struct {
	Data []struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes struct {
			Code    string          `json:"code"`
			Details json.RawMessage `json:"details"`
		} `json:"attributes"`
	} `json:"data"`
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Body:       body,
	}

	var doc errorDocument
	if err := json.Unmarshal(body, &doc); err == nil && len(doc.Data) > 0 {
		var details []string
		for _, d := range doc.Data {
			if d.Attributes.Code != "" {
				apiErr.Codes = append(apiErr.Codes, d.Attributes.Code)
			}
			if len(d.Attributes.Details) > 0 && string(d.Attributes.Details) != "{}" {
				details = append(details, string(d.Attributes.Details))
			}
		}
		apiErr.Message = strings.Join(details, "; ")
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}
