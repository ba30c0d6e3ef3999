package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Problem is an RFC 9457 problem details body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`

	// Log is reported server side only.
	Log error `json:"-"`
}

func (p *Problem) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

func (p *Problem) Unwrap() error { return p.Log }

// MarshalJSON flattens Extensions into the root object.
func (p *Problem) MarshalJSON() ([]byte, error) {
	type alias Problem

	data := make(map[string]interface{}, len(p.Extensions)+5)
	for k, v := range p.Extensions {
		data[k] = v
	}

	std, err := json.Marshal(alias(*p))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(std, &data); err != nil {
		return nil, err
	}
	return json.Marshal(data)
}

type ProblemOption func(*Problem)

// NewError creates a generic Problem.
func NewError(status int, title, detail string, opts ...ProblemOption) *Problem {
	p := &Problem{
		Type:       "about:blank",
		Title:      title,
		Status:     status,
		Detail:     detail,
		Extensions: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func WithExtension(key string, value interface{}) ProblemOption {
	return func(p *Problem) {
		p.Extensions[key] = value
	}
}

// WithLog attaches an internal error for server-side logging.
func WithLog(err error) ProblemOption {
	return func(p *Problem) {
		p.Log = err
	}
}

func WithType(uri string) ProblemOption {
	return func(p *Problem) {
		p.Type = uri
	}
}

func WithInstance(path string) ProblemOption {
	return func(p *Problem) {
		p.Instance = path
	}
}

func ValidationError(fields map[string]string) *Problem {
	return NewError(
		http.StatusBadRequest,
		"Validation Error",
		"One or more fields failed validation",
		WithType("/problems/validation"),
		WithExtension("errors", fields),
	)
}

func BadRequestError(detail string, opts ...ProblemOption) *Problem {
	return NewError(http.StatusBadRequest, "Bad Request", detail, opts...)
}

func NotFoundError(detail string) *Problem {
	return NewError(http.StatusNotFound, "Not Found", detail)
}

func InternalError(detail string, err error) *Problem {
	return NewError(http.StatusInternalServerError, "Internal Server Error", detail, WithLog(err))
}

// UpstreamError is a 502 for model failures and unusable model output.
func UpstreamError(detail string, err error, opts ...ProblemOption) *Problem {
	return NewError(http.StatusBadGateway, "Bad Gateway", detail, append(opts, WithLog(err))...)
}

func UpstreamTimeoutError(detail string, err error, opts ...ProblemOption) *Problem {
	return NewError(http.StatusGatewayTimeout, "Gateway Timeout", detail, append(opts, WithLog(err))...)
}

// RateLimitError carries the wait in seconds as the retry_after extension,
// matching the Retry-After header.
func RateLimitError(detail string, retryAfter int) *Problem {
	return NewError(http.StatusTooManyRequests, "Too Many Requests", detail, WithExtension("retry_after", retryAfter))
}

func ServiceUnavailableError(detail string) *Problem {
	return NewError(http.StatusServiceUnavailable, "Service Unavailable", detail)
}
