package services

import (
	"errors"
	"net/http"
)

// Condition is a pipeline failure with a stable code and the HTTP status it
// maps to at the boundary. Every rejection the pipeline can produce is one
// of the constructors below; nothing else escapes to the transport layer.
type Condition struct {
	Code   string
	Status int
	Detail string
	Err    error
}

func (c *Condition) Error() string {
	if c.Err != nil {
		return c.Code + ": " + c.Detail + ": " + c.Err.Error()
	}
	return c.Code + ": " + c.Detail
}

func (c *Condition) Unwrap() error {
	return c.Err
}

func AccessDenied(detail string) *Condition {
	return &Condition{Code: "access_denied", Status: http.StatusForbidden, Detail: detail}
}

func ServiceUnavailable(detail string) *Condition {
	return &Condition{Code: "service_unavailable", Status: http.StatusServiceUnavailable, Detail: detail}
}

func UnsupportedMediaType(detail string) *Condition {
	return &Condition{Code: "unsupported_media_type", Status: http.StatusUnprocessableEntity, Detail: detail}
}

func PayloadTooLarge(detail string) *Condition {
	return &Condition{Code: "payload_too_large", Status: http.StatusRequestEntityTooLarge, Detail: detail}
}

func TooManyRequests(detail string) *Condition {
	return &Condition{Code: "too_many_requests", Status: http.StatusTooManyRequests, Detail: detail}
}

func Timeout(detail string, err error) *Condition {
	return &Condition{Code: "timeout", Status: http.StatusGatewayTimeout, Detail: detail, Err: err}
}

func ProcessingFailed(detail string, err error) *Condition {
	return &Condition{Code: "processing_failed", Status: http.StatusUnprocessableEntity, Detail: detail, Err: err}
}

func ModelInferenceFailed(detail string, err error) *Condition {
	return &Condition{Code: "model_inference_failed", Status: http.StatusInternalServerError, Detail: detail, Err: err}
}

// StatusOf maps any pipeline error to its HTTP status; unknown errors are 500.
func StatusOf(err error) int {
	var c *Condition
	if errors.As(err, &c) {
		return c.Status
	}
	return http.StatusInternalServerError
}

// DetailOf returns the human-readable detail for any pipeline error.
func DetailOf(err error) string {
	var c *Condition
	if errors.As(err, &c) {
		return c.Detail
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
