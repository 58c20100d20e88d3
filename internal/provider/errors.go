package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/stitchflow-website/dirsync/internal/httpclient"
)

// ErrorKind tells whether retrying a failed provider call can help
type ErrorKind string

const (
	// ErrorKindTransient covers network failures, rate limiting and provider outages
	ErrorKindTransient ErrorKind = "transient"

	// ErrorKindPermanent covers rejected credentials, bad requests and failed token refreshes
	ErrorKindPermanent ErrorKind = "permanent"
)

// Error is a classified provider failure
type Error struct {
	Kind       ErrorKind
	StatusCode int

	// Message is the provider's own explanation when it sent one
	Message string
	Err     error
}

// Error implements error
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider returned HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider request failed: %s", e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a provider error worth retrying
func IsTransient(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == ErrorKindTransient
}

// classify turns any error of a provider call into an *Error
func classify(err error) *Error {
	if err == nil {
		return nil
	}

	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return tokenError(err)
	}

	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		kind := ErrorKindPermanent
		if isTransientStatus(httpErr.StatusCode) {
			kind = ErrorKindTransient
		}
		return &Error{
			Kind:       kind,
			StatusCode: httpErr.StatusCode,
			Message:    upstreamMessage(httpErr.Body, httpErr.Message),
			Err:        err,
		}
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Kind: ErrorKindPermanent, Message: err.Error(), Err: err}
	}

	// Anything left is a transport failure: DNS, reset connections, client timeouts.
	return &Error{Kind: ErrorKindTransient, Message: err.Error(), Err: err}
}

// tokenError classifies a failure to obtain a usable access token. The user has to
// re-authenticate, so it is never retried.
func tokenError(err error) *Error {
	e := &Error{Kind: ErrorKindPermanent, Err: err}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil {
			e.StatusCode = retrieveErr.Response.StatusCode
		}
		detail := retrieveErr.ErrorDescription
		if detail == "" {
			detail = retrieveErr.ErrorCode
		}
		if detail == "" {
			detail = upstreamMessage(string(retrieveErr.Body), "")
		}
		e.Message = "token refresh failed: " + detail
		return e
	}

	e.Message = "token refresh failed: " + err.Error()
	return e
}

func isTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		code >= http.StatusInternalServerError
}

// upstreamMessage extracts the human readable part of an error body
func upstreamMessage(body, fallback string) string {
	if body == "" {
		return fallback
	}
	if gjson.Valid(body) {
		for _, path := range []string{"error.message", "error_description", "error"} {
			if v := gjson.Get(body, path); v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	return body
}
