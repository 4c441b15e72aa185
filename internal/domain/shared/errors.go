package shared

import (
	"errors"
	"fmt"
)

// TransportError wraps network-level failures (timeout, connection reset,
// DNS). Transport errors are retriable within a step's retry budget.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

// APIError carries a non-empty marketplace error envelope or a non-2xx
// HTTP status. Authentication codes are fatal for the shop cycle.
type APIError struct {
	Path       string
	Code       string
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("marketplace error on %s: %s (%s)", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("marketplace error on %s: status %d: %s", e.Path, e.StatusCode, e.Message)
}

func NewAPIError(path, code, message string, statusCode int) *APIError {
	return &APIError{Path: path, Code: code, Message: message, StatusCode: statusCode}
}

// IsAuthError reports whether the envelope code indicates an
// authentication failure that retrying cannot fix.
func (e *APIError) IsAuthError() bool {
	switch e.Code {
	case "error_auth", "error_permission", "invalid_access_token", "invalid_token", "auth":
		return true
	}
	return e.StatusCode == 401 || e.StatusCode == 403
}

// TokenError means the access token could not be refreshed. It is fatal
// for the current shop cycle.
type TokenError struct {
	ShopID int64
	Err    error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token refresh failed for shop %d: %v", e.ShopID, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

func NewTokenError(shopID int64, err error) *TokenError {
	return &TokenError{ShopID: shopID, Err: err}
}

// DataError marks a marketplace response missing a required field. The
// affected order is skipped and the batch continues.
type DataError struct {
	OrderSN string
	Field   string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("order %s: missing or invalid %s", e.OrderSN, e.Field)
}

func NewDataError(orderSN, field string) *DataError {
	return &DataError{OrderSN: orderSN, Field: field}
}

// StorageError wraps a transactional write failure. The order's
// transaction rolls back and the batch continues.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %v", e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func NewStorageError(err error) *StorageError {
	return &StorageError{Err: err}
}

// ConfigError means a shop or runtime is misconfigured (missing company,
// partner key, ...). Fails fast at the start of the shop cycle.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
}

func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// IsRetriable reports whether an error may succeed on a later attempt
// within the same step. Transport failures are retriable; marketplace
// envelopes are retriable unless they indicate an authentication
// problem; everything else surfaces immediately to the queue.
func IsRetriable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return !ae.IsAuthError()
	}
	return false
}
