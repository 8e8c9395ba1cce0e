// Package gwerrs provides the error handling framework for the ibsync SDK.
// It defines error categories, codes, and typed errors so that callers can
// distinguish precondition failures from degraded protocol conditions
// without string matching.
package gwerrs

import (
	"fmt"
	"maps"
)

// ErrorCategory represents different categories of errors that can occur
// while talking to the gateway.
type ErrorCategory string

const (
	// CategoryClient represents client-side errors.
	CategoryClient ErrorCategory = "client"
	// CategoryConnection represents connection lifecycle errors.
	CategoryConnection ErrorCategory = "connection"
	// CategoryProtocol represents protocol-level errors reported by the
	// gateway for a specific request.
	CategoryProtocol ErrorCategory = "protocol"
	// CategoryTransport represents transport-level I/O errors.
	CategoryTransport ErrorCategory = "transport"
)

// ErrorCode represents specific error codes within each category.
type ErrorCode string

// Client error codes.
const (
	ErrCodeNotConnected  ErrorCode = "not_connected"
	ErrCodeClientClosed  ErrorCode = "client_closed"
	ErrCodeInvalidConfig ErrorCode = "invalid_config"
)

// Connection error codes.
const (
	ErrCodeConnectFailed    ErrorCode = "connect_failed"
	ErrCodeHandshakeTimeout ErrorCode = "handshake_timeout"
	ErrCodeConnectionClosed ErrorCode = "connection_closed"
	ErrCodeFatalGatewayErr  ErrorCode = "fatal_gateway_error"
	ErrCodeAlreadyConnected ErrorCode = "already_connected"
)

// Protocol error codes.
const (
	ErrCodeRequestTimeout    ErrorCode = "request_timeout"
	ErrCodeRequestRejected   ErrorCode = "request_rejected"
	ErrCodeEventParseFailed  ErrorCode = "event_parse_failed"
	ErrCodeUnknownEventType  ErrorCode = "unknown_event_type"
	ErrCodeRequestCancelled  ErrorCode = "request_cancelled"
	ErrCodeDuplicateRequest  ErrorCode = "duplicate_request_id"
	ErrCodeOrphanedResponse  ErrorCode = "orphaned_response"
	ErrCodeMalformedEnvelope ErrorCode = "malformed_envelope"
)

// Transport error codes.
const (
	ErrCodeIOError     ErrorCode = "io_error"
	ErrCodeReadFailed  ErrorCode = "read_failed"
	ErrCodeWriteFailed ErrorCode = "write_failed"
	ErrCodeDialFailed  ErrorCode = "dial_failed"
)

// GatewayError represents the base interface for all SDK errors.
type GatewayError interface {
	error
	// Code returns the error code.
	Code() ErrorCode
	// Category returns the error category.
	Category() ErrorCategory
	// Unwrap returns the underlying error.
	Unwrap() error
	// Metadata returns additional error metadata.
	Metadata() map[string]any
}

// BaseError provides the base implementation for SDK errors.
type BaseError struct {
	code     ErrorCode
	category ErrorCategory
	message  string
	cause    error
	metadata map[string]any
}

// NewBaseError creates a new base error.
func NewBaseError(
	category ErrorCategory,
	code ErrorCode,
	message string,
	cause error,
) *BaseError {
	return &BaseError{
		code:     code,
		category: category,
		message:  message,
		cause:    cause,
		metadata: make(map[string]any),
	}
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.category, e.message, e.cause)
	}

	return fmt.Sprintf("%s: %s", e.category, e.message)
}

// Code returns the error code.
func (e *BaseError) Code() ErrorCode {
	return e.code
}

// Category returns the error category.
func (e *BaseError) Category() ErrorCategory {
	return e.category
}

// Unwrap returns the underlying error.
func (e *BaseError) Unwrap() error {
	return e.cause
}

// Metadata returns the error metadata.
func (e *BaseError) Metadata() map[string]any {
	return e.metadata
}

// WithMetadata adds metadata to the error.
func (e *BaseError) WithMetadata(key string, value any) *BaseError {
	e.metadata[key] = value

	return e
}

// WithMetadataMap adds multiple metadata items to the error.
func (e *BaseError) WithMetadataMap(metadata map[string]any) *BaseError {
	maps.Copy(e.metadata, metadata)

	return e
}

// ClientError represents client-side precondition failures. This is the
// only error kind the synchronous operations surface to callers directly.
type ClientError struct {
	*BaseError
}

// NewClientError creates a new client error.
func NewClientError(code ErrorCode, message string, cause error) *ClientError {
	return &ClientError{
		BaseError: NewBaseError(CategoryClient, code, message, cause),
	}
}

// WithSessionID adds session ID metadata to the error.
func (e *ClientError) WithSessionID(sessionID string) *ClientError {
	e.WithMetadata("session_id", sessionID)

	return e
}

// ConnectionError represents connection lifecycle errors. Fatal connection
// errors additionally carry the gateway code that ended the session.
type ConnectionError struct {
	*BaseError
	fatal bool
}

// NewConnectionError creates a new connection error.
func NewConnectionError(code ErrorCode, message string, cause error) *ConnectionError {
	return &ConnectionError{
		BaseError: NewBaseError(CategoryConnection, code, message, cause),
	}
}

// NewFatalConnectionError creates a connection error marking the session
// as no longer usable. gatewayCode is the numeric code reported by the
// gateway (0 when the failure is local, e.g. a closed socket).
func NewFatalConnectionError(message string, cause error, gatewayCode int) *ConnectionError {
	err := &ConnectionError{
		BaseError: NewBaseError(CategoryConnection, ErrCodeFatalGatewayErr, message, cause),
		fatal:     true,
	}
	err.WithMetadata("gateway_code", gatewayCode)

	return err
}

// Fatal reports whether the error ended the session.
func (e *ConnectionError) Fatal() bool {
	return e.fatal
}

// WithEndpoint adds endpoint metadata to the error.
func (e *ConnectionError) WithEndpoint(endpoint string) *ConnectionError {
	e.WithMetadata("endpoint", endpoint)

	return e
}

// ProtocolError represents request-scoped errors reported by the gateway
// or raised while decoding its event stream.
type ProtocolError struct {
	*BaseError
	requestID   int64
	gatewayCode int
}

// NewProtocolError creates a new protocol error.
func NewProtocolError(code ErrorCode, message string, cause error) *ProtocolError {
	return &ProtocolError{
		BaseError: NewBaseError(CategoryProtocol, code, message, cause),
	}
}

// WithRequestID adds the correlation id the error is scoped to.
func (e *ProtocolError) WithRequestID(requestID int64) *ProtocolError {
	e.requestID = requestID
	e.WithMetadata("request_id", requestID)

	return e
}

// WithGatewayCode adds the numeric gateway error code.
func (e *ProtocolError) WithGatewayCode(code int) *ProtocolError {
	e.gatewayCode = code
	e.WithMetadata("gateway_code", code)

	return e
}

// RequestID returns the correlation id the error is scoped to.
func (e *ProtocolError) RequestID() int64 {
	return e.requestID
}

// GatewayCode returns the numeric gateway error code.
func (e *ProtocolError) GatewayCode() int {
	return e.gatewayCode
}

// TransportError represents transport-level I/O errors.
type TransportError struct {
	*BaseError
}

// NewTransportError creates a new transport error.
func NewTransportError(code ErrorCode, message string, cause error) *TransportError {
	return &TransportError{
		BaseError: NewBaseError(CategoryTransport, code, message, cause),
	}
}
