package gwerrs

import "errors"

// AsGatewayError extracts a GatewayError from the error chain.
func AsGatewayError(err error) (GatewayError, bool) {
	var gwErr GatewayError
	if errors.As(err, &gwErr) {
		return gwErr, true
	}

	return nil, false
}

// IsNotConnected reports whether err is a not-connected precondition
// failure.
func IsNotConnected(err error) bool {
	return hasCode(err, ErrCodeNotConnected)
}

// IsRequestTimeout reports whether err is a request timeout.
func IsRequestTimeout(err error) bool {
	return hasCode(err, ErrCodeRequestTimeout)
}

// IsHandshakeTimeout reports whether err is a handshake timeout during
// connect.
func IsHandshakeTimeout(err error) bool {
	return hasCode(err, ErrCodeHandshakeTimeout)
}

// IsFatal reports whether err ended the gateway session.
func IsFatal(err error) bool {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Fatal()
	}

	return false
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, category ErrorCategory) bool {
	gwErr, ok := AsGatewayError(err)
	if !ok {
		return false
	}

	return gwErr.Category() == category
}

func hasCode(err error, code ErrorCode) bool {
	gwErr, ok := AsGatewayError(err)
	if !ok {
		return false
	}

	return gwErr.Code() == code
}

// WrapError wraps an error with additional context in the given category.
func WrapError(
	category ErrorCategory,
	code ErrorCode,
	message string,
	err error,
) GatewayError {
	switch category {
	case CategoryClient:
		return NewClientError(code, message, err)
	case CategoryConnection:
		return NewConnectionError(code, message, err)
	case CategoryProtocol:
		return NewProtocolError(code, message, err)
	case CategoryTransport:
		return NewTransportError(code, message, err)
	default:
		return NewBaseError(category, code, message, err)
	}
}
