package boltwire

import "fmt"

// EncodeError indicates a value could not be represented on the wire:
// an out-of-range integer, an oversized collection, a non-string map
// key, or a value whose variant is unsupported at the negotiated
// version. The session stays healthy after an EncodeError.
type EncodeError struct {
	Reason string
}

func NewEncodeError(reason string, args ...interface{}) *EncodeError {
	return &EncodeError{Reason: fmt.Sprintf(reason, args...)}
}

func (err *EncodeError) Error() string {
	return "boltwire: encode error: " + err.Reason
}

// DecodeError indicates malformed bytes on the wire: an unknown marker,
// truncated input, a non-string map key, or a struct with the wrong
// field count. An unknown struct signature is reported as a
// ProtocolError instead. Fatal: the connection that produced it must
// be dropped.
type DecodeError struct {
	Reason string
}

func NewDecodeError(reason string, args ...interface{}) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(reason, args...)}
}

func (err *DecodeError) Error() string {
	return "boltwire: decode error: " + err.Reason
}

// ProtocolError indicates a state-machine violation: an unexpected
// response, an out-of-order message, or an unsupported negotiated
// version. Fatal.
type ProtocolError struct {
	Reason string
}

func NewProtocolError(reason string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(reason, args...)}
}

func (err *ProtocolError) Error() string {
	return "boltwire: protocol error: " + err.Reason
}

// ServerFailureError wraps a FAILURE response. Recoverable via RESET or,
// pre-v3, ACK_FAILURE.
type ServerFailureError struct {
	Code    string
	Message string
}

func NewServerFailureError(code, message string) *ServerFailureError {
	return &ServerFailureError{Code: code, Message: message}
}

func (err *ServerFailureError) Error() string {
	return fmt.Sprintf("boltwire: server failure [%s]: %s", err.Code, err.Message)
}

// TransportError wraps a read/write/close failure or a deadline expiry
// on the underlying byte-stream. Always fatal; the session that
// produced it must be discarded.
type TransportError struct {
	Cause error
}

func NewTransportError(cause error) *TransportError {
	return &TransportError{Cause: cause}
}

func (err *TransportError) Error() string {
	return "boltwire: transport error: " + err.Cause.Error()
}

func (err *TransportError) Unwrap() error {
	return err.Cause
}

// HandshakeError indicates the server had no version in common with
// the client's offered list.
type HandshakeError struct {
	Offered []uint32
}

func NewHandshakeError(offered []uint32) *HandshakeError {
	return &HandshakeError{Offered: offered}
}

func (err *HandshakeError) Error() string {
	return fmt.Sprintf("boltwire: handshake failed, no common version among %v", err.Offered)
}

// AuthError indicates a FAILURE response to INIT/HELLO. The session
// becomes Defunct.
type AuthError struct {
	Code    string
	Message string
}

func NewAuthError(code, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

func (err *AuthError) Error() string {
	return fmt.Sprintf("boltwire: auth failed [%s]: %s", err.Code, err.Message)
}
