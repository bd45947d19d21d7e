// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import "fmt"

// ErrorKind classifies a QuicError for the purposes of picking a
// CONNECTION_CLOSE error code.
type ErrorKind int

const (
	ErrorKindInternal ErrorKind = iota
	ErrorKindProtocolViolation
	ErrorKindFrameEncodingError
	ErrorKindFlowControlError
	ErrorKindStreamStateError
	ErrorKindTransportParameterError
	ErrorKindCryptoError // carries a TLS alert in Extra
	ErrorKindApplicationError
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindProtocolViolation:
		return "PROTOCOL_VIOLATION"
	case ErrorKindFrameEncodingError:
		return "FRAME_ENCODING_ERROR"
	case ErrorKindFlowControlError:
		return "FLOW_CONTROL_ERROR"
	case ErrorKindStreamStateError:
		return "STREAM_STATE_ERROR"
	case ErrorKindTransportParameterError:
		return "TRANSPORT_PARAMETER_ERROR"
	case ErrorKindCryptoError:
		return "CRYPTO_ERROR"
	case ErrorKindApplicationError:
		return "APPLICATION_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// QuicError is a protocol-level error: it names the RFC 9000 error kind, the
// frame type in which the violation was observed, and a human reason. It
// converts to a CONNECTION_CLOSE with layer=transport.
type QuicError struct {
	Kind      ErrorKind
	FrameType frameType
	Reason    string
	Extra     uint8 // TLS alert code, when Kind == ErrorKindCryptoError
}

func newQuicError(kind ErrorKind, ft frameType, reason string) *QuicError {
	return &QuicError{Kind: kind, FrameType: ft, Reason: reason}
}

func (e *QuicError) Error() string {
	return fmt.Sprintf("quic: %s (frame=%s): %s", e.Kind, e.FrameType, e.Reason)
}

// CloseFrame converts the error into the CONNECTION_CLOSE frame a peer
// should receive.
func (e *QuicError) CloseFrame() *ConnectionCloseFrame {
	return &ConnectionCloseFrame{
		App:          false,
		ErrorCode:    VarInt(e.Kind),
		TriggerFrame: VarInt(e.FrameType),
		Reason:       e.Reason,
	}
}

// AppError is a local, application-originated close, legal only while
// sending 0-RTT/1-RTT packets.
type AppError struct {
	ErrorCode VarInt
	Reason    string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("quic: application close (code=%d): %s", e.ErrorCode, e.Reason)
}

func (e *AppError) CloseFrame() *ConnectionCloseFrame {
	return &ConnectionCloseFrame{App: true, ErrorCode: e.ErrorCode, Reason: e.Reason}
}

// Error wraps either a protocol-level QuicError or a locally originated
// AppError, as produced by a close() API call.
type Error struct {
	Quic *QuicError
	App  *AppError
}

func (e *Error) Error() string {
	switch {
	case e.Quic != nil:
		return e.Quic.Error()
	case e.App != nil:
		return e.App.Error()
	default:
		return "quic: no error"
	}
}

// CloseFrame returns the CONNECTION_CLOSE frame to send for this error.
func (e *Error) CloseFrame() *ConnectionCloseFrame {
	if e.Quic != nil {
		return e.Quic.CloseFrame()
	}
	return e.App.CloseFrame()
}

func errorFromQuic(q *QuicError) *Error { return &Error{Quic: q} }
func errorFromApp(a *AppError) *Error   { return &Error{App: a} }

// Signals is a bitset carried out of a failed send attempt, enumerating why
// no bytes were produced. It is not an error: callers accumulate signals
// across sources and go back to sleep on their union.
type Signals uint8

const (
	SignalKeys Signals = 1 << iota
	SignalCredit
	SignalFlowControl
	SignalCongestion
	SignalTransport
	SignalEmpty
)

func (s Signals) has(bit Signals) bool { return s&bit != 0 }

func (s Signals) String() string {
	if s == 0 {
		return "none"
	}
	names := []struct {
		bit  Signals
		name string
	}{
		{SignalKeys, "KEYS"},
		{SignalCredit, "CREDIT"},
		{SignalFlowControl, "FLOW_CONTROL"},
		{SignalCongestion, "CONGESTION"},
		{SignalTransport, "TRANSPORT"},
		{SignalEmpty, "EMPTY"},
	}
	out := ""
	for _, n := range names {
		if s.has(n.bit) {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	return out
}
