package token

import "errors"

// Reason classifies a decode failure.
type Reason int

const (
	ReasonMalformed Reason = iota + 1
	ReasonBadSignature
	ReasonExpired
)

func (r Reason) String() string {
	switch r {
	case ReasonMalformed:
		return "malformed"
	case ReasonBadSignature:
		return "bad_signature"
	case ReasonExpired:
		return "expired"
	}
	return "unknown"
}

var (
	ErrMalformed    = errors.New("token: malformed")
	ErrBadSignature = errors.New("token: signature mismatch")
	ErrExpired      = errors.New("token: expired")
)

func (r Reason) sentinel() error {
	switch r {
	case ReasonMalformed:
		return ErrMalformed
	case ReasonBadSignature:
		return ErrBadSignature
	case ReasonExpired:
		return ErrExpired
	}
	return nil
}

// DecodeError is returned by Codec.Decode.
type DecodeError struct {
	Reason Reason
	Err    error
}

func (e *DecodeError) Error() string {
	msg := e.Reason.sentinel().Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Is(target error) bool {
	return target == e.Reason.sentinel()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ReasonOf extracts the decode failure reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Reason, true
	}
	return 0, false
}
