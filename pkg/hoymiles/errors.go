package hoymiles

import "errors"

var (
	ErrFraming                      = errors.New("framing error")
	ErrChecksumMismatch             = errors.New("checksum mismatch")
	ErrAddressMismatch              = errors.New("address mismatch")
	ErrEscapeSequenceInvalid        = errors.New("escape sequence invalid")
	ErrPacketSizeInvariantViolation = errors.New("packet size invariant violation")
	ErrUnsupportedInverterType      = errors.New("unsupported inverter type")
	ErrUnsupportedSerialNumber      = errors.New("unsupported serial number")
	ErrIncompleteResponse           = errors.New("incomplete response")
)
