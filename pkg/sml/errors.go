package sml

import "errors"

var (
	ErrFraming          = errors.New("sml framing error")
	ErrChecksumMismatch = errors.New("sml checksum mismatch")
	ErrUnknownDataType  = errors.New("sml unknown data type")
	ErrFrameTimeout     = errors.New("sml frame timeout")
	ErrMissingValue     = errors.New("sml missing value")
)
