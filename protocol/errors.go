package protocol

import "errors"

var (
	ErrMalformedPacket = errors.New("protocol: malformed packet")
	ErrShortBody       = errors.New("protocol: short message body")
	ErrMissingBody     = errors.New("protocol: frame has no body")
)
