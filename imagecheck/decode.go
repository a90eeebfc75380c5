package imagecheck

import (
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	// ErrPayloadSize means the encoded body fell outside the configured
	// bounds. The check runs on the encoded length, before decoding, so an
	// oversized request is rejected without allocating for its content.
	ErrPayloadSize = errors.New("encoded payload size out of bounds")

	// ErrPayloadEncoding means the body was not valid standard base64.
	ErrPayloadEncoding = errors.New("payload is not valid base64")
)

// DecodePayload decodes a standard-base64 body into raw bytes. The encoded
// length must be within [minBytes, maxBytes]; decoding is all-or-nothing.
func DecodePayload(encoded string, minBytes, maxBytes int) ([]byte, error) {
	if len(encoded) < minBytes || len(encoded) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadSize, len(encoded))
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadEncoding, err)
	}
	return raw, nil
}
