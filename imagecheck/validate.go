package imagecheck

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

var (
	// ErrExtensionNotAllowed means the claimed filename's extension is not
	// in the allowlist.
	ErrExtensionNotAllowed = errors.New("file extension not allowed")

	// ErrUnrecognizedFormat means no known image signature matched the
	// content.
	ErrUnrecognizedFormat = errors.New("unrecognized image format")

	// ErrFormatMismatch means the sniffed format disagrees with the claimed
	// extension.
	ErrFormatMismatch = errors.New("image content does not match claimed extension")
)

// ClaimedExt extracts the lowercased dotted extension from a filename.
func ClaimedExt(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// ValidateBytes checks a fully-buffered image against its claimed filename:
// the extension must be allowlisted and must equal the extension sniffed
// from the content. A nil return is an accept verdict.
func ValidateBytes(name string, data []byte, allowed []string) error {
	claimed := ClaimedExt(name)
	if !extAllowed(claimed, allowed) {
		return fmt.Errorf("%w: %q", ErrExtensionNotAllowed, claimed)
	}

	sniffed, ok := Sniff(data)
	if !ok {
		return ErrUnrecognizedFormat
	}
	if sniffed != claimed {
		return fmt.Errorf("%w: claimed %q, content is %q", ErrFormatMismatch, claimed, sniffed)
	}
	return nil
}

// ValidateStream is the seekable-stream form of ValidateBytes for the upload
// path. It peeks at most SniffLen bytes and rewinds the stream to the start
// before returning, so downstream consumers see it unconsumed.
func ValidateStream(name string, r io.ReadSeeker, allowed []string) error {
	claimed := ClaimedExt(name)
	if !extAllowed(claimed, allowed) {
		return fmt.Errorf("%w: %q", ErrExtensionNotAllowed, claimed)
	}

	header := make([]byte, SniffLen)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read image header: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind image stream: %w", err)
	}

	sniffed, ok := Sniff(header[:n])
	if !ok {
		return ErrUnrecognizedFormat
	}
	if sniffed != claimed {
		return fmt.Errorf("%w: claimed %q, content is %q", ErrFormatMismatch, claimed, sniffed)
	}
	return nil
}

func extAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}
