// Package imagecheck authenticates image payloads before they reach the
// detection engine: it sniffs the true format from content, bounds and
// decodes inline base64 bodies, and checks claimed filenames against what
// the bytes actually are.
package imagecheck

import "net/http"

// SniffLen is how much of a stream the sniffer needs. Signatures for every
// supported format live within the first 512 bytes.
const SniffLen = 512

// contentTypeExts maps sniffed media types to the canonical dotted extension
// used everywhere else in the service. The JPEG family canonicalizes to
// ".jpg", never ".jpeg".
var contentTypeExts = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Sniff determines the true image format of header from its magic bytes and
// returns the canonical extension. It ignores filenames and declared content
// types entirely. Short or unrecognized input yields ok == false, never an
// error.
func Sniff(header []byte) (ext string, ok bool) {
	if len(header) == 0 {
		return "", false
	}
	if len(header) > SniffLen {
		header = header[:SniffLen]
	}
	ext, ok = contentTypeExts[http.DetectContentType(header)]
	return ext, ok
}
