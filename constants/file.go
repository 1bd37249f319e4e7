package constants

import "strings"

// Blob store folder hints.
const (
	ReceiptFolder = "payment-receipts"
)

// DefaultMaxImageBytes caps a single uploaded receipt image.
const DefaultMaxImageBytes = 10 << 20

// AllowedImageTypes maps accepted upload content types to the extension used for stored objects.
var AllowedImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/heic": "heic",
}

// NormalizeContentType lowercases and drops parameters ("image/JPEG; q=1" -> "image/jpeg").
func NormalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return NormalizeToken(ct)
}

// ExtForContentType returns the stored-object extension and whether the type is accepted.
func ExtForContentType(ct string) (string, bool) {
	ext, ok := AllowedImageTypes[NormalizeContentType(ct)]
	return ext, ok
}

// NormalizeToken trims and lowercases an enum-ish token.
func NormalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
