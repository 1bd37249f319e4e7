package llm

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"mime"
	"path/filepath"
	"strings"
)

// ImageDataURL inlines image bytes so the extraction service can read them without a blob URL.
func ImageDataURL(data []byte, contentType string) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ContentTypeForPath guesses an image content type from a file name.
func ContentTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	}
	return "application/octet-stream"
}

// ContentHash is the hex sha256 of data, used as a cache and blob key.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
