package services

import (
	"fmt"
	"path/filepath"
	"strings"
)

// allowedExtensions is the upload format allow-list, matched case-insensitively.
var allowedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
	".aac":  true,
	".webm": true,
}

// ValidateUpload checks filename presence, extension and declared size before
// any downstream resource is spent. declaredSize < 0 means unknown; the hard
// cap is still enforced while the upload is streamed to disk.
// File contents are never inspected here.
func ValidateUpload(filename string, declaredSize, maxBytes int64) error {
	if strings.TrimSpace(filename) == "" {
		return UnsupportedMediaType("no file provided")
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if ext == "" || !allowedExtensions[ext] {
		return UnsupportedMediaType(fmt.Sprintf("unsupported audio format: %q", ext))
	}

	if maxBytes > 0 && declaredSize > maxBytes {
		return PayloadTooLarge(fmt.Sprintf("file too large, maximum allowed: %d bytes", maxBytes))
	}

	return nil
}
