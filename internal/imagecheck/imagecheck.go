// Package imagecheck validates uploaded images before any inference runs.
// Inference backends behave unpredictably on arbitrary input, so every photo
// passes through here first.
package imagecheck

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes is the size cap for a single verification photo.
const MaxImageBytes = 10 << 20

// Error codes returned by Validate.
const (
	CodeInvalidType = "invalid_file_type"
	CodeTooLarge    = "file_too_large"
)

var allowedTypes = []string{"image/jpeg", "image/png", "image/webp"}

// ValidationError describes why an upload was refused. It is returned as a
// value rather than raised so callers can render field-level feedback.
type ValidationError struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Validate checks the declared MIME type, the sniffed content type and the
// byte size of an upload. The sniffed type is authoritative: filenames and
// declared headers are caller-controlled and not trusted. A nil return means
// the image may be handed to the detector.
func Validate(content []byte, declaredMIME string, size int64) *ValidationError {
	if declaredMIME != "" && !isAllowed(declaredMIME) {
		return &ValidationError{
			Code:    CodeInvalidType,
			Message: fmt.Sprintf("unsupported image type %q, expected JPEG, PNG or WebP", declaredMIME),
		}
	}

	detected := mimetype.Detect(content)
	if !isAllowed(detected.String()) {
		return &ValidationError{
			Code:    CodeInvalidType,
			Message: fmt.Sprintf("unsupported image content %q, expected JPEG, PNG or WebP", detected.String()),
		}
	}

	if size > MaxImageBytes {
		return &ValidationError{
			Code:    CodeTooLarge,
			Message: fmt.Sprintf("image is %d bytes, the maximum is %d", size, MaxImageBytes),
		}
	}

	return nil
}

func isAllowed(mime string) bool {
	for _, allowed := range allowedTypes {
		if mime == allowed {
			return true
		}
	}
	return false
}
