// Package verify implements the identity verification rules: an ID photo and
// a selfie must each show exactly one face, the two faces must have
// consistent estimated ages, and their descriptors must be close enough to
// belong to the same person.
package verify

// Code is a machine-readable rejection reason.
type Code string

// The closed set of rejection codes surfaced to callers.
const (
	CodeInvalidFileType   Code = "invalid_file_type"
	CodeFileTooLarge      Code = "file_too_large"
	CodeInvalidIDPhoto    Code = "invalid_id_photo"
	CodeInvalidSelfie     Code = "invalid_selfie"
	CodeAgeMismatch       Code = "age_mismatch"
	CodeFaceMismatch      Code = "face_mismatch"
	CodeVerificationError Code = "verification_error"
)

// Verdict is the structured result of one verification attempt. Rule
// failures are carried here as data rather than as errors so every rejection
// reason stays explicit and renderable.
type Verdict struct {
	Valid       bool   `json:"valid"`
	Code        Code   `json:"code,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

func pass() *Verdict {
	return &Verdict{Valid: true}
}

func fail(code Code, title, description string) *Verdict {
	return &Verdict{Code: code, Title: title, Description: description}
}
