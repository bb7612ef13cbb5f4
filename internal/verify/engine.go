package verify

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/example/id-verify/internal/imagecheck"
	"github.com/example/id-verify/internal/inference"
)

// Policy thresholds. Both are deliberately loose: age estimates carry several
// years of model error per image, and ID photos degrade with scanning,
// lighting and document age. Tunables, not physical constants.
const (
	// MaxAgeGapYears is the largest tolerated difference between the two
	// estimated ages. A gap of exactly this value still passes.
	MaxAgeGapYears = 10.0

	// MaxDescriptorDistance is the largest tolerated Euclidean distance
	// between the two face descriptors. A distance of exactly this value
	// still passes.
	MaxDescriptorDistance = 0.8
)

// File is one uploaded photo: raw bytes plus the declared MIME type and byte
// size. Filenames are never trusted or carried.
type File struct {
	Content  []byte
	MIMEType string
	Size     int64
}

// FaceSource yields detections for an image. *inference.Detector satisfies
// it.
type FaceSource interface {
	Detect(ctx context.Context, image []byte) ([]inference.Face, error)
}

// Engine applies the verification rules in order, short-circuiting on the
// first failure.
type Engine struct {
	faces       FaceSource
	logger      *zap.Logger
	maxAgeGap   float64
	maxDistance float64
}

// NewEngine builds an engine with the default thresholds.
func NewEngine(faces FaceSource, logger *zap.Logger) *Engine {
	return &Engine{
		faces:       faces,
		logger:      logger.Named("verify_engine"),
		maxAgeGap:   MaxAgeGapYears,
		maxDistance: MaxDescriptorDistance,
	}
}

// Verify compares an ID document photo against a selfie and returns a
// verdict. Rule failures come back as an invalid Verdict; only
// infrastructure failure (the models cannot be loaded) is returned as an
// error, since no user action can resolve it.
func (e *Engine) Verify(ctx context.Context, idPhoto, selfie File) (*Verdict, error) {
	if verr := imagecheck.Validate(idPhoto.Content, idPhoto.MIMEType, idPhoto.Size); verr != nil {
		return verdictFromValidation("ID photo", verr), nil
	}
	if verr := imagecheck.Validate(selfie.Content, selfie.MIMEType, selfie.Size); verr != nil {
		return verdictFromValidation("selfie", verr), nil
	}

	idFace, verdict, err := e.detectExactlyOne(ctx, idPhoto.Content, CodeInvalidIDPhoto, "Invalid ID photo",
		"The ID photo must show exactly one face.")
	if err != nil || verdict != nil {
		return verdict, err
	}

	selfieFace, verdict, err := e.detectExactlyOne(ctx, selfie.Content, CodeInvalidSelfie, "Invalid selfie",
		"The selfie must show exactly one face.")
	if err != nil || verdict != nil {
		return verdict, err
	}

	ageGap := math.Abs(idFace.EstimatedAge - selfieFace.EstimatedAge)
	if ageGap > e.maxAgeGap {
		e.logger.Info("age consistency check failed",
			zap.Float64("id_age", idFace.EstimatedAge),
			zap.Float64("selfie_age", selfieFace.EstimatedAge))
		return fail(CodeAgeMismatch, "Age mismatch",
			fmt.Sprintf("The estimated ages of the two photos differ by %.0f years, which exceeds the allowed %.0f.",
				ageGap, e.maxAgeGap)), nil
	}

	distance := idFace.Descriptor.DistanceTo(selfieFace.Descriptor)
	if distance > e.maxDistance {
		e.logger.Info("descriptor similarity check failed", zap.Float64("distance", distance))
		return fail(CodeFaceMismatch, "Face mismatch",
			fmt.Sprintf("The two photos do not appear to show the same person (distance %.2f, allowed %.2f).",
				distance, e.maxDistance)), nil
	}

	return pass(), nil
}

// detectExactlyOne runs detection and enforces the single-face rule. Exactly
// one of the three results is set: the face on success, a verdict on a rule
// failure, an error when the models cannot be loaded.
func (e *Engine) detectExactlyOne(ctx context.Context, image []byte, code Code, title, description string) (*inference.Face, *Verdict, error) {
	faces, err := e.faces.Detect(ctx, image)
	if err != nil {
		var loadErr *inference.ModelLoadError
		if errors.As(err, &loadErr) {
			return nil, nil, err
		}
		e.logger.Error("detection failed", zap.Error(err))
		return nil, fail(CodeVerificationError, "Verification failed",
			"Something went wrong while checking the photos. Please try again later."), nil
	}

	switch len(faces) {
	case 0:
		return nil, fail(code, title, description+" No face was detected."), nil
	case 1:
		return &faces[0], nil, nil
	default:
		return nil, fail(code, title, fmt.Sprintf("%s %d faces were detected.", description, len(faces))), nil
	}
}

func verdictFromValidation(label string, verr *imagecheck.ValidationError) *Verdict {
	switch verr.Code {
	case imagecheck.CodeTooLarge:
		return fail(CodeFileTooLarge, "Image too large",
			fmt.Sprintf("The %s is too large: %s.", label, verr.Message))
	default:
		return fail(CodeInvalidFileType, "Unsupported image type",
			fmt.Sprintf("The %s could not be accepted: %s.", label, verr.Message))
	}
}
