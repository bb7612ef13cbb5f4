package inference

import (
	"context"

	"go.uber.org/zap"
)

// Detector runs face detection, loading models on demand so callers never
// have to sequence a load themselves.
type Detector struct {
	loader *Loader
	client Client
	logger *zap.Logger
}

// NewDetector builds a detector on top of a loader and runtime client.
func NewDetector(loader *Loader, client Client, logger *zap.Logger) *Detector {
	return &Detector{
		loader: loader,
		client: client,
		logger: logger.Named("detector"),
	}
}

// Detect returns every face in the image, unordered. Zero faces is an empty
// slice, not an error; multiplicity judgment belongs to the caller.
func (d *Detector) Detect(ctx context.Context, image []byte) ([]Face, error) {
	if err := d.loader.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	return d.client.DetectFaces(ctx, image)
}

// DetectSingle returns the single best face in the image with its descriptor,
// or nil when no face is present. When multiple faces exist it picks the
// highest-confidence detection (first wins on ties); callers that require a
// single-face policy must enforce it on Detect themselves.
func (d *Detector) DetectSingle(ctx context.Context, image []byte) (*Face, error) {
	faces, err := d.Detect(ctx, image)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, nil
	}

	best := 0
	for i := 1; i < len(faces); i++ {
		if faces[i].Confidence > faces[best].Confidence {
			best = i
		}
	}
	if len(faces) > 1 {
		d.logger.Debug("multiple faces detected, using most confident",
			zap.Int("faces", len(faces)), zap.Float64("confidence", faces[best].Confidence))
	}
	return &faces[best], nil
}
