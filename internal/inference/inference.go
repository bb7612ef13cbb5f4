// Package inference wraps the face inference runtime: model loading, face
// detection and descriptor extraction.
package inference

import (
	"context"
	"image"
	"math"
)

// DescriptorSize is the dimensionality of the face embedding produced by the
// recognition net.
const DescriptorSize = 128

// Descriptor is a fixed-length face embedding. Two photos of the same person
// produce descriptors with a small Euclidean distance.
type Descriptor [DescriptorSize]float32

// DistanceTo returns the Euclidean distance between two descriptors. Lower
// means more similar.
func (d Descriptor) DistanceTo(other Descriptor) float64 {
	var sum float64
	for i := range d {
		diff := float64(d[i] - other[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// Face is a single detection returned by the runtime. It lives only for the
// duration of one verification request and is never persisted.
type Face struct {
	Box          image.Rectangle
	Confidence   float64
	EstimatedAge float64
	Descriptor   Descriptor
}

// Client exposes the subset of the inference runtime used by the verification
// flow.
type Client interface {
	// DetectFaces returns every face found in the image, unordered, with
	// bounding box, estimated age and descriptor computed in one pass. An
	// image with no faces yields an empty slice, not an error.
	DetectFaces(ctx context.Context, image []byte) ([]Face, error)

	// LoadModel instructs the runtime to load one named model component
	// from the given asset URI.
	LoadModel(ctx context.Context, component, uri string) error
}
