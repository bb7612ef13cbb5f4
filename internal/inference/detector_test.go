package inference

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func newTestDetector(client *stubClient) *Detector {
	loader := NewLoader(client, "file:///opt/models", zap.NewNop())
	return NewDetector(loader, client, zap.NewNop())
}

func TestDetectLoadsModelsOnDemand(t *testing.T) {
	client := &stubClient{faces: []Face{{Confidence: 0.9}}}
	detector := newTestDetector(client)

	faces, err := detector.Detect(context.Background(), []byte("image"))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("expected 1 face, got %d", len(faces))
	}
	if client.calls() != len(Components) {
		t.Fatalf("expected detection to trigger a model load, got %d load calls", client.calls())
	}

	if _, err := detector.Detect(context.Background(), []byte("image")); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if client.calls() != len(Components) {
		t.Fatalf("models should load once, got %d load calls", client.calls())
	}
}

func TestDetectSingleReturnsNilWhenNoFace(t *testing.T) {
	detector := newTestDetector(&stubClient{})

	face, err := detector.DetectSingle(context.Background(), []byte("image"))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if face != nil {
		t.Fatalf("expected nil face, got %+v", face)
	}
}

func TestDetectSinglePicksMostConfidentFace(t *testing.T) {
	client := &stubClient{faces: []Face{
		{Confidence: 0.42, EstimatedAge: 61},
		{Confidence: 0.97, EstimatedAge: 28},
		{Confidence: 0.88, EstimatedAge: 35},
	}}
	detector := newTestDetector(client)

	face, err := detector.DetectSingle(context.Background(), []byte("image"))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if face == nil {
		t.Fatal("expected a face")
	}
	if face.Confidence != 0.97 {
		t.Fatalf("expected the most confident face, got confidence %v", face.Confidence)
	}
}
