package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestHTTPClientDetectFaces(t *testing.T) {
	descriptor := make([]float32, DescriptorSize)
	descriptor[0] = 0.25

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect-faces" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req detectFacesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Image == "" {
			t.Fatal("expected base64 image payload")
		}
		json.NewEncoder(w).Encode(detectFacesResponse{
			Success: true,
			Faces: []facePayload{{
				Box:          faceBox{X: 10, Y: 20, Width: 100, Height: 120},
				Confidence:   0.93,
				EstimatedAge: 31.5,
				Descriptor:   descriptor,
			}},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, zap.NewNop())
	faces, err := client.DetectFaces(context.Background(), []byte("image"))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(faces) != 1 {
		t.Fatalf("expected 1 face, got %d", len(faces))
	}
	face := faces[0]
	if face.Box.Min.X != 10 || face.Box.Dx() != 100 || face.Box.Dy() != 120 {
		t.Fatalf("unexpected bounding box: %v", face.Box)
	}
	if face.EstimatedAge != 31.5 {
		t.Fatalf("unexpected age: %v", face.EstimatedAge)
	}
	if face.Descriptor[0] != 0.25 {
		t.Fatalf("unexpected descriptor head: %v", face.Descriptor[0])
	}
}

func TestHTTPClientDetectFacesRejectsShortDescriptor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(detectFacesResponse{
			Success: true,
			Faces:   []facePayload{{Descriptor: []float32{1, 2, 3}}},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, zap.NewNop())
	if _, err := client.DetectFaces(context.Background(), []byte("image")); err == nil {
		t.Fatal("expected error for malformed descriptor")
	}
}

func TestHTTPClientLoadModelFailureNamesComponent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		detail := "weights checksum mismatch"
		json.NewEncoder(w).Encode(loadModelResponse{Loaded: false, Error: &detail})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, zap.NewNop())
	err := client.LoadModel(context.Background(), "face_recognition", "file:///opt/models/face_recognition")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "face_recognition") {
		t.Fatalf("error should name the component, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("error should carry the runtime detail, got %q", err.Error())
	}
}

func TestHTTPClientSurfacesRuntimeStatusErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "runtime overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, zap.NewNop())
	if _, err := client.DetectFaces(context.Background(), []byte("image")); err == nil {
		t.Fatal("expected error, got nil")
	}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected ping failure, got nil")
	}
}
