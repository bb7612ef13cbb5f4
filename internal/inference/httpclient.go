package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/id-verify/internal/logging"
)

// HTTPClient talks JSON over HTTP to the face inference runtime.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewHTTPClient builds a client for the runtime at baseURL.
func NewHTTPClient(baseURL string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger.Named("inference_client"),
	}
}

type detectFacesRequest struct {
	Image string `json:"image"`
}

type faceBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type facePayload struct {
	Box          faceBox   `json:"box"`
	Confidence   float64   `json:"confidence"`
	EstimatedAge float64   `json:"estimated_age"`
	Descriptor   []float32 `json:"descriptor"`
}

type detectFacesResponse struct {
	Success bool          `json:"success"`
	Error   *string       `json:"error"`
	Faces   []facePayload `json:"faces"`
}

type loadModelRequest struct {
	Component string `json:"component"`
	URI       string `json:"uri"`
}

type loadModelResponse struct {
	Loaded bool    `json:"loaded"`
	Error  *string `json:"error"`
}

// DetectFaces implements Client.
func (c *HTTPClient) DetectFaces(ctx context.Context, imageBytes []byte) ([]Face, error) {
	payload := detectFacesRequest{Image: base64.StdEncoding.EncodeToString(imageBytes)}

	var resp detectFacesResponse
	if err := c.post(ctx, "/detect-faces", payload, &resp); err != nil {
		wrapped := logging.NewOperationError("inference.detect_faces", "", err)
		c.logger.Error("face detection call failed", zap.Error(wrapped))
		return nil, wrapped
	}
	if !resp.Success {
		err := fmt.Errorf("runtime rejected detection: %s", errorText(resp.Error))
		c.logger.Error("face detection rejected", zap.Error(err))
		return nil, logging.NewOperationError("inference.detect_faces", "", err)
	}

	faces := make([]Face, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		face := Face{
			Box:          image.Rect(f.Box.X, f.Box.Y, f.Box.X+f.Box.Width, f.Box.Y+f.Box.Height),
			Confidence:   f.Confidence,
			EstimatedAge: f.EstimatedAge,
		}
		if len(f.Descriptor) != DescriptorSize {
			err := fmt.Errorf("runtime returned %d-d descriptor, expected %d", len(f.Descriptor), DescriptorSize)
			return nil, logging.NewOperationError("inference.detect_faces", "", err)
		}
		copy(face.Descriptor[:], f.Descriptor)
		faces = append(faces, face)
	}
	return faces, nil
}

// LoadModel implements Client.
func (c *HTTPClient) LoadModel(ctx context.Context, component, uri string) error {
	payload := loadModelRequest{Component: component, URI: uri}

	var resp loadModelResponse
	if err := c.post(ctx, "/models/load", payload, &resp); err != nil {
		wrapped := logging.NewOperationError("inference.load_model", "", err)
		c.logger.Error("model load call failed", zap.Error(wrapped), zap.String("component", component))
		return wrapped
	}
	if !resp.Loaded {
		err := fmt.Errorf("component %s did not load: %s", component, errorText(resp.Error))
		c.logger.Error("model load rejected", zap.Error(err), zap.String("component", component))
		return logging.NewOperationError("inference.load_model", "", err)
	}
	return nil
}

// Ping probes the runtime health endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return logging.NewOperationError("inference.ping", "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return logging.NewOperationError("inference.ping", "", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("runtime returned status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func errorText(err *string) string {
	if err == nil || *err == "" {
		return "no detail provided"
	}
	return *err
}
