// Package embed talks to an external face embedding sidecar over HTTP.
// The sidecar detects faces in an image and returns one embedding vector
// per face; it is the inference half of the self-hosted face index
// backend.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DetectedFace is one face reported by the sidecar. The bounding box is
// fractional (width, height, left, top in [0,1]) and confidence is a
// percentage [0,100], matching the recognition wire conventions.
type DetectedFace struct {
	Embedding  []float32 `json:"embedding"`
	Confidence float64   `json:"confidence"`
	Width      float64   `json:"width"`
	Height     float64   `json:"height"`
	Left       float64   `json:"left"`
	Top        float64   `json:"top"`
}

type response struct {
	Faces []DetectedFace `json:"faces"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Detect sends raw image bytes to the sidecar and returns all detected
// faces with embeddings. An image with no faces yields an empty slice.
func (c *Client) Detect(ctx context.Context, image []byte) ([]DetectedFace, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call embedder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedder returned %d: %s", resp.StatusCode, body)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedder response: %w", err)
	}
	return out.Faces, nil
}
