// Package detector provides the client for the external identity
// detection model.  The model itself is a separate deployment; this
// package only speaks its HTTP contract: multipart image in, a list of
// (label, confidence) detections out.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/abdosalm555/visit-pass/internal/service"
)

// HTTPDetector calls a detection endpoint with the uploaded artifact and
// decodes its JSON response.  Any transport or server failure is returned
// as an error so the identity gate can surface DetectorUnavailable rather
// than a rejection.
type HTTPDetector struct {
	URL    string
	Client *http.Client
}

// NewHTTPDetector returns a detector client for the given endpoint.
func NewHTTPDetector(url string) *HTTPDetector {
	return &HTTPDetector{
		URL:    url,
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Detect uploads the artifact as multipart form field "image" and returns
// the detections from the model's JSON response:
//
//	{"detections": [{"label": "id_card", "confidence": 0.93}]}
func (d *HTTPDetector) Detect(ctx context.Context, artifact io.Reader, filename string) ([]service.Detection, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, artifact); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector returned status %d", resp.StatusCode)
	}

	var out struct {
		Detections []service.Detection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode detector response: %w", err)
	}
	return out.Detections, nil
}
