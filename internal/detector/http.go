package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"face-gallery/internal/bitmap"
	"face-gallery/internal/logging"
	"face-gallery/internal/metrics"
)

const httpBackend = "http"

var logger = logging.For("detector")

// HTTPDetector posts each image as a JPEG to an inference service and reads
// back face boxes:
//
//	{"faces": [{"left": 10, "top": 20, "right": 110, "bottom": 140, "confidence": 0.98}]}
type HTTPDetector struct {
	url    string
	client *http.Client
}

// NewHTTP creates a detector for the inference endpoint at url.
func NewHTTP(url string, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDetector{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type detectResponse struct {
	Faces []struct {
		Left       int     `json:"left"`
		Top        int     `json:"top"`
		Right      int     `json:"right"`
		Bottom     int     `json:"bottom"`
		Confidence float64 `json:"confidence"`
	} `json:"faces"`
}

// Detect implements Detector.
func (d *HTTPDetector) Detect(ctx context.Context, buf *bitmap.Buffer) ([]Face, error) {
	start := time.Now()
	faces, err := d.detect(ctx, buf)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DetectorRequestDuration.WithLabelValues(httpBackend, status).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &DetectionError{Backend: httpBackend, Err: ctxErr}
		}
		return nil, &DetectionError{Backend: httpBackend, Err: err}
	}
	metrics.DetectorFacesFound.Observe(float64(len(faces)))
	return faces, nil
}

func (d *HTTPDetector) detect(ctx context.Context, buf *bitmap.Buffer) ([]Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := imaging.Encode(part, buf.Image(), imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debug("close response body: %v", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	faces := make([]Face, 0, len(result.Faces))
	for _, f := range result.Faces {
		faces = append(faces, Face{
			Box:        image.Rect(f.Left, f.Top, f.Right, f.Bottom),
			Confidence: f.Confidence,
		})
	}
	return clampFaces(faces, buf.Bounds()), nil
}

// CheckHealth probes the inference service's /health endpoint.
func (d *HTTPDetector) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(d.url, "/")+"/health", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errors.New("detector unhealthy: " + resp.Status)
	}
	return nil
}
