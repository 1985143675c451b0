//go:build goface

package detector

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Kagami/go-face"
	"github.com/disintegration/imaging"

	"face-gallery/internal/bitmap"
	"face-gallery/internal/metrics"
)

const gofaceBackend = "goface"

// GoFaceDetector runs dlib's face detector in-process. The recognizer is
// not safe for concurrent use, so calls are serialized.
type GoFaceDetector struct {
	mu  sync.Mutex
	rec *face.Recognizer
}

func newGoFace(modelsDir string) (Detector, error) {
	if modelsDir == "" {
		return nil, fmt.Errorf("goface detector requires DETECTOR_MODELS_DIR")
	}
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("load dlib models from %s: %w", modelsDir, err)
	}
	logger.Info("dlib face detector loaded from %s", modelsDir)
	return &GoFaceDetector{rec: rec}, nil
}

// Detect implements Detector.
func (d *GoFaceDetector) Detect(ctx context.Context, buf *bitmap.Buffer) ([]Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, &DetectionError{Backend: gofaceBackend, Err: err}
	}
	start := time.Now()

	var encoded bytes.Buffer
	if err := imaging.Encode(&encoded, buf.Image(), imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, &DetectionError{Backend: gofaceBackend, Err: err}
	}

	d.mu.Lock()
	found, err := d.rec.Recognize(encoded.Bytes())
	d.mu.Unlock()

	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		metrics.DetectorRequestDuration.WithLabelValues(gofaceBackend, "error").Observe(time.Since(start).Seconds())
		return nil, &DetectionError{Backend: gofaceBackend, Err: err}
	}
	metrics.DetectorRequestDuration.WithLabelValues(gofaceBackend, "success").Observe(time.Since(start).Seconds())

	faces := make([]Face, 0, len(found))
	for _, f := range found {
		faces = append(faces, Face{Box: f.Rectangle})
	}
	faces = clampFaces(faces, buf.Bounds())
	metrics.DetectorFacesFound.Observe(float64(len(faces)))
	return faces, nil
}

// Close frees the dlib models.
func (d *GoFaceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rec.Close()
	return nil
}
