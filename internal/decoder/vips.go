package decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"

	"face-gallery/internal/bitmap"
	"face-gallery/internal/logging"
	"face-gallery/internal/metrics"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
)

// InitVips starts libvips once, routing its log output through the
// application logger at a matching level.
func InitVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return
	}

	vipsLevel := vips.LogLevelWarning
	switch logging.GetLevel() {
	case logging.LevelDebug:
		vipsLevel = vips.LogLevelInfo
	case logging.LevelWarn:
		vipsLevel = vips.LogLevelError
	case logging.LevelError:
		vipsLevel = vips.LogLevelCritical
	}

	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, vipsLevel)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsInitialized = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		logging.Info("libvips shutdown complete")
	}
}

// VipsDecoder decodes with libvips, which shrinks large JPEGs while
// decoding instead of materializing the full-resolution image. Output
// matches Decoder: upright, subsampled, pooled NRGBA.
type VipsDecoder struct {
	*Decoder
}

// NewVips creates a libvips-backed decoder. InitVips must have been called.
func NewVips(pool *bitmap.Pool, root string) *VipsDecoder {
	return &VipsDecoder{Decoder: New(pool, root)}
}

// Decode implements the same contract as Decoder.Decode.
func (d *VipsDecoder) Decode(ctx context.Context, location string, maxWidth, maxHeight int) (*bitmap.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	params := vips.NewImportParams()
	params.AutoRotate.Set(false)
	ref, err := vips.LoadImageFromFile(d.Path(location), params)
	if err != nil {
		return nil, &DecodeError{Location: location, Err: err}
	}
	defer ref.Close()

	width, height := ref.Width(), ref.Height()
	if width <= 0 || height <= 0 {
		return nil, &DecodeError{Location: location, Err: errors.New("zero-size image")}
	}

	degrees := degreesForOrientation(ref.Orientation())
	adjWidth, adjHeight := orientedSize(width, height, degrees)
	sample := SampleSize(adjWidth, adjHeight, maxWidth, maxHeight)
	w, h := sampledSize(width, height, sample)

	if sample > 1 {
		if err := ref.Thumbnail(w, h, vips.InterestingNone); err != nil {
			return nil, &DecodeError{Location: location, Err: fmt.Errorf("vips shrink: %w", err)}
		}
	}

	encoded, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:       95,
		StripMetadata: true,
	})
	if err != nil {
		return nil, &DecodeError{Location: location, Err: fmt.Errorf("vips export: %w", err)}
	}
	src, err := imaging.Decode(bytes.NewReader(encoded), imaging.AutoOrientation(false))
	if err != nil {
		return nil, &DecodeError{Location: location, Err: err}
	}

	buf, err := d.pool.Acquire(w, h, bitmap.FormatNRGBA)
	if err != nil {
		return nil, &DecodeError{Location: location, Err: err}
	}
	drawInto(buf, src)

	out, err := uprightBuffer(d.pool, buf, degrees)
	if err != nil {
		return nil, &DecodeError{Location: location, Err: err}
	}

	metrics.PipelineStageDuration.WithLabelValues("decode").Observe(time.Since(start).Seconds())
	return out, nil
}
