package decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder registration

	"face-gallery/internal/bitmap"
	"face-gallery/internal/filesystem"
	"face-gallery/internal/logging"
	"face-gallery/internal/metrics"
)

// Default decode bounds. Images are subsampled until they just cover them.
const (
	DefaultMaxWidth  = 720
	DefaultMaxHeight = 1280
)

var logger = logging.For("decoder")

// Decoder turns a photo location into an upright, subsampled pixel buffer
// drawn from the pool. Locations are relative to Root.
type Decoder struct {
	pool  *bitmap.Pool
	root  string
	retry filesystem.RetryConfig
}

// New creates a decoder that reads photos below root.
func New(pool *bitmap.Pool, root string) *Decoder {
	return &Decoder{
		pool:  pool,
		root:  root,
		retry: filesystem.DefaultRetryConfig(),
	}
}

// Decode reads the image at location, subsamples it so it still covers
// maxWidth x maxHeight once rotated upright, and returns it as an owned
// NRGBA buffer. Any intermediate pooled buffer is released before return.
func (d *Decoder) Decode(ctx context.Context, location string, maxWidth, maxHeight int) (*bitmap.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	data, err := d.read(location)
	if err != nil {
		return nil, &DecodeError{Location: location, Err: err}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Location: location, Err: fmt.Errorf("read dimensions: %w", err)}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &DecodeError{Location: location, Err: errors.New("zero-size image")}
	}

	degrees := orientationDegrees(data)
	adjWidth, adjHeight := orientedSize(cfg.Width, cfg.Height, degrees)
	sample := SampleSize(adjWidth, adjHeight, maxWidth, maxHeight)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(false))
	if err != nil {
		return nil, &DecodeError{Location: location, Err: err}
	}

	w, h := sampledSize(cfg.Width, cfg.Height, sample)
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
	logger.Debug("Decoded %s: %dx%d, sample %d, rotation %d, result %dx%d",
		location, cfg.Width, cfg.Height, sample, degrees, out.Width(), out.Height())
	return out, nil
}

// Path resolves a location to an absolute file path under the root.
func (d *Decoder) Path(location string) string {
	return filepath.Join(d.root, filepath.FromSlash(location))
}

func (d *Decoder) read(location string) ([]byte, error) {
	f, err := filesystem.OpenWithRetry(d.Path(location), d.retry)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.Debug("close %s: %v", location, cerr)
		}
	}()
	return io.ReadAll(f)
}

// drawInto copies src into buf, scaling when the sizes differ.
func drawInto(buf *bitmap.Buffer, src image.Image) {
	dst := buf.Image()
	sb := src.Bounds()
	if sb.Dx() == buf.Width() && sb.Dy() == buf.Height() {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Src)
		return
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)
}

// uprightBuffer rotates buf when needed. On rotation the pre-rotation
// buffer goes back to the pool; on failure buf is released as well.
func uprightBuffer(pool *bitmap.Pool, buf *bitmap.Buffer, degrees int) (*bitmap.Buffer, error) {
	if degrees == 0 {
		return buf, nil
	}
	rotated, err := rotate(pool, buf, degrees)
	pool.Release(buf)
	if err != nil {
		return nil, err
	}
	return rotated, nil
}
