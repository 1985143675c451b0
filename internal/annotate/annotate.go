package annotate

import (
	"image"
	"image/color"
	"time"

	"golang.org/x/image/draw"

	"face-gallery/internal/bitmap"
	"face-gallery/internal/detector"
	"face-gallery/internal/metrics"
)

// Default overlay and thumbnail settings.
const (
	DefaultStrokeWidth   = 6
	DefaultThumbnailSize = 200
)

// BoxColor is the outline color drawn around detected faces.
var BoxColor = color.NRGBA{G: 255, A: 255}

// Annotator draws face boxes and produces thumbnails, taking every output
// buffer from the pool.
type Annotator struct {
	pool   *bitmap.Pool
	stroke int
	color  color.Color
}

// New creates an annotator with the default green 6px outline.
func New(pool *bitmap.Pool) *Annotator {
	return &Annotator{pool: pool, stroke: DefaultStrokeWidth, color: BoxColor}
}

// Annotate returns a copy of src with an outline around every face. When
// faces is empty src itself is returned and no buffer is acquired. src is
// never modified and stays owned by the caller.
func (a *Annotator) Annotate(src *bitmap.Buffer, faces []detector.Face) (*bitmap.Buffer, error) {
	if len(faces) == 0 {
		return src, nil
	}
	start := time.Now()

	dst, err := a.pool.Acquire(src.Width(), src.Height(), src.Format())
	if err != nil {
		return nil, err
	}
	copy(dst.Pix(), src.Pix())

	img := dst.Image()
	fill := image.NewUniform(a.color)
	for _, f := range faces {
		for _, band := range outline(f.Box, a.stroke) {
			draw.Draw(img, band.Intersect(img.Bounds()), fill, image.Point{}, draw.Src)
		}
	}

	metrics.PipelineStageDuration.WithLabelValues("annotate").Observe(time.Since(start).Seconds())
	return dst, nil
}

// outline returns the four bands of a stroke of the given width centered on
// the edges of box.
func outline(box image.Rectangle, stroke int) []image.Rectangle {
	half := stroke / 2
	outer := box.Inset(-half)
	if outer.Dx() <= 2*stroke || outer.Dy() <= 2*stroke {
		return []image.Rectangle{outer}
	}
	inner := outer.Inset(stroke)
	return []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, inner.Min.Y), // top
		image.Rect(outer.Min.X, inner.Max.Y, outer.Max.X, outer.Max.Y), // bottom
		image.Rect(outer.Min.X, inner.Min.Y, inner.Min.X, inner.Max.Y), // left
		image.Rect(inner.Max.X, inner.Min.Y, outer.Max.X, inner.Max.Y), // right
	}
}

// Thumbnail scales src by a single factor so its longer edge equals size,
// preserving the aspect ratio. src stays owned by the caller.
func (a *Annotator) Thumbnail(src *bitmap.Buffer, size int) (*bitmap.Buffer, error) {
	if size <= 0 {
		size = DefaultThumbnailSize
	}
	start := time.Now()

	w, h := thumbnailSize(src.Width(), src.Height(), size)
	dst, err := a.pool.Acquire(w, h, src.Format())
	if err != nil {
		return nil, err
	}

	img := dst.Image()
	draw.CatmullRom.Scale(img, img.Bounds(), src.Image(), src.Bounds(), draw.Src, nil)

	metrics.PipelineStageDuration.WithLabelValues("thumbnail").Observe(time.Since(start).Seconds())
	return dst, nil
}

// thumbnailSize pins the longer edge to size and rounds the shorter one.
func thumbnailSize(width, height, size int) (int, int) {
	if width >= height {
		return size, max((height*size+width/2)/width, 1)
	}
	return max((width*size+height/2)/height, 1), size
}
