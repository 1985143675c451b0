package decoder

import (
	"fmt"

	"face-gallery/internal/bitmap"
)

// rotate writes src turned clockwise by degrees into a new pooled buffer.
// The caller keeps ownership of src.
func rotate(pool *bitmap.Pool, src *bitmap.Buffer, degrees int) (*bitmap.Buffer, error) {
	w, h := src.Width(), src.Height()
	dw, dh := orientedSize(w, h, degrees)

	dst, err := pool.Acquire(dw, dh, src.Format())
	if err != nil {
		return nil, err
	}

	bpp := src.Format().BytesPerPixel()
	sp, dp := src.Pix(), dst.Pix()
	sStride, dStride := src.Stride(), dst.Stride()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch degrees {
			case 90:
				dx, dy = h-1-y, x
			case 180:
				dx, dy = w-1-x, h-1-y
			case 270:
				dx, dy = y, w-1-x
			default:
				pool.Release(dst)
				return nil, fmt.Errorf("unsupported rotation %d", degrees)
			}
			s := y*sStride + x*bpp
			d := dy*dStride + dx*bpp
			copy(dp[d:d+bpp], sp[s:s+bpp])
		}
	}
	return dst, nil
}
