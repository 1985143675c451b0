package decoder

// SampleSize returns the power-of-two subsampling factor for an image of
// width x height that must still cover reqWidth x reqHeight. The factor
// keeps doubling while halving once more would leave both sides at or
// above the request, so the result is never smaller than the request in
// either dimension (unless the source itself is).
func SampleSize(width, height, reqWidth, reqHeight int) int {
	sample := 1
	if height > reqHeight || width > reqWidth {
		halfHeight := height / 2
		halfWidth := width / 2
		for halfHeight/sample >= reqHeight && halfWidth/sample >= reqWidth {
			sample *= 2
		}
	}
	return sample
}

// orientedSize returns the display dimensions after rotating by degrees.
func orientedSize(width, height, degrees int) (int, int) {
	if degrees == 90 || degrees == 270 {
		return height, width
	}
	return width, height
}

// sampledSize divides both sides by sample, never going below one pixel.
func sampledSize(width, height, sample int) (int, int) {
	w, h := width/sample, height/sample
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
