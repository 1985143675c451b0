// Package decoder loads photos into pooled pixel buffers.
//
// Decoding reads the EXIF orientation, subsamples by the largest power of
// two that still covers the requested bounds once the image is upright,
// and rotates the result so pixels are in display orientation. Two backends
// share that contract: Decoder (pure Go, via imaging and x/image) and
// VipsDecoder (libvips shrink-on-load).
//
// Failures are reported as *DecodeError.
package decoder
