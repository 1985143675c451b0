package bitmap

import (
	"container/list"
	"fmt"
	"image"
	"image/draw"
)

// Format is the pixel layout of a Buffer.
type Format uint8

const (
	// FormatNRGBA is 8-bit non-premultiplied RGBA, 4 bytes per pixel.
	FormatNRGBA Format = iota
	// FormatGray is 8-bit luminance, 1 byte per pixel.
	FormatGray
)

// BytesPerPixel returns the storage size of one pixel.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatGray:
		return 1
	default:
		return 4
	}
}

func (f Format) String() string {
	switch f {
	case FormatNRGBA:
		return "nrgba"
	case FormatGray:
		return "gray"
	default:
		return fmt.Sprintf("format(%d)", f)
	}
}

// Key identifies interchangeable buffers: two buffers with equal keys can
// serve each other's requests.
type Key struct {
	Width  int
	Height int
	Format Format
}

// Bytes is the pixel storage size of a buffer with this key.
func (k Key) Bytes() int64 {
	return int64(k.Width) * int64(k.Height) * int64(k.Format.BytesPerPixel())
}

func (k Key) String() string {
	return fmt.Sprintf("%d-%d-%s", k.Width, k.Height, k.Format)
}

type bufferState uint8

const (
	stateInUse bufferState = iota
	stateIdle
	stateFreed
)

// Buffer is a pooled pixel buffer. It is exclusively owned by whoever
// acquired it until it is handed back with Pool.Release; after release the
// holder must not touch it again.
type Buffer struct {
	key   Key
	pix   []byte
	pool  *Pool
	state bufferState
	elem  *list.Element
}

// Key returns the buffer's dimensions and format.
func (b *Buffer) Key() Key { return b.key }

// Width returns the buffer width in pixels.
func (b *Buffer) Width() int { return b.key.Width }

// Height returns the buffer height in pixels.
func (b *Buffer) Height() int { return b.key.Height }

// Format returns the pixel format.
func (b *Buffer) Format() Format { return b.key.Format }

// Bounds returns the image rectangle anchored at the origin.
func (b *Buffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.key.Width, b.key.Height)
}

// Stride returns the number of bytes between vertically adjacent pixels.
func (b *Buffer) Stride() int {
	return b.key.Width * b.key.Format.BytesPerPixel()
}

// Size returns the byte footprint of the pixel storage.
func (b *Buffer) Size() int64 { return b.key.Bytes() }

// Pix exposes the raw pixel storage.
func (b *Buffer) Pix() []byte { return b.pix }

// Image returns a draw.Image view sharing the buffer's storage.
// The view is only valid while the buffer is held.
func (b *Buffer) Image() draw.Image {
	switch b.key.Format {
	case FormatGray:
		return &image.Gray{Pix: b.pix, Stride: b.Stride(), Rect: b.Bounds()}
	default:
		return &image.NRGBA{Pix: b.pix, Stride: b.Stride(), Rect: b.Bounds()}
	}
}
