package bitmap

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
)

func TestKey(t *testing.T) {
	t.Parallel()

	k := Key{Width: 720, Height: 1280, Format: FormatNRGBA}
	if got := k.Bytes(); got != 720*1280*4 {
		t.Errorf("Bytes() = %d, want %d", got, 720*1280*4)
	}
	if got := k.String(); got != "720-1280-nrgba" {
		t.Errorf("String() = %q", got)
	}

	g := Key{Width: 10, Height: 10, Format: FormatGray}
	if got := g.Bytes(); got != 100 {
		t.Errorf("gray Bytes() = %d, want 100", got)
	}
}

func TestAcquireRejectsInvalidSizes(t *testing.T) {
	t.Parallel()

	p := NewPool(1 << 20)
	tests := []struct {
		name string
		w, h int
	}{
		{"zero width", 0, 10},
		{"zero height", 10, 0},
		{"negative", -1, 10},
		{"too wide", MaxDimension + 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Acquire(tt.w, tt.h, FormatNRGBA); !errors.Is(err, ErrInvalidSize) {
				t.Errorf("Acquire(%d, %d) error = %v, want ErrInvalidSize", tt.w, tt.h, err)
			}
		})
	}
}

func TestAcquireReusesReleasedBuffer(t *testing.T) {
	t.Parallel()

	p := NewPool(1 << 20)
	b1, err := p.Acquire(16, 8, FormatNRGBA)
	if err != nil {
		t.Fatal(err)
	}
	if len(b1.Pix()) != 16*8*4 || b1.Stride() != 64 {
		t.Fatalf("unexpected storage: len=%d stride=%d", len(b1.Pix()), b1.Stride())
	}
	p.Release(b1)

	// A different key must not be served by the idle buffer.
	other, err := p.Acquire(8, 16, FormatNRGBA)
	if err != nil {
		t.Fatal(err)
	}
	if other == b1 {
		t.Fatal("buffer reused across keys")
	}

	b2, err := p.Acquire(16, 8, FormatNRGBA)
	if err != nil {
		t.Fatal(err)
	}
	if b2 != b1 {
		t.Error("expected the released buffer to be reused")
	}

	s := p.Stats()
	if s.Hits != 1 || s.Misses != 2 {
		t.Errorf("hits=%d misses=%d, want 1 and 2", s.Hits, s.Misses)
	}
	if s.IdleBuffers != 0 || s.IdleBytes != 0 {
		t.Errorf("idle = %d buffers / %d bytes, want empty", s.IdleBuffers, s.IdleBytes)
	}
}

func TestReleaseRejectsInvalidBuffers(t *testing.T) {
	t.Parallel()

	p := NewPool(1 << 20)
	b, err := p.Acquire(4, 4, FormatNRGBA)
	if err != nil {
		t.Fatal(err)
	}
	p.Release(b)
	p.Release(b)
	p.Release(nil)

	foreign, err := NewPool(1<<20).Acquire(4, 4, FormatNRGBA)
	if err != nil {
		t.Fatal(err)
	}
	p.Release(foreign)

	s := p.Stats()
	if s.RejectedReleases != 3 {
		t.Errorf("RejectedReleases = %d, want 3", s.RejectedReleases)
	}
	if s.IdleBuffers != 1 || s.IdleBytes != b.Size() {
		t.Errorf("pool changed by rejected releases: %+v", s)
	}
}

func TestEvictionKeepsIdleBytesWithinBudget(t *testing.T) {
	t.Parallel()

	// Room for exactly two 10x10 NRGBA buffers.
	p := NewPool(800)

	var held []*Buffer
	for i := 0; i < 3; i++ {
		b, err := p.Acquire(10, 10, FormatNRGBA)
		if err != nil {
			t.Fatal(err)
		}
		held = append(held, b)
	}
	for _, b := range held {
		p.Release(b)
	}

	s := p.Stats()
	if s.IdleBytes > p.Budget() {
		t.Fatalf("IdleBytes %d exceeds budget %d", s.IdleBytes, p.Budget())
	}
	if s.IdleBuffers != 2 || s.Evictions != 1 {
		t.Errorf("idle=%d evictions=%d, want 2 and 1", s.IdleBuffers, s.Evictions)
	}

	// The least recently released buffer is the one evicted.
	if held[0].Pix() != nil {
		t.Error("oldest buffer should have been freed")
	}
	if held[2].Pix() == nil {
		t.Error("newest buffer should still be pooled")
	}
}

func TestEvictionAcrossKeys(t *testing.T) {
	t.Parallel()

	p := NewPool(500)
	small, _ := p.Acquire(5, 5, FormatNRGBA)  // 100 bytes
	large, _ := p.Acquire(10, 10, FormatNRGBA) // 400 bytes
	third, _ := p.Acquire(5, 5, FormatGray)    // 25 bytes

	p.Release(small)
	p.Release(large)
	p.Release(third) // 525 > 500, evicts small

	s := p.Stats()
	if s.IdleBytes != 425 || s.IdleBuffers != 2 {
		t.Errorf("idle = %d bytes / %d buffers, want 425 / 2", s.IdleBytes, s.IdleBuffers)
	}

	again, _ := p.Acquire(5, 5, FormatNRGBA)
	if again == small {
		t.Error("evicted buffer was handed out again")
	}
}

func TestOversizedBufferIsNotPooled(t *testing.T) {
	t.Parallel()

	p := NewPool(100)
	b, err := p.Acquire(10, 10, FormatNRGBA)
	if err != nil {
		t.Fatal(err)
	}
	p.Release(b)

	s := p.Stats()
	if s.IdleBuffers != 0 || s.IdleBytes != 0 {
		t.Errorf("oversized buffer retained: %+v", s)
	}
	// The buffer is no longer checked out, so a second release is refused.
	p.Release(b)
	if got := p.Stats().RejectedReleases; got != 1 {
		t.Errorf("RejectedReleases = %d, want 1", got)
	}
}

func TestPurge(t *testing.T) {
	t.Parallel()

	p := NewPool(1 << 20)
	for i := 1; i <= 3; i++ {
		b, _ := p.Acquire(i, i, FormatNRGBA)
		p.Release(b)
	}
	p.Purge()

	if s := p.Stats(); s.IdleBuffers != 0 || s.IdleBytes != 0 || s.Evictions != 3 {
		t.Errorf("after Purge: %+v", s)
	}
}

func TestBufferImageSharesStorage(t *testing.T) {
	t.Parallel()

	p := NewPool(1 << 20)
	b, _ := p.Acquire(3, 2, FormatNRGBA)
	img := b.Image()
	img.Set(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	off := 1*b.Stride() + 1*4
	if got := b.Pix()[off : off+4]; got[0] != 10 || got[1] != 20 || got[2] != 30 || got[3] != 255 {
		t.Errorf("pixel bytes = %v", got)
	}
	if img.Bounds() != image.Rect(0, 0, 3, 2) {
		t.Errorf("Bounds() = %v", img.Bounds())
	}

	g, _ := p.Acquire(3, 2, FormatGray)
	if _, ok := g.Image().(*image.Gray); !ok {
		t.Errorf("gray buffer image is %T", g.Image())
	}
}

func TestConcurrentAcquireRelease(t *testing.T) {
	t.Parallel()

	p := NewPool(64 * 64 * 4 * 4)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				b, err := p.Acquire(64, 64, FormatNRGBA)
				if err != nil {
					t.Error(err)
					return
				}
				b.Pix()[0] = byte(j)
				p.Release(b)
			}
		}()
	}
	wg.Wait()

	s := p.Stats()
	if s.IdleBytes > p.Budget() {
		t.Errorf("IdleBytes %d exceeds budget %d", s.IdleBytes, p.Budget())
	}
	if s.RejectedReleases != 0 {
		t.Errorf("RejectedReleases = %d, want 0", s.RejectedReleases)
	}
	if s.Hits+s.Misses != 1600 {
		t.Errorf("hits+misses = %d, want 1600", s.Hits+s.Misses)
	}
}

func TestPoolTracksBuffersInUse(t *testing.T) {
	p := NewPool(1 << 20)

	a, err := p.Acquire(4, 4, FormatNRGBA)
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.Acquire(4, 4, FormatNRGBA)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Stats().InUse; got != 2 {
		t.Errorf("InUse after two acquires = %d, want 2", got)
	}

	p.Release(a)
	p.Release(a) // rejected, must not decrement again
	if got := p.Stats().InUse; got != 1 {
		t.Errorf("InUse after release = %d, want 1", got)
	}

	p.Release(b)
	if got := p.Stats().InUse; got != 0 {
		t.Errorf("InUse after releasing all = %d, want 0", got)
	}
}
