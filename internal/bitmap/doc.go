// Package bitmap provides a byte-budgeted pool of reusable pixel buffers.
//
// Decoding, annotating and thumbnailing photos allocates large, same-sized
// pixel buffers over and over. Pool keeps released buffers keyed by
// (width, height, format) and hands them back out for requests with the same
// key. Idle buffers are evicted least-recently-released first whenever their
// combined size exceeds the budget; buffers currently checked out are never
// touched by eviction.
//
// Ownership is strict: a Buffer returned by Acquire belongs to the caller
// until it is passed to Release, and must not be used afterwards. Releasing
// a buffer twice, or one that came from a different pool, is refused and
// counted in Stats.RejectedReleases.
package bitmap
