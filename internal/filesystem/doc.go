// Package filesystem provides filesystem helpers with retry logic for
// network mounts.
//
// Photos and the thumbnail cache are commonly served from NFS, where a file
// handle can go stale between a directory walk and the subsequent open.
// StatWithRetry, OpenWithRetry and WriteFileAtomic retry only on ESTALE with
// exponential backoff; every other error is returned immediately.
//
// Metrics are reported through an Observer registered with SetObserver,
// labelled by the volume a path belongs to (see VolumeResolver).
package filesystem
