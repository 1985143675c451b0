// Package pipeline implements the batch processor that turns photos into
// face-annotated thumbnails.
//
// A run moves through these states:
//
//	Idle -> FetchingPage -> Deduping -> Processing -> Persisting -> FetchingPage ... -> Done
//
// and ends in Failed when the source or dedup query fails or a page cannot
// be written, or Cancelled when its context ends. Pages are handled strictly
// one after another. Within a page every candidate runs decode, detect,
// annotate and thumbnail as one unit behind a counting semaphore, so at most
// ConcurrentLimit units are in flight. A unit that fails is logged with its
// candidate id and left out of the page; the run continues.
//
// Once all units of a page have finished, their thumbnails are saved and one
// media record per saved thumbnail is written in a single batch insert.
// Images without faces are dropped unless KeepFaceless is set, and are
// examined again on later runs.
//
// Every pool buffer acquired by a unit is released on every exit path; the
// thumbnail that crosses into the persist step is released there.
package pipeline
