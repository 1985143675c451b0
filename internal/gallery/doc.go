// Package gallery serves processed media to readers.
//
// PagingSource pages through persisted media records by id descending using
// page-number keys and can map a scroll anchor back to a page key after the
// data is invalidated. Tagger stores user tags for faces under their
// FaceKey. Viewer re-decodes a persisted photo and returns it with its
// faces outlined so they can be tagged.
//
// Nothing here touches the batch pipeline; only persisted state is read.
package gallery
