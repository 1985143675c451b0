// Package annotate draws face outlines onto decoded photos, scales them to
// thumbnails and persists the thumbnails to the cache directory.
package annotate
