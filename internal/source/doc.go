// Package source enumerates candidate images for the batch pipeline from
// the photo index, one page at a time.
package source
