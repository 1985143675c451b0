// Package mediatypes classifies photo files by extension.
//
// It is a dependency-free leaf so the indexer, handlers, and decoder can
// share one list of supported formats without import cycles.
//
//	if mediatypes.IsPhoto(name, false) {
//	    // index it
//	}
//
// GetMimeType maps an extension to the Content-Type served for originals.
package mediatypes
