// Package app assembles the face gallery from its configuration: stores,
// bitmap pool, decoder, detector, batch processor, scheduler, indexer and
// gallery services. Both the server and the facescan CLI build on it.
package app
