// Face Gallery scans the camera folder of a photo library, detects faces in
// each new photo, and keeps an annotated thumbnail per photo that has faces.
// A small HTTP API pages through the processed photos and lets users tag
// the faces found in them.
//
// # Application Lifecycle
//
//  1. Memory configuration: GOMEMLIMIT from MEMORY_LIMIT or the environment
//  2. Configuration loading and directory checks
//  3. Store, bitmap pool, decoder and detector initialization
//  4. Background services: memory monitor, metrics collector, photo indexer
//     and batch scheduler
//  5. HTTP API and metrics listener
//  6. Graceful shutdown on SIGINT/SIGTERM: the running batch is cancelled and
//     persists nothing for its current page
//
// The facescan command in cmd/facescan runs the same pipeline once from the
// command line.
package main
