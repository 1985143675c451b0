// Package handlers provides the HTTP API of the face gallery:
//
//   - Gallery pages of processed media and single records
//   - Thumbnails and full-size annotated views
//   - Face tags (list and save)
//   - Batch run and re-index triggers, run status and library stats
//   - Health, liveness and readiness probes
//
// Services are injected through [Deps] as interfaces so handlers can be
// tested against fakes.
package handlers
