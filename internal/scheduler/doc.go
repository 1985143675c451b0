// Package scheduler drives the batch processor: once at startup, on a fixed
// interval, and whenever a run is requested through the API or after the
// photo index changes. It keeps the run state shown to the UI.
package scheduler
