// Package logging provides a simple leveled logging interface for the
// face gallery.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true. Pipeline components log through a
// tagged Logger obtained from For so per-image failures name the stage
// that produced them.
package logging
