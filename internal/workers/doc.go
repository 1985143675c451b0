// Package workers sizes goroutine pools from the CPU quota.
package workers
