// Package memory controls the Go runtime memory limit in containers and
// sizes the bitmap pool from it.
//
// Call [ConfigureFromEnv] early in main, before decoding starts:
//
//	func main() {
//	    memory.ConfigureFromEnv()
//	    // ...
//	}
//
// Environment variables:
//
//   - GOMEMLIMIT: standard Go variable, takes precedence
//   - MEMORY_LIMIT: container limit in bytes, usually from the Downward API
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap (default 0.85)
//
// [PoolBudget] turns the effective limit into the bitmap pool's byte budget.
// [Monitor] samples heap usage and makes the batch pipeline wait before
// starting new image transforms while usage is critical.
package memory
