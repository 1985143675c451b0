// Package pgstore implements database.Store on PostgreSQL for deployments
// that share one media and face tag library between several instances.
//
// The photo index always stays in the local SQLite database; only media
// records and face tags live here.
package pgstore
