// Package middleware provides HTTP middleware for the gallery API:
// W3C Extended Log Format access logging, Prometheus request metrics keyed
// by route template, and gzip compression of JSON responses.
package middleware
