// Package observability builds the zap logger and the Prometheus HTTP
// metrics shared by the API server.
package observability
