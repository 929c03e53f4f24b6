// Package constants centralizes tunable values so behavior stays consistent
// across the CLI commands and the orchestration layer.
package constants

import "time"

// Event bus sizing.
const (
	// EventBusDefaultBuffer - default buffer size for event channels.
	// Subscribers that fall behind drop events rather than blocking
	// publishers.
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - cap for caller-requested buffer sizes.
	EventBusMaxBuffer = 5000
)

// Connection supervision.
const (
	// KeepAliveInterval - period between liveness probes on a connected
	// session.
	KeepAliveInterval = 30 * time.Second

	// KeepAliveTimeout - per-probe deadline. A probe slower than this is
	// treated as failed.
	KeepAliveTimeout = 10 * time.Second

	// ConnectTimeout - deadline for establishing a new connection.
	ConnectTimeout = 30 * time.Second

	// ReconnectTimeout - deadline for the single automatic reconnect
	// attempt after a failed probe.
	ReconnectTimeout = 20 * time.Second
)

// Transfers.
const (
	// ModTimeTolerance - timestamps within this window compare as equal
	// when deciding overwrite conflicts. Remote backends round or
	// truncate modification times differently, so exact comparison
	// produces false "different" results.
	ModTimeTolerance = time.Second

	// DiskSpaceSafetyMargin - multiplier applied to required bytes when
	// preflighting downloads.
	DiskSpaceSafetyMargin = 1.05
)

// HTTP client tuning (provider backends).
const (
	// HTTPDialTimeout - TCP dial deadline.
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - TCP keep-alive period.
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPIdleConnTimeout - how long to keep idle connections open.
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake.
	HTTPTLSHandshakeTimeout = 60 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response.
	HTTPExpectContinueTimeout = 1 * time.Second
)
