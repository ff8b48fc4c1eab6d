// Package constants defines magic numbers and default values used throughout vegur.
package constants

import "time"

// Backend connection timeouts.
const (
	DefaultBackendConnectTimeout = 100 * time.Millisecond
	DefaultBackendReadTimeout    = 30 * time.Second
	DefaultBackendWriteTimeout   = 30 * time.Second
)

// Expect: 100-continue negotiation.
const (
	DefaultContinueDeadline = 55 * time.Second
	ContinuePollInterval    = 1 * time.Second
)

// Byte pipe (post-upgrade) idle timeout.
const (
	DefaultBytePipeIdleTimeout = 55 * time.Second
	BytePipeBufferSize         = 32 * 1024
)

// HTTP limits
const (
	MaxHeaderBytes   = 64 * 1024
	MaxContentLength = 1024 * 1024 * 1024 * 1024 // 1TB
)

// SmallBodyThreshold is the known-length response body size, in bytes, at or
// under which the relay reads the whole body before replying in one shot
// instead of streaming it.
const SmallBodyThreshold = 1024

// Buffer limits
const (
	DefaultBodyMemLimit = 4 * 1024 * 1024 // 4MB
)
