// Package pkg provides shared utilities for the softdma eDMA driver.
//
// This package contains functionality used by the driver, its HAL
// implementations and the example programs:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel errors returned by driver operations
//   - Decoding of the engine's error status flags
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with a component attribute:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentChannel, "pool installed", "channel", 3, "slots", 8)
//
// # Errors
//
// Driver errors are sentinel values:
//
//	if errors.Is(err, pkg.ErrQueueFull) {
//	    // wait for a completion callback
//	}
package pkg
