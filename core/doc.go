// Package core implements the validated transfer and queue-submission
// layer between the user-facing API and the hardware abstraction layer
// (HAL). It handles:
//
//   - Geometry and copy-range validation for buffer/texture transfers
//   - Resource-state tracking and barrier synthesis
//   - Lazy zero-fill (memory-init) bookkeeping
//   - Staging allocation and queue submission
//
// Architecture:
//
//	gputypes/ → Data structures (no logic)
//	core/     → Validation + state tracking (this package)
//	hal/      → Hardware abstraction layer
//
// The design follows wgpu-core from the Rust wgpu project, adapted for
// idiomatic Go 1.25+ with generics and modern concurrency patterns.
//
// Thread Safety:
//
// All types in this package are safe for concurrent use unless
// explicitly documented otherwise.
package core
