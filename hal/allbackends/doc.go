// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package allbackends imports all HAL backend implementations.
//
// Import this package for side effects to register all available backends:
//
//	import (
//		_ "github.com/gogpu/wgpu-transfer/hal/allbackends"
//	)
//
// This will register:
//   - No-op backend (all platforms, for testing)
//
// After importing, use hal.GetBackend or hal.SelectBestBackend to access backends.
//
// No build tags are involved: the noop backend is imported unconditionally.
//
// Example usage:
//
//	import (
//		_ "github.com/gogpu/wgpu-transfer/hal/allbackends"
//		"github.com/gogpu/wgpu-transfer/core"
//	)
//
//	func main() {
//		// Instance will now enumerate the registered backends' adapters
//		instance := core.NewInstance(nil)
//		adapters := instance.EnumerateAdapters()
//		for _, a := range adapters {
//			fmt.Println(a) // the noop adapter
//		}
//	}
package allbackends
