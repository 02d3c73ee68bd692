// Package core re-exports the dense tracker-index types from the track
// subpackage so resource accessors (Buffer.TrackingData, Texture.TrackingData)
// can be used without importing track directly.

package core

import "github.com/gogpu/wgpu-transfer/core/track"

// TrackerIndex is a dense, recyclable index assigned to a tracked resource
// for O(1) array-indexed state lookups during command encoding.
type TrackerIndex = track.TrackerIndex

// InvalidTrackerIndex marks a TrackingData that was never assigned a real
// index because its owning resource has no device.
const InvalidTrackerIndex = track.InvalidTrackerIndex
