// Package engineconf holds the immutable per-open-file Options snapshot
// (spec §3) plus the on-disk settings/version persistence described in
// spec §6.4, grounded on original_source/config.cpp.
package engineconf

// Options is the immutable snapshot passed when opening a file (spec §3).
type Options struct {
	RewindSpeed       int     // [1, 64]
	FastForwardSpeed  int     // [2, 64]
	PlaySoundEffects  bool
	SkipBackOnPlayMS  uint32  // ms, <= 10000
	SlowSpeed         float32 // [0.2, 1.0]
	ChunkSizeMS       int     // [10, 60]
	HistorySec        int     // [1, 13]
	PreloadSec        int     // [1, 13]
}

// Default mirrors original_source/config.cpp's DefaultOptions.
var Default = Options{
	RewindSpeed:      4,
	FastForwardSpeed: 8,
	PlaySoundEffects: true,
	SkipBackOnPlayMS: 1000,
	SlowSpeed:        0.7,
	ChunkSizeMS:      25,
	HistorySec:       4,
	PreloadSec:       4,
}

// Clamp applies spec §3's bounds, matching the defensive re-clamp
// original_source/config.cpp performs on every loaded field.
func (o Options) Clamp() Options {
	if o.RewindSpeed < 1 || o.RewindSpeed > 64 {
		o.RewindSpeed = Default.RewindSpeed
	}
	if o.FastForwardSpeed < 2 || o.FastForwardSpeed > 64 {
		o.FastForwardSpeed = Default.FastForwardSpeed
	}
	if o.SkipBackOnPlayMS > 10000 {
		o.SkipBackOnPlayMS = Default.SkipBackOnPlayMS
	}
	if o.SlowSpeed < 0.2 || o.SlowSpeed > 1.0 {
		o.SlowSpeed = Default.SlowSpeed
	}
	if o.ChunkSizeMS < 10 || o.ChunkSizeMS > 60 {
		o.ChunkSizeMS = Default.ChunkSizeMS
	}
	if o.HistorySec < 1 || o.HistorySec > 13 {
		o.HistorySec = Default.HistorySec
	}
	if o.PreloadSec < 1 || o.PreloadSec > 13 {
		o.PreloadSec = Default.PreloadSec
	}

	return o
}
