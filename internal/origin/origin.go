// Package origin implements the two frame producers: an offline pcap file
// reader and a live AF_PACKET interface capturer. Both share the same
// processor-callback contract so the supervisor can wire either one to the
// worker pool interchangeably.
package origin

import (
	"context"
	"sync/atomic"

	"github.com/google/gopacket/layers"

	"github.com/iGTsan/flow-inspector/internal/frame"
)

// Processor receives frames as they are produced. It is called exactly
// once per frame, on the goroutine running [Origin.StartReading].
type Processor func(f *frame.Frame)

// Origin is a frame producer: either a [FileReader] or a [LiveCapture].
type Origin interface {
	// SetProcessor records the sink for produced frames. Must be called
	// exactly once, before StartReading.
	SetProcessor(p Processor)

	// LinkType returns the link-layer type frames are encoded with, for the
	// PCAP writer to validate against.
	LinkType() layers.LinkType

	// StartReading blocks, invoking the processor for each produced frame,
	// until StopReading is called or the input is exhausted.
	StartReading(ctx context.Context) error

	// StopReading requests StartReading return as soon as possible.
	StopReading()
}

// doneFlag is a release-store/acquire-load stop signal shared by both
// origin variants.
type doneFlag struct {
	v atomic.Bool
}

func (d *doneFlag) set()       { d.v.Store(true) }
func (d *doneFlag) isSet() bool { return d.v.Load() }
