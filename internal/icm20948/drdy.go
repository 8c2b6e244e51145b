package icm20948

import (
	"sync/atomic"
	"time"
)

// readySignal is the only state shared between the data-ready handler and
// the acquisition worker. The handler writes, the worker reads and resets;
// each cell is updated independently and the worker validates the timestamp
// by elapsed time rather than assuming freshness.
type readySignal struct {
	edges     atomic.Uint32
	samples   atomic.Uint32
	timestamp atomic.Int64 // microseconds since epoch
	watermark atomic.Uint32
}

func (r *readySignal) reset() {
	r.edges.Store(0)
	r.samples.Store(0)
	r.timestamp.Store(0)
}

// dataReady runs on the data-ready source's goroutine, once per edge. It
// performs no bus transfers and touches no bank state: it counts edges and,
// on every watermark-th edge, latches the timestamp and sample count and
// wakes the worker.
func (d *Device) dataReady() {
	d.perf.drdy.count()

	watermark := d.ready.watermark.Load()
	if watermark == 0 {
		return
	}
	if d.ready.edges.Add(1) >= watermark {
		d.ready.edges.Store(0)
		d.ready.timestamp.Store(now().UnixMicro())
		d.ready.samples.Store(watermark)
		d.scheduleNow()
	}
}

// scheduleNow pulls the worker's next invocation forward. Non-blocking: a
// pending wake already guarantees a prompt run.
func (d *Device) scheduleNow() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// watermarkTimestamp is a test seam around the atomic cell.
func (d *Device) watermarkTimestamp() time.Time {
	return time.UnixMicro(d.ready.timestamp.Load())
}
