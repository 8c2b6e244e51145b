package icm20948

import (
	"fmt"
	"sync/atomic"
	"time"
)

type counter struct{ n atomic.Uint64 }

func (c *counter) count() { c.n.Add(1) }

func (c *counter) get() uint64 { return c.n.Load() }

// perfCounters tracks driver events. Counts are atomic so Status can be
// read from outside the worker; the transfer start time is worker-owned.
type perfCounters struct {
	transfers     counter
	transferNanos atomic.Int64
	transferStart time.Time

	badRegister  counter
	badTransfer  counter
	fifoEmpty    counter
	fifoOverflow counter
	fifoReset    counter
	drdy         counter
}

func (p *perfCounters) beginTransfer() { p.transferStart = now() }

func (p *perfCounters) endTransfer() {
	p.transfers.count()
	p.transferNanos.Add(int64(now().Sub(p.transferStart)))
}

func (p *perfCounters) String() string {
	transfers := p.transfers.get()
	avg := time.Duration(0)
	if transfers > 0 {
		avg = time.Duration(p.transferNanos.Load() / int64(transfers))
	}
	return fmt.Sprintf(
		"FIFO transfers: %d (avg %s)\n"+
			"bad registers: %d, bad transfers: %d\n"+
			"FIFO empty: %d, overflow: %d, resets: %d\n"+
			"data-ready edges: %d",
		transfers, avg,
		p.badRegister.get(), p.badTransfer.get(),
		p.fifoEmpty.get(), p.fifoOverflow.get(), p.fifoReset.get(),
		p.drdy.get())
}
