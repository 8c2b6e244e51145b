// Package icm20948 implements the FIFO acquisition core for the InvenSense
// ICM-20948 accelerometer/gyroscope.
//
// The driver brings the device out of reset, configures it from immutable
// register policy tables, then drains the hardware FIFO continuously,
// decoding each transfer into timestamped accel and gyro batches. Register
// drift is detected and corrected incrementally while reading; any bus or
// health failure only forces a state transition, never a terminal error.
package icm20948

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"imud/internal/imu"
)

// now is overridden in tests.
var now = time.Now

// Transport carries one full-duplex bus transfer. len(w) == len(r); w and r
// may alias the same buffer.
type Transport interface {
	Tx(w, r []byte) error
}

// DataReadySource arms and disarms the hardware data-ready line. The handler
// is invoked once per edge, from the source's own goroutine.
type DataReadySource interface {
	Enable(handler func()) error
	Disable() error
}

// Magnetometer is an optional auxiliary device reached through the I2C
// master bridge. All methods are invoked from the acquisition worker.
type Magnetometer interface {
	Reset()
	Collect(t time.Time)
	SetTemperature(degC float64)
	Status() string
}

// Options configures optional driver behavior.
type Options struct {
	// SampleRate is the desired batch output rate in Hz. Zero selects the
	// default of 800 Hz.
	SampleRate int
	// DataReady, when present, switches FIFO draining from fixed-interval
	// polling to watermark interrupts (with a polling watchdog).
	DataReady DataReadySource
	// Magnetometer, when present, is reset on every configure pass and
	// collected from the read loop.
	Magnetometer Magnetometer
}

type driverState int

const (
	stateReset driverState = iota
	stateWaitForReset
	stateConfigure
	stateFIFORead
)

const (
	defaultSampleRate = 800 // Hz

	pollInterval        = 10 * time.Millisecond
	resetTimeout        = 100 * time.Millisecond
	configCheckInterval = 10 * time.Millisecond
	tempUpdateInterval  = time.Second
	magCollectInterval  = 10 * time.Millisecond
)

// Device is an acquisition driver instance. One goroutine (Run) owns all
// register and FIFO state; the only cross-goroutine state is the atomic
// ready signal written by the data-ready handler.
type Device struct {
	bus   Transport
	accel imu.Stream
	gyro  imu.Stream

	mag  Magnetometer
	drdy DataReadySource

	bank0Cfg []registerConfig
	bank2Cfg []registerConfig
	bank3Cfg []registerConfig

	state    driverState
	lastBank bank

	// Derived once from the requested rate; immutable after New.
	fifoEmptyInterval time.Duration
	gyroSamples       int
	accelSamples      int

	resetTimestamp  time.Time
	lastConfigCheck time.Time
	lastTempUpdate  time.Time
	lastMagCollect  time.Time

	checkedBank0 int
	checkedBank2 int
	checkedBank3 int

	forceFIFOCount bool
	drdyEnabled    bool

	ready        readySignal
	resetRequest atomic.Bool
	wake         chan struct{}

	fifoBuf []byte

	perf perfCounters
}

// New probes the device identity and derives the FIFO drain timing. It does
// not touch any other register; Run performs the reset and configuration.
func New(bus Transport, accel, gyro imu.Stream, opts Options) (*Device, error) {
	if bus == nil {
		return nil, fmt.Errorf("icm20948: bus is nil")
	}
	if accel == nil || gyro == nil {
		return nil, fmt.Errorf("icm20948: accel and gyro streams are required")
	}

	d := &Device{
		bus:      bus,
		accel:    accel,
		gyro:     gyro,
		mag:      opts.Magnetometer,
		drdy:     opts.DataReady,
		bank0Cfg: bank0Config(),
		bank2Cfg: bank2Config(),
		bank3Cfg: bank3Config(),
		lastBank: bankUnknown,
		wake:     make(chan struct{}, 1),
		fifoBuf:  make([]byte, fifoSizeBytes),
	}

	if opts.Magnetometer != nil {
		d.AttachMagnetometer(opts.Magnetometer)
	}

	d.configureSampleRate(opts.SampleRate)

	if who := d.registerRead(regWhoAmI); who != whoAmIValue {
		return nil, fmt.Errorf("icm20948: unexpected WHO_AM_I 0x%02X, want 0x%02X", who, whoAmIValue)
	}

	return d, nil
}

// AttachMagnetometer registers the auxiliary peer. The peer usually needs
// the Device itself as its bridge, so attachment is split from New; it must
// happen before Run. The bank 3 policy gains the I2C master bits once a
// slave exists: the auxiliary bus is only clocked up when something uses it.
func (d *Device) AttachMagnetometer(m Magnetometer) {
	d.mag = m
	if m == nil {
		return
	}
	for i := range d.bank3Cfg {
		switch d.bank3Cfg[i].reg {
		case regI2CSlv4Ctrl:
			d.bank3Cfg[i].setBits = i2cSlv4CtrlMstDly
		case regI2CMstCtrl:
			d.bank3Cfg[i].setBits = i2cMstCtrlPNSR | i2cMstCtrlClk400k
		case regI2CMstDelayCtrl:
			d.bank3Cfg[i].setBits = i2cMstDelayCtrlSlv
		}
	}
}

// Run executes the acquisition state machine until ctx is canceled. Each
// step schedules its own re-invocation; the data-ready handler can pull the
// next invocation forward through the wake channel.
func (d *Device) Run(ctx context.Context) error {
	d.state = stateReset

	timer := time.NewTimer(0)
	defer timer.Stop()
	defer d.disableDataReady()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-d.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
		timer.Reset(d.step())
	}
}

// Reset forces the state machine back to RESET on its next invocation,
// discarding whatever was pending. Safe to call from any goroutine.
func (d *Device) Reset() {
	d.resetRequest.Store(true)
	d.scheduleNow()
}

// step runs one state machine invocation and returns the delay until the
// next one.
func (d *Device) step() time.Duration {
	if d.resetRequest.Swap(false) {
		d.state = stateReset
	}

	switch d.state {
	case stateReset:
		d.registerWrite(regPwrMgmt1, pwrMgmt1DeviceReset)
		d.resetTimestamp = now()
		d.state = stateWaitForReset
		return pollInterval

	case stateWaitForReset:
		if d.registerRead(regWhoAmI) == whoAmIValue && d.registerRead(regPwrMgmt1) == pwrMgmt1ResetValue {
			d.state = stateConfigure
			return pollInterval
		}
		if now().Sub(d.resetTimestamp) > resetTimeout {
			log.Printf("icm20948: reset timed out, retrying")
			d.state = stateReset
			return resetTimeout
		}
		return pollInterval

	case stateConfigure:
		if !d.configure() {
			log.Printf("icm20948: configure failed, retrying")
			return pollInterval
		}
		if d.mag != nil {
			d.mag.Reset()
		}
		d.state = stateFIFORead
		next := d.fifoEmptyInterval
		if d.enableDataReady() {
			d.drdyEnabled = true
			// Watchdog: keep the cycle alive even if edges stop.
			next = pollInterval
		} else {
			d.drdyEnabled = false
		}
		d.fifoReset()
		return next

	case stateFIFORead:
		return d.fifoReadCycle()
	}

	return pollInterval
}

func (d *Device) enableDataReady() bool {
	if d.drdy == nil {
		return false
	}
	if err := d.drdy.Enable(d.dataReady); err != nil {
		log.Printf("icm20948: data-ready interrupt unavailable, polling FIFO: %v", err)
		return false
	}
	return true
}

func (d *Device) disableDataReady() {
	if d.drdy == nil || !d.drdyEnabled {
		return
	}
	if err := d.drdy.Disable(); err != nil {
		log.Printf("icm20948: data-ready disable: %v", err)
	}
	d.drdyEnabled = false
}

// DrainInterval reports the derived FIFO drain interval.
func (d *Device) DrainInterval() time.Duration { return d.fifoEmptyInterval }

// Status formats the perf counters and drain timing, one line per counter.
func (d *Device) Status() string {
	s := fmt.Sprintf("FIFO drain interval: %s (%.1f Hz, %d gyro / %d accel samples)\n",
		d.fifoEmptyInterval, 1e9/float64(d.fifoEmptyInterval.Nanoseconds()),
		d.gyroSamples, d.accelSamples)
	s += d.perf.String()
	if d.mag != nil {
		s += "\n" + d.mag.Status()
	}
	return s
}
