// Package ak09916 drives the AKM AK09916 magnetometer that sits behind the
// ICM-20948's auxiliary I2C master bridge. The part is never addressed
// directly: writes go through the bridge's slave registers and reads arrive
// in the host device's external sensor data window.
//
// All methods run on the host's acquisition worker; the package keeps no
// goroutine of its own.
package ak09916

import (
	"fmt"
	"sync/atomic"
	"time"

	"imud/internal/imu"
)

const (
	// I2CAddr is the AK09916's fixed 7-bit address on the auxiliary bus.
	I2CAddr = 0x0C

	regWIA2  = 0x01
	deviceID = 0x09

	regST1   = 0x10
	regCNTL2 = 0x31
	regCNTL3 = 0x32

	st1DataReady = 0x01
	st2Overflow  = 0x08

	cntl2Continuous100Hz = 0x08
	cntl3SoftReset       = 0x01

	// ST1 through ST2: status, six data bytes, dummy, status 2.
	readLen = 9

	resetSettle  = 100 * time.Millisecond
	bridgeSettle = 20 * time.Millisecond

	sampleInterval = 10 * time.Millisecond // continuous mode 4, 100 Hz
)

// Bridge is the slice of the host device the magnetometer needs: indirect
// register access plus the bridged data window.
type Bridge interface {
	SlaveRegisterStartRead(addr, reg uint8)
	SlaveRegisterWrite(addr, reg, value uint8)
	SlaveReadEnable(addr, reg, size uint8)
	SlaveRead(buf []byte) bool
}

type state int

const (
	stateReset state = iota
	stateWaitForReset
	stateCheckID
	stateRead
)

// Device is one AK09916 behind a bridge.
type Device struct {
	bridge Bridge
	mag    imu.Stream

	state     state
	stateTime time.Time

	badID       atomic.Uint64
	badTransfer atomic.Uint64
	overflow    atomic.Uint64
}

func New(bridge Bridge, mag imu.Stream) (*Device, error) {
	if bridge == nil {
		return nil, fmt.Errorf("ak09916: bridge is nil")
	}
	if mag == nil {
		return nil, fmt.Errorf("ak09916: mag stream is required")
	}
	d := &Device{bridge: bridge, mag: mag}
	d.mag.SetRate(1e3 / float64(sampleInterval.Milliseconds()))
	// 4912 uT full range, 0.15 uT/LSB.
	d.mag.SetScale(0.15, 4912)
	return d, nil
}

// Reset restarts the bring-up sequence. The host calls this on every
// configure pass, so a reconfigured bridge always re-initializes the slave.
func (d *Device) Reset() {
	d.bridge.SlaveRegisterWrite(I2CAddr, regCNTL3, cntl3SoftReset)
	d.state = stateWaitForReset
	d.stateTime = time.Time{}
}

// Collect advances the bring-up state machine and, once running, drains one
// bridged sample if the part has fresh data. t is the host worker's notion
// of now.
func (d *Device) Collect(t time.Time) {
	switch d.state {
	case stateReset:
		d.Reset()
		d.stateTime = t

	case stateWaitForReset:
		if d.stateTime.IsZero() {
			d.stateTime = t
		}
		if t.Sub(d.stateTime) < resetSettle {
			return
		}
		d.bridge.SlaveRegisterStartRead(I2CAddr, regWIA2)
		d.state = stateCheckID
		d.stateTime = t

	case stateCheckID:
		// Give the bridge a master cycle to complete the one-byte read.
		if t.Sub(d.stateTime) < bridgeSettle {
			return
		}
		var id [1]byte
		if !d.bridge.SlaveRead(id[:]) || id[0] != deviceID {
			d.badID.Add(1)
			d.state = stateReset
			return
		}
		d.bridge.SlaveRegisterWrite(I2CAddr, regCNTL2, cntl2Continuous100Hz)
		d.bridge.SlaveReadEnable(I2CAddr, regST1, readLen)
		d.state = stateRead
		d.stateTime = t

	case stateRead:
		d.collectSample(t)
	}
}

func (d *Device) collectSample(t time.Time) {
	var buf [readLen]byte
	if !d.bridge.SlaveRead(buf[:]) {
		d.badTransfer.Add(1)
		d.mag.ReportError()
		return
	}

	if buf[0]&st1DataReady == 0 {
		// No new measurement since the last bridge cycle.
		return
	}
	if buf[8]&st2Overflow != 0 {
		d.overflow.Add(1)
		d.mag.ReportError()
		return
	}

	// Sample registers are little-endian, unlike the host device.
	x := int16(uint16(buf[1]) | uint16(buf[2])<<8)
	y := int16(uint16(buf[3]) | uint16(buf[4])<<8)
	z := int16(uint16(buf[5]) | uint16(buf[6])<<8)

	d.mag.Publish(imu.Batch{
		Timestamp: t,
		DT:        sampleInterval,
		X:         []int16{x},
		Y:         []int16{flipSign(y)},
		Z:         []int16{flipSign(z)},
		Samples:   1,
	})
}

// flipSign matches the host's forward/right/down output frame; -32768
// clamps to 32767 instead of wrapping.
func flipSign(v int16) int16 {
	if v == -32768 {
		return 32767
	}
	return -v
}

// SetTemperature forwards the host die temperature to the mag stream.
func (d *Device) SetTemperature(degC float64) {
	d.mag.SetTemperature(degC)
}

// Status formats the peer's counters.
func (d *Device) Status() string {
	return fmt.Sprintf("ak09916: bad id: %d, bad transfers: %d, overflows: %d",
		d.badID.Load(), d.badTransfer.Load(), d.overflow.Load())
}
