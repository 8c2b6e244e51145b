package icm20948

import (
	"bytes"
	"encoding/binary"
	"log"
	"math"
	"time"

	"imud/internal/imu"
)

const (
	fifoSizeBytes = 512

	// Each FIFO frame holds big-endian accel X/Y/Z then gyro X/Y/Z.
	fifoFrameSize  = 12
	fifoMaxSamples = fifoSizeBytes / fifoFrameSize

	// The accelerometer updates every other frame, so a transfer must span
	// at least two frames to contain one new accel sample.
	samplesPerTransfer = 2
)

// fifoReadCycle is the steady-state FIFO_READ invocation. It returns the
// delay until the next invocation: the watchdog interval when interrupts
// are armed, the drain interval when polling, zero when a health failure
// forces an immediate reconfigure.
func (d *Device) fifoReadCycle() time.Duration {
	next := d.fifoEmptyInterval
	var timestampSample time.Time
	samples := 0

	if d.drdyEnabled {
		// Watchdog: the cycle fires even if edges stop arriving.
		next = pollInterval

		if !d.forceFIFOCount {
			samples = int(d.ready.samples.Load())
		} else {
			samples = d.fifoCountSamples()
		}
		timestampSample = time.UnixMicro(d.ready.timestamp.Load())
	}

	// The interrupt-reported count is a hint, not the truth. Read the
	// hardware count directly when polling, when the hint is empty, or
	// when the watermark timestamp is stale.
	if !d.drdyEnabled || samples == 0 || now().Sub(timestampSample) > d.fifoEmptyInterval/2 {
		timestampSample = now()
		samples = d.fifoCountSamples()
	}

	failure := false
	switch {
	case samples > fifoMaxSamples:
		// More data than one batch can carry; drop it all and start over.
		d.perf.fifoOverflow.count()
		failure = true
		d.fifoReset()

	case samples >= samplesPerTransfer:
		if !d.fifoRead(timestampSample, samples) {
			failure = true
			d.accel.ReportError()
			d.gyro.ReportError()
		}

	case samples == 0:
		failure = true
		d.perf.fifoEmpty.count()
	}

	if failure || now().Sub(d.lastConfigCheck) > configCheckInterval {
		if !d.checkRegistersIncremental() {
			log.Printf("icm20948: health check failed, reconfiguring")
			d.state = stateConfigure
			return 0
		}
		d.lastConfigCheck = timestampSample
	} else if now().Sub(d.lastTempUpdate) > tempUpdateInterval {
		d.updateTemperature()
		d.lastTempUpdate = timestampSample
	}

	if d.mag != nil && now().Sub(d.lastMagCollect) >= magCollectInterval {
		d.lastMagCollect = now()
		d.mag.Collect(d.lastMagCollect)
	}

	return next
}

// fifoCountSamples reads the hardware FIFO byte count and rounds down to
// whole per-transfer units.
func (d *Device) fifoCountSamples() int {
	return (d.fifoReadCount() / fifoFrameSize / samplesPerTransfer) * samplesPerTransfer
}

func (d *Device) fifoReadCount() int {
	d.selectBank(bank0)

	var buf [3]byte
	buf[0] = regFIFOCountH.addr | dirRead
	if err := d.bus.Tx(buf[:], buf[:]); err != nil {
		d.perf.badTransfer.count()
		return 0
	}
	return int(binary.BigEndian.Uint16(buf[1:3]))
}

// fifoRead transfers up to samples frames plus the leading count field,
// re-validates the count from the same transfer, and publishes the decoded
// batches. It also decides whether the next cycle may trust the
// interrupt-reported count or must re-read the hardware count.
func (d *Device) fifoRead(timestampSample time.Time, samples int) bool {
	d.perf.beginTransfer()
	d.selectBank(bank0)

	size := samples*fifoFrameSize + 3
	if size > fifoSizeBytes {
		size = fifoSizeBytes
	}
	buf := d.fifoBuf[:size]
	for i := range buf {
		buf[i] = 0
	}
	buf[0] = regFIFOCountH.addr | dirRead

	if err := d.bus.Tx(buf, buf); err != nil {
		d.perf.endTransfer()
		d.perf.badTransfer.count()
		return false
	}
	d.perf.endTransfer()

	countBytes := int(binary.BigEndian.Uint16(buf[1:3]))
	countSamples := countBytes / fifoFrameSize

	if countSamples == 0 {
		d.perf.fifoEmpty.count()
		return false
	}
	if countBytes >= fifoSizeBytes {
		d.perf.fifoOverflow.count()
		d.fifoReset()
		return false
	}

	validSamples := samples
	if countSamples < validSamples {
		validSamples = countSamples
	}

	switch {
	case countSamples < samples:
		// Fewer samples than the interrupt promised: serious desync.
		d.forceFIFOCount = true
	case countSamples >= samples+2:
		// Falling more than a couple samples behind.
		d.forceFIFOCount = true
	default:
		d.forceFIFOCount = false
	}

	if validSamples > 0 {
		frames := buf[3 : 3+validSamples*fifoFrameSize]
		d.processGyro(timestampSample, frames, validSamples)
		if d.processAccel(timestampSample, frames, validSamples) {
			return true
		}
	}

	// Any decode trouble also voids the interrupt count for the next cycle.
	d.forceFIFOCount = true
	return false
}

func (d *Device) fifoReset() {
	d.perf.fifoReset.count()

	d.registerSetBits(regFIFORst, fifoRstAll)
	d.registerClearBits(regFIFORst, fifoRstAll)

	d.ready.reset()
}

func frameAt(frames []byte, i int) []byte {
	return frames[i*fifoFrameSize : (i+1)*fifoFrameSize]
}

func accelBytesEqual(f0, f1 []byte) bool {
	return bytes.Equal(f0[:6], f1[:6])
}

// flipSign negates a reading to convert the device's forward/left/up frame
// to forward/right/down. -32768 has no 16-bit negation and clamps to 32767.
func flipSign(v int16) int16 {
	if v == math.MinInt16 {
		return math.MaxInt16
	}
	return -v
}

func (d *Device) processGyro(timestampSample time.Time, frames []byte, samples int) {
	batch := imu.Batch{
		Timestamp: timestampSample,
		DT:        d.fifoEmptyInterval / time.Duration(d.gyroSamples),
		X:         make([]int16, 0, samples),
		Y:         make([]int16, 0, samples),
		Z:         make([]int16, 0, samples),
	}

	for i := 0; i < samples; i++ {
		f := frameAt(frames, i)
		batch.X = append(batch.X, int16(binary.BigEndian.Uint16(f[6:8])))
		batch.Y = append(batch.Y, flipSign(int16(binary.BigEndian.Uint16(f[8:10]))))
		batch.Z = append(batch.Z, flipSign(int16(binary.BigEndian.Uint16(f[10:12]))))
	}
	batch.Samples = samples

	d.gyro.Publish(batch)
}

// processAccel deinterleaves the accel stream. The hardware duplicates each
// accel reading across two consecutive frames, but where the pairs start is
// not guaranteed; with 4+ frames the phase is detected by byte comparison,
// with fewer the second-of-pair default is accepted as-is. Returns false if
// neither duplication pattern matched (data still published).
func (d *Device) processAccel(timestampSample time.Time, frames []byte, samples int) bool {
	batch := imu.Batch{
		Timestamp: timestampSample,
		DT:        d.fifoEmptyInterval / time.Duration(d.accelSamples),
	}

	badData := false
	firstSample := 1

	if samples >= 4 {
		switch {
		case accelBytesEqual(frameAt(frames, 0), frameAt(frames, 1)) &&
			accelBytesEqual(frameAt(frames, 2), frameAt(frames, 3)):
			// [A0 A0' A1 A1' ...]: pairs start at 0, take the second of each.
			firstSample = 1
		case accelBytesEqual(frameAt(frames, 1), frameAt(frames, 2)):
			// [A0' A1 A1' A2 ...]: pairs shifted by one, take even indices.
			firstSample = 0
		default:
			d.perf.badTransfer.count()
			badData = true
		}
	}

	for i := firstSample; i < samples; i += 2 {
		f := frameAt(frames, i)
		batch.X = append(batch.X, int16(binary.BigEndian.Uint16(f[0:2])))
		batch.Y = append(batch.Y, flipSign(int16(binary.BigEndian.Uint16(f[2:4]))))
		batch.Z = append(batch.Z, flipSign(int16(binary.BigEndian.Uint16(f[4:6]))))
	}
	batch.Samples = len(batch.X)

	d.accel.Publish(batch)

	return !badData
}
