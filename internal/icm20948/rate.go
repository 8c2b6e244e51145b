package icm20948

import (
	"math"
	"time"
)

// Native output rates with the DLPFs bypassed. The accelerometer runs at
// half the gyro rate, which is what makes every accel reading appear twice
// in the FIFO stream.
const (
	gyroRateHz  = 9000
	accelRateHz = 4500
)

// configureSampleRate derives the FIFO drain interval and the per-sensor
// samples-per-drain from the requested output rate. This is the only place
// that combines timing policy with the hardware rate constants.
func (d *Device) configureSampleRate(sampleRate int) {
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}

	gyroPeriodUs := 1e6 / float64(gyroRateHz)
	minIntervalUs := samplesPerTransfer * gyroPeriodUs

	// Round the requested interval down to a whole number of per-transfer
	// units, never below one unit.
	intervalUs := math.Floor((1e6/float64(sampleRate))/minIntervalUs) * minIntervalUs
	if intervalUs < minIntervalUs {
		intervalUs = minIntervalUs
	}

	gyroSamples := int(math.Round(intervalUs / gyroPeriodUs))
	if gyroSamples > fifoMaxSamples {
		gyroSamples = fifoMaxSamples
	}
	d.gyroSamples = gyroSamples

	// Recompute the interval exactly from the capped gyro count so the
	// published dt carries no rounding drift.
	intervalUs = float64(gyroSamples) * gyroPeriodUs

	accelSamples := int(math.Round(intervalUs / (1e6 / float64(accelRateHz))))
	if accelSamples > fifoMaxSamples {
		accelSamples = fifoMaxSamples
	}
	if accelSamples < 1 {
		accelSamples = 1
	}
	d.accelSamples = accelSamples

	d.fifoEmptyInterval = time.Duration(intervalUs * float64(time.Microsecond))
	d.ready.watermark.Store(uint32(gyroSamples))

	d.accel.SetRate(1e6 / intervalUs)
	d.gyro.SetRate(1e6 / intervalUs)
}
