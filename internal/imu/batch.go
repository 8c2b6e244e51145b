// Package imu defines the sample batch format produced by the acquisition
// core and the sink interface downstream consumers implement.
package imu

import "time"

// Batch is one FIFO drain cycle's worth of samples from a single sensor.
//
// Timestamp is the time of the last sample in the batch; earlier samples are
// spaced DT apart going backwards. X/Y/Z are raw signed counts in the output
// frame (x forward, y right, z down).
type Batch struct {
	Timestamp time.Time     `json:"timestamp"`
	DT        time.Duration `json:"dt"`
	X         []int16       `json:"x"`
	Y         []int16       `json:"y"`
	Z         []int16       `json:"z"`
	Samples   int           `json:"samples"`
}

// Stream consumes one sensor's output. Implementations must tolerate calls
// from a single goroutine only; the acquisition worker owns the call sites.
type Stream interface {
	// Publish delivers a decoded batch.
	Publish(Batch)
	// ReportError increments the stream's error count.
	ReportError()
	// SetTemperature updates temperature compensation, degrees C.
	SetTemperature(degC float64)
	// SetRate reports the effective batch output rate in Hz.
	SetRate(hz float64)
	// SetScale reports counts-to-unit scale and full range for the sensor.
	SetScale(scale, fullRange float64)
}
