package icm20948

import (
	"encoding/binary"
	"math"
)

const (
	temperatureSensitivity = 333.87 // LSB per degC
	temperatureOffset      = 21.0   // degC
)

// updateTemperature reads the die temperature and pushes it to every
// stream's compensation input. A non-finite conversion is dropped without
// side effects so one bad reading cannot poison compensation state.
func (d *Device) updateTemperature() {
	d.selectBank(bank0)

	var buf [3]byte
	buf[0] = regTempOutH.addr | dirRead
	if err := d.bus.Tx(buf[:], buf[:]); err != nil {
		d.perf.badTransfer.count()
		return
	}

	raw := int16(binary.BigEndian.Uint16(buf[1:3]))
	degC := float64(raw)/temperatureSensitivity + temperatureOffset

	if math.IsNaN(degC) || math.IsInf(degC, 0) {
		return
	}

	d.accel.SetTemperature(degC)
	d.gyro.SetTemperature(degC)
	if d.mag != nil {
		d.mag.SetTemperature(degC)
	}
}
