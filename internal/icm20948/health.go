package icm20948

import "log"

// registerCheck verifies one register against its policy: every must-set bit
// set and every must-clear bit clear. On mismatch it issues the corrective
// read-modify-write immediately and reports failure. notify controls the
// error accounting used on the hot-path incremental check but not on the
// cold configure pass.
func (d *Device) registerCheck(cfg registerConfig, notify bool) bool {
	success := true

	value := d.registerRead(cfg.reg)

	if cfg.setBits != 0 && value&cfg.setBits != cfg.setBits {
		log.Printf("icm20948: bank %d reg 0x%02X = 0x%02X (0x%02X not set)", cfg.reg.bank, cfg.reg.addr, value, cfg.setBits)
		success = false
	}
	if cfg.clearBits != 0 && value&cfg.clearBits != 0 {
		log.Printf("icm20948: bank %d reg 0x%02X = 0x%02X (0x%02X not clear)", cfg.reg.bank, cfg.reg.addr, value, cfg.clearBits)
		success = false
	}

	if !success {
		d.registerSetAndClearBits(cfg.reg, cfg.setBits, cfg.clearBits)
		if notify {
			d.perf.badRegister.count()
			d.accel.ReportError()
			d.gyro.ReportError()
		}
	}

	return success
}

// configure runs the full health check across every table entry. All
// entries are visited even after a failure so a single pass corrects
// everything it can; the caller retries until a pass comes back clean.
func (d *Device) configure() bool {
	success := true

	for _, cfg := range d.bank0Cfg {
		if !d.registerCheck(cfg, false) {
			success = false
		}
	}
	for _, cfg := range d.bank2Cfg {
		if !d.registerCheck(cfg, false) {
			success = false
		}
	}
	for _, cfg := range d.bank3Cfg {
		if !d.registerCheck(cfg, false) {
			success = false
		}
	}

	// The incremental rotation restarts from the top of each table.
	d.checkedBank0 = 0
	d.checkedBank2 = 0
	d.checkedBank3 = 0

	d.configureAccelScale()
	d.configureGyroScale()

	return success
}

// checkRegistersIncremental verifies one entry from each bank table. The
// three cursors have independent moduli but advance only in lockstep, on a
// fully successful round.
func (d *Device) checkRegistersIncremental() bool {
	if d.registerCheck(d.bank0Cfg[d.checkedBank0], true) &&
		d.registerCheck(d.bank2Cfg[d.checkedBank2], true) &&
		d.registerCheck(d.bank3Cfg[d.checkedBank3], true) {
		d.checkedBank0 = (d.checkedBank0 + 1) % len(d.bank0Cfg)
		d.checkedBank2 = (d.checkedBank2 + 1) % len(d.bank2Cfg)
		d.checkedBank3 = (d.checkedBank3 + 1) % len(d.bank3Cfg)
		return true
	}
	return false
}

const oneG = 9.80665 // m/s^2

// configureAccelScale reads back the configured full-scale selection and
// reports the matching scale/range downstream.
func (d *Device) configureAccelScale() {
	switch d.registerRead(regAccelConfig) & accelConfigFSMask {
	case accelFS2G:
		d.accel.SetScale(oneG/16384.0, 2*oneG)
	case accelFS4G:
		d.accel.SetScale(oneG/8192.0, 4*oneG)
	case accelFS8G:
		d.accel.SetScale(oneG/4096.0, 8*oneG)
	case accelFS16G:
		d.accel.SetScale(oneG/2048.0, 16*oneG)
	}
}

const degToRad = 0.017453292519943295

func (d *Device) configureGyroScale() {
	switch d.registerRead(regGyroConfig1) & gyroConfig1FSMask {
	case gyroFS250DPS:
		d.gyro.SetScale(degToRad/131.0, 250*degToRad)
	case gyroFS500DPS:
		d.gyro.SetScale(degToRad/65.5, 500*degToRad)
	case gyroFS1000DPS:
		d.gyro.SetScale(degToRad/32.8, 1000*degToRad)
	case gyroFS2000DPS:
		d.gyro.SetScale(degToRad/16.4, 2000*degToRad)
	}
}
