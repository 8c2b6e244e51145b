package icm20948

// Register access primitives. None of these return errors: a failed bus
// transfer is counted and reads yield zero, leaving recovery to the health
// check and the state machine (the device never hands a hard failure to the
// caller mid-cycle).

const bankUnknown = bank(0xFF)

// selectBank issues a bank-select transaction only when the requested bank
// differs from the cached one. The cache is not advanced on a failed
// transfer so the next access retries the select.
func (d *Device) selectBank(b bank) {
	if b == d.lastBank {
		return
	}
	cmd := [2]byte{regBankSel.addr, uint8(b) << 4}
	if err := d.bus.Tx(cmd[:], cmd[:]); err != nil {
		d.perf.badTransfer.count()
		return
	}
	d.lastBank = b
}

func (d *Device) registerRead(r reg) uint8 {
	d.selectBank(r.bank)
	cmd := [2]byte{r.addr | dirRead, 0}
	if err := d.bus.Tx(cmd[:], cmd[:]); err != nil {
		d.perf.badTransfer.count()
		return 0
	}
	return cmd[1]
}

func (d *Device) registerWrite(r reg, value uint8) {
	d.selectBank(r.bank)
	cmd := [2]byte{r.addr, value}
	if err := d.bus.Tx(cmd[:], cmd[:]); err != nil {
		d.perf.badTransfer.count()
	}
}

func (d *Device) registerSetAndClearBits(r reg, setBits, clearBits uint8) {
	value := d.registerRead(r)
	if setBits != 0 {
		value |= setBits
	}
	if clearBits != 0 {
		value &^= clearBits
	}
	d.registerWrite(r, value)
}

func (d *Device) registerSetBits(r reg, bits uint8) { d.registerSetAndClearBits(r, bits, 0) }

func (d *Device) registerClearBits(r reg, bits uint8) { d.registerSetAndClearBits(r, 0, bits) }

// Auxiliary bus bridge: the bank 3 I2C master block reads and writes a
// slave device indirectly, with results landing in EXT_SLV_SENS_DATA.

// SlaveRegisterStartRead arms a one-byte bridged read of the given slave
// register.
func (d *Device) SlaveRegisterStartRead(addr, slaveReg uint8) {
	d.SlaveReadEnable(addr, slaveReg, 1)
}

// SlaveRegisterWrite writes one byte to a slave register through the bridge.
func (d *Device) SlaveRegisterWrite(addr, slaveReg, value uint8) {
	d.registerWrite(regI2CSlv0Addr, addr)
	d.registerWrite(regI2CSlv0Reg, slaveReg)
	d.registerWrite(regI2CSlv0DO, value)
	d.registerSetBits(regI2CSlv0Ctrl, 1)
}

// SlaveReadEnable arms a repeating bridged read of size bytes starting at
// the given slave register.
func (d *Device) SlaveReadEnable(addr, slaveReg, size uint8) {
	d.registerWrite(regI2CSlv0Addr, addr|i2cSlv0AddrRNW)
	d.registerWrite(regI2CSlv0Reg, slaveReg)
	d.registerWrite(regI2CSlv0Ctrl, size|i2cSlv0CtrlEn)
}

// SlaveRead copies the latest bridged data into buf. The EXT_SLV_SENS_DATA
// window is 24 bytes. buf is filled with whatever was shifted in even on a
// failed transfer; the return value reports transfer success.
func (d *Device) SlaveRead(buf []byte) bool {
	if len(buf) == 0 || len(buf) > 24 {
		return false
	}
	d.selectBank(bank0)

	tmp := make([]byte, len(buf)+1)
	tmp[0] = regExtSlvSensData00.addr | dirRead
	ok := true
	if err := d.bus.Tx(tmp, tmp); err != nil {
		d.perf.badTransfer.count()
		ok = false
	}
	copy(buf, tmp[1:])
	return ok
}
