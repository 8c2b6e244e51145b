package icm20948

// Register map per the ICM-20948 datasheet (DS-000189). Addresses are only
// unique within a bank, so every register carries its owning bank and all
// access goes through selectBank first.

type bank uint8

const (
	bank0 bank = 0
	bank2 bank = 2
	bank3 bank = 3
)

type reg struct {
	bank bank
	addr uint8
}

const (
	dirRead = 0x80 // high bit of the address byte marks a read

	whoAmIValue = 0xEA

	// PWR_MGMT_1 reads back as 0x41 once a device reset completes.
	pwrMgmt1ResetValue = 0x41
)

// Bank 0.
var (
	regWhoAmI           = reg{bank0, 0x00}
	regUserCtrl         = reg{bank0, 0x03}
	regPwrMgmt1         = reg{bank0, 0x06}
	regIntPinCfg        = reg{bank0, 0x0F}
	regIntEnable1       = reg{bank0, 0x11}
	regTempOutH         = reg{bank0, 0x39}
	regExtSlvSensData00 = reg{bank0, 0x3B}
	regFIFOEn2          = reg{bank0, 0x67}
	regFIFORst          = reg{bank0, 0x68}
	regFIFOMode         = reg{bank0, 0x69}
	regFIFOCountH       = reg{bank0, 0x70}
	regBankSel          = reg{bank0, 0x7F}
)

// Bank 2.
var (
	regGyroConfig1 = reg{bank2, 0x01}
	regAccelConfig = reg{bank2, 0x14}
)

// Bank 3 (I2C master / auxiliary bus bridge).
var (
	regI2CMstODRConfig = reg{bank3, 0x00}
	regI2CMstCtrl      = reg{bank3, 0x01}
	regI2CMstDelayCtrl = reg{bank3, 0x02}
	regI2CSlv0Addr     = reg{bank3, 0x03}
	regI2CSlv0Reg      = reg{bank3, 0x04}
	regI2CSlv0Ctrl     = reg{bank3, 0x05}
	regI2CSlv0DO       = reg{bank3, 0x06}
	regI2CSlv4Ctrl     = reg{bank3, 0x15}
)

// USER_CTRL bits.
const (
	userCtrlFIFOEn   = 0x40
	userCtrlI2CMstEn = 0x20
	userCtrlI2CIfDis = 0x10
)

// PWR_MGMT_1 bits.
const (
	pwrMgmt1DeviceReset = 0x80
	pwrMgmt1Sleep       = 0x40
	pwrMgmt1ClkSelAuto  = 0x01
)

// INT_PIN_CFG / INT_ENABLE_1 bits.
const (
	intPinCfgInt1ActiveLow = 0x80
	intEnable1RawDataRdy   = 0x01
)

// FIFO_EN_2 / FIFO_RST / FIFO_MODE bits.
const (
	fifoEn2AccelEn = 0x10
	fifoEn2GyroZEn = 0x08
	fifoEn2GyroYEn = 0x04
	fifoEn2GyroXEn = 0x02
	fifoEn2TempEn  = 0x01

	fifoRstAll       = 0x1F
	fifoModeSnapshot = 0x1F
)

// GYRO_CONFIG_1 bits.
const (
	gyroConfig1FS2000DPS = 0x06
	gyroConfig1DLPFCfg   = 0x38
	gyroConfig1FChoice   = 0x01
)

// ACCEL_CONFIG bits.
const (
	accelConfigFS16G   = 0x06
	accelConfigFSMask  = 0x06
	accelConfigDLPFCfg = 0x38
	accelConfigFChoice = 0x01

	gyroConfig1FSMask = 0x06
)

// Full-scale selections, bits 2:1 of the respective config registers.
const (
	accelFS2G  = 0x00
	accelFS4G  = 0x02
	accelFS8G  = 0x04
	accelFS16G = 0x06

	gyroFS250DPS  = 0x00
	gyroFS500DPS  = 0x02
	gyroFS1000DPS = 0x04
	gyroFS2000DPS = 0x06
)

// I2C master bits.
const (
	i2cMstCtrlPNSR     = 0x10
	i2cMstCtrlClk400k  = 0x07
	i2cMstDelayCtrlSlv = 0x1F // I2C_SLVx_DLY_EN for all slaves
	i2cSlv4CtrlMstDly  = 0x05

	i2cSlv0AddrRNW = 0x80
	i2cSlv0CtrlEn  = 0x80
)

// registerConfig describes the policy for one register: bits that must be
// set and bits that must be clear. setBits and clearBits never overlap.
type registerConfig struct {
	reg       reg
	setBits   uint8
	clearBits uint8
}

func bank0Config() []registerConfig {
	return []registerConfig{
		{regUserCtrl, userCtrlFIFOEn | userCtrlI2CMstEn | userCtrlI2CIfDis, 0},
		{regPwrMgmt1, pwrMgmt1ClkSelAuto, pwrMgmt1DeviceReset | pwrMgmt1Sleep},
		{regIntPinCfg, intPinCfgInt1ActiveLow, 0},
		{regIntEnable1, intEnable1RawDataRdy, 0},
		{regFIFOEn2, fifoEn2AccelEn | fifoEn2GyroZEn | fifoEn2GyroYEn | fifoEn2GyroXEn, fifoEn2TempEn},
		{regFIFOMode, fifoModeSnapshot, 0},
	}
}

func bank2Config() []registerConfig {
	return []registerConfig{
		{regGyroConfig1, gyroConfig1FS2000DPS, gyroConfig1DLPFCfg | gyroConfig1FChoice},
		{regAccelConfig, accelConfigFS16G, accelConfigDLPFCfg | accelConfigFChoice},
	}
}

func bank3Config() []registerConfig {
	return []registerConfig{
		{regI2CMstODRConfig, 0, 0},
		{regI2CMstCtrl, 0, 0},
		{regI2CMstDelayCtrl, 0, 0},
		{regI2CSlv4Ctrl, 0, 0},
	}
}
