//go:build linux

package spi

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Minimal Linux SPI implementation backed by /dev/spidev*.
//
// We use SPI_IOC_MESSAGE with a single full-duplex segment: the register
// address shifts out while the response shifts in, which is what
// register-oriented sensors expect.

const (
	iocWrMode        = 0x40016b01
	iocWrBitsPerWord = 0x40016b03
	iocWrMaxSpeedHz  = 0x40046b04
	iocMessage1      = 0x40206b00
)

type xfer struct {
	txBuf       uint64
	rxBuf       uint64
	len         uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	txNbits     uint8
	rxNbits     uint8
	wordDelay   uint8
	pad         uint8
}

// Dev is an opened SPI device (e.g. /dev/spidev0.0).
//
// Dev is not safe for concurrent transfers; coordinate at a higher level if
// you need concurrency.
type Dev struct {
	f       *os.File
	path    string
	speedHz uint32
}

// Open opens a spidev node and applies mode/speed. mode is the SPI clock
// mode 0-3.
func Open(path string, speedHz uint32, mode uint8) (*Dev, error) {
	path = filepath.Clean(path)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	d := &Dev{f: f, path: path, speedHz: speedHz}

	bits := uint8(8)
	if err := d.ioctl(iocWrMode, unsafe.Pointer(&mode)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("spi: set mode %d on %s: %w", mode, path, err)
	}
	if err := d.ioctl(iocWrBitsPerWord, unsafe.Pointer(&bits)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("spi: set bits per word on %s: %w", path, err)
	}
	if err := d.ioctl(iocWrMaxSpeedHz, unsafe.Pointer(&speedHz)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("spi: set speed %d Hz on %s: %w", speedHz, path, err)
	}

	return d, nil
}

func (d *Dev) Close() error {
	if d == nil || d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

// Tx performs one full-duplex transfer. w and r must be the same length and
// may alias the same buffer.
func (d *Dev) Tx(w, r []byte) error {
	if d == nil || d.f == nil {
		return errors.New("spi device is nil")
	}
	if len(w) != len(r) {
		return fmt.Errorf("spi: tx/rx length mismatch (%d != %d)", len(w), len(r))
	}
	if len(w) == 0 {
		return nil
	}

	t := xfer{
		txBuf:       uint64(uintptr(unsafe.Pointer(&w[0]))),
		rxBuf:       uint64(uintptr(unsafe.Pointer(&r[0]))),
		len:         uint32(len(w)),
		speedHz:     d.speedHz,
		bitsPerWord: 8,
	}
	return d.ioctl(iocMessage1, unsafe.Pointer(&t))
}

func (d *Dev) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}
