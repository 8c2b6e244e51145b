//go:build !linux

package spi

import "fmt"

type Dev struct{}

func Open(path string, speedHz uint32, mode uint8) (*Dev, error) {
	return nil, fmt.Errorf("spi: unsupported OS (need linux)")
}

func (d *Dev) Close() error { return nil }

func (d *Dev) Tx(w, r []byte) error { return fmt.Errorf("spi: unsupported OS") }
