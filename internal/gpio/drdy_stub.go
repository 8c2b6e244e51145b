//go:build !linux

package gpio

import "fmt"

type DataReadyLine struct{}

func NewDataReadyLine(chipPath string, offset int) *DataReadyLine { return &DataReadyLine{} }

func (l *DataReadyLine) Enable(handler func()) error {
	return fmt.Errorf("gpio: unsupported OS (need linux)")
}

func (l *DataReadyLine) Disable() error { return nil }
