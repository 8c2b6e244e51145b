//go:build linux

// Package gpio exposes the sensor's data-ready line as edge-event callbacks
// using the Linux GPIO character device.
package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// DataReadyLine wires a falling-edge GPIO line (the sensor's INT1 pin is
// configured active low) to a handler. The handler runs on the gpiocdev
// event goroutine and must not block.
type DataReadyLine struct {
	chipPath string
	offset   int

	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func NewDataReadyLine(chipPath string, offset int) *DataReadyLine {
	return &DataReadyLine{chipPath: chipPath, offset: offset}
}

func (l *DataReadyLine) Enable(handler func()) error {
	if l == nil || l.chipPath == "" {
		return fmt.Errorf("gpio: data-ready line not configured")
	}
	if l.line != nil {
		return nil
	}

	chip, err := gpiocdev.NewChip(l.chipPath)
	if err != nil {
		return fmt.Errorf("gpio: open %s: %w", l.chipPath, err)
	}
	line, err := chip.RequestLine(l.offset,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { handler() }),
		gpiocdev.WithConsumer("imud-drdy"),
	)
	if err != nil {
		_ = chip.Close()
		return fmt.Errorf("gpio: request line %d on %s: %w", l.offset, l.chipPath, err)
	}

	l.chip = chip
	l.line = line
	return nil
}

func (l *DataReadyLine) Disable() error {
	if l == nil || l.line == nil {
		return nil
	}
	err := l.line.Close()
	l.line = nil
	if l.chip != nil {
		_ = l.chip.Close()
		l.chip = nil
	}
	return err
}
