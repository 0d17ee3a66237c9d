// GPIO foot-pedal transport: adapts a single debounced GPIO line into the
// same RawEvent shape evdev.go's reader produces, so the mapper and
// coordinator stay transport-agnostic (spec §4.5's domain extension note).
//
// Grounded on warthog618/go-gpiocdev's line request/watch API, which the
// teacher declares in go.mod but never imports — Dire Wolf's PTT line is
// driven over a serial port, not a GPIO chip.
package pedal

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/mpharoah/openscribe/internal/logging"
)

const gpioDebounce = 5_000_000 // 5ms, in nanoseconds (gpiocdev.WithDebounce takes a time.Duration)

// GPIOPedal is a one-button foot pedal wired to a single GPIO line, reported
// to the rest of the package as a single-button PedalInfo with button index
// 0, so it slots into the same FootPedalConfiguration/DeviceState machinery
// a one-button USB pedal would use.
type GPIOPedal struct {
	name   string
	line   *gpiocdev.Line
	events chan RawEvent
	done   chan struct{}
}

// OpenGPIOPedal requests offset on chip (e.g. "gpiochip0") as an
// input with both-edge detection and debounce, reporting presses as button
// index 0.
func OpenGPIOPedal(name, chip string, offset int) (*GPIOPedal, error) {
	p := &GPIOPedal{
		name:   name,
		events: make(chan RawEvent, 8),
		done:   make(chan struct{}),
	}

	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithDebounce(gpioDebounce),
		gpiocdev.WithEventHandler(p.handleEdge),
	)
	if err != nil {
		return nil, fmt.Errorf("pedal: gpio request %s:%d: %w", chip, offset, err)
	}
	p.line = line

	return p, nil
}

// Info reports this pedal as a single-button device so it composes with the
// existing FootPedalConfiguration/mapper machinery unchanged.
func (p *GPIOPedal) Info() PedalInfo {
	return PedalInfo{
		Name:    p.name,
		Buttons: map[uint16]uint16{0: 0},
	}
}

// Events yields RawEvents for the pedal's single button as edges occur.
func (p *GPIOPedal) Events() <-chan RawEvent {
	return p.events
}

// Close releases the GPIO line request. Safe to call once.
func (p *GPIOPedal) Close() error {
	close(p.done)
	return p.line.Close()
}

func (p *GPIOPedal) handleEdge(evt gpiocdev.LineEvent) {
	pressed := evt.Type == gpiocdev.LineEventRisingEdge
	select {
	case p.events <- RawEvent{IsAxis: false, Index: 0, IsPressed: pressed}:
	case <-p.done:
	default:
		logging.Warn("gpio pedal: event dropped, reader not keeping up", "name", p.name)
	}
}
