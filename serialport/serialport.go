// Package serialport provides the UART byte stream behind the HDLC link:
// an 8N1 serial port with deadline-bounded reads and a wake delay before the
// first SNRM. The driver gives no DTR control, so Wake only waits and Sleep
// does nothing.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
	"github.com/wintek-iot/meterlink/base"
	"go.uber.org/zap"
)

// sliceTimeout is the per-read granularity used to honour deadlines; the
// driver itself only supports a fixed timeout per port.
const sliceTimeout = 50 * time.Millisecond

// Settings configures the port. WakeDelay is how long the DTR wake level
// is held before the first frame, at least 500ms for the common optical
// heads.
type Settings struct {
	Device    string
	Baud      int
	WakeDelay time.Duration
}

type port struct {
	settings Settings
	handle   *serial.Port
	logger   *zap.SugaredLogger
	deadline time.Time
	isopen   bool
}

func New(settings *Settings) base.Stream {
	s := *settings
	if s.Baud == 0 {
		s.Baud = 9600
	}
	if s.WakeDelay == 0 {
		s.WakeDelay = 500 * time.Millisecond
	}
	return &port{settings: s}
}

func (p *port) logf(format string, v ...any) {
	if p.logger != nil {
		p.logger.Infof(format, v...)
	}
}

func (p *port) SetLogger(logger *zap.SugaredLogger) {
	p.logger = logger
}

func (p *port) Open() error {
	if p.isopen {
		return nil
	}
	h, err := serial.OpenPort(&serial.Config{
		Name:        p.settings.Device,
		Baud:        p.settings.Baud,
		ReadTimeout: sliceTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening %s: %w", p.settings.Device, err)
	}
	p.handle = h
	p.isopen = true
	p.logf("opened %s at %d baud", p.settings.Device, p.settings.Baud)
	return nil
}

func (p *port) Close() error {
	if !p.isopen {
		return nil
	}
	p.isopen = false
	return p.handle.Close()
}

func (p *port) IsOpen() bool {
	return p.isopen
}

func (p *port) SetDeadline(t time.Time) {
	p.deadline = t
}

func (p *port) ClearRx() error {
	if !p.isopen {
		return base.ErrNotOpened
	}
	return p.handle.Flush()
}

// Wake holds the line for the configured wake window. The driver exposes
// no DTR control, so the level itself is strapped at the adapter; the
// delay still gives the meter its wake time.
func (p *port) Wake() error {
	if !p.isopen {
		return base.ErrNotOpened
	}
	p.logf("waking meter (%v)", p.settings.WakeDelay)
	time.Sleep(p.settings.WakeDelay)
	return nil
}

func (p *port) Sleep() error {
	return nil
}

func (p *port) Read(b []byte) (int, error) {
	if !p.isopen {
		return 0, base.ErrNotOpened
	}
	for {
		n, err := p.handle.Read(b)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		// a timed-out slice returns no data; keep polling up to the deadline
		if !p.deadline.IsZero() && !time.Now().Before(p.deadline) {
			return 0, base.ErrTimeout
		}
	}
}

func (p *port) Write(src []byte) error {
	if !p.isopen {
		return base.ErrNotOpened
	}
	for len(src) > 0 {
		n, err := p.handle.Write(src)
		if err != nil {
			return err
		}
		src = src[n:]
	}
	return nil
}
