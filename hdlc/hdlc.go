// Package hdlc implements the HDLC data link used between the client and a
// single DLMS meter: flag-delimited CRC-checked frames, the SNRM/UA/DISC
// handshake and the numbered I-frame exchange that carries COSEM APDUs.
package hdlc

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wintek-iot/meterlink/base"
	"github.com/wintek-iot/meterlink/llc"
	"go.uber.org/zap"
)

// Canonical SNRM negotiation parameters: maximum information field length
// 0x0501 for transmit and receive (parameters 05 and 06), window size 1 for
// transmit and receive (parameters 07 and 08).
var snrmInfo = []byte{
	0x81, 0x80, 0x14,
	0x05, 0x02, 0x05, 0x01,
	0x06, 0x02, 0x05, 0x01,
	0x07, 0x04, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x04, 0x00, 0x00, 0x00, 0x01,
}

const handshakeAttempts = 3

// Settings configures a Link. Zero fields take the defaults below.
type Settings struct {
	Client       byte          // client SAP, default 0x41
	Server       byte          // server SAP, default 0x03
	FrameTimeout time.Duration // per-frame receive deadline, default 2s
	DiscTimeout  time.Duration // DISC response deadline, default 500ms
	MaxRetries   int           // attempts per exchange on timeout or CRC error, default 3
}

func (s *Settings) withDefaults() Settings {
	out := *s
	if out.Client == 0 {
		out.Client = 0x41
	}
	if out.Server == 0 {
		out.Server = 0x03
	}
	if out.FrameTimeout == 0 {
		out.FrameTimeout = 2 * time.Second
	}
	if out.DiscTimeout == 0 {
		out.DiscTimeout = 500 * time.Millisecond
	}
	if out.MaxRetries == 0 {
		out.MaxRetries = 3
	}
	return out
}

// Link drives HDLC over a byte stream. It owns the stream for the duration
// of a session; the receive buffer is reused across frames.
type Link struct {
	stream   base.Stream
	settings Settings
	logger   *zap.SugaredLogger
	counter  byte
	isopen   bool
	atFlag   bool // last read stopped on a closing flag that may open the next frame
	rxbuf    []byte
	one      [1]byte
}

func New(stream base.Stream, settings *Settings) *Link {
	return &Link{
		stream:   stream,
		settings: settings.withDefaults(),
		counter:  base.InitialCounter,
		rxbuf:    make([]byte, 0, base.MaxFrameSize),
	}
}

func (l *Link) logf(format string, v ...any) {
	if l.logger != nil {
		l.logger.Infof(format, v...)
	}
}

func (l *Link) dlogf(format string, v ...any) {
	if l.logger != nil {
		l.logger.Debugf(format, v...)
	}
}

func (l *Link) SetLogger(logger *zap.SugaredLogger) {
	l.logger = logger
	l.stream.SetLogger(logger)
}

// Counter exposes the current I-frame sequence byte.
func (l *Link) Counter() byte {
	return l.counter
}

func (l *Link) IsOpen() bool {
	return l.isopen
}

// Open wakes the meter and negotiates normal response mode. The SNRM frame
// is attempted three times before the handshake is declared rejected.
func (l *Link) Open() error {
	if l.isopen {
		return nil
	}
	if err := l.stream.Open(); err != nil {
		return err
	}
	if err := l.stream.Wake(); err != nil {
		return err
	}
	if err := l.stream.ClearRx(); err != nil {
		return err
	}

	snrm, err := buildFrame(l.settings.Server, l.settings.Client, byte(base.FrameSNRM), snrmInfo)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < handshakeAttempts; attempt++ {
		control, _, err := l.roundtrip(snrm, l.settings.FrameTimeout)
		if err != nil {
			if retryable(err) {
				lastErr = err
				continue
			}
			return &base.HandshakeError{Phase: "snrm", Reason: err.Error()}
		}
		if base.FrameKind(control) != base.FrameUA {
			return &base.HandshakeError{Phase: "snrm", Reason: fmt.Sprintf("expected UA, got control 0x%02x", control)}
		}
		l.counter = base.InitialCounter
		l.isopen = true
		l.logf("link up: SNRM acknowledged")
		return nil
	}
	return &base.HandshakeError{Phase: "snrm", Reason: lastErr.Error()}
}

// Close releases the link: DISC is sent twice for reliability, the UA reply
// is awaited best-effort with a short deadline, and the counter resets.
func (l *Link) Close() error {
	if !l.isopen {
		return l.stream.Close()
	}
	l.isopen = false
	l.counter = base.InitialCounter

	disc, err := buildFrame(l.settings.Server, l.settings.Client, byte(base.FrameDISC), nil)
	if err == nil {
		if _, _, err := l.roundtrip(disc, l.settings.DiscTimeout); err != nil {
			l.dlogf("disc response not received: %v", err)
		}
		if err := l.stream.Write(disc); err != nil {
			l.dlogf("second disc not sent: %v", err)
		}
	}
	if err := l.stream.Sleep(); err != nil {
		l.dlogf("sleep failed: %v", err)
	}
	return l.stream.Close()
}

// Exchange sends one COSEM APDU in an I-frame and returns the APDU of the
// response. Timeouts and CRC failures are retried on the same sequence
// number; the counter advances only after a verified response.
func (l *Link) Exchange(apdu []byte) ([]byte, error) {
	if !l.isopen {
		return nil, base.ErrNotOpened
	}
	frame, err := buildFrame(l.settings.Server, l.settings.Client, l.counter, llc.Wrap(apdu))
	if err != nil {
		return nil, err
	}

	var lastErr error
	framingRetried := false
	for attempt := 0; attempt < l.settings.MaxRetries; attempt++ {
		control, info, err := l.roundtrip(frame, l.settings.FrameTimeout)
		if err != nil {
			var fe *base.FramingError
			if errors.As(err, &fe) {
				// a malformed frame is retried once, then fatal
				if framingRetried {
					return nil, err
				}
				framingRetried = true
				lastErr = err
				continue
			}
			if retryable(err) {
				lastErr = err
				continue
			}
			return nil, err
		}
		if control&1 != 0 {
			return nil, &base.FramingError{Reason: fmt.Sprintf("expected I-frame, got %s", base.ClassifyControl(control))}
		}
		payload, err := llc.Strip(info)
		if err != nil {
			return nil, err
		}
		l.advance()
		return payload, nil
	}
	return nil, lastErr
}

// advance steps both sequence numbers; values at 0xfe wrap to the initial
// counter.
func (l *Link) advance() {
	if l.counter >= 0xfe {
		l.counter = base.InitialCounter
	} else {
		l.counter += base.CounterStep
	}
}

func (l *Link) roundtrip(frame []byte, timeout time.Duration) (byte, []byte, error) {
	if err := l.stream.ClearRx(); err != nil {
		return 0, nil, err
	}
	l.atFlag = false
	l.dlogf("TX %s", hexdump(frame))
	if err := l.stream.Write(frame); err != nil {
		return 0, nil, err
	}
	raw, err := l.readFrame(time.Now().Add(timeout))
	if err != nil {
		return 0, nil, err
	}
	l.dlogf("RX %s", hexdump(raw))
	return parseFrame(raw, l.settings.Client, l.settings.Server)
}

// readFrame tokenises the inbound byte stream: bytes are discarded until an
// opening flag, then buffered until a closing flag arrives with more than
// four bytes in between, which tolerates back-to-back flags serving as both
// closing and opening delimiter.
func (l *Link) readFrame(deadline time.Time) ([]byte, error) {
	l.stream.SetDeadline(deadline)
	defer l.stream.SetDeadline(time.Time{})

	buf := l.rxbuf[:0]
	started := l.atFlag
	l.atFlag = false
	for {
		if !time.Now().Before(deadline) {
			return nil, base.ErrTimeout
		}
		n, err := l.stream.Read(l.one[:])
		if err != nil {
			if errors.Is(err, base.ErrTimeout) || errors.Is(err, io.EOF) {
				return nil, base.ErrTimeout
			}
			if te, ok := err.(interface{ Timeout() bool }); ok && te.Timeout() {
				return nil, base.ErrTimeout
			}
			return nil, err
		}
		if n == 0 {
			continue
		}
		b := l.one[0]
		if !started {
			if b == base.HdlcFlag {
				started = true
			}
			continue
		}
		if b == base.HdlcFlag {
			if len(buf) <= 4 { // runt or back-to-back flag, restart collection
				buf = buf[:0]
				continue
			}
			l.atFlag = true
			return buf, nil
		}
		if len(buf) >= base.MaxFrameSize {
			return nil, &base.FramingError{Reason: "frame exceeds maximum length"}
		}
		buf = append(buf, b)
	}
}

func retryable(err error) bool {
	if errors.Is(err, base.ErrTimeout) {
		return true
	}
	var ce *base.CrcError
	return errors.As(err, &ce)
}

func hexdump(b []byte) string {
	return fmt.Sprintf("(%3d) % 02x", len(b), b)
}
