// Package tcp is the byte stream for meters reachable through a serial
// device server (RS-485/Ethernet bridge) instead of a local port.
package tcp

import (
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/wintek-iot/meterlink/base"
	"go.uber.org/zap"
)

type tcp struct {
	hostname      string
	port          int
	logger        *zap.SugaredLogger
	connected     bool
	timeout       time.Duration
	conn          net.Conn
	offset        int
	read          int
	buffer        []byte
	deadline      time.Time
	totalincoming int64
	totaloutgoing int64
}

func New(hostname string, port int, timeout time.Duration) base.Stream {
	return &tcp{
		hostname: hostname,
		port:     port,
		timeout:  timeout,
		buffer:   make([]byte, 2048),
	}
}

func (t *tcp) logf(format string, v ...any) {
	if t.logger != nil {
		t.logger.Infof(format, v...)
	}
}

func (t *tcp) Open() error {
	if t.connected {
		return nil
	}
	address := net.JoinHostPort(t.hostname, strconv.Itoa(t.port))

	conn, err := net.DialTimeout("tcp", address, t.timeout)
	if err != nil {
		t.logf("Connect to %s failed: %v", address, err)
		return fmt.Errorf("connect failed: %w", err)
	}
	t.logf("Connected to %s", address)

	t.conn = conn
	t.connected = true
	t.offset = 0
	t.read = 0
	return nil
}

func (t *tcp) Close() error {
	if t.connected {
		t.connected = false
		if t.conn != nil {
			_ = t.conn.Close()
			t.conn = nil
		}
		t.logf("Disconnected from %s", t.hostname)
		t.logf("Total bytes incoming: %v, outgoing: %v", t.totalincoming, t.totaloutgoing)
	}
	return nil
}

func (t *tcp) IsOpen() bool {
	return t.connected
}

func (t *tcp) SetDeadline(d time.Time) {
	t.deadline = d
}

func (t *tcp) SetLogger(logger *zap.SugaredLogger) {
	t.logger = logger
}

// ClearRx drops locally buffered bytes; the device server keeps its own
// buffers, which the next frame's flag hunt skips past anyway.
func (t *tcp) ClearRx() error {
	t.offset = 0
	t.read = 0
	return nil
}

// Wake is a no-op: a device server holds its serial control lines itself.
func (t *tcp) Wake() error {
	t.logf("wake requested (device server controls DTR)")
	return nil
}

func (t *tcp) Sleep() error {
	return nil
}

func (t *tcp) setcommdeadline() {
	cd := time.Now().Add(t.timeout)
	if t.deadline.IsZero() || cd.Before(t.deadline) {
		_ = t.conn.SetDeadline(cd)
	} else {
		_ = t.conn.SetDeadline(t.deadline)
	}
}

func (t *tcp) Write(src []byte) error {
	if !t.connected {
		return base.ErrNotOpened
	}
	for len(src) > 0 {
		t.setcommdeadline()
		n, err := t.conn.Write(src)
		if err != nil {
			return fmt.Errorf("write failed: %w", err)
		}
		t.totaloutgoing += int64(n)

		if t.logger != nil {
			t.logger.Debugf("TX (%s): %6d %s", t.hostname, n, encodeHexString(src[:n]))
		}
		src = src[n:]
	}
	return nil
}

func (t *tcp) Read(p []byte) (n int, err error) {
	if !t.connected {
		return 0, base.ErrNotOpened
	}
	if len(p) == 0 {
		return 0, base.ErrNothingToRead
	}

	n = len(p)
	rem := t.read - t.offset
	if rem > 0 { // having something unread in the buffer
		if n > rem {
			n = rem
		}
		copy(p, t.buffer[t.offset:t.offset+n])
		t.offset += n
		return
	}

	t.setcommdeadline()
	rx, err := t.conn.Read(t.buffer)
	t.totalincoming += int64(rx)

	if rx > 0 {
		t.read = rx
		if n > rx {
			n = rx
		}
		copy(p, t.buffer[:n])
		t.offset = n

		if t.logger != nil {
			t.logger.Debugf("RX (%s): %6d %s", t.hostname, rx, encodeHexString(t.buffer[:rx]))
		}
	}

	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, base.ErrTimeout
		}
		return 0, err
	}
	if rx == 0 {
		return 0, io.EOF
	}
	return
}

func encodeHexString(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}
