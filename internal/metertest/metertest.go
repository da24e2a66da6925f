// Package metertest provides a scripted meter endpoint for link, session
// and assembler tests: a base.Stream that answers each written frame with
// the next canned byte chunk, plus helpers that build well-formed peer
// frames with real check sequences.
package metertest

import (
	"time"

	"github.com/wintek-iot/meterlink/base"
	"github.com/wintek-iot/meterlink/crc16"
	"go.uber.org/zap"
)

// ScriptStream is a base.Stream whose inbound bytes are scripted: every
// Write consumes the next entry of Responses and queues it for reading. A
// nil entry scripts a silent meter (the read deadline then expires).
type ScriptStream struct {
	Responses [][]byte
	Writes    [][]byte

	rx     []byte
	opened bool
	Woken  int
	Slept  int
	Closed int
}

var _ base.Stream = (*ScriptStream)(nil)

func (s *ScriptStream) Open() error {
	s.opened = true
	return nil
}

func (s *ScriptStream) Close() error {
	s.opened = false
	s.Closed++
	return nil
}

func (s *ScriptStream) IsOpen() bool { return s.opened }

func (s *ScriptStream) SetLogger(*zap.SugaredLogger) {}

func (s *ScriptStream) SetDeadline(time.Time) {}

func (s *ScriptStream) ClearRx() error { return nil }

func (s *ScriptStream) Wake() error {
	s.Woken++
	return nil
}

func (s *ScriptStream) Sleep() error {
	s.Slept++
	return nil
}

func (s *ScriptStream) Read(p []byte) (int, error) {
	if len(s.rx) == 0 {
		return 0, base.ErrTimeout
	}
	n := copy(p, s.rx)
	s.rx = s.rx[n:]
	return n, nil
}

// Preload queues raw inbound bytes without waiting for a write.
func (s *ScriptStream) Preload(b []byte) {
	s.rx = append(s.rx, b...)
}

func (s *ScriptStream) Write(src []byte) error {
	cp := make([]byte, len(src))
	copy(cp, src)
	s.Writes = append(s.Writes, cp)
	if len(s.Responses) > 0 {
		s.rx = append(s.rx, s.Responses[0]...)
		s.Responses = s.Responses[1:]
	}
	return nil
}

// Frame builds a complete flag-delimited HDLC frame from the meter side
// (or any side, addresses are explicit) with valid HCS and FCS.
func Frame(dst, src, control byte, info []byte) []byte {
	inner := 7
	if len(info) > 0 {
		inner += 2 + len(info)
	}
	buf := make([]byte, 0, inner+2)
	buf = append(buf, base.HdlcFlag)
	buf = append(buf, 0xa0|byte(inner>>8), byte(inner))
	buf = append(buf, dst, src, control)
	if len(info) > 0 {
		buf = append(buf, 0, 0)
		crc16.Put(buf[6:], crc16.Checksum(buf[1:6]))
		buf = append(buf, info...)
	}
	fcs := crc16.Checksum(buf[1:])
	buf = append(buf, byte(fcs), byte(fcs>>8))
	return append(buf, base.HdlcFlag)
}

// ResponseFrame wraps a COSEM APDU into an LLC-prefixed I-frame addressed
// to the default client (0x41) from the default server (0x03).
func ResponseFrame(control byte, apdu []byte) []byte {
	info := append([]byte{0xe6, 0xe7, 0x00}, apdu...)
	return Frame(0x41, 0x03, control, info)
}

// UA is the meter's unnumbered acknowledgement to SNRM or DISC.
func UA() []byte {
	return Frame(0x41, 0x03, byte(base.FrameUA), nil)
}

// GetResponse builds a successful GET.response-normal carrying data.
func GetResponse(control byte, data []byte) []byte {
	apdu := append([]byte{0xc4, 0x01, 0xc1, 0x00}, data...)
	return ResponseFrame(control, apdu)
}

// GetError builds a GET.response-normal carrying a data-access-result.
func GetError(control byte, result base.AccessResult) []byte {
	return ResponseFrame(control, []byte{0xc4, 0x01, 0xc1, 0x01, byte(result)})
}

// AAREAccepted is a minimal association response with result accepted.
func AAREAccepted(control byte) []byte {
	return AARE(control, 0)
}

// AARE builds an association response with the given association result,
// surrounded by the context-name and diagnostic fields a real meter sends.
func AARE(control byte, result byte) []byte {
	body := []byte{
		0xa1, 0x09, 0x06, 0x07, 0x60, 0x85, 0x74, 0x05, 0x08, 0x01, 0x01,
		0xa2, 0x03, 0x02, 0x01, result,
		0xa3, 0x05, 0xa1, 0x03, 0x02, 0x01, 0x00,
		0xbe, 0x10, 0x04, 0x0e, 0x08, 0x00, 0x06, 0x5f, 0x1f, 0x04, 0x00,
		0x00, 0x18, 0x1d, 0x00, 0x80, 0x00, 0x07,
	}
	apdu := append([]byte{0x61, byte(len(body))}, body...)
	return ResponseFrame(control, apdu)
}
