package hdlc

import (
	"github.com/wintek-iot/meterlink/base"
	"github.com/wintek-iot/meterlink/crc16"
)

// frame field offsets, counted without the delimiting flags
const (
	offFormat  = 0
	offDst     = 2
	offSrc     = 3
	offControl = 4
	offHcs     = 5
	offInfo    = 7

	minBareFrame = 7 // format(2) + dst + src + control + fcs(2)
)

// buildFrame assembles a complete flag-delimited frame. The format field
// carries 0xa0 (long format) and the frame length excluding both flags;
// HCS is present only when an information field is.
func buildFrame(dst, src, control byte, info []byte) ([]byte, error) {
	inner := minBareFrame
	if len(info) > 0 {
		inner += 2 + len(info)
	}
	if inner+2 > base.MaxFrameSize {
		return nil, &base.FramingError{Reason: "frame exceeds maximum length"}
	}

	buf := make([]byte, 0, inner+2)
	buf = append(buf, base.HdlcFlag)
	buf = append(buf, 0xa0|byte(inner>>8), byte(inner))
	buf = append(buf, dst, src, control)
	if len(info) > 0 {
		buf = append(buf, 0, 0) // HCS placeholder
		crc16.Put(buf[1+offHcs:], crc16.Checksum(buf[1:1+offHcs]))
		buf = append(buf, info...)
	}
	fcs := crc16.Checksum(buf[1:])
	buf = append(buf, 0, 0)
	crc16.Put(buf[len(buf)-2:], fcs)
	return append(buf, base.HdlcFlag), nil
}

// parseFrame validates a received frame (flags already stripped by the
// tokeniser) against the expected addresses and both check sequences, and
// returns the control byte and information field.
func parseFrame(raw []byte, dst, src byte) (control byte, info []byte, err error) {
	if len(raw) < minBareFrame {
		return 0, nil, &base.FramingError{Reason: "frame below minimum length"}
	}
	if raw[offFormat]&0xf0 != 0xa0 {
		return 0, nil, &base.FramingError{Reason: "invalid format field"}
	}
	length := int(raw[offFormat]&0x07)<<8 | int(raw[offFormat+1])
	if length != len(raw) {
		return 0, nil, &base.FramingError{Reason: "length field mismatch"}
	}
	if raw[offDst] != dst || raw[offSrc] != src {
		return 0, nil, &base.FramingError{Reason: "address mismatch"}
	}
	control = raw[offControl]

	rem := len(raw) - offHcs
	switch {
	case rem == 2: // no information field, single FCS
		if !crc16.Verify(raw) {
			return 0, nil, &base.CrcError{Field: "fcs", Frame: raw}
		}
		return control, nil, nil
	case rem < 5: // HCS present but nothing behind it
		return 0, nil, &base.FramingError{Reason: "invalid frame length"}
	}

	hcs, fcs := crc16.Split(raw[:len(raw)-2], offHcs)
	if hcs != crc16.Get(raw[offHcs:]) {
		return 0, nil, &base.CrcError{Field: "hcs", Frame: raw}
	}
	if fcs != crc16.Get(raw[len(raw)-2:]) {
		return 0, nil, &base.CrcError{Field: "fcs", Frame: raw}
	}
	return control, raw[offInfo : len(raw)-2], nil
}
