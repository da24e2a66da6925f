package cosem

import (
	"bytes"
	"fmt"

	"github.com/wintek-iot/meterlink/base"
)

// ACSE/xDLMS constants for the LN no-ciphering low-level-security
// association this client establishes.
const (
	tagAARQ = 0x60
	tagAARE = 0x61

	tagApplicationContextName     = 0xa1
	tagAssociationResult          = 0xa2
	tagSourceDiagnostic           = 0xa3
	tagSenderAcseRequirements     = 0x8a
	tagMechanismName              = 0x8b
	tagCallingAuthenticationValue = 0xac
	tagUserInformation            = 0xbe
)

// contextLN is 2.16.756.5.8.1.1 (logical name referencing, no ciphering).
var contextLN = []byte{0x06, 0x07, 0x60, 0x85, 0x74, 0x05, 0x08, 0x01, 0x01}

// mechanismLLS is 2.16.756.5.8.2.1 (low level security).
var mechanismLLS = []byte{0x60, 0x85, 0x74, 0x05, 0x08, 0x02, 0x01}

// xdlmsInitiate proposes the GET / GET-with-list conformance with an
// unlimited client PDU size.
var xdlmsInitiate = []byte{
	0x04, 0x0e, 0x01, 0x00, 0x00, 0x00, 0x06,
	0x5f, 0x1f, 0x04, 0x00, 0x00, 0x18, 0x1d, 0xff, 0xff,
}

// encodeAARQ builds the association request APDU carrying the low-level
// password as the calling authentication value.
func encodeAARQ(password []byte) []byte {
	var content bytes.Buffer

	content.WriteByte(tagApplicationContextName)
	content.WriteByte(byte(len(contextLN)))
	content.Write(contextLN)

	content.Write([]byte{tagSenderAcseRequirements, 0x02, 0x07, 0x80})

	content.WriteByte(tagMechanismName)
	content.WriteByte(byte(len(mechanismLLS)))
	content.Write(mechanismLLS)

	content.WriteByte(tagCallingAuthenticationValue)
	content.WriteByte(byte(len(password) + 2))
	content.WriteByte(0x80)
	content.WriteByte(byte(len(password)))
	content.Write(password)

	content.WriteByte(tagUserInformation)
	content.WriteByte(byte(len(xdlmsInitiate)))
	content.Write(xdlmsInitiate)

	out := make([]byte, 0, content.Len()+2)
	out = append(out, tagAARQ, byte(content.Len()))
	return append(out, content.Bytes()...)
}

// aareResult is the parsed outcome of an association response.
type aareResult struct {
	result     byte
	diagnostic byte
	hasResult  bool
}

// decodeAARE walks the BER tag structure of an AARE APDU and locates the
// association-result field (A2 03 02 01 <result>). The field is found by
// structure, never by a fixed byte offset, so responses of any length parse
// correctly.
func decodeAARE(apdu []byte) (aareResult, error) {
	var out aareResult
	if len(apdu) < 2 {
		return out, fmt.Errorf("aare too short")
	}
	if apdu[0] != tagAARE {
		return out, fmt.Errorf("unexpected apdu tag 0x%02x", apdu[0])
	}
	body, _, err := berContent(apdu[1:])
	if err != nil {
		return out, err
	}

	for len(body) > 0 {
		if len(body) < 2 {
			return out, fmt.Errorf("truncated aare tag")
		}
		tag := body[0]
		data, rest, err := berContent(body[1:])
		if err != nil {
			return out, err
		}
		switch tag {
		case tagAssociationResult:
			if len(data) != 3 || data[0] != 0x02 || data[1] != 0x01 {
				return out, fmt.Errorf("malformed association-result field")
			}
			out.result = data[2]
			out.hasResult = true
		case tagSourceDiagnostic:
			// acse-service-user / -provider wrapper around INTEGER
			if len(data) == 5 && data[1] == 0x03 && data[2] == 0x02 && data[3] == 0x01 {
				out.diagnostic = data[4]
			}
		}
		body = rest
	}

	if !out.hasResult {
		return out, fmt.Errorf("no association-result field found")
	}
	return out, nil
}

// berContent splits a BER length-prefixed content from src, honouring the
// one- and two-byte long forms.
func berContent(src []byte) (data []byte, rest []byte, err error) {
	if len(src) == 0 {
		return nil, nil, fmt.Errorf("missing length")
	}
	n := 0
	skip := 1
	switch {
	case src[0] < 0x80:
		n = int(src[0])
	case src[0] == 0x81:
		if len(src) < 2 {
			return nil, nil, fmt.Errorf("truncated length")
		}
		n = int(src[1])
		skip = 2
	case src[0] == 0x82:
		if len(src) < 3 {
			return nil, nil, fmt.Errorf("truncated length")
		}
		n = int(src[1])<<8 | int(src[2])
		skip = 3
	default:
		return nil, nil, fmt.Errorf("unsupported length form 0x%02x", src[0])
	}
	if len(src) < skip+n {
		return nil, nil, fmt.Errorf("content shorter than declared length")
	}
	return src[skip : skip+n], src[skip+n:], nil
}

// handshakeErr wraps a reason into the session-fatal handshake error.
func handshakeErr(phase string, err error) error {
	return &base.HandshakeError{Phase: phase, Reason: err.Error()}
}
