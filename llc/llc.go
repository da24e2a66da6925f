// Package llc adds and strips the IEC 8802-2 LLC header that frames every
// COSEM APDU inside an HDLC information field.
package llc

import "github.com/wintek-iot/meterlink/base"

const (
	remoteLSAP  = 0xe6
	requestSSAP = 0xe6 // command direction
	replySSAP   = 0xe7 // response direction
	quality     = 0x00
)

// HeaderLength is the LLC overhead per information field.
const HeaderLength = 3

// Wrap prefixes an outbound APDU with the command-direction LLC header.
func Wrap(apdu []byte) []byte {
	out := make([]byte, 0, HeaderLength+len(apdu))
	out = append(out, remoteLSAP, requestSSAP, quality)
	return append(out, apdu...)
}

// Strip validates the response-direction header on a received information
// field and returns the enclosed APDU.
func Strip(info []byte) ([]byte, error) {
	if len(info) < HeaderLength {
		return nil, &base.FramingError{Reason: "information field shorter than LLC header"}
	}
	if info[0] != remoteLSAP || info[1] != replySSAP || info[2] != quality {
		return nil, &base.FramingError{Reason: "invalid LLC received header"}
	}
	return info[HeaderLength:], nil
}
