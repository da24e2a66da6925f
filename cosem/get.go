package cosem

import (
	"errors"
	"fmt"

	"github.com/wintek-iot/meterlink/axdr"
	"github.com/wintek-iot/meterlink/base"
	"github.com/wintek-iot/meterlink/obis"
)

// GET request/response APDU constants.
const (
	tagGetRequest     = 0xc0
	tagGetResponse    = 0xc4
	getRequestNormal  = 0x01
	getResponseNormal = 0x01
	invokeIDPriority  = 0xc1
)

// Attribute numbers of the register interface classes.
const (
	attrLogicalName = 0x01
	attrValue       = 0x02
	attrScalerUnit  = 0x03
	attrCaptureTime = 0x05
)

// Value is the decoded outcome of a register read. Numeric registers carry
// Raw (as transmitted) and Value (scaler applied) with the effective unit;
// identification objects carry Text; extended registers add the capture
// time of the maximum demand occurrence.
type Value struct {
	Raw         float64
	Value       float64
	Text        string
	Unit        string
	CaptureTime string
}

// StepError identifies which step of a register transaction failed.
type StepError struct {
	Obis obis.Code
	Step string // "class", "value", "scaler" or "time"
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s read of %s failed: %v", e.Step, e.Obis, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// get performs a single GET.request-normal exchange for one attribute and
// decodes the returned data. Transport retries happen below in the link;
// a non-success access result is returned as AccessError and never retried.
func (s *Session) get(class base.InterfaceClass, code obis.Code, attribute byte) (axdr.Data, error) {
	if s.state != base.StateAssociated && s.state != base.StateReading {
		return axdr.Data{}, base.ErrNotOpened
	}
	if err := s.budget(); err != nil {
		return axdr.Data{}, err
	}

	apdu := make([]byte, 0, 13)
	apdu = append(apdu, tagGetRequest, getRequestNormal, invokeIDPriority)
	apdu = append(apdu, byte(class>>8), byte(class))
	apdu = append(apdu, code.Bytes()...)
	apdu = append(apdu, attribute, 0x00) // no selective access

	resp, err := s.link.Exchange(apdu)
	if err != nil {
		return axdr.Data{}, err
	}
	if len(resp) < 5 || resp[0] != tagGetResponse || resp[1] != getResponseNormal || resp[2] != invokeIDPriority {
		return axdr.Data{}, &base.FramingError{Reason: fmt.Sprintf("unexpected get response header % 02x", resp[:min(len(resp), 5)])}
	}
	if resp[3] != 0 { // choice: data-access-result follows
		return axdr.Data{}, &base.AccessError{Code: base.AccessResult(resp[4])}
	}
	data, _, err := axdr.Decode(resp[4:])
	return data, err
}

// ReadRegister runs the full transaction for one catalogue entry: the class
// check on the logical name, the value read, the scaler read for register
// classes and the capture time for extended registers, pacing between the
// steps. The frame counter advances inside the link only on verified
// responses, so a retried step reuses its sequence number.
func (s *Session) ReadRegister(entry *obis.Entry) (Value, error) {
	s.state = base.StateReading
	defer func() {
		if s.state == base.StateReading {
			s.state = base.StateAssociated
		}
	}()

	out := Value{Unit: entry.Unit}

	// class check: the meter must hand back the logical name we asked for
	d, err := s.get(entry.Class, entry.Code, attrLogicalName)
	if err != nil {
		return out, &StepError{Obis: entry.Code, Step: "class", Err: err}
	}
	if ln, ok := d.Bytes(); ok {
		code, err := obis.FromSlice(ln)
		if err != nil || !code.EqualTo(entry.Code) {
			return out, &StepError{Obis: entry.Code, Step: "class", Err: base.ErrUnexpectedObject}
		}
	}
	s.pace()

	d, err = s.get(entry.Class, entry.Code, attrValue)
	if err != nil {
		return out, &StepError{Obis: entry.Code, Step: "value", Err: err}
	}
	switch {
	case d.Tag == axdr.TagOctetString, d.Tag == axdr.TagVisibleString:
		out.Text, _ = d.Text()
	default:
		raw, ok := d.Float()
		if !ok {
			return out, &StepError{Obis: entry.Code, Step: "value", Err: &base.DecodeError{Tag: byte(d.Tag)}}
		}
		out.Raw = raw
		out.Value = raw
	}
	s.pace()

	if entry.Class == base.ClassRegister || entry.Class == base.ClassExtendedRegister {
		su, err := s.readScaler(entry)
		if err != nil {
			return out, err
		}
		out.Value = su.Apply(out.Raw)
		s.pace()
	}

	if entry.Class == base.ClassExtendedRegister {
		d, err = s.get(entry.Class, entry.Code, attrCaptureTime)
		if err != nil {
			return out, &StepError{Obis: entry.Code, Step: "time", Err: err}
		}
		dt, ok := d.DateTime()
		if !ok {
			// some meters wrap the capture time in an octet string
			if raw, isBytes := d.Bytes(); isBytes && len(raw) >= 12 {
				wrapped, _, derr := axdr.Decode(append([]byte{byte(axdr.TagDateTime)}, raw...))
				if derr != nil {
					return out, &StepError{Obis: entry.Code, Step: "time", Err: derr}
				}
				dt, _ = wrapped.DateTime()
			} else {
				return out, &StepError{Obis: entry.Code, Step: "time", Err: &base.DecodeError{Tag: byte(d.Tag)}}
			}
		}
		out.CaptureTime = dt.Format()
	}

	s.logf("%s: %v %s", entry.Name, out.Value, out.Unit)
	return out, nil
}

// readScaler fetches attribute 3 and interprets the { scaler, unit }
// structure. An absent attribute or an unexpected shape falls back to
// scaler 0 with the catalogue unit; only transport-level failure aborts.
func (s *Session) readScaler(entry *obis.Entry) (axdr.ScalerUnit, error) {
	d, err := s.get(entry.Class, entry.Code, attrScalerUnit)
	if err != nil {
		var ae *base.AccessError
		var de *base.DecodeError
		if errors.As(err, &ae) || errors.As(err, &de) {
			s.warnf("%s: scaler attribute unavailable (%v), assuming 0", entry.Code, err)
			return axdr.ScalerUnit{}, nil
		}
		return axdr.ScalerUnit{}, &StepError{Obis: entry.Code, Step: "scaler", Err: err}
	}
	su, err := d.AsScalerUnit()
	if err != nil {
		s.warnf("%s: unexpected scaler shape (%v), assuming 0", entry.Code, err)
		return axdr.ScalerUnit{}, nil
	}
	if !su.Unit.Matches(entry.Unit) {
		s.warnf("%s: meter reports unit %s, catalogue says %s", entry.Code, su.Unit, entry.Unit)
	}
	return su, nil
}
