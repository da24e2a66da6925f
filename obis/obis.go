// Package obis defines the OBIS object identifiers and the fixed catalogue
// of registers this client reads.
package obis

import (
	"fmt"

	"github.com/wintek-iot/meterlink/base"
)

// Code is a six-field OBIS identifier A-B:C.D.E*F.
type Code struct {
	A byte // medium
	B byte // channel
	C byte // physical quantity
	D byte // measurement type
	E byte // tariff rate
	F byte // billing period
}

func (c Code) String() string {
	return fmt.Sprintf("%d-%d:%d.%d.%d*%d", c.A, c.B, c.C, c.D, c.E, c.F)
}

func (c Code) Bytes() []byte {
	return []byte{c.A, c.B, c.C, c.D, c.E, c.F}
}

func (c Code) EqualTo(o Code) bool {
	return c == o
}

// FromSlice builds a Code from the first six bytes of src.
func FromSlice(src []byte) (Code, error) {
	if len(src) < 6 {
		return Code{}, fmt.Errorf("obis needs 6 bytes, got %d", len(src))
	}
	return Code{A: src[0], B: src[1], C: src[2], D: src[3], E: src[4], F: src[5]}, nil
}

// Entry couples an OBIS code with its display metadata and interface class.
type Entry struct {
	Code  Code
	Name  string
	Unit  string
	Class base.InterfaceClass
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s (%s)", e.Name, e.Code)
}
