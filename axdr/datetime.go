package axdr

import "fmt"

// DateTime is the 12-byte COSEM date-time. Fields keep the raw wire values;
// 0xffff in the year or 0xff elsewhere means "not specified".
type DateTime struct {
	Year       uint16
	Month      byte
	Day        byte
	DayOfWeek  byte
	Hour       byte
	Minute     byte
	Second     byte
	Hundredths byte
	Deviation  int16
	Status     byte
}

func dateTimeFromSlice(src []byte) DateTime {
	return DateTime{
		Year:       uint16(src[0])<<8 | uint16(src[1]),
		Month:      src[2],
		Day:        src[3],
		DayOfWeek:  src[4],
		Hour:       src[5],
		Minute:     src[6],
		Second:     src[7],
		Hundredths: src[8],
		Deviation:  int16(src[9])<<8 | int16(src[10]),
		Status:     src[11],
	}
}

func (t DateTime) toSlice() []byte {
	return []byte{
		byte(t.Year >> 8), byte(t.Year), t.Month, t.Day, t.DayOfWeek,
		t.Hour, t.Minute, t.Second, t.Hundredths,
		byte(t.Deviation >> 8), byte(t.Deviation), t.Status,
	}
}

// Format renders a local YYYY-MM-DD HH:MM:SS string. Unspecified fields
// render as zero; deviation and clock status are not shown.
func (t DateTime) Format() string {
	year := t.Year
	if year == 0xffff {
		year = 0
	}
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
		year, zeroUnspecified(t.Month), zeroUnspecified(t.Day),
		zeroUnspecified(t.Hour), zeroUnspecified(t.Minute), zeroUnspecified(t.Second))
}

func zeroUnspecified(b byte) byte {
	if b == 0xff {
		return 0
	}
	return b
}
