package axdr

import "strings"

// Unit is the DLMS enumerated physical unit attached to a register.
type Unit byte

var units = [...]string{"unknown",
	// 1
	"a",
	"mo",
	"wk",
	"d",
	"h",
	"min.",
	"s",
	"°",
	"°C",
	// 10
	"currency",
	"m",
	"m/s",
	"m³",
	"m³",
	"m³/h",
	"m³/h",
	"m³/d",
	"m³/d",
	"l",
	// 20
	"kg",
	"N",
	"Nm",
	"Pa",
	"bar",
	"J",
	"J/h",
	"W",
	"VA",
	"var",
	// 30
	"Wh",
	"VAh",
	"varh",
	"A",
	"C",
	"V",
	"V/m",
	"F",
	"Ω",
	"Ωm²/m",
	// 40
	"Wb",
	"T",
	"A/m",
	"H",
	"Hz",
	"1/(Wh)",
	"1/(varh)",
	"1/(VAh)",
	"V²h",
	"A²h",
	// 50
	"kg/s",
	"S",
	"K",
	"1/(V²h)",
	"1/(A²h)",
	"1/m³",
	"%",
	"Ah"}

func (u Unit) String() string {
	if int(u) >= len(units) {
		return units[0]
	}
	return units[u]
}

// Matches reports whether the unit agrees with a catalogue label. Meters
// report the base unit while the catalogue labels the kilo-scaled field, so
// the kilo prefix is tolerated and comparison is case-insensitive. An empty
// label declares no unit and matches anything.
func (u Unit) Matches(label string) bool {
	if label == "" {
		return true
	}
	s := u.String()
	return strings.EqualFold(s, label) || strings.EqualFold("k"+s, label)
}
