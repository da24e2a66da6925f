package obis

import "github.com/wintek-iot/meterlink/base"

// Identification objects.
var (
	SerialNumber = Entry{Code{0, 0, 96, 1, 0, 255}, "Serial Number", "", base.ClassData}
	Manufacturer = Entry{Code{0, 0, 96, 1, 1, 255}, "Manufacturer", "", base.ClassData}
	MeterType    = Entry{Code{0, 0, 96, 1, 2, 255}, "Meter Type", "", base.ClassData}
	MultFactor   = Entry{Code{1, 0, 0, 4, 3, 255}, "Multiplication Factor", "", base.ClassData}
)

// Cumulative energy registers.
var (
	KWhImport  = Entry{Code{1, 0, 1, 8, 0, 255}, "Active Energy Import", "kWh", base.ClassRegister}
	KWhExport  = Entry{Code{1, 0, 2, 8, 0, 255}, "Active Energy Export", "kWh", base.ClassRegister}
	KVAhImport = Entry{Code{1, 0, 9, 8, 0, 255}, "Apparent Energy Import", "kVAh", base.ClassRegister}
	KVAhExport = Entry{Code{1, 0, 10, 8, 0, 255}, "Apparent Energy Export", "kVAh", base.ClassRegister}
	KVArhLag   = Entry{Code{1, 0, 5, 8, 0, 255}, "Reactive Energy Lag", "kVArh", base.ClassRegister}
	KVArhLead  = Entry{Code{1, 0, 8, 8, 0, 255}, "Reactive Energy Lead", "kVArh", base.ClassRegister}
)

// Maximum demand registers carry an occurrence timestamp (extended register).
var (
	MDKWImport  = Entry{Code{1, 0, 1, 6, 0, 255}, "MD Active Import", "kW", base.ClassExtendedRegister}
	MDKWExport  = Entry{Code{1, 0, 2, 6, 0, 255}, "MD Active Export", "kW", base.ClassExtendedRegister}
	MDKVAImport = Entry{Code{1, 0, 9, 6, 0, 255}, "MD Apparent Import", "kVA", base.ClassExtendedRegister}
	MDKVAExport = Entry{Code{1, 0, 10, 6, 0, 255}, "MD Apparent Export", "kVA", base.ClassExtendedRegister}
)

// Instantaneous values.
var (
	VoltageR       = Entry{Code{1, 0, 32, 7, 0, 255}, "Voltage Phase R", "V", base.ClassRegister}
	VoltageY       = Entry{Code{1, 0, 52, 7, 0, 255}, "Voltage Phase Y", "V", base.ClassRegister}
	VoltageB       = Entry{Code{1, 0, 72, 7, 0, 255}, "Voltage Phase B", "V", base.ClassRegister}
	CurrentR       = Entry{Code{1, 0, 31, 7, 0, 255}, "Current Phase R", "A", base.ClassRegister}
	CurrentY       = Entry{Code{1, 0, 51, 7, 0, 255}, "Current Phase Y", "A", base.ClassRegister}
	CurrentB       = Entry{Code{1, 0, 71, 7, 0, 255}, "Current Phase B", "A", base.ClassRegister}
	CurrentNeutral = Entry{Code{1, 0, 91, 7, 0, 255}, "Current Neutral", "A", base.ClassRegister}
	PowerFactor    = Entry{Code{1, 0, 13, 7, 0, 255}, "Power Factor", "", base.ClassRegister}
	Frequency      = Entry{Code{1, 0, 14, 7, 0, 255}, "Frequency", "Hz", base.ClassRegister}
)

// Time-of-day rate registers, one entry per zone 1..8.
var (
	KWhImportRate  [8]Entry
	KVAhImportRate [8]Entry
	MDKWRate       [8]Entry
	MDKVARate      [8]Entry
)

func init() {
	for i := range KWhImportRate {
		e := byte(i + 1)
		KWhImportRate[i] = Entry{Code{1, 0, 1, 8, e, 255}, rateName("kWh Import", i), "kWh", base.ClassRegister}
		KVAhImportRate[i] = Entry{Code{1, 0, 9, 8, e, 255}, rateName("kVAh Import", i), "kVAh", base.ClassRegister}
		MDKWRate[i] = Entry{Code{1, 0, 1, 6, e, 255}, rateName("MD kW Import", i), "kW", base.ClassExtendedRegister}
		MDKVARate[i] = Entry{Code{1, 0, 9, 6, e, 255}, rateName("MD kVA Import", i), "kVA", base.ClassExtendedRegister}
	}
}

func rateName(prefix string, i int) string {
	return prefix + " Rate " + string(rune('1'+i))
}
