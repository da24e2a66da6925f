// Package meterdata holds the reading record assembled from one meter
// session. A Reading is created per read cycle, mutated only by the
// assembler while the session lasts, and handed to the caller complete.
package meterdata

import "encoding/json"

// MaximumDemand is a demand register value with the occurrence timestamp
// decoded from the meter's own clock.
type MaximumDemand struct {
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// TODZone is one time-of-day billing zone.
type TODZone struct {
	KWh   float64       `json:"kwh"`
	KVAh  float64       `json:"kvah"`
	MDKW  MaximumDemand `json:"md_kw,omitempty"`
	MDKVA MaximumDemand `json:"md_kva,omitempty"`
}

// Reading is one complete meter readout.
type Reading struct {
	// identification
	SerialNumber         string  `json:"serial_number"`
	Manufacturer         string  `json:"manufacturer"`
	MeterType            string  `json:"meter_type,omitempty"`
	MultiplicationFactor float64 `json:"multiplication_factor,omitempty"`

	// cumulative energy
	KWhImport  float64 `json:"kwh_import"`
	KWhExport  float64 `json:"kwh_export"`
	KVAhImport float64 `json:"kvah_import"`
	KVAhExport float64 `json:"kvah_export"`
	KVArhLag   float64 `json:"kvarh_lag"`
	KVArhLead  float64 `json:"kvarh_lead"`

	// maximum demand
	MDKWImport  MaximumDemand `json:"md_kw_import"`
	MDKWExport  MaximumDemand `json:"md_kw_export"`
	MDKVAImport MaximumDemand `json:"md_kva_import"`
	MDKVAExport MaximumDemand `json:"md_kva_export"`

	// instantaneous
	VoltageR       float64 `json:"voltage_r"`
	VoltageY       float64 `json:"voltage_y"`
	VoltageB       float64 `json:"voltage_b"`
	CurrentR       float64 `json:"current_r"`
	CurrentY       float64 `json:"current_y"`
	CurrentB       float64 `json:"current_b"`
	CurrentNeutral float64 `json:"current_neutral"`
	PowerFactor    float64 `json:"power_factor"`
	Frequency      float64 `json:"frequency"`

	// time-of-day billing
	TODZones []TODZone `json:"tod_zones,omitempty"`

	// metadata
	Timestamp  string `json:"timestamp"`
	Valid      bool   `json:"valid"`
	ErrorCount int    `json:"error_count"`
}

// New allocates a cleared reading with room for the requested number of
// TOD zones.
func New(zones int) *Reading {
	return &Reading{TODZones: make([]TODZone, zones)}
}

// HasEnergy reports whether at least one cumulative register decoded to a
// nonzero value; together with a successful identification round this
// makes the reading valid.
func (r *Reading) HasEnergy() bool {
	return r.KWhImport != 0 || r.KWhExport != 0 ||
		r.KVAhImport != 0 || r.KVAhExport != 0 ||
		r.KVArhLag != 0 || r.KVArhLead != 0
}

// JSON renders the reading for downstream publication.
func (r *Reading) JSON() ([]byte, error) {
	return json.Marshal(r)
}

// TotalTODKWh sums the active energy over all zones.
func (r *Reading) TotalTODKWh() float64 {
	var sum float64
	for _, z := range r.TODZones {
		sum += z.KWh
	}
	return sum
}

// TotalTODKVAh sums the apparent energy over all zones.
func (r *Reading) TotalTODKVAh() float64 {
	var sum float64
	for _, z := range r.TODZones {
		sum += z.KVAh
	}
	return sum
}
