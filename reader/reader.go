// Package reader drives one complete read cycle against a meter: it opens
// the association, walks the fixed register catalogue in a deterministic
// order, and assembles a meterdata.Reading.
package reader

import (
	"context"
	"errors"
	"fmt"

	"github.com/wintek-iot/meterlink/base"
	"github.com/wintek-iot/meterlink/cosem"
	"github.com/wintek-iot/meterlink/meterdata"
	"github.com/wintek-iot/meterlink/obis"
	"go.uber.org/zap"
)

const timestampLayout = "2006-01-02 15:04:05"

// Options tailors the cycle. Zones selects how many time-of-day zones are
// read (0..8); TODMaxDemand additionally reads the per-zone demand
// registers.
type Options struct {
	Zones        int
	TODMaxDemand bool
}

type Reader struct {
	session *cosem.Session
	clock   base.Clock
	logger  *zap.SugaredLogger
	opts    Options
}

func New(session *cosem.Session, clock base.Clock, opts Options) *Reader {
	if clock == nil {
		clock = base.SystemClock{}
	}
	return &Reader{session: session, clock: clock, opts: opts}
}

func (r *Reader) SetLogger(logger *zap.SugaredLogger) {
	r.logger = logger
	r.session.SetLogger(logger)
}

func (r *Reader) warnf(format string, v ...any) {
	if r.logger != nil {
		r.logger.Warnf(format, v...)
	}
}

// assignment binds a catalogue entry to its slot in the reading. The table
// order is the read order, kept stable so log traces line up across runs.
type assignment struct {
	entry  *obis.Entry
	assign func(*meterdata.Reading, cosem.Value)
}

var registerTable = []assignment{
	{&obis.KWhImport, func(m *meterdata.Reading, v cosem.Value) { m.KWhImport = v.Value }},
	{&obis.KWhExport, func(m *meterdata.Reading, v cosem.Value) { m.KWhExport = v.Value }},
	{&obis.KVAhImport, func(m *meterdata.Reading, v cosem.Value) { m.KVAhImport = v.Value }},
	{&obis.KVAhExport, func(m *meterdata.Reading, v cosem.Value) { m.KVAhExport = v.Value }},
	{&obis.KVArhLag, func(m *meterdata.Reading, v cosem.Value) { m.KVArhLag = v.Value }},
	{&obis.KVArhLead, func(m *meterdata.Reading, v cosem.Value) { m.KVArhLead = v.Value }},
	{&obis.MDKWImport, func(m *meterdata.Reading, v cosem.Value) { m.MDKWImport = demand(v) }},
	{&obis.MDKWExport, func(m *meterdata.Reading, v cosem.Value) { m.MDKWExport = demand(v) }},
	{&obis.MDKVAImport, func(m *meterdata.Reading, v cosem.Value) { m.MDKVAImport = demand(v) }},
	{&obis.MDKVAExport, func(m *meterdata.Reading, v cosem.Value) { m.MDKVAExport = demand(v) }},
	{&obis.VoltageR, func(m *meterdata.Reading, v cosem.Value) { m.VoltageR = v.Value }},
	{&obis.VoltageY, func(m *meterdata.Reading, v cosem.Value) { m.VoltageY = v.Value }},
	{&obis.VoltageB, func(m *meterdata.Reading, v cosem.Value) { m.VoltageB = v.Value }},
	{&obis.CurrentR, func(m *meterdata.Reading, v cosem.Value) { m.CurrentR = v.Value }},
	{&obis.CurrentY, func(m *meterdata.Reading, v cosem.Value) { m.CurrentY = v.Value }},
	{&obis.CurrentB, func(m *meterdata.Reading, v cosem.Value) { m.CurrentB = v.Value }},
	{&obis.CurrentNeutral, func(m *meterdata.Reading, v cosem.Value) { m.CurrentNeutral = v.Value }},
	{&obis.PowerFactor, func(m *meterdata.Reading, v cosem.Value) { m.PowerFactor = v.Value }},
	{&obis.Frequency, func(m *meterdata.Reading, v cosem.Value) { m.Frequency = v.Value }},
}

func demand(v cosem.Value) meterdata.MaximumDemand {
	return meterdata.MaximumDemand{Value: v.Value, Timestamp: v.CaptureTime}
}

// ReadCycle runs one session. A handshake failure surfaces as the cycle
// error and the draft is discarded; individual register failures are
// counted in the reading and the cycle continues. The context is checked
// at register boundaries only, so an in-flight exchange always completes
// or times out first.
func (r *Reader) ReadCycle(ctx context.Context) (*meterdata.Reading, error) {
	reading := meterdata.New(r.opts.Zones)
	reading.Timestamp = r.clock.Now().Format(timestampLayout)

	if err := r.session.Connect(); err != nil {
		return nil, fmt.Errorf("session failed: %w", err)
	}
	defer func() { _ = r.session.Disconnect() }()

	idOK := true
	if err := r.readText(&obis.SerialNumber, &reading.SerialNumber); err != nil {
		if fatal(err) {
			return nil, err
		}
		reading.ErrorCount++
		idOK = false
	}
	if err := r.readText(&obis.Manufacturer, &reading.Manufacturer); err != nil {
		if fatal(err) {
			return nil, err
		}
		reading.ErrorCount++
		idOK = false
	}
	if err := r.readText(&obis.MeterType, &reading.MeterType); err != nil {
		if fatal(err) {
			return nil, err
		}
		reading.ErrorCount++
	}
	if v, err := r.session.ReadRegister(&obis.MultFactor); err != nil {
		if fatal(err) {
			return nil, err
		}
		reading.ErrorCount++
	} else {
		reading.MultiplicationFactor = v.Value
	}

	for i := range registerTable {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a := &registerTable[i]
		v, err := r.session.ReadRegister(a.entry)
		if err != nil {
			if fatal(err) {
				return nil, err
			}
			r.warnf("%s: %v", a.entry.Name, err)
			reading.ErrorCount++
			continue
		}
		a.assign(reading, v)
	}

	if err := r.readZones(ctx, reading); err != nil {
		return nil, err
	}

	reading.Valid = idOK && reading.HasEnergy()
	return reading, nil
}

func (r *Reader) readZones(ctx context.Context, reading *meterdata.Reading) error {
	for i := 0; i < r.opts.Zones; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		zone := &reading.TODZones[i]
		if err := r.readZoneValue(&obis.KWhImportRate[i], &zone.KWh, reading); err != nil {
			return err
		}
		if err := r.readZoneValue(&obis.KVAhImportRate[i], &zone.KVAh, reading); err != nil {
			return err
		}
		if !r.opts.TODMaxDemand {
			continue
		}
		if err := r.readZoneDemand(&obis.MDKWRate[i], &zone.MDKW, reading); err != nil {
			return err
		}
		if err := r.readZoneDemand(&obis.MDKVARate[i], &zone.MDKVA, reading); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) readZoneValue(entry *obis.Entry, dst *float64, reading *meterdata.Reading) error {
	v, err := r.session.ReadRegister(entry)
	if err != nil {
		if fatal(err) {
			return err
		}
		r.warnf("%s: %v", entry.Name, err)
		reading.ErrorCount++
		return nil
	}
	*dst = v.Value
	return nil
}

func (r *Reader) readZoneDemand(entry *obis.Entry, dst *meterdata.MaximumDemand, reading *meterdata.Reading) error {
	v, err := r.session.ReadRegister(entry)
	if err != nil {
		if fatal(err) {
			return err
		}
		r.warnf("%s: %v", entry.Name, err)
		reading.ErrorCount++
		return nil
	}
	*dst = demand(v)
	return nil
}

func (r *Reader) readText(entry *obis.Entry, dst *string) error {
	v, err := r.session.ReadRegister(entry)
	if err != nil {
		return err
	}
	*dst = v.Text
	return nil
}

// fatal reports errors that end the whole cycle rather than one register.
func fatal(err error) bool {
	return errors.Is(err, base.ErrBudgetExceeded) || errors.Is(err, base.ErrNotOpened)
}
