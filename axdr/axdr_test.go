package axdr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wintek-iot/meterlink/base"
)

func TestDecodeIntegers(t *testing.T) {
	cases := []struct {
		name string
		src  []byte
		tag  Tag
		want float64
	}{
		{"double long unsigned", []byte{0x06, 0x00, 0x00, 0x4e, 0x20}, TagDoubleLongUnsigned, 20000},
		{"double long negative", []byte{0x05, 0xff, 0xff, 0xff, 0xf6}, TagDoubleLong, -10},
		{"long unsigned", []byte{0x12, 0x09, 0x29}, TagLongUnsigned, 2345},
		{"long negative", []byte{0x10, 0xff, 0x38}, TagLong, -200},
		{"integer negative", []byte{0x0f, 0xfe}, TagInteger, -2},
		{"unsigned", []byte{0x11, 0x7b}, TagUnsigned, 123},
		{"enum", []byte{0x16, 0x1e}, TagEnum, 30},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d, n, err := Decode(c.src)
			require.NoError(t, err)
			assert.Equal(t, len(c.src), n)
			assert.Equal(t, c.tag, d.Tag)
			v, ok := d.Float()
			require.True(t, ok)
			assert.Equal(t, c.want, v)
		})
	}
}

func TestDecodeStrings(t *testing.T) {
	d, n, err := Decode([]byte{0x09, 0x08, 'M', '2', '0', '2', '5', '0', '0', '1'})
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	s, ok := d.Text()
	require.True(t, ok)
	assert.Equal(t, "M2025001", s)

	d, _, err = Decode([]byte{0x0a, 0x03, 'A', 'B', 'C'})
	require.NoError(t, err)
	s, _ = d.Text()
	assert.Equal(t, "ABC", s)
}

func TestDecodeLongLengthForms(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = byte('a' + i%26)
	}
	src := append([]byte{0x09, 0x81, 200}, long...)
	d, n, err := Decode(src)
	require.NoError(t, err)
	assert.Equal(t, len(src), n)
	b, _ := d.Bytes()
	assert.Equal(t, long, b)

	src = append([]byte{0x0a, 0x82, 0x00, 200}, long...)
	d, n, err = Decode(src)
	require.NoError(t, err)
	assert.Equal(t, len(src), n)
	s, _ := d.Text()
	assert.Equal(t, string(long), s)
}

func TestDecodeStructure(t *testing.T) {
	// { scaler: -2, unit: Wh }
	d, n, err := Decode([]byte{0x02, 0x02, 0x0f, 0xfe, 0x16, 0x1e})
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	su, err := d.AsScalerUnit()
	require.NoError(t, err)
	assert.Equal(t, int8(-2), su.Scaler)
	assert.Equal(t, Unit(30), su.Unit)
	assert.Equal(t, "Wh", su.Unit.String())
	assert.InDelta(t, 200.0, su.Apply(20000), 1e-9)
}

func TestScalerFallbackShape(t *testing.T) {
	d, _, err := Decode([]byte{0x11, 0x05})
	require.NoError(t, err)
	_, err = d.AsScalerUnit()
	assert.Error(t, err)
}

func TestScalerHighBitIsSigned(t *testing.T) {
	d, _, err := Decode([]byte{0x02, 0x02, 0x0f, 0xff, 0x16, 0x1b})
	require.NoError(t, err)
	su, err := d.AsScalerUnit()
	require.NoError(t, err)
	assert.Equal(t, int8(-1), su.Scaler)
	assert.InDelta(t, 550.0, su.Apply(5500), 1e-9)
}

func TestScalerRoundTrip(t *testing.T) {
	up := ScalerUnit{Scaler: 3}
	down := ScalerUnit{Scaler: -3}
	v := 123456789.0
	assert.InDelta(t, v, down.Apply(up.Apply(v)), 1e-3)
	assert.Equal(t, v, ScalerUnit{}.Apply(v))
}

func TestDecodeDateTime(t *testing.T) {
	d, n, err := Decode([]byte{0x19, 0x07, 0xe9, 0x0a, 0x02, 0x03, 0x0c, 0x1e, 0x00, 0x00, 0x50, 0x78, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 13, n)
	dt, ok := d.DateTime()
	require.True(t, ok)
	assert.Equal(t, uint16(2025), dt.Year)
	assert.Equal(t, "2025-10-02 12:30:00", dt.Format())
}

func TestDateTimeUnspecifiedFields(t *testing.T) {
	dt := DateTime{Year: 0xffff, Month: 0xff, Day: 0xff, Hour: 0xff, Minute: 0xff, Second: 0xff}
	assert.Equal(t, "0000-00-00 00:00:00", dt.Format())
}

func TestDecodeUnsupportedTag(t *testing.T) {
	_, _, err := Decode([]byte{0x13, 0x00})
	var de *base.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, byte(0x13), de.Tag)
}

func TestDecodeTruncated(t *testing.T) {
	_, _, err := Decode([]byte{0x06, 0x00, 0x00})
	assert.Error(t, err)
	_, _, err = Decode([]byte{0x09, 0x10, 'x'})
	assert.Error(t, err)
	_, _, err = Decode(nil)
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []Data{
		{Tag: TagDoubleLongUnsigned, Value: 4000000000.0},
		{Tag: TagDoubleLong, Value: -123456.0},
		{Tag: TagLongUnsigned, Value: 65535.0},
		{Tag: TagLong, Value: -32768.0},
		{Tag: TagInteger, Value: -128.0},
		{Tag: TagUnsigned, Value: 255.0},
		{Tag: TagOctetString, Value: []byte{0x01, 0x02, 0x03}},
		{Tag: TagVisibleString, Value: "WINTEK"},
		{Tag: TagStructure, Value: []Data{
			{Tag: TagInteger, Value: -2.0},
			{Tag: TagEnum, Value: 30.0},
		}},
	}
	for _, v := range values {
		raw, err := Encode(v)
		require.NoError(t, err)
		got, n, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, len(raw), n)
		assert.Equal(t, v, got)
	}
}

func TestUnitMatches(t *testing.T) {
	assert.True(t, Unit(30).Matches("kWh"))
	assert.True(t, Unit(30).Matches("Wh"))
	assert.True(t, Unit(32).Matches("kVArh"))
	assert.True(t, Unit(35).Matches("V"))
	assert.True(t, Unit(0).Matches(""))
	assert.False(t, Unit(35).Matches("A"))
}
