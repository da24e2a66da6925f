package cosem

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wintek-iot/meterlink/axdr"
	"github.com/wintek-iot/meterlink/base"
	"github.com/wintek-iot/meterlink/hdlc"
	"github.com/wintek-iot/meterlink/internal/metertest"
	"github.com/wintek-iot/meterlink/obis"
)

// association request of the default password as captured on the wire
var aarqCapture = []byte{
	0x7e, 0xa0, 0x4c, 0x03, 0x41, 0x10, 0x6b, 0x04,
	0xe6, 0xe6, 0x00, 0x60, 0x3e, 0xa1, 0x09, 0x06,
	0x07, 0x60, 0x85, 0x74, 0x05, 0x08, 0x01, 0x01,
	0x8a, 0x02, 0x07, 0x80, 0x8b, 0x07, 0x60, 0x85,
	0x74, 0x05, 0x08, 0x02, 0x01, 0xac, 0x12, 0x80,
	0x10, 0x31, 0x31, 0x31, 0x31, 0x31, 0x31, 0x31,
	0x31, 0x31, 0x31, 0x31, 0x31, 0x31, 0x31, 0x31,
	0x31, 0xbe, 0x10, 0x04, 0x0e, 0x01, 0x00, 0x00,
	0x00, 0x06, 0x5f, 0x1f, 0x04, 0x00, 0x00, 0x18,
	0x1d, 0xff, 0xff, 0xb3, 0x3d, 0x7e,
}

func testSession(stream *metertest.ScriptStream) *Session {
	link := hdlc.New(stream, &hdlc.Settings{
		FrameTimeout: 50 * time.Millisecond,
		DiscTimeout:  20 * time.Millisecond,
	})
	return New(link, &Settings{
		Password:       []byte(DefaultPassword),
		Pacing:         time.Millisecond,
		HandshakePause: time.Millisecond,
	})
}

func connectedSession(t *testing.T, stream *metertest.ScriptStream) *Session {
	t.Helper()
	stream.Responses = append([][]byte{metertest.UA(), metertest.AAREAccepted(0x10)}, stream.Responses...)
	s := testSession(stream)
	require.NoError(t, s.Connect())
	return s
}

// classResp answers the logical-name check with the entry's own code.
func classResp(control byte, e *obis.Entry) []byte {
	data := append([]byte{byte(axdr.TagOctetString), 0x06}, e.Code.Bytes()...)
	return metertest.GetResponse(control, data)
}

func scalerResp(control byte, scaler int8, unit byte) []byte {
	return metertest.GetResponse(control, []byte{
		byte(axdr.TagStructure), 0x02,
		byte(axdr.TagInteger), byte(scaler),
		byte(axdr.TagEnum), unit,
	})
}

func TestEncodeAARQ(t *testing.T) {
	apdu := encodeAARQ([]byte(DefaultPassword))
	// information field of the capture minus LLC header, FCS and flag
	assert.Equal(t, aarqCapture[11:len(aarqCapture)-3], apdu)
}

func TestConnectEmitsCapturedAARQ(t *testing.T) {
	stream := &metertest.ScriptStream{Responses: [][]byte{
		metertest.UA(), metertest.AAREAccepted(0x10),
	}}
	s := testSession(stream)
	require.NoError(t, s.Connect())
	require.Len(t, stream.Writes, 2)
	assert.Equal(t, aarqCapture, stream.Writes[1])
	assert.Equal(t, base.StateAssociated, s.State())
	assert.Equal(t, byte(0x32), s.Counter())
}

func TestConnectRejectedAssociation(t *testing.T) {
	stream := &metertest.ScriptStream{Responses: [][]byte{
		metertest.UA(), metertest.AARE(0x10, 0x01),
	}}
	s := testSession(stream)
	err := s.Connect()
	var he *base.HandshakeError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "aarq", he.Phase)
	assert.Equal(t, base.StateFailed, s.State())
}

func TestDecodeAARE(t *testing.T) {
	ok := metertest.AAREAccepted(0x10)
	// peel frame: flag(1) fmt(2) addr(2) ctrl(1) hcs(2) llc(3) ... fcs(2) flag(1)
	apdu := ok[11 : len(ok)-3]
	res, err := decodeAARE(apdu)
	require.NoError(t, err)
	assert.True(t, res.hasResult)
	assert.Equal(t, byte(0), res.result)

	_, err = decodeAARE([]byte{0x61, 0x02, 0xa1, 0x00})
	assert.Error(t, err) // no association-result field

	_, err = decodeAARE([]byte{0x60, 0x00})
	assert.Error(t, err)
}

func TestSessionCounterResetsOnDisconnect(t *testing.T) {
	stream := &metertest.ScriptStream{}
	s := connectedSession(t, stream)
	require.Equal(t, byte(0x32), s.Counter())

	stream.Responses = [][]byte{metertest.UA()}
	require.NoError(t, s.Disconnect())
	assert.Equal(t, base.StateDisconnected, s.State())
	assert.Equal(t, byte(base.InitialCounter), s.Counter())
}

func TestReadRegisterAppliesScaler(t *testing.T) {
	entry := &obis.KWhImport
	stream := &metertest.ScriptStream{}
	s := connectedSession(t, stream)
	stream.Responses = [][]byte{
		classResp(0x32, entry),
		metertest.GetResponse(0x54, []byte{byte(axdr.TagDoubleLongUnsigned), 0x00, 0x00, 0x4e, 0x20}),
		scalerResp(0x76, -2, 30), // Wh
	}

	v, err := s.ReadRegister(entry)
	require.NoError(t, err)
	assert.Equal(t, 20000.0, v.Raw)
	assert.InDelta(t, 200.0, v.Value, 1e-9)
	assert.Equal(t, "kWh", v.Unit)
	assert.Empty(t, v.CaptureTime)
	assert.Equal(t, byte(0x98), s.Counter())
	assert.Equal(t, base.StateAssociated, s.State())
}

func TestReadRegisterWithCaptureTime(t *testing.T) {
	entry := &obis.MDKWImport
	stream := &metertest.ScriptStream{}
	s := connectedSession(t, stream)
	stream.Responses = [][]byte{
		classResp(0x32, entry),
		metertest.GetResponse(0x54, []byte{byte(axdr.TagDoubleLongUnsigned), 0x00, 0x00, 0x15, 0x7c}),
		scalerResp(0x76, -1, 27), // W
		metertest.GetResponse(0x98, append([]byte{byte(axdr.TagDateTime)},
			0x07, 0xe9, 0x0a, 0x02, 0x03, 0x0c, 0x1e, 0x00, 0x00, 0x50, 0x78, 0x00)),
	}

	v, err := s.ReadRegister(entry)
	require.NoError(t, err)
	assert.InDelta(t, 550.0, v.Value, 1e-9)
	assert.Equal(t, "2025-10-02 12:30:00", v.CaptureTime)
}

func TestReadIdentificationString(t *testing.T) {
	entry := &obis.SerialNumber
	stream := &metertest.ScriptStream{}
	s := connectedSession(t, stream)
	stream.Responses = [][]byte{
		classResp(0x32, entry),
		metertest.GetResponse(0x54, []byte{byte(axdr.TagOctetString), 0x08, 'M', '2', '0', '2', '5', '0', '0', '1'}),
	}

	v, err := s.ReadRegister(entry)
	require.NoError(t, err)
	assert.Equal(t, "M2025001", v.Text)
}

func TestReadRegisterUnexpectedObject(t *testing.T) {
	stream := &metertest.ScriptStream{}
	s := connectedSession(t, stream)
	stream.Responses = [][]byte{
		classResp(0x32, &obis.KWhExport), // meter mis-routes to another object
	}

	_, err := s.ReadRegister(&obis.KWhImport)
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "class", se.Step)
	assert.ErrorIs(t, err, base.ErrUnexpectedObject)
}

func TestReadRegisterAccessResultNotRetried(t *testing.T) {
	entry := &obis.Frequency
	stream := &metertest.ScriptStream{}
	s := connectedSession(t, stream)
	stream.Responses = [][]byte{
		classResp(0x32, entry),
		metertest.GetError(0x54, base.ResultObjectUnavailable),
	}

	_, err := s.ReadRegister(entry)
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "value", se.Step)
	var ae *base.AccessError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, base.ResultObjectUnavailable, ae.Code)
	assert.Len(t, stream.Writes, 4) // SNRM, AARQ, class, value: no retry
}

func TestScalerAbsentFallsBackToZero(t *testing.T) {
	entry := &obis.VoltageR
	stream := &metertest.ScriptStream{}
	s := connectedSession(t, stream)
	stream.Responses = [][]byte{
		classResp(0x32, entry),
		metertest.GetResponse(0x54, []byte{byte(axdr.TagLongUnsigned), 0x00, 0xe6}),
		metertest.GetError(0x76, base.ResultObjectUndefined),
	}

	v, err := s.ReadRegister(entry)
	require.NoError(t, err)
	assert.Equal(t, 230.0, v.Value)
}

func TestSessionBudgetExceeded(t *testing.T) {
	stream := &metertest.ScriptStream{Responses: [][]byte{
		metertest.UA(), metertest.AAREAccepted(0x10),
	}}
	link := hdlc.New(stream, &hdlc.Settings{FrameTimeout: 50 * time.Millisecond})
	s := New(link, &Settings{
		Password:       []byte(DefaultPassword),
		Pacing:         time.Millisecond,
		HandshakePause: time.Millisecond,
		Budget:         time.Nanosecond,
	})
	require.NoError(t, s.Connect())
	time.Sleep(time.Millisecond)

	_, err := s.ReadRegister(&obis.KWhImport)
	assert.ErrorIs(t, err, base.ErrBudgetExceeded)
}

func TestNewSettings(t *testing.T) {
	s, err := NewSettings("")
	require.NoError(t, err)
	assert.Equal(t, []byte(DefaultPassword), s.Password)
	assert.Equal(t, 50*time.Millisecond, s.Pacing)

	_, err = NewSettings("short")
	assert.Error(t, err)
}
