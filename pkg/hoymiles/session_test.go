package hoymiles

import (
	"context"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testSession(t *testing.T, tr Transceiver, serial string, opts ...SessionOption) *Session {
	sn, err := ParseSerialNumber(serial)
	require.NoError(t, err)
	opts = append([]SessionOption{
		WithBackoff(0),
		WithScanSlots(6),
		WithReceiveTimeout(time.Millisecond),
		WithRetries(3),
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithLogger(zap.Must(zap.NewDevelopment())),
	}, opts...)
	s, err := NewSession(tr, sn, testDtu, opts...)
	require.NoError(t, err)
	return s
}

func TestQueryInverterInfo(t *testing.T) {

	assert := assert.New(t)

	sn, _ := ParseSerialNumber("114172220203")
	tr := CreateTestTransceiver(sn)
	s := testSession(t, tr, sn.Value)

	reading, ok := s.QueryInverterInfo(context.Background())
	require.True(t, ok)
	assert.Len(reading.Channels, 2)
	assert.Equal(310.5, reading.AC.Power)

	assert.Equal(1, tr.WriteCount(), "one request")
	assert.Equal([]PowerLevel{PA_MAX, PA_MIN}, tr.PowerLevels, "power raised for the burst and lowered afterwards")

	// request goes out on a tx channel and is answered on its rx list
	tx := tr.Channels[0]
	assert.Contains(TX_CHANNELS, tx)
	for _, ch := range tr.Channels[1:] {
		assert.True(slices.Contains(RX_CHANNELS[tx], ch), "rx channel %d for tx %d", ch, tx)
	}
	assert.Len(tr.Channels, 1+6)

	raw, err := Unescape(tr.Writes[0])
	require.NoError(t, err)
	assert.Equal(byte(CMD_REQUEST_INFO), raw[0])
	assert.Equal(sn.Address[:], raw[1:5])
	assert.Equal(testDtu[:], raw[5:9])
}

func TestQueryInverterInfoRetriesOnMissingFrame(t *testing.T) {

	assert := assert.New(t)

	sn, _ := ParseSerialNumber("114172220203")
	tr := CreateTestTransceiver(sn)
	frames := tr.Answer
	tr.Script = [][][]byte{{frames[0], frames[2]}}

	var outcomes []string
	s := testSession(t, tr, sn.Value, WithInstrument(SessionInstrument{
		RecordAttempt: func(channel uint8, outcome string) {
			outcomes = append(outcomes, outcome)
		},
	}))

	reading, ok := s.QueryInverterInfo(context.Background())
	require.True(t, ok)
	assert.NotNil(reading)
	assert.Equal(2, tr.WriteCount(), "retried once")
	assert.Equal([]string{ATTEMPT_INCOMPLETE, ATTEMPT_OK}, outcomes)
}

func TestQueryInverterInfoRetriesOnReorderedFrames(t *testing.T) {

	sn, _ := ParseSerialNumber("114172220203")
	tr := CreateTestTransceiver(sn)
	frames := tr.Answer
	tr.Script = [][][]byte{{frames[1], frames[0], frames[2]}}

	_, ok := testSession(t, tr, sn.Value).QueryInverterInfo(context.Background())
	assert.True(t, ok)
	assert.Equal(t, 2, tr.WriteCount())
}

func TestQueryInverterInfoIgnoresForeignFrames(t *testing.T) {

	sn, _ := ParseSerialNumber("114172220203")
	tr := CreateTestTransceiver(sn)
	foreign := TestFrame(Address{1, 2, 3, 4}, 0x01, []byte{0x00})
	tr.Script = [][][]byte{append([][]byte{foreign}, tr.Answer...)}

	_, ok := testSession(t, tr, sn.Value).QueryInverterInfo(context.Background())
	assert.True(t, ok)
	assert.Equal(t, 1, tr.WriteCount())
}

func TestQueryInverterInfoGivesUp(t *testing.T) {

	assert := assert.New(t)

	sn, _ := ParseSerialNumber("112172220203")
	tr := &TestTransceiver{}
	reading, ok := testSession(t, tr, sn.Value, WithRetries(4)).QueryInverterInfo(context.Background())

	assert.False(ok)
	assert.Nil(reading)
	assert.Equal(4, tr.WriteCount())
	assert.Equal(PA_MIN, tr.LastPowerLevel(), "power lowered on failure")
}

func TestQueryInverterInfoCancelled(t *testing.T) {

	assert := assert.New(t)

	sn, _ := ParseSerialNumber("112172220203")
	tr := &TestTransceiver{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := testSession(t, tr, sn.Value, WithBackoff(time.Hour)).QueryInverterInfo(ctx)
	assert.False(ok)
	assert.Equal(1, tr.WriteCount(), "no retry after cancel")
	assert.Equal(PA_MIN, tr.LastPowerLevel())
}

func TestQueryInverterInfoOneChannel(t *testing.T) {

	sn, _ := ParseSerialNumber("112172220203")
	tr := CreateTestTransceiver(sn)
	reading, ok := testSession(t, tr, sn.Value).QueryInverterInfo(context.Background())
	require.True(t, ok)
	assert.Len(t, reading.Channels, 1)
	assert.Equal(t, 159.8, reading.AC.Power)
}

func TestNewSessionUnsupported(t *testing.T) {

	sn, err := ParseSerialNumber("116472220203")
	require.NoError(t, err)
	_, err = NewSession(&TestTransceiver{}, sn, testDtu)
	assert.ErrorIs(t, err, ErrUnsupportedInverterType)
}
