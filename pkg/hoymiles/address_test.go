package hoymiles

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSerialNumber(t *testing.T) {

	assert := assert.New(t)

	sn, err := ParseSerialNumber("114172220203")
	require.NoError(t, err)
	assert.Equal(2, sn.Channels, "HM-600 family")
	assert.Equal(Address{0x72, 0x22, 0x02, 0x03}, sn.Address)
	assert.Equal("72220203", sn.Address.String())

	sn, err = ParseSerialNumber("102212345678")
	require.NoError(t, err)
	assert.Equal(1, sn.Channels, "HM-300 family")

	sn, err = ParseSerialNumber("116412345678")
	require.NoError(t, err)
	assert.Equal(4, sn.Channels, "HM-1500 family")
}

func TestParseSerialNumberUnsupported(t *testing.T) {

	for _, serial := range []string{"", "1141", "124172220203", "113172220203", "11417222020Z", "1141722202031", "1141ABCDEF01", "1141-7222020"} {
		_, err := ParseSerialNumber(serial)
		assert.ErrorIs(t, err, ErrUnsupportedSerialNumber, serial)
	}
}

func TestDtuAddressFromUUID(t *testing.T) {

	assert := assert.New(t)

	// 1234567 decimal
	u := uuid.MustParse("00000000-0000-0000-0000-00000012d687")
	assert.Equal(Address{0xF6, 0x54, 0x32, 0x10}, DtuAddressFromUUID(u))

	assert.Equal(Address{0x80, 0x00, 0x00, 0x00}, DtuAddressFromUUID(uuid.Nil))

	addr, err := NewDtuAddress()
	require.NoError(t, err)
	assert.Equal(byte(0x80), addr[0]&0x80, "dtu address has the high bit set")
}

func TestRadioPipe(t *testing.T) {

	assert.Equal(t, []byte{0x01, 0x72, 0x22, 0x02, 0x03}, Address{0x72, 0x22, 0x02, 0x03}.RadioPipe())
}
