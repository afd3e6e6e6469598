package modbusexport

import (
	"math"
	"testing"
	"time"

	"github.com/berfenger/energylog/internal/meter"
	"github.com/berfenger/energylog/pkg/hoymiles"
	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func float32At(regs []uint16, i int) float32 {
	return math.Float32frombits(uint32(regs[i])<<16 | uint32(regs[i+1]))
}

func TestRegisterBank(t *testing.T) {

	assert := assert.New(t)

	bank := NewRegisterBank(2)

	regs, err := bank.Read(0, 16)
	require.NoError(t, err)
	assert.True(math.IsNaN(float64(float32At(regs, 0))), "not read yet")

	bank.UpdateMeter(0, meter.TestMeterReading(0))
	bank.UpdateMeter(1, meter.TestMeterReading(1))
	reading, err := hoymiles.DecodeInverterInfo(hoymiles.TestInfoPayload(2), 2)
	require.NoError(t, err)
	bank.UpdateInverter(reading)

	regs, err = bank.Read(0, 16)
	require.NoError(t, err)
	assert.Equal(float32(374.81585518), float32At(regs, 0))
	assert.Equal(float32(3.89), float32At(regs, 8))

	regs, err = bank.Read(108, 2)
	require.NoError(t, err)
	assert.Equal(float32(-245.6), float32At(regs, 0))

	regs, err = bank.Read(INVERTER_AC_BASE, 14)
	require.NoError(t, err)
	assert.Equal(float32(reading.AC.Power), float32At(regs, 6))
	assert.Equal(float32(reading.AC.Temperature), float32At(regs, 12))

	regs, err = bank.Read(ChannelBase(2), 10)
	require.NoError(t, err)
	assert.Equal(uint16(230), ChannelBase(2))
	assert.Equal(float32(reading.Channels[1].Voltage), float32At(regs, 0))
	assert.Equal(float32(reading.Channels[1].EnergyTotal), float32At(regs, 8))

	_, err = bank.Read(14, 4)
	assert.ErrorIs(err, modbus.ErrIllegalDataAddress, "crosses the end of meter 0")
	_, err = bank.Read(240, 2)
	assert.ErrorIs(err, modbus.ErrIllegalDataAddress, "no third channel")
	_, err = bank.Read(214, 2)
	assert.ErrorIs(err, modbus.ErrIllegalDataAddress)
}

func TestRegisterBankWithoutInverter(t *testing.T) {

	bank := NewRegisterBank(0)
	_, err := bank.Read(INVERTER_AC_BASE, 2)
	assert.ErrorIs(t, err, modbus.ErrIllegalDataAddress)
	_, err = bank.Read(100, 16)
	assert.NoError(t, err)
}

func TestServer(t *testing.T) {

	assert := assert.New(t)

	bank := NewRegisterBank(1)
	bank.UpdateMeter(1, meter.TestMeterReading(1))

	srv, err := NewServer("tcp://localhost:25502", bank, zap.Must(zap.NewDevelopment()))
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     "tcp://localhost:25502",
		Timeout: 1 * time.Second,
	})
	require.NoError(t, err)
	require.NoError(t, client.Open())
	defer client.Close()

	values, err := client.ReadFloat32s(100, 8, modbus.INPUT_REGISTER)
	require.NoError(t, err)
	assert.Equal(float32(1520.5), values[0])
	assert.Equal(float32(812.25), values[3])
	assert.Equal(float32(-245.6), values[4])

	_, err = client.ReadFloat32s(300, 1, modbus.INPUT_REGISTER)
	assert.ErrorIs(err, modbus.ErrIllegalDataAddress)

	_, err = client.ReadRegisters(100, 2, modbus.HOLDING_REGISTER)
	assert.ErrorIs(err, modbus.ErrIllegalFunction)
}
