package nrf24

import (
	"errors"
	"testing"

	"github.com/berfenger/energylog/pkg/hoymiles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// fakeChip emulates the register file and fifos of an nRF24L01+
type fakeChip struct {
	regs     [0x20][]byte
	status   byte
	txFifo   [][]byte
	rxFifo   [][]byte
	noAck    bool
	flushTx  int
	badWidth bool
}

func newFakeChip() *fakeChip {
	c := &fakeChip{}
	for i := range c.regs {
		c.regs[i] = []byte{0x00}
	}
	return c
}

func (c *fakeChip) Tx(w, r []byte) error {
	cmd := w[0]
	r[0] = c.status
	switch {
	case cmd < CMD_W_REGISTER:
		reg := cmd & 0x1F
		value := c.regs[reg]
		switch reg {
		case REG_STATUS:
			value = []byte{c.status}
		case REG_FIFO_STATUS:
			if len(c.rxFifo) == 0 {
				value = []byte{FIFO_RX_EMPTY}
			} else {
				value = []byte{0x00}
			}
		}
		copy(r[1:], value)
	case cmd < CMD_R_RX_PL_WID:
		reg := cmd & 0x1F
		if reg == REG_STATUS {
			c.status &^= w[1] & (STATUS_RX_DR | STATUS_TX_DS | STATUS_MAX_RT)
			return nil
		}
		c.regs[reg] = append([]byte(nil), w[1:]...)
	case cmd == CMD_R_RX_PL_WID:
		if c.badWidth {
			r[1] = 40
		} else if len(c.rxFifo) > 0 {
			r[1] = byte(len(c.rxFifo[0]))
		}
	case cmd == CMD_R_RX_PAYLOAD:
		copy(r[1:], c.rxFifo[0])
		c.rxFifo = c.rxFifo[1:]
	case cmd == CMD_W_TX_PAYLOAD:
		c.txFifo = append(c.txFifo, append([]byte(nil), w[1:]...))
		if c.noAck {
			c.status |= STATUS_MAX_RT
		} else {
			c.status |= STATUS_TX_DS
		}
	case cmd == CMD_FLUSH_TX:
		c.flushTx++
	case cmd == CMD_FLUSH_RX:
		c.rxFifo = nil
	}
	return nil
}

type deadBus struct{}

func (deadBus) Tx(w, r []byte) error {
	clear(r)
	return nil
}

type brokenBus struct{}

func (brokenBus) Tx(w, r []byte) error {
	return errors.New("spi gone")
}

var (
	testTx = []byte{0x01, 0x72, 0x22, 0x02, 0x03}
	testRx = []byte{0x01, 0x80, 0x12, 0x34, 0x56}
)

func testDevice(t *testing.T) (*Device, *fakeChip, *gpiotest.Pin) {
	chip := newFakeChip()
	ce := &gpiotest.Pin{N: "GPIO24", Num: 24}
	d := New(chip, ce, zap.Must(zap.NewDevelopment()))
	require.NoError(t, d.Configure(testTx, testRx))
	return d, chip, ce
}

func TestConfigure(t *testing.T) {

	assert := assert.New(t)

	_, chip, ce := testDevice(t)

	assert.Equal([]byte{SETUP_AW_5_BYTES}, chip.regs[REG_SETUP_AW])
	assert.Equal([]byte{0x3A}, chip.regs[REG_SETUP_RETR], "3 retries, 1000 µs")
	assert.Equal([]byte{RF_SETUP_DR_LOW}, chip.regs[REG_RF_SETUP], "250 kbps, min power")
	assert.Equal([]byte{ALL_PIPES}, chip.regs[REG_EN_AA])
	assert.Equal([]byte{ALL_PIPES}, chip.regs[REG_DYNPD])
	assert.Equal([]byte{FEATURE_EN_DPL}, chip.regs[REG_FEATURE])
	assert.Equal(testTx, chip.regs[REG_TX_ADDR])
	assert.Equal(testTx, chip.regs[REG_RX_ADDR_P0], "pipe 0 receives the acks")
	assert.Equal(testRx, chip.regs[REG_RX_ADDR_P1])
	assert.Equal(byte(CONFIG_EN_CRC|CONFIG_CRCO|CONFIG_PWR_UP), chip.regs[REG_CONFIG][0])
	assert.Equal(gpio.Low, ce.Read())
}

func TestConfigureErrors(t *testing.T) {

	ce := &gpiotest.Pin{N: "GPIO24", Num: 24}

	err := New(deadBus{}, ce, zap.NewNop()).Configure(testTx, testRx)
	assert.ErrorIs(t, err, ErrChipNotConnected)

	err = New(brokenBus{}, ce, zap.NewNop()).Configure(testTx, testRx)
	assert.Error(t, err)

	err = New(newFakeChip(), ce, zap.NewNop()).Configure(testTx[:4], testRx)
	assert.Error(t, err)
}

func TestSetChannelAndPower(t *testing.T) {

	assert := assert.New(t)

	d, chip, _ := testDevice(t)

	require.NoError(t, d.SetChannel(75))
	assert.Equal([]byte{75}, chip.regs[REG_RF_CH])

	require.NoError(t, d.SetPowerLevel(hoymiles.PA_MAX))
	assert.Equal(byte(RF_SETUP_DR_LOW|0x06), chip.regs[REG_RF_SETUP][0])

	require.NoError(t, d.SetPowerLevel(hoymiles.PA_LOW))
	assert.Equal(byte(RF_SETUP_DR_LOW|0x02), chip.regs[REG_RF_SETUP][0], "data rate kept")
}

func TestListening(t *testing.T) {

	assert := assert.New(t)

	d, chip, ce := testDevice(t)

	require.NoError(t, d.StartListening())
	assert.Equal(gpio.High, ce.Read())
	assert.NotZero(chip.regs[REG_CONFIG][0] & CONFIG_PRIM_RX)
	assert.Equal(byte(1<<RX_PIPE), chip.regs[REG_EN_RXADDR][0])

	require.NoError(t, d.StopListening())
	assert.Equal(gpio.Low, ce.Read())
	assert.Zero(chip.regs[REG_CONFIG][0] & CONFIG_PRIM_RX)
	assert.Equal(byte(1|1<<RX_PIPE), chip.regs[REG_EN_RXADDR][0])
}

func TestWrite(t *testing.T) {

	assert := assert.New(t)

	d, chip, ce := testDevice(t)

	acked, err := d.Write([]byte{0x15, 0x01, 0x02})
	require.NoError(t, err)
	assert.True(acked)
	assert.Equal([][]byte{{0x15, 0x01, 0x02}}, chip.txFifo)
	assert.Equal(gpio.Low, ce.Read())
	assert.Zero(chip.status, "flags cleared")

	chip.noAck = true
	flushes := chip.flushTx
	acked, err = d.Write([]byte{0x15})
	require.NoError(t, err)
	assert.False(acked)
	assert.Equal(flushes+1, chip.flushTx, "unsent payload flushed")

	_, err = d.Write(make([]byte, MAX_PAYLOAD_SIZE+1))
	assert.ErrorIs(err, ErrInvalidPayload)
}

func TestReadDynamicPayload(t *testing.T) {

	assert := assert.New(t)

	d, chip, _ := testDevice(t)

	available, err := d.Available()
	require.NoError(t, err)
	assert.False(available)

	chip.rxFifo = [][]byte{{0x95, 0x72, 0x22, 0x02, 0x03}}
	available, _ = d.Available()
	assert.True(available)

	payload, err := d.ReadDynamicPayload()
	require.NoError(t, err)
	assert.Equal([]byte{0x95, 0x72, 0x22, 0x02, 0x03}, payload)

	available, _ = d.Available()
	assert.False(available)

	chip.rxFifo = [][]byte{{0x01}}
	chip.badWidth = true
	_, err = d.ReadDynamicPayload()
	assert.ErrorIs(err, ErrInvalidPayload)
	assert.Empty(chip.rxFifo, "fifo flushed")
}
