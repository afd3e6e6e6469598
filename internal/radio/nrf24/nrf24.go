package nrf24

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/berfenger/energylog/pkg/hoymiles"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	SPI_FREQUENCY = physic.MegaHertz
	// 3 retries of 1000 µs
	SETUP_RETR    = 0x3A
	WRITE_TIMEOUT = 95 * time.Millisecond
	// time from CE low to leaving rx mode
	TX_DELAY = 280 * time.Microsecond
)

var (
	ErrChipNotConnected = errors.New("nrf24 chip not connected")
	ErrInvalidPayload   = errors.New("nrf24 invalid payload")
)

// Bus is one SPI device, spi.Conn satisfies it.
type Bus interface {
	Tx(w, r []byte) error
}

type Config struct {
	SPIPort string
	CEPin   string
	// TxAddress is written to TX_ADDR and RX_ADDR_P0, RxAddress to RX_ADDR_P1. Both are sent as given.
	TxAddress []byte
	RxAddress []byte
}

// Device drives an nRF24L01(+) as the DTU side of a Hoymiles link:
// 250 kbps, CRC16, 5 byte addresses, auto-ack and dynamic payloads.
type Device struct {
	bus    Bus
	ce     gpio.PinOut
	closer io.Closer
	logger *zap.Logger
}

var _ hoymiles.Transceiver = (*Device)(nil)

// Open initializes the host drivers, connects the SPI port and configures the chip.
func Open(cfg Config, logger *zap.Logger) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("open spi port %s: %w", cfg.SPIPort, err)
	}
	conn, err := port.Connect(SPI_FREQUENCY, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect spi port %s: %w", cfg.SPIPort, err)
	}
	ce := gpioreg.ByName(cfg.CEPin)
	if ce == nil {
		port.Close()
		return nil, fmt.Errorf("unknown ce pin %s", cfg.CEPin)
	}

	d := New(conn, ce, logger)
	d.closer = port
	if err := d.Configure(cfg.TxAddress, cfg.RxAddress); err != nil {
		port.Close()
		return nil, err
	}
	return d, nil
}

func New(bus Bus, ce gpio.PinOut, logger *zap.Logger) *Device {
	return &Device{
		bus:    bus,
		ce:     ce,
		logger: logger,
	}
}

// Configure brings the chip into standby with the link settings and pipe addresses.
func (d *Device) Configure(txAddress, rxAddress []byte) error {
	if len(txAddress) != ADDRESS_WIDTH || len(rxAddress) != ADDRESS_WIDTH {
		return fmt.Errorf("pipe addresses must be %d bytes", ADDRESS_WIDTH)
	}
	if err := d.ce.Out(gpio.Low); err != nil {
		return err
	}

	writes := []struct {
		reg   byte
		value []byte
	}{
		{REG_CONFIG, []byte{CONFIG_EN_CRC | CONFIG_CRCO}},
		{REG_SETUP_AW, []byte{SETUP_AW_5_BYTES}},
		{REG_SETUP_RETR, []byte{SETUP_RETR}},
		{REG_RF_SETUP, []byte{RF_SETUP_DR_LOW}},
		{REG_EN_AA, []byte{ALL_PIPES}},
		{REG_EN_RXADDR, []byte{1<<0 | 1<<RX_PIPE}},
		{REG_FEATURE, []byte{FEATURE_EN_DPL}},
		{REG_DYNPD, []byte{ALL_PIPES}},
		{REG_TX_ADDR, txAddress},
		{REG_RX_ADDR_P0, txAddress},
		{REG_RX_ADDR_P1, rxAddress},
		{REG_STATUS, []byte{STATUS_RX_DR | STATUS_TX_DS | STATUS_MAX_RT}},
	}
	for _, w := range writes {
		if err := d.writeRegister(w.reg, w.value...); err != nil {
			return err
		}
	}

	aw, err := d.readRegister(REG_SETUP_AW, 1)
	if err != nil {
		return err
	}
	if aw[0] != SETUP_AW_5_BYTES {
		return fmt.Errorf("setup_aw reads %02X: %w", aw[0], ErrChipNotConnected)
	}

	if err := d.FlushTx(); err != nil {
		return err
	}
	if err := d.FlushRx(); err != nil {
		return err
	}
	if err := d.updateRegister(REG_CONFIG, CONFIG_PWR_UP, 0); err != nil {
		return err
	}
	// power up takes 1.5 ms from power down
	time.Sleep(5 * time.Millisecond)

	d.logger.Debug("nrf24 configured", zap.String("tx", fmt.Sprintf("%X", txAddress)), zap.String("rx", fmt.Sprintf("%X", rxAddress)))
	return nil
}

func (d *Device) SetChannel(channel uint8) error {
	return d.writeRegister(REG_RF_CH, channel&0x7F)
}

func (d *Device) SetPowerLevel(level hoymiles.PowerLevel) error {
	return d.updateRegister(REG_RF_SETUP, (byte(level)<<1)&RF_SETUP_PWR, RF_SETUP_PWR)
}

func (d *Device) StartListening() error {
	if err := d.updateRegister(REG_CONFIG, CONFIG_PRIM_RX, 0); err != nil {
		return err
	}
	if err := d.writeRegister(REG_STATUS, STATUS_RX_DR|STATUS_TX_DS|STATUS_MAX_RT); err != nil {
		return err
	}
	// pipe 0 only carries acks for our own writes
	if err := d.updateRegister(REG_EN_RXADDR, 0, 1<<0); err != nil {
		return err
	}
	return d.ce.Out(gpio.High)
}

func (d *Device) StopListening() error {
	if err := d.ce.Out(gpio.Low); err != nil {
		return err
	}
	time.Sleep(TX_DELAY)
	if err := d.updateRegister(REG_CONFIG, 0, CONFIG_PRIM_RX); err != nil {
		return err
	}
	return d.updateRegister(REG_EN_RXADDR, 1<<0, 0)
}

// Write sends packet as a dynamic payload and waits for the ack or the retransmit limit.
// The chip must not be listening.
func (d *Device) Write(packet []byte) (bool, error) {
	if len(packet) == 0 || len(packet) > MAX_PAYLOAD_SIZE {
		return false, fmt.Errorf("payload of %d bytes: %w", len(packet), ErrInvalidPayload)
	}
	if _, err := d.command(CMD_W_TX_PAYLOAD, packet); err != nil {
		return false, err
	}
	if err := d.ce.Out(gpio.High); err != nil {
		return false, err
	}

	var status byte
	deadline := time.Now().Add(WRITE_TIMEOUT)
	for {
		r, err := d.command(CMD_NOP, nil)
		if err != nil {
			d.ce.Out(gpio.Low)
			return false, err
		}
		status = r[0]
		if status&(STATUS_TX_DS|STATUS_MAX_RT) != 0 {
			break
		}
		if time.Now().After(deadline) {
			d.ce.Out(gpio.Low)
			return false, fmt.Errorf("no tx status within %s", WRITE_TIMEOUT)
		}
	}

	if err := d.ce.Out(gpio.Low); err != nil {
		return false, err
	}
	if err := d.writeRegister(REG_STATUS, STATUS_TX_DS|STATUS_MAX_RT); err != nil {
		return false, err
	}
	if status&STATUS_MAX_RT != 0 {
		return false, d.FlushTx()
	}
	return true, nil
}

func (d *Device) Available() (bool, error) {
	fifo, err := d.readRegister(REG_FIFO_STATUS, 1)
	if err != nil {
		return false, err
	}
	return fifo[0]&FIFO_RX_EMPTY == 0, nil
}

func (d *Device) ReadDynamicPayload() ([]byte, error) {
	r, err := d.command(CMD_R_RX_PL_WID, []byte{0})
	if err != nil {
		return nil, err
	}
	width := int(r[1])
	if width == 0 || width > MAX_PAYLOAD_SIZE {
		// corrupt width, the datasheet asks to flush
		if err := d.FlushRx(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("payload width %d: %w", width, ErrInvalidPayload)
	}
	r, err = d.command(CMD_R_RX_PAYLOAD, make([]byte, width))
	if err != nil {
		return nil, err
	}
	if err := d.writeRegister(REG_STATUS, STATUS_RX_DR); err != nil {
		return nil, err
	}
	return r[1:], nil
}

func (d *Device) FlushTx() error {
	_, err := d.command(CMD_FLUSH_TX, nil)
	return err
}

func (d *Device) FlushRx() error {
	_, err := d.command(CMD_FLUSH_RX, nil)
	return err
}

// Close powers the chip down and releases the SPI port.
func (d *Device) Close() error {
	errCe := d.ce.Out(gpio.Low)
	errPwr := d.updateRegister(REG_CONFIG, 0, CONFIG_PWR_UP)
	var errClose error
	if d.closer != nil {
		errClose = d.closer.Close()
	}
	return errors.Join(errCe, errPwr, errClose)
}

// command runs one SPI transaction and returns status followed by the data bytes read.
func (d *Device) command(cmd byte, data []byte) ([]byte, error) {
	w := make([]byte, 1+len(data))
	w[0] = cmd
	copy(w[1:], data)
	r := make([]byte, len(w))
	if err := d.bus.Tx(w, r); err != nil {
		return nil, fmt.Errorf("nrf24 command %02X: %w", cmd, err)
	}
	return r, nil
}

func (d *Device) readRegister(reg byte, n int) ([]byte, error) {
	r, err := d.command(CMD_R_REGISTER|reg, make([]byte, n))
	if err != nil {
		return nil, err
	}
	return r[1:], nil
}

func (d *Device) writeRegister(reg byte, value ...byte) error {
	_, err := d.command(CMD_W_REGISTER|reg, value)
	return err
}

func (d *Device) updateRegister(reg byte, set, clear byte) error {
	v, err := d.readRegister(reg, 1)
	if err != nil {
		return err
	}
	return d.writeRegister(reg, (v[0]&^clear)|set)
}
