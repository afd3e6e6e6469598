package modbusexport

import (
	"math"
	"sync"

	"github.com/berfenger/energylog/internal/core/domain"
	"github.com/berfenger/energylog/pkg/hoymiles"
	"github.com/berfenger/energylog/pkg/sml"
	"github.com/simonvetter/modbus"
)

const (
	REGISTERS_PER_VALUE = 2
	INVERTER_AC_BASE    = 200
	CHANNEL_BASE        = 220
	CHANNEL_STRIDE      = 10
)

var METER_BASE = []uint16{0, 100}

// RegisterBank holds the latest readings as float32 input registers, high word first.
// Values never read yet are NaN.
type RegisterBank struct {
	mu   sync.RWMutex
	regs map[uint16]uint16
}

func NewRegisterBank(inverterChannels int) *RegisterBank {
	bank := &RegisterBank{regs: map[uint16]uint16{}}
	nan := float32(math.NaN())
	for _, base := range METER_BASE {
		bank.fill(base, len(domain.METER_QUANTITIES), nan)
	}
	if inverterChannels > 0 {
		bank.fill(INVERTER_AC_BASE, len(domain.INVERTER_QUANTITIES), nan)
		for ch := 1; ch <= inverterChannels; ch++ {
			bank.fill(ChannelBase(ch), len(domain.CHANNEL_QUANTITIES), nan)
		}
	}
	return bank
}

// ChannelBase returns the first register of PV input ch, numbered from 1.
func ChannelBase(ch int) uint16 {
	return CHANNEL_BASE + uint16(CHANNEL_STRIDE*(ch-1))
}

func (b *RegisterBank) UpdateMeter(meter int, reading *sml.MeterReading) {
	if meter < 0 || meter >= len(METER_BASE) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.put(METER_BASE[meter], domain.MeterQuantities(reading))
}

func (b *RegisterBank) UpdateInverter(reading *hoymiles.InverterReading) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.put(INVERTER_AC_BASE, domain.InverterQuantities(reading))
	for i, ch := range reading.Channels {
		b.put(ChannelBase(i+1), domain.ChannelQuantities(ch))
	}
}

// Read returns quantity registers from addr. Every address of the range must be mapped.
func (b *RegisterBank) Read(addr, quantity uint16) ([]uint16, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	res := make([]uint16, quantity)
	for i := range res {
		value, ok := b.regs[addr+uint16(i)]
		if !ok {
			return nil, modbus.ErrIllegalDataAddress
		}
		res[i] = value
	}
	return res, nil
}

func (b *RegisterBank) fill(base uint16, count int, value float32) {
	for i := 0; i < count; i++ {
		b.set(base+uint16(i*REGISTERS_PER_VALUE), value)
	}
}

func (b *RegisterBank) put(base uint16, values []domain.QuantityValue) {
	for i, q := range values {
		b.set(base+uint16(i*REGISTERS_PER_VALUE), float32(q.Value))
	}
}

func (b *RegisterBank) set(addr uint16, value float32) {
	bits := math.Float32bits(value)
	b.regs[addr] = uint16(bits >> 16)
	b.regs[addr+1] = uint16(bits)
}
