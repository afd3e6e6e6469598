package radio

import (
	"context"
	"time"

	"github.com/berfenger/energylog/pkg/hoymiles"
)

const TEST_SERIAL_NUMBER = "114172220203"

var TEST_DTU_ADDRESS = hoymiles.Address{0x81, 0x23, 0x45, 0x67}

// TestInverter runs a real session against an in-memory radio.
type TestInverter struct {
	Radio   *hoymiles.TestTransceiver
	serial  hoymiles.SerialNumber
	session *hoymiles.Session
	opened  bool
}

func CreateTestInverter() (*TestInverter, error) {
	serial, err := hoymiles.ParseSerialNumber(TEST_SERIAL_NUMBER)
	if err != nil {
		return nil, err
	}
	tr := hoymiles.CreateTestTransceiver(serial)
	session, err := hoymiles.NewSession(tr, serial, TEST_DTU_ADDRESS,
		hoymiles.WithBackoff(0),
		hoymiles.WithRetries(2),
		hoymiles.WithScanSlots(6),
		hoymiles.WithReceiveTimeout(time.Millisecond))
	if err != nil {
		return nil, err
	}
	return &TestInverter{
		Radio:   tr,
		serial:  serial,
		session: session,
	}, nil
}

// Silence makes the inverter stop answering.
func (inv *TestInverter) Silence() {
	inv.Radio.Answer = nil
}

func (inv *TestInverter) Open() error {
	inv.opened = true
	return nil
}

func (inv *TestInverter) Close() error {
	inv.opened = false
	return nil
}

func (inv *TestInverter) QueryInverterInfo(ctx context.Context) (*hoymiles.InverterReading, bool) {
	return inv.session.QueryInverterInfo(ctx)
}

func (inv *TestInverter) SerialNumber() hoymiles.SerialNumber {
	return inv.serial
}

func (inv *TestInverter) DtuAddress() hoymiles.Address {
	return TEST_DTU_ADDRESS
}
