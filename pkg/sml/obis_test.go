package sml

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFrame2 = "1B 1B 1B 1B 01 01 01 01 76 05 00 95 A0 DB 62 00 62 00 72 65 00 00 01 01 76 01 01 07 65 42 5A 44 44 33 0B 09 01 45 42 5A 01 00 2D 16 C3 01 01 63 27 AC 00 76 05 00 95 A0 DC 62 00 62 00 72 65 00 00 07 01 77 01 0B 09 01 45 42 5A 01 00 2D 16 C3 01 72 62 01 65 00 18 F1 36 7A 77 07 81 81 C7 82 03 FF 01 01 01 01 04 45 42 5A 01 77 07 01 00 00 00 09 FF 01 01 01 01 0B 09 01 45 42 5A 01 00 2D 16 C3 01 77 07 01 00 01 08 00 FF 64 01 01 80 01 62 1E 52 FB 69 00 00 00 08 BA 13 9B CA 01 77 07 01 00 01 08 01 FF 01 01 62 1E 52 FB 69 00 00 00 08 B4 25 5B EA 01 77 07 01 00 01 08 02 FF 01 01 62 1E 52 FB 69 00 00 00 00 05 EE 3F E0 01 77 07 01 00 02 08 00 FF 64 01 01 80 01 62 1E 52 FB 69 00 00 00 00 0D 18 5B 20 01 77 07 01 00 10 07 00 FF 01 01 62 1B 52 FE 55 00 00 01 4B 01 77 07 01 00 24 07 00 FF 01 01 62 1B 52 FE 55 00 00 01 4B 01 77 07 01 00 38 07 00 FF 01 01 62 1B 52 FE 55 00 00 00 00 01 77 07 01 00 4C 07 00 FF 01 01 62 1B 52 FE 55 00 00 00 00 01 01 01 63 56 AB 00 76 05 00 95 A0 DD 62 00 62 00 72 65 00 00 02 01 71 01 63 44 21 00 00 00 00 1B 1B 1B 1B 1A 03 DE 02"

func TestExtractMeterReading(t *testing.T) {

	assert := assert.New(t)

	messages, err := DecodeMessages(TestFrameBytes(TEST_FRAME))
	require.NoError(t, err)
	reading, err := ExtractMeterReading(messages)
	require.NoError(t, err)

	assert.Equal(374.81585518, reading.EnergyImport)
	assert.Equal(373.82085518, reading.EnergyImportT1)
	assert.Equal(0.995, reading.EnergyImportT2)
	assert.Equal(2.197, reading.EnergyExport)
	assert.Equal(3.89, reading.Power)
	assert.Equal(3.89, reading.PowerL1)
	assert.Equal(0.0, reading.PowerL2)
	assert.Equal(0.0, reading.PowerL3)

	values := reading.Values()
	assert.Len(values, len(KEYS))
	for _, key := range KEYS {
		assert.Contains(values, key)
	}
	assert.Equal(3.89, values["P L1"])
	assert.Equal(2.197, values["-A"])
}

func TestExtractMeterReadingNextTelegram(t *testing.T) {

	messages, err := DecodeMessages(TestFrameBytes(testFrame2))
	require.NoError(t, err)
	reading, err := ExtractMeterReading(messages)
	require.NoError(t, err)

	assert.Equal(t, 374.8158561, reading.EnergyImport)
	assert.Equal(t, 3.31, reading.Power)
}

// testMessages builds the telegram layout around a value list
func testMessages(entries ...Value) []Value {
	empty := StringValue([]byte{})
	response := ListValue([]Value{empty, empty, empty, empty, ListValue(entries)})
	body := ListValue([]Value{UintValue(0x0701), response})
	return []Value{
		ListValue(nil),
		ListValue([]Value{empty, UintValue(0), UintValue(0), body, UintValue(0)}),
	}
}

func testEntry(obis []byte, value Value) Value {
	empty := StringValue([]byte{})
	return ListValue([]Value{StringValue(obis), empty, empty, UintValue(27), IntValue(-2), value, empty})
}

func TestExtractMeterReadingLayout(t *testing.T) {

	assert := assert.New(t)

	power := []byte{0x01, 0x00, 0x10, 0x07, 0x00, 0xFF}

	entries := []Value{testEntry([]byte{0x01, 0x00, 0x60, 0x05, 0x00, 0xFF}, UintValue(7))}
	for _, known := range obisTable {
		if bytes.Equal(known.id, power) {
			entries = append(entries, testEntry(power, IntValue(-1250)))
		} else {
			entries = append(entries, testEntry(known.id, UintValue(0)))
		}
	}
	reading, err := ExtractMeterReading(testMessages(entries...))
	require.NoError(t, err)
	assert.Equal(-12.5, reading.Power, "signed values and unknown ids skipped")

	_, err = ExtractMeterReading(testMessages()[:1])
	assert.ErrorIs(err, ErrFraming, "missing message")

	_, err = ExtractMeterReading(testMessages(ListValue(nil)))
	assert.ErrorIs(err, ErrFraming, "entry without obis")

	_, err = ExtractMeterReading(testMessages(ListValue([]Value{UintValue(1)})))
	assert.ErrorIs(err, ErrFraming, "obis is not a string")

	_, err = ExtractMeterReading(testMessages(testEntry(power, StringValue([]byte("x")))))
	assert.ErrorIs(err, ErrFraming, "value is not a number")

	_, err = ExtractMeterReading(testMessages(ListValue([]Value{StringValue(power)})))
	assert.ErrorIs(err, ErrFraming, "entry without value")
}

func TestExtractMeterReadingMissingValue(t *testing.T) {

	assert := assert.New(t)

	messages, err := DecodeMessages(TestFrameBytes(TEST_FRAME))
	require.NoError(t, err)
	list, ok := ListValue(messages).At(valueListPath...)
	require.True(t, ok)
	entries, _ := list.List()

	var partial []Value
	for _, entry := range entries {
		obis, _ := entry.At(ENTRY_OBIS)
		id, _ := obis.Bytes()
		if bytes.Equal(id, []byte{0x01, 0x00, 0x02, 0x08, 0x00, 0xFF}) {
			continue
		}
		partial = append(partial, entry)
	}
	require.Len(t, partial, len(entries)-1)

	reading, err := ExtractMeterReading(testMessages(partial...))
	assert.Nil(reading)
	assert.ErrorIs(err, ErrMissingValue)
	assert.ErrorContains(err, KEY_ENERGY_EXPORT)

	_, err = ExtractMeterReading(testMessages())
	assert.ErrorIs(err, ErrMissingValue, "empty value list")
}
