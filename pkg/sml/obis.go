package sml

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	ENERGY_DIVISOR = 1e8
	POWER_DIVISOR  = 1e2
)

const (
	KEY_ENERGY_IMPORT    = "+A"
	KEY_ENERGY_IMPORT_T1 = "+A T1"
	KEY_ENERGY_IMPORT_T2 = "+A T2"
	KEY_ENERGY_EXPORT    = "-A"
	KEY_POWER            = "P"
	KEY_POWER_L1         = "P L1"
	KEY_POWER_L2         = "P L2"
	KEY_POWER_L3         = "P L3"
)

// KEYS lists the reading names in storage column order.
var KEYS = []string{
	KEY_ENERGY_IMPORT, KEY_ENERGY_IMPORT_T1, KEY_ENERGY_IMPORT_T2, KEY_ENERGY_EXPORT,
	KEY_POWER, KEY_POWER_L1, KEY_POWER_L2, KEY_POWER_L3,
}

// MeterReading holds energies in kWh and powers in W.
type MeterReading struct {
	EnergyImport   float64
	EnergyImportT1 float64
	EnergyImportT2 float64
	EnergyExport   float64
	Power          float64
	PowerL1        float64
	PowerL2        float64
	PowerL3        float64
}

func (r *MeterReading) Values() map[string]float64 {
	return map[string]float64{
		KEY_ENERGY_IMPORT:    r.EnergyImport,
		KEY_ENERGY_IMPORT_T1: r.EnergyImportT1,
		KEY_ENERGY_IMPORT_T2: r.EnergyImportT2,
		KEY_ENERGY_EXPORT:    r.EnergyExport,
		KEY_POWER:            r.Power,
		KEY_POWER_L1:         r.PowerL1,
		KEY_POWER_L2:         r.PowerL2,
		KEY_POWER_L3:         r.PowerL3,
	}
}

type obisEntry struct {
	key     string
	id      []byte
	divisor float64
	field   func(*MeterReading) *float64
}

var obisTable = []obisEntry{
	{KEY_ENERGY_IMPORT, []byte{0x01, 0x00, 0x01, 0x08, 0x00, 0xFF}, ENERGY_DIVISOR, func(r *MeterReading) *float64 { return &r.EnergyImport }},
	{KEY_ENERGY_IMPORT_T1, []byte{0x01, 0x00, 0x01, 0x08, 0x01, 0xFF}, ENERGY_DIVISOR, func(r *MeterReading) *float64 { return &r.EnergyImportT1 }},
	{KEY_ENERGY_IMPORT_T2, []byte{0x01, 0x00, 0x01, 0x08, 0x02, 0xFF}, ENERGY_DIVISOR, func(r *MeterReading) *float64 { return &r.EnergyImportT2 }},
	{KEY_ENERGY_EXPORT, []byte{0x01, 0x00, 0x02, 0x08, 0x00, 0xFF}, ENERGY_DIVISOR, func(r *MeterReading) *float64 { return &r.EnergyExport }},
	{KEY_POWER, []byte{0x01, 0x00, 0x10, 0x07, 0x00, 0xFF}, POWER_DIVISOR, func(r *MeterReading) *float64 { return &r.Power }},
	{KEY_POWER_L1, []byte{0x01, 0x00, 0x24, 0x07, 0x00, 0xFF}, POWER_DIVISOR, func(r *MeterReading) *float64 { return &r.PowerL1 }},
	{KEY_POWER_L2, []byte{0x01, 0x00, 0x38, 0x07, 0x00, 0xFF}, POWER_DIVISOR, func(r *MeterReading) *float64 { return &r.PowerL2 }},
	{KEY_POWER_L3, []byte{0x01, 0x00, 0x4C, 0x07, 0x00, 0xFF}, POWER_DIVISOR, func(r *MeterReading) *float64 { return &r.PowerL3 }},
}

// position of the value list inside the GetList response of an eBZ DD3
var valueListPath = []int{1, 3, 1, 4}

const (
	ENTRY_OBIS  = 0
	ENTRY_VALUE = 5
)

// ExtractMeterReading maps the value list of a decoded eBZ DD3 telegram to a MeterReading.
// Unknown OBIS ids are skipped, every id of the table must be present.
func ExtractMeterReading(messages []Value) (*MeterReading, error) {
	entries, ok := ListValue(messages).At(valueListPath...)
	if !ok {
		return nil, fmt.Errorf("value list not found: %w", ErrFraming)
	}
	list, ok := entries.List()
	if !ok {
		return nil, fmt.Errorf("value list is a %s: %w", KindToString(entries.Kind()), ErrFraming)
	}

	reading := &MeterReading{}
	seen := map[string]bool{}
	for i, entry := range list {
		obis, ok := entry.At(ENTRY_OBIS)
		if !ok {
			return nil, fmt.Errorf("value list entry %d has no obis id: %w", i, ErrFraming)
		}
		id, ok := obis.Bytes()
		if !ok {
			return nil, fmt.Errorf("value list entry %d obis id is a %s: %w", i, KindToString(obis.Kind()), ErrFraming)
		}
		known := lookupObis(id)
		if known == nil {
			continue
		}
		value, ok := entry.At(ENTRY_VALUE)
		if !ok {
			return nil, fmt.Errorf("value list entry %X has no value: %w", id, ErrFraming)
		}
		raw, ok := value.Number()
		if !ok {
			return nil, fmt.Errorf("value list entry %X value is a %s: %w", id, KindToString(value.Kind()), ErrFraming)
		}
		*known.field(reading) = raw / known.divisor
		seen[known.key] = true
	}

	var missing []string
	for _, entry := range obisTable {
		if !seen[entry.key] {
			missing = append(missing, entry.key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("value list lacks %s: %w", strings.Join(missing, ", "), ErrMissingValue)
	}
	return reading, nil
}

func lookupObis(id []byte) *obisEntry {
	for i := range obisTable {
		if bytes.Equal(obisTable[i].id, id) {
			return &obisTable[i]
		}
	}
	return nil
}
