package sml

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	TYPE_STRING = 0
	TYPE_BOOL   = 4
	TYPE_INT    = 5
	TYPE_UINT   = 6
	TYPE_LIST   = 7

	END_OF_MESSAGE = 0x00
	END_MARKER     = 0x1A
)

var (
	ESCAPE_SEQUENCE = []byte{0x1B, 0x1B, 0x1B, 0x1B}
	VERSION_1       = []byte{0x01, 0x01, 0x01, 0x01}
)

// start escape + version, end escape + 0x1A + fill count + crc
const MIN_FRAME_SIZE = 16

// DecodeMessages validates a transport frame and decodes the SML messages of its body.
func DecodeMessages(data []byte) ([]Value, error) {
	n := len(data)
	if n < MIN_FRAME_SIZE {
		return nil, fmt.Errorf("frame has %d bytes: %w", n, ErrFraming)
	}
	if !bytes.Equal(data[0:4], ESCAPE_SEQUENCE) {
		return nil, fmt.Errorf("missing escape sequence at 0: %w", ErrFraming)
	}
	if !bytes.Equal(data[4:8], VERSION_1) {
		return nil, fmt.Errorf("missing version 1 start sequence at 4: %w", ErrFraming)
	}
	if !bytes.Equal(data[n-8:n-4], ESCAPE_SEQUENCE) {
		return nil, fmt.Errorf("missing escape sequence at %d: %w", n-8, ErrFraming)
	}
	if data[n-4] != END_MARKER {
		return nil, fmt.Errorf("missing end marker at %d: %w", n-4, ErrFraming)
	}
	fill := int(data[n-3])
	bodyEnd := n - 8 - fill
	if bodyEnd < 8 {
		return nil, fmt.Errorf("fill count %d exceeds body: %w", fill, ErrFraming)
	}

	want := binary.LittleEndian.Uint16(data[n-2:])
	if sum := Crc16X25(data[:n-2]); sum != want {
		return nil, fmt.Errorf("frame crc %04X, computed %04X: %w", want, sum, ErrChecksumMismatch)
	}

	d := decoder{data: data[:bodyEnd]}
	var messages []Value
	pos := 8
	for pos < bodyEnd {
		if data[pos] == END_OF_MESSAGE {
			pos++
			continue
		}
		msg, next, endOfMsg, err := d.value(pos)
		if err != nil {
			return nil, err
		}
		if !endOfMsg {
			return nil, fmt.Errorf("message at %d not terminated: %w", pos, ErrFraming)
		}
		messages = append(messages, msg)
		pos = next
	}
	return messages, nil
}

type decoder struct {
	data []byte
}

// tlf decodes a type-length field. For scalars the length includes the tlf bytes, for lists it is the element count.
func (d *decoder) tlf(pos int) (size int, typ int, length int, err error) {
	if pos >= len(d.data) {
		return 0, 0, 0, fmt.Errorf("type-length field at %d beyond body: %w", pos, ErrFraming)
	}
	b := d.data[pos]
	typ = int(b&0x70) >> 4
	length = int(b & 0x0F)
	size = 1
	for b&0x80 != 0 {
		if pos+size >= len(d.data) {
			return 0, 0, 0, fmt.Errorf("type-length field at %d truncated: %w", pos, ErrFraming)
		}
		b = d.data[pos+size]
		length = length<<4 | int(b&0x0F)
		size++
		if length > len(d.data) {
			return 0, 0, 0, fmt.Errorf("type-length field at %d exceeds body: %w", pos, ErrFraming)
		}
	}
	return size, typ, length, nil
}

// value decodes the element at pos and returns the position after it and whether it ended a message.
func (d *decoder) value(pos int) (Value, int, bool, error) {
	if pos >= len(d.data) {
		return Value{}, 0, false, fmt.Errorf("value at %d beyond body: %w", pos, ErrFraming)
	}
	if d.data[pos] == END_OF_MESSAGE {
		return Value{}, pos + 1, true, nil
	}

	size, typ, length, err := d.tlf(pos)
	if err != nil {
		return Value{}, 0, false, err
	}

	if typ == TYPE_LIST {
		return d.list(pos+size, length)
	}

	end := pos + length
	if length < size {
		return Value{}, 0, false, fmt.Errorf("type %d length %d at %d: %w", typ, length, pos, ErrUnknownDataType)
	}
	if end > len(d.data) {
		return Value{}, 0, false, fmt.Errorf("value at %d needs %d bytes: %w", pos, length, ErrFraming)
	}
	raw := d.data[pos+size : end]

	switch {
	case typ == TYPE_STRING:
		return StringValue(bytes.Clone(raw)), end, false, nil
	case typ == TYPE_BOOL && length == 2 && len(raw) == 1:
		return BoolValue(raw[0] != 0), end, false, nil
	case typ == TYPE_INT && length >= 2 && length <= 9 && len(raw) >= 1:
		return IntValue(signExtend(raw)), end, false, nil
	case typ == TYPE_UINT && length >= 2 && length <= 9 && len(raw) >= 1:
		return UintValue(bigEndian(raw)), end, false, nil
	}
	return Value{}, 0, false, fmt.Errorf("tlf %02X at %d: %w", d.data[pos], pos, ErrUnknownDataType)
}

// list decodes count children. An end-of-message sentinel closes the list early and is not kept,
// otherwise the list ends a message when its last child does.
func (d *decoder) list(pos int, count int) (Value, int, bool, error) {
	// every element takes at least one byte
	if count > len(d.data)-pos {
		return Value{}, 0, false, fmt.Errorf("list of %d elements at %d exceeds body: %w", count, pos, ErrFraming)
	}
	items := make([]Value, 0, count)
	endOfMsg := false
	for i := 0; i < count; i++ {
		if pos >= len(d.data) {
			return Value{}, 0, false, fmt.Errorf("list element at %d beyond body: %w", pos, ErrFraming)
		}
		if d.data[pos] == END_OF_MESSAGE {
			return ListValue(items), pos + 1, true, nil
		}
		item, next, eom, err := d.value(pos)
		if err != nil {
			return Value{}, 0, false, err
		}
		items = append(items, item)
		pos = next
		endOfMsg = eom
	}
	return ListValue(items), pos, endOfMsg, nil
}

func bigEndian(raw []byte) uint64 {
	var u uint64
	for _, b := range raw {
		u = u<<8 | uint64(b)
	}
	return u
}

func signExtend(raw []byte) int64 {
	u := bigEndian(raw)
	shift := 64 - 8*uint(len(raw))
	return int64(u<<shift) >> shift
}
