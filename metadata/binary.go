package metadata

import (
	"encoding/binary"
	"errors"
	"math"
	"slices"
)

// AppendBinary appends the compact binary form of the document to buf.
//
// Keys are written in sorted order so the same document always encodes to
// the same bytes. Log replay and snapshot validation rely on that.
func (d Document) AppendBinary(buf []byte) ([]byte, error) {
	buf = binary.AppendUvarint(buf, uint64(len(d)))

	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		buf = binary.AppendUvarint(buf, uint64(len(k)))
		buf = append(buf, k...)

		var err error
		buf, err = appendValue(buf, d[k])
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (d Document) MarshalBinary() ([]byte, error) {
	// Rough guess to avoid some growth: count + (key + value) per entry.
	return d.AppendBinary(make([]byte, 0, 4+len(d)*16))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (d *Document) UnmarshalBinary(data []byte) error {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return errors.New("invalid metadata length")
	}
	data = data[n:]

	if *d == nil {
		*d = make(Document, count)
	}

	for i := uint64(0); i < count; i++ {
		kLen, n := binary.Uvarint(data)
		if n <= 0 {
			return errors.New("invalid key length")
		}
		data = data[n:]
		if uint64(len(data)) < kLen {
			return errors.New("short buffer for key")
		}
		key := string(data[:kLen])
		data = data[kLen:]

		val, remaining, err := parseValue(data)
		if err != nil {
			return err
		}
		(*d)[key] = val
		data = remaining
	}
	return nil
}

func appendValue(buf []byte, v Value) ([]byte, error) {
	buf = append(buf, byte(v.Kind))

	switch v.Kind {
	case KindNull:
		// No payload
	case KindInt:
		buf = binary.AppendVarint(buf, v.I64)
	case KindFloat:
		bits := math.Float64bits(v.F64)
		buf = binary.LittleEndian.AppendUint64(buf, bits)
	case KindString:
		buf = binary.AppendUvarint(buf, uint64(len(v.S)))
		buf = append(buf, v.S...)
	case KindBool:
		if v.B {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case KindArray:
		buf = binary.AppendUvarint(buf, uint64(len(v.A)))
		for _, item := range v.A {
			var err error
			buf, err = appendValue(buf, item)
			if err != nil {
				return nil, err
			}
		}
	default:
		return nil, errors.New("unknown metadata kind")
	}
	return buf, nil
}

func parseValue(data []byte) (Value, []byte, error) {
	if len(data) == 0 {
		return Value{}, nil, errors.New("short buffer for value kind")
	}
	kind := Kind(data[0])
	data = data[1:]

	var v Value
	v.Kind = kind

	switch kind {
	case KindNull:
		// No payload
	case KindInt:
		i, n := binary.Varint(data)
		if n <= 0 {
			return v, nil, errors.New("invalid int value")
		}
		v.I64 = i
		data = data[n:]
	case KindFloat:
		if len(data) < 8 {
			return v, nil, errors.New("short buffer for float")
		}
		bits := binary.LittleEndian.Uint64(data)
		v.F64 = math.Float64frombits(bits)
		data = data[8:]
	case KindString:
		sLen, n := binary.Uvarint(data)
		if n <= 0 {
			return v, nil, errors.New("invalid string length")
		}
		data = data[n:]
		if uint64(len(data)) < sLen {
			return v, nil, errors.New("short buffer for string")
		}
		v.S = string(data[:sLen])
		data = data[sLen:]
	case KindBool:
		if len(data) == 0 {
			return v, nil, errors.New("short buffer for bool")
		}
		v.B = data[0] != 0
		data = data[1:]
	case KindArray:
		aLen, n := binary.Uvarint(data)
		if n <= 0 {
			return v, nil, errors.New("invalid array length")
		}
		data = data[n:]
		v.A = make([]Value, aLen)
		for i := uint64(0); i < aLen; i++ {
			item, remaining, err := parseValue(data)
			if err != nil {
				return v, nil, err
			}
			v.A[i] = item
			data = remaining
		}
	default:
		return v, nil, errors.New("unknown metadata kind")
	}
	return v, data, nil
}
