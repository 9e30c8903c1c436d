// Package encoding packs chunk section block ids for the admin chunk dump.
//
// A payload is base64 of repeated uvarint pairs (palette id, run length).
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

const maxRun = 1 << 31

func EncodeRLE(ids []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte
	put := func(v uint64) {
		n := binary.PutUvarint(tmp[:], v)
		buf.Write(tmp[:n])
	}
	for i := 0; i < len(ids); {
		id := ids[i]
		j := i + 1
		for j < len(ids) && ids[j] == id && j-i < maxRun {
			j++
		}
		put(uint64(id))
		put(uint64(j - i))
		i = j
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func DecodeRLE(b64 string) ([]uint16, error) {
	return decode(b64, -1)
}

// DecodeRLEN decodes a payload that must expand to exactly n ids.
func DecodeRLEN(b64 string, n int) ([]uint16, error) {
	return decode(b64, n)
}

func decode(b64 string, want int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("rle: %w", err)
	}
	var out []uint16
	if want >= 0 {
		out = make([]uint16, 0, want)
	}
	for i := 0; i < len(raw); {
		id, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("rle: bad id varint at byte %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("rle: bad run varint at byte %d", i)
		}
		i += n
		if id > 0xFFFF {
			return nil, fmt.Errorf("rle: id %d out of range", id)
		}
		if want >= 0 && uint64(len(out))+run > uint64(want) {
			return nil, fmt.Errorf("rle: payload expands past %d ids", want)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(id))
		}
	}
	if want >= 0 && len(out) != want {
		return nil, fmt.Errorf("rle: got %d ids, want %d", len(out), want)
	}
	return out, nil
}
