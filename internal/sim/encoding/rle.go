// Package encoding holds the wire codecs: run-length occupancy bits
// for debug voxel dumps and the compressed binary mesh payload carried
// inside chunk frames.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeOccupancy encodes solid bits as base64(varint pairs). The
// pairs are (bit, run_len) repeated.
func EncodeOccupancy(cells []bool) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(cells) {
		b := cells[i]
		run := 1
		for j := i + 1; j < len(cells) && cells[j] == b; j++ {
			run++
		}

		bit := uint64(0)
		if b {
			bit = 1
		}
		n := binary.PutUvarint(tmp[:], bit)
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func DecodeOccupancy(b64 string) ([]bool, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []bool
	for i := 0; i < len(raw); {
		bit, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if bit > 1 {
			return nil, fmt.Errorf("occupancy bit out of range: %d", bit)
		}
		if run > 1<<20 || len(out)+int(run) > 1<<20 {
			return nil, fmt.Errorf("occupancy run too long: %d", run)
		}
		for k := 0; k < int(run); k++ {
			out = append(out, bit == 1)
		}
	}
	return out, nil
}
