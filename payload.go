package mwixnet

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Payload is the per-hop instruction carried inside one onion layer: the
// blinding-factor excess this hop folds into the output commitment, the fee
// it claims, and (only on the final hop) the rangeproof for the resulting
// output.
type Payload struct {
	Excess     SecretKey
	Fee        uint64
	RangeProof *RangeProof
}

// Serialize encodes a Payload as excess(32B) || fee(u32) || optional
// rangeproof (u8 tag + bytes).
func (p Payload) Serialize() ([]byte, error) {
	if p.Fee > 0xffffffff {
		return nil, errors.Errorf("fee %d exceeds u32 fee-fields range", p.Fee)
	}

	buf := make([]byte, 0, SecretKeySize+4+1)
	buf = append(buf, p.Excess[:]...)
	buf = appendUint32(buf, uint32(p.Fee))

	if p.RangeProof != nil {
		buf = append(buf, 1)
		buf = append(buf, *p.RangeProof...)
	} else {
		buf = append(buf, 0)
	}
	return buf, nil
}

// DeserializePayload decodes a Payload from the layout Serialize produces.
func DeserializePayload(b []byte) (Payload, error) {
	if len(b) < SecretKeySize+4+1 {
		return Payload{}, errors.New("payload too short")
	}

	var p Payload
	copy(p.Excess[:], b[0:SecretKeySize])
	offset := SecretKeySize
	p.Fee = uint64(binary.BigEndian.Uint32(b[offset : offset+4]))
	offset += 4

	tag := b[offset]
	offset++
	switch tag {
	case 0:
		p.RangeProof = nil
	case 1:
		proof := RangeProof(append([]byte(nil), b[offset:]...))
		p.RangeProof = &proof
	default:
		return Payload{}, errors.Errorf("invalid rangeproof tag %d", tag)
	}

	return p, nil
}
