package mwixnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayloadRoundTripWithoutRangeproof(t *testing.T) {
	p := Payload{Excess: RandomSecret(), Fee: 50_000_000}

	encoded, err := p.Serialize()
	require.NoError(t, err)

	decoded, err := DeserializePayload(encoded)
	require.NoError(t, err)
	require.Equal(t, p, decoded)
}

func TestPayloadRoundTripWithRangeproof(t *testing.T) {
	proof, err := NewRangeProof(100, RandomSecret())
	require.NoError(t, err)
	p := Payload{Excess: RandomSecret(), Fee: 1234, RangeProof: &proof}

	encoded, err := p.Serialize()
	require.NoError(t, err)

	decoded, err := DeserializePayload(encoded)
	require.NoError(t, err)
	require.Equal(t, p.Excess, decoded.Excess)
	require.Equal(t, p.Fee, decoded.Fee)
	require.NotNil(t, decoded.RangeProof)
	require.Equal(t, *p.RangeProof, *decoded.RangeProof)
}

func TestPayloadRejectsFeeOverflow(t *testing.T) {
	p := Payload{Fee: 1 << 33}
	_, err := p.Serialize()
	require.Error(t, err)
}

func TestPayloadRejectsTruncatedInput(t *testing.T) {
	_, err := DeserializePayload([]byte{1, 2, 3})
	require.Error(t, err)
}
