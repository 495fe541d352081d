package mwixnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRangeProofRoundTrip(t *testing.T) {
	blind := RandomSecret()
	value := uint64(150_000_000)
	commit, err := Commit(value, blind)
	require.NoError(t, err)

	proof, err := NewRangeProof(value, blind)
	require.NoError(t, err)

	require.NoError(t, VerifyRangeProof(commit, proof))
}

func TestRangeProofRejectsValueOutOfRange(t *testing.T) {
	_, err := NewRangeProof(uint64(1)<<rangeProofBitWidth, RandomSecret())
	require.Error(t, err)
}

func TestRangeProofRejectsWrongCommitment(t *testing.T) {
	blind := RandomSecret()
	proof, err := NewRangeProof(10, blind)
	require.NoError(t, err)

	other, err := Commit(11, RandomSecret())
	require.NoError(t, err)

	require.Error(t, VerifyRangeProof(other, proof))
}

func TestRangeProofRejectsTamperedBit(t *testing.T) {
	blind := RandomSecret()
	value := uint64(5)
	commit, err := Commit(value, blind)
	require.NoError(t, err)

	proof, err := NewRangeProof(value, blind)
	require.NoError(t, err)

	tampered := append([]byte(nil), proof...)
	tampered[1] ^= 0xff // flip a byte inside the first bit's commitment
	require.Error(t, VerifyRangeProof(commit, RangeProof(tampered)))
}

func TestRangeProofZeroValue(t *testing.T) {
	blind := RandomSecret()
	commit, err := Commit(0, blind)
	require.NoError(t, err)

	proof, err := NewRangeProof(0, blind)
	require.NoError(t, err)

	require.NoError(t, VerifyRangeProof(commit, proof))
}
