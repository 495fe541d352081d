package mwixnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComSigSignAndVerify(t *testing.T) {
	blind := RandomSecret()
	amount := uint64(123_456)
	commit, err := Commit(amount, blind)
	require.NoError(t, err)

	msg := []byte("onion bytes go here")
	sig, err := SignComSig(amount, blind, msg)
	require.NoError(t, err)

	require.NoError(t, sig.Verify(commit, msg))
}

func TestComSigRejectsWrongMessage(t *testing.T) {
	blind := RandomSecret()
	amount := uint64(7)
	commit, err := Commit(amount, blind)
	require.NoError(t, err)

	sig, err := SignComSig(amount, blind, []byte("original"))
	require.NoError(t, err)

	err = sig.Verify(commit, []byte("tampered"))
	require.ErrorIs(t, err, ErrInvalidSig)
}

func TestComSigRejectsWrongCommitment(t *testing.T) {
	blind := RandomSecret()
	msg := []byte("m")
	sig, err := SignComSig(10, blind, msg)
	require.NoError(t, err)

	other, err := Commit(11, RandomSecret())
	require.NoError(t, err)

	err = sig.Verify(other, msg)
	require.ErrorIs(t, err, ErrInvalidSig)
}

func TestComSigSerializeRoundTrip(t *testing.T) {
	sig, err := SignComSig(1, RandomSecret(), []byte("x"))
	require.NoError(t, err)

	decoded, err := DeserializeComSig(sig.Serialize())
	require.NoError(t, err)
	require.Equal(t, sig, decoded)
}

func TestComSigJSONRoundTrip(t *testing.T) {
	sig, err := SignComSig(1, RandomSecret(), []byte("x"))
	require.NoError(t, err)

	data, err := sig.MarshalJSON()
	require.NoError(t, err)

	var decoded ComSignature
	require.NoError(t, decoded.UnmarshalJSON(data))
	require.Equal(t, sig, decoded)
}
