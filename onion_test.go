package mwixnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOnionRoundTripsSingleHop(t *testing.T) {
	hopKey := RandomSecret()
	hopPub := hopKey.PubKey()

	value := uint64(200_000_000)
	fee := uint64(50_000_000)
	blind := RandomSecret()
	hopExcess := RandomSecret()

	commit, err := Commit(value, blind)
	require.NoError(t, err)

	blindScalar, err := blind.scalar()
	require.NoError(t, err)
	excessScalar, err := hopExcess.scalar()
	require.NoError(t, err)
	blindScalar.Add(excessScalar)
	outBlind := scalarToSecretKey(blindScalar)

	proof, err := NewRangeProof(value-fee, outBlind)
	require.NoError(t, err)

	payload := Payload{Excess: hopExcess, Fee: fee, RangeProof: &proof}

	session := RandomSecret()
	onion, err := ConstructOnion(commit, session, []PublicKey{hopPub}, []Payload{payload})
	require.NoError(t, err)

	peeledPayload, peeledOnion, err := PeelLayer(onion, hopKey)
	require.NoError(t, err)

	require.Equal(t, hopExcess, peeledPayload.Excess)
	require.Equal(t, fee, peeledPayload.Fee)
	require.NotNil(t, peeledPayload.RangeProof)

	wantCommit, err := Commit(value-fee, outBlind)
	require.NoError(t, err)
	require.Equal(t, wantCommit, peeledOnion.Commit)
	require.Empty(t, peeledOnion.EncPayloads)

	require.NoError(t, VerifyRangeProof(peeledOnion.Commit, *peeledPayload.RangeProof))
}

func TestOnionSerializeDeserializeRoundTrip(t *testing.T) {
	onion := Onion{
		EphemeralPubkey: RandomSecret().PubKey(),
		Commit:          Commitment{1, 2, 3},
		EncPayloads:     [][]byte{{1, 2, 3}, {4, 5}},
	}
	onion.Commit[0] = 0x02

	encoded, err := onion.Serialize()
	require.NoError(t, err)

	decoded, err := DeserializeOnion(encoded)
	require.NoError(t, err)
	require.Equal(t, onion, decoded)
}

func TestOnionJSONRoundTrip(t *testing.T) {
	onion := Onion{
		EphemeralPubkey: RandomSecret().PubKey(),
		EncPayloads:     [][]byte{{9, 9, 9}},
	}
	commit, err := Commit(5, RandomSecret())
	require.NoError(t, err)
	onion.Commit = commit

	data, err := onion.MarshalJSON()
	require.NoError(t, err)

	var decoded Onion
	require.NoError(t, decoded.UnmarshalJSON(data))
	require.Equal(t, onion, decoded)
}

func TestPeelLayerRejectsEmptyOnion(t *testing.T) {
	_, _, err := PeelLayer(Onion{}, RandomSecret())
	require.Error(t, err)
	var oe *OnionError
	require.ErrorAs(t, err, &oe)
	require.Equal(t, DeserializationError, oe.Kind)
}
