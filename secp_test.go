package mwixnet

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCommitRoundTripsExcessAndValue(t *testing.T) {
	blind := RandomSecret()
	commit, err := Commit(200_000_000, blind)
	require.NoError(t, err)

	excess := RandomSecret()
	withExcess, err := AddExcess(commit, excess)
	require.NoError(t, err)

	withoutFee, err := SubValue(withExcess, 50_000_000)
	require.NoError(t, err)

	blindScalar, err := blind.scalar()
	require.NoError(t, err)
	excessScalar, err := excess.scalar()
	require.NoError(t, err)
	blindScalar.Add(excessScalar)
	want, err := Commit(150_000_000, scalarToSecretKey(blindScalar))
	require.NoError(t, err)

	require.Equal(t, want, withoutFee)
}

func TestCommitSumCancelsMatchedValues(t *testing.T) {
	b1, b2 := RandomSecret(), RandomSecret()
	c1, err := Commit(1000, b1)
	require.NoError(t, err)
	c2, err := Commit(1000, b2)
	require.NoError(t, err)

	sum, err := CommitSum([]Commitment{c1}, []Commitment{c2})
	require.NoError(t, err)

	b1Scalar, err := b1.scalar()
	require.NoError(t, err)
	b2Scalar, err := b2.scalar()
	require.NoError(t, err)
	b2Scalar.Negate()
	b1Scalar.Add(b2Scalar)
	want, err := Commit(0, scalarToSecretKey(b1Scalar))
	require.NoError(t, err)

	require.Equal(t, want, sum)
}

func TestECDHIsSymmetric(t *testing.T) {
	alicePriv := RandomSecret()
	bobPriv := RandomSecret()

	alicePub := alicePriv.PubKey()
	bobPub := bobPriv.PubKey()

	s1, err := ECDH(bobPub, alicePriv)
	require.NoError(t, err)
	s2, err := ECDH(alicePub, bobPriv)
	require.NoError(t, err)

	require.Equal(t, s1, s2)
}

func TestMulAssignIsAssociative(t *testing.T) {
	base := RandomSecret().PubKey()
	a := RandomSecret()
	b := RandomSecret()

	viaA, err := MulAssign(base, a)
	require.NoError(t, err)
	viaAB, err := MulAssign(viaA, b)
	require.NoError(t, err)

	aScalar, err := a.scalar()
	require.NoError(t, err)
	bScalar, err := b.scalar()
	require.NoError(t, err)
	aScalar.Mul(bScalar)
	viaProduct, err := MulAssign(base, scalarToSecretKey(aScalar))
	require.NoError(t, err)

	require.Equal(t, viaProduct, viaAB)
}

func TestCommitmentJSONRoundTrip(t *testing.T) {
	commit, err := Commit(42, RandomSecret())
	require.NoError(t, err)

	data, err := commit.MarshalJSON()
	require.NoError(t, err)

	var decoded Commitment
	require.NoError(t, decoded.UnmarshalJSON(data))
	require.Equal(t, commit, decoded)
}

func TestSecretKeyYAMLRoundTrip(t *testing.T) {
	sk := RandomSecret()
	node, err := sk.MarshalYAML()
	require.NoError(t, err)
	require.IsType(t, "", node)

	data, err := yaml.Marshal(sk)
	require.NoError(t, err)
	var decoded SecretKey
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	require.Equal(t, sk, decoded)
}
