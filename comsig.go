package mwixnet

import (
	"encoding/hex"
	"encoding/json"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"
)

// ErrInvalidSig is returned by ComSignature.Verify when the signature does
// not open the given commitment over the given message.
var ErrInvalidSig = errors.New("comsig: invalid signature")

// ComSignature is a generalized Schnorr signature that proves knowledge of
// the (value, blind) opening of a Pedersen commitment, without revealing
// either. It is the scheme behind the swap RPC's ownership proof: a swap
// request is accompanied by a ComSignature over the onion's own bytes,
// binding the request to whoever can open the input commitment.
type ComSignature struct {
	PubNonce Commitment
	S        SecretKey
	T        SecretKey
}

// SignComSig proves knowledge of (amount, blind) opening commit(amount,
// blind), binding the proof to msg.
func SignComSig(amount uint64, blind SecretKey, msg []byte) (ComSignature, error) {
	k1 := RandomSecret()
	k2 := RandomSecret()

	commit, err := Commit(amount, blind)
	if err != nil {
		return ComSignature{}, errors.Wrap(err, "comsig: commit")
	}
	nonce, err := CommitBlind(k1, k2)
	if err != nil {
		return ComSignature{}, errors.Wrap(err, "comsig: nonce commitment")
	}

	e := comSigChallenge(commit, nonce, msg)

	k1Scalar, err := k1.scalar()
	if err != nil {
		return ComSignature{}, err
	}
	k2Scalar, err := k2.scalar()
	if err != nil {
		return ComSignature{}, err
	}
	blindScalar, err := blind.scalar()
	if err != nil {
		return ComSignature{}, err
	}
	valueScalar := scalarFromUint64(amount)

	s := new(secp256k1.ModNScalar).Set(&e)
	s.Mul(&valueScalar)
	s.Add(k1Scalar)

	t := new(secp256k1.ModNScalar).Set(&e)
	t.Mul(blindScalar)
	t.Add(k2Scalar)

	return ComSignature{
		PubNonce: nonce,
		S:        scalarToSecretKey(s),
		T:        scalarToSecretKey(t),
	}, nil
}

// Verify checks sig against commit and msg, returning ErrInvalidSig if the
// signature does not open commit over msg.
func (sig ComSignature) Verify(commit Commitment, msg []byte) error {
	e := comSigChallenge(commit, sig.PubNonce, msg)

	s1, err := CommitBlind(sig.S, sig.T)
	if err != nil {
		return errors.Wrap(err, "comsig: recompute s*H+t*G")
	}

	ce, err := scalarMultCommitment(commit, &e)
	if err != nil {
		return errors.Wrap(err, "comsig: scale commitment by challenge")
	}
	s2, err := CommitSum([]Commitment{ce, sig.PubNonce}, nil)
	if err != nil {
		return errors.Wrap(err, "comsig: sum challenge commitment and nonce")
	}

	if s1 != s2 {
		return ErrInvalidSig
	}
	return nil
}

// comSigChallenge computes e = Blake2b-256(C || R || m) as a scalar.
func comSigChallenge(commit, nonce Commitment, msg []byte) secp256k1.ModNScalar {
	h := Blake2b256(commit[:], nonce[:], msg)
	s, _ := toScalar(h[:])
	return *s
}

// scalarMultCommitment scales a commitment's underlying curve point by s,
// treating the commitment as an ordinary point. Used to compute C*e in
// verification; the result is no longer a value/blind Pedersen commitment,
// just an intermediate curve point reusing the Commitment wire encoding.
func scalarMultCommitment(c Commitment, s *secp256k1.ModNScalar) (Commitment, error) {
	p, err := c.point()
	if err != nil {
		return Commitment{}, errors.Wrap(err, "parse commitment")
	}
	var jac, scaled secp256k1.JacobianPoint
	p.AsJacobian(&jac)
	secp256k1.ScalarMultNonConst(s, &jac, &scaled)
	return pointToCommitment(jacobianToPoint(&scaled)), nil
}

// Serialize encodes a ComSignature as pub_nonce(33B) || s(32B) || t(32B).
func (sig ComSignature) Serialize() []byte {
	buf := make([]byte, 0, CommitmentSize+2*SecretKeySize)
	buf = append(buf, sig.PubNonce[:]...)
	buf = append(buf, sig.S[:]...)
	buf = append(buf, sig.T[:]...)
	return buf
}

// DeserializeComSig decodes the layout Serialize produces.
func DeserializeComSig(b []byte) (ComSignature, error) {
	if len(b) != CommitmentSize+2*SecretKeySize {
		return ComSignature{}, errors.Errorf("comsig: expected %d bytes, got %d", CommitmentSize+2*SecretKeySize, len(b))
	}
	var sig ComSignature
	copy(sig.PubNonce[:], b[0:CommitmentSize])
	copy(sig.S[:], b[CommitmentSize:CommitmentSize+SecretKeySize])
	copy(sig.T[:], b[CommitmentSize+SecretKeySize:])
	return sig, nil
}

// MarshalJSON encodes a ComSignature as lowercase hex of its binary form.
func (sig ComSignature) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(sig.Serialize()))
}

// UnmarshalJSON decodes a ComSignature from lowercase hex of its binary form.
func (sig *ComSignature) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return errors.Wrap(err, "comsig: decode hex")
	}
	decoded, err := DeserializeComSig(b)
	if err != nil {
		return err
	}
	*sig = decoded
	return nil
}
