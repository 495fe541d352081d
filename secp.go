package mwixnet

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20"
	"gopkg.in/yaml.v3"
)

const (
	// SecretKeySize is the byte width of a scalar in the secp256k1 field.
	SecretKeySize = 32
	// PublicKeySize is the byte width of a compressed curve point.
	PublicKeySize = 33
	// CommitmentSize is the byte width of a Pedersen commitment.
	CommitmentSize = 33
	// SharedSecretSize is the byte width of an ECDH shared secret.
	SharedSecretSize = 32
	// MaxRangeProofSize is the nominal byte width of a real bulletproof
	// rangeproof over a 64-bit range. The bit-commitment proof this module
	// builds in place of one (see rangeproof.go) is not logarithmic in the
	// bit width and runs larger; it is not bounded by this constant.
	MaxRangeProofSize = 675
)

// SecretKey is a 32-byte scalar in the secp256k1 field.
type SecretKey [SecretKeySize]byte

// PublicKey is a compressed secp256k1 curve point.
type PublicKey [PublicKeySize]byte

// Commitment is a 33-byte Pedersen commitment v*H + r*G.
type Commitment [CommitmentSize]byte

// SharedSecret is the 32-byte output of an ECDH exchange.
type SharedSecret [SharedSecretSize]byte

// ErrInvalidSecretKey is returned when a scalar is zero or overflows the
// curve order.
var ErrInvalidSecretKey = errors.New("secret key is zero or out of range")

// hGenerator is the second Pedersen generator, derived once via
// hash-to-curve so no party knows its discrete log relative to G.
var hGenerator = deriveGeneratorH()

// deriveGeneratorH finds a curve point with unknown discrete log by hashing
// an ASCII domain-separation string with an incrementing counter until the
// result parses as a valid compressed point. This is the same
// nothing-up-my-sleeve technique secp256k1-zkp uses for its default second
// generator; it stands in for that library's hardcoded constant since this
// module doesn't vendor it.
func deriveGeneratorH() *secp256k1.PublicKey {
	for i := uint32(0); ; i++ {
		h := sha256.New()
		h.Write([]byte("mwixnet/pedersen/H"))
		h.Write(encodeUint32(i))
		sum := h.Sum(nil)

		candidate := make([]byte, 33)
		candidate[0] = 0x02
		copy(candidate[1:], sum)

		pub, err := secp256k1.ParsePubKey(candidate)
		if err == nil {
			return pub
		}
	}
}

func encodeUint32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// toScalar reduces raw bytes mod the curve order. Zero is a valid scalar
// here (it's the identity element under scalar multiplication); callers
// that specifically need a non-zero, non-overflowing scalar (the onion
// blinding factor) use toNonZeroScalar instead.
func toScalar(b []byte) (*secp256k1.ModNScalar, error) {
	var s secp256k1.ModNScalar
	s.SetByteSlice(b)
	return &s, nil
}

// toNonZeroScalar validates and converts raw bytes into a curve scalar,
// rejecting zero and overflowing values so callers can surface
// blinding-factor derivation, which reports CalcBlindError on failure).
func toNonZeroScalar(b []byte) (*secp256k1.ModNScalar, error) {
	var s secp256k1.ModNScalar
	overflow := s.SetByteSlice(b)
	if overflow || s.IsZero() {
		return nil, ErrInvalidSecretKey
	}
	return &s, nil
}

func scalarToSecretKey(s *secp256k1.ModNScalar) SecretKey {
	var out SecretKey
	b := s.Bytes()
	copy(out[:], b[:])
	return out
}

func (sk SecretKey) scalar() (*secp256k1.ModNScalar, error) {
	return toScalar(sk[:])
}

// NonZeroScalar validates sk as a non-zero, non-overflowing curve scalar.
func (sk SecretKey) NonZeroScalar() (*secp256k1.ModNScalar, error) {
	return toNonZeroScalar(sk[:])
}

func (sk SecretKey) privateKey() *secp256k1.PrivateKey {
	return secp256k1.PrivKeyFromBytes(sk[:])
}

// PubKey derives the public key for this secret, i.e. sk*G.
func (sk SecretKey) PubKey() PublicKey {
	var out PublicKey
	copy(out[:], sk.privateKey().PubKey().SerializeCompressed())
	return out
}

func (pk PublicKey) parse() (*secp256k1.PublicKey, error) {
	return secp256k1.ParsePubKey(pk[:])
}

func (c Commitment) point() (*secp256k1.PublicKey, error) {
	// A Pedersen commitment and a public key share the same compressed
	// point encoding; only the generator basis differs semantically.
	return secp256k1.ParsePubKey(c[:])
}

func pointToCommitment(p *secp256k1.PublicKey) Commitment {
	var out Commitment
	copy(out[:], p.SerializeCompressed())
	return out
}

func pointToPublicKey(p *secp256k1.PublicKey) PublicKey {
	var out PublicKey
	copy(out[:], p.SerializeCompressed())
	return out
}

func jacobianToPoint(j *secp256k1.JacobianPoint) *secp256k1.PublicKey {
	j.ToAffine()
	return secp256k1.NewPublicKey(&j.X, &j.Y)
}

// RandomSecret returns a fresh uniformly-random scalar.
func RandomSecret() SecretKey {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		// entropy failure; secp256k1.GeneratePrivateKey only errs if the
		// system CSPRNG is broken, which this module cannot recover from.
		panic(err)
	}
	var out SecretKey
	b := priv.Key.Bytes()
	copy(out[:], b[:])
	return out
}

// MarshalJSON encodes a Commitment as lowercase hex.
func (c Commitment) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(c[:]))
}

// UnmarshalJSON decodes a Commitment from lowercase hex.
func (c *Commitment) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != CommitmentSize {
		return errors.New("commitment: bad hex")
	}
	copy(c[:], b)
	return nil
}

// MarshalJSON encodes a PublicKey as lowercase hex.
func (pk PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(pk[:]))
}

// UnmarshalJSON decodes a PublicKey from lowercase hex.
func (pk *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != PublicKeySize {
		return errors.New("publickey: bad hex")
	}
	copy(pk[:], b)
	return nil
}

// MarshalJSON encodes a RangeProof as lowercase hex.
func (p RangeProof) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(p))
}

// UnmarshalJSON decodes a RangeProof from lowercase hex.
func (p *RangeProof) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return errors.New("rangeproof: bad hex")
	}
	*p = b
	return nil
}

// MarshalJSON encodes a SecretKey as lowercase hex.
func (sk SecretKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(sk[:]))
}

// UnmarshalJSON decodes a SecretKey from lowercase hex.
func (sk *SecretKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != SecretKeySize {
		return errors.New("secretkey: bad hex")
	}
	copy(sk[:], b)
	return nil
}

// MarshalYAML encodes a SecretKey as lowercase hex, so config files carry
// the mix key as a plain string rather than a YAML byte-array literal.
func (sk SecretKey) MarshalYAML() (interface{}, error) {
	return hex.EncodeToString(sk[:]), nil
}

// UnmarshalYAML decodes a SecretKey from lowercase hex.
func (sk *SecretKey) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != SecretKeySize {
		return errors.New("secretkey: bad hex")
	}
	copy(sk[:], b)
	return nil
}

// Commit builds a Pedersen commitment v*H + r*G.
func Commit(value uint64, blind SecretKey) (Commitment, error) {
	rScalar, err := blind.scalar()
	if err != nil {
		return Commitment{}, err
	}

	var vH, rG, sum secp256k1.JacobianPoint
	valueScalar := scalarFromUint64(value)
	secp256k1.ScalarMultNonConst(&valueScalar, hGeneratorJacobian(), &vH)
	secp256k1.ScalarBaseMultNonConst(rScalar, &rG)
	secp256k1.AddNonConst(&vH, &rG, &sum)

	return pointToCommitment(jacobianToPoint(&sum)), nil
}

// CommitBlind builds k1*H + k2*G, the nonce commitment used by ComSigScheme.
func CommitBlind(k1, k2 SecretKey) (Commitment, error) {
	s1, err := k1.scalar()
	if err != nil {
		return Commitment{}, err
	}
	s2, err := k2.scalar()
	if err != nil {
		return Commitment{}, err
	}

	var t1, t2, sum secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(s1, hGeneratorJacobian(), &t1)
	secp256k1.ScalarBaseMultNonConst(s2, &t2)
	secp256k1.AddNonConst(&t1, &t2, &sum)

	return pointToCommitment(jacobianToPoint(&sum)), nil
}

// AddExcess adds a commitment-to-zero with blinding excess to c, producing
// c + excess*G. The value component is unchanged.
func AddExcess(c Commitment, excess SecretKey) (Commitment, error) {
	cPoint, err := c.point()
	if err != nil {
		return Commitment{}, errors.Wrap(err, "parse commitment")
	}
	excessCommit, err := Commit(0, excess)
	if err != nil {
		return Commitment{}, err
	}
	excessPoint, err := excessCommit.point()
	if err != nil {
		return Commitment{}, err
	}

	var cJac, eJac, sum secp256k1.JacobianPoint
	cPoint.AsJacobian(&cJac)
	excessPoint.AsJacobian(&eJac)
	secp256k1.AddNonConst(&cJac, &eJac, &sum)

	return pointToCommitment(jacobianToPoint(&sum)), nil
}

// SubValue subtracts value*H from c by summing c with the negation of
// commit(value, 0).
func SubValue(c Commitment, value uint64) (Commitment, error) {
	cPoint, err := c.point()
	if err != nil {
		return Commitment{}, errors.Wrap(err, "parse commitment")
	}
	negCommit, err := Commit(value, SecretKey{})
	if err != nil {
		return Commitment{}, err
	}
	negPoint, err := negCommit.point()
	if err != nil {
		return Commitment{}, err
	}

	var cJac, nJac, negJac, sum secp256k1.JacobianPoint
	cPoint.AsJacobian(&cJac)
	negPoint.AsJacobian(&nJac)
	negateJacobian(&nJac, &negJac)
	secp256k1.AddNonConst(&cJac, &negJac, &sum)

	return pointToCommitment(jacobianToPoint(&sum)), nil
}

// CommitSum sums positive commitments and subtracts negative ones, mirroring
// secp256k1-zkp's commit_sum(positive, negative).
func CommitSum(positive, negative []Commitment) (Commitment, error) {
	var acc secp256k1.JacobianPoint
	first := true

	add := func(c Commitment, negate bool) error {
		p, err := c.point()
		if err != nil {
			return errors.Wrap(err, "parse commitment")
		}
		var jac, signed secp256k1.JacobianPoint
		p.AsJacobian(&jac)
		if negate {
			negateJacobian(&jac, &signed)
		} else {
			signed = jac
		}
		if first {
			acc = signed
			first = false
			return nil
		}
		var sum secp256k1.JacobianPoint
		secp256k1.AddNonConst(&acc, &signed, &sum)
		acc = sum
		return nil
	}

	for _, c := range positive {
		if err := add(c, false); err != nil {
			return Commitment{}, err
		}
	}
	for _, c := range negative {
		if err := add(c, true); err != nil {
			return Commitment{}, err
		}
	}
	if first {
		return Commitment{}, errors.New("commit_sum: no commitments supplied")
	}

	return pointToCommitment(jacobianToPoint(&acc)), nil
}

// MulAssign scalar-multiplies pk by s, returning s*pk.
func MulAssign(pk PublicKey, s SecretKey) (PublicKey, error) {
	p, err := pk.parse()
	if err != nil {
		return PublicKey{}, errors.Wrap(err, "parse public key")
	}
	scalar, err := s.scalar()
	if err != nil {
		return PublicKey{}, err
	}

	var jac, result secp256k1.JacobianPoint
	p.AsJacobian(&jac)
	secp256k1.ScalarMultNonConst(scalar, &jac, &result)

	return pointToPublicKey(jacobianToPoint(&result)), nil
}

// ECDH computes the shared secret between pub and priv as
// SHA256(compressed(priv*pub)).
func ECDH(pub PublicKey, priv SecretKey) (SharedSecret, error) {
	p, err := pub.parse()
	if err != nil {
		return SharedSecret{}, errors.Wrap(err, "parse public key")
	}
	scalar, err := priv.scalar()
	if err != nil {
		return SharedSecret{}, err
	}

	var pointJac, resultJac secp256k1.JacobianPoint
	p.AsJacobian(&pointJac)
	secp256k1.ScalarMultNonConst(scalar, &pointJac, &resultJac)

	shared := sha256.Sum256(jacobianToPoint(&resultJac).SerializeCompressed())
	return SharedSecret(shared), nil
}

// Blake2b256 hashes the concatenation of parts with Blake2b-256, used for
// the ComSig challenge.
func Blake2b256(parts ...[]byte) [32]byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// sha256Hash hashes the concatenation of parts with plain SHA-256, used for
// the onion's per-layer blinding factor.
func sha256Hash(parts ...[]byte) [32]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HmacSHA256 computes HMAC-SHA256(key, msg).
func HmacSHA256(key, msg []byte) [32]byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// NewChaCha20 builds a ChaCha20 keystream cipher from a 32-byte key and a
// 12-byte nonce.
func NewChaCha20(key [32]byte, nonce [12]byte) (*chacha20.Cipher, error) {
	return chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
}

func negateJacobian(in, out *secp256k1.JacobianPoint) {
	out.X.Set(&in.X)
	out.Y.Set(&in.Y).Negate(1).Normalize()
	out.Z.Set(&in.Z)
}

func scalarFromUint64(v uint64) secp256k1.ModNScalar {
	var buf [32]byte
	binary.BigEndian.PutUint64(buf[24:], v)
	var s secp256k1.ModNScalar
	s.SetByteSlice(buf[:])
	return s
}

var hGeneratorPoint *secp256k1.JacobianPoint

func hGeneratorJacobian() *secp256k1.JacobianPoint {
	if hGeneratorPoint == nil {
		var jac secp256k1.JacobianPoint
		hGenerator.AsJacobian(&jac)
		hGeneratorPoint = &jac
	}
	return hGeneratorPoint
}
