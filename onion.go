package mwixnet

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"
)

// mwixnetStreamLabel is the HMAC key used to derive a hop's ChaCha20 stream
// key from its ECDH shared secret.
var mwixnetStreamLabel = []byte("MWIXNET")

// onionNonce is the fixed ChaCha20 nonce used for every hop's stream.
// Security rests on ephemeral keys being fresh per session, not on the
// nonce; it is intentionally constant.
var onionNonce = [12]byte{'N', 'O', 'N', 'C', 'E', '1', '2', '3', '4', '5', '6', '7'}

// OnionErrorKind discriminates the ways peeling or (de)serializing an onion
// can fail.
type OnionErrorKind int

const (
	InvalidKeyLength OnionErrorKind = iota
	SerializationError
	DeserializationError
	CalcBlindError
	CalcPubKeyError
	CalcCommitError
)

func (k OnionErrorKind) String() string {
	switch k {
	case InvalidKeyLength:
		return "InvalidKeyLength"
	case SerializationError:
		return "SerializationError"
	case DeserializationError:
		return "DeserializationError"
	case CalcBlindError:
		return "CalcBlindError"
	case CalcPubKeyError:
		return "CalcPubKeyError"
	case CalcCommitError:
		return "CalcCommitError"
	default:
		return "UnknownOnionError"
	}
}

// OnionError wraps a peel/construct failure with the step that produced it.
type OnionError struct {
	Kind  OnionErrorKind
	Cause error
}

func (e *OnionError) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Cause.Error()
	}
	return e.Kind.String()
}

func (e *OnionError) Unwrap() error { return e.Cause }

func onionErr(kind OnionErrorKind, cause error) *OnionError {
	return &OnionError{Kind: kind, Cause: cause}
}

// Onion is one layer of the mix's onion packet: a re-blindable ephemeral
// public key, the commitment the hops mutate layer by layer, and the
// remaining hops' encrypted payloads, element 0 targeting the current hop.
type Onion struct {
	EphemeralPubkey PublicKey
	Commit          Commitment
	EncPayloads     [][]byte
}

// Serialize encodes an Onion as ephemeral_pubkey(33B) || commit(33B) ||
// len(enc_payloads) as u64 || per payload: u64 length then raw bytes.
func (o Onion) Serialize() ([]byte, error) {
	buf := make([]byte, 0, PublicKeySize+CommitmentSize+8)
	buf = append(buf, o.EphemeralPubkey[:]...)
	buf = append(buf, o.Commit[:]...)
	buf = appendUint64(buf, uint64(len(o.EncPayloads)))
	for _, p := range o.EncPayloads {
		buf = appendUint64(buf, uint64(len(p)))
		buf = append(buf, p...)
	}
	return buf, nil
}

// DeserializeOnion decodes the layout Serialize produces.
func DeserializeOnion(b []byte) (Onion, error) {
	const headerSize = PublicKeySize + CommitmentSize + 8
	if len(b) < headerSize {
		return Onion{}, onionErr(DeserializationError, errors.New("onion: truncated header"))
	}

	var o Onion
	copy(o.EphemeralPubkey[:], b[0:PublicKeySize])
	offset := PublicKeySize
	copy(o.Commit[:], b[offset:offset+CommitmentSize])
	offset += CommitmentSize

	count := binary.BigEndian.Uint64(b[offset : offset+8])
	offset += 8

	if count > 0 {
		o.EncPayloads = make([][]byte, 0, count)
	}
	for i := uint64(0); i < count; i++ {
		if len(b)-offset < 8 {
			return Onion{}, onionErr(DeserializationError, errors.New("onion: truncated payload length"))
		}
		plen := binary.BigEndian.Uint64(b[offset : offset+8])
		offset += 8
		if uint64(len(b)-offset) < plen {
			return Onion{}, onionErr(DeserializationError, errors.New("onion: truncated payload"))
		}
		payload := append([]byte(nil), b[offset:offset+int(plen)]...)
		offset += int(plen)
		o.EncPayloads = append(o.EncPayloads, payload)
	}
	if offset != len(b) {
		return Onion{}, onionErr(DeserializationError, errors.New("onion: trailing bytes"))
	}

	return o, nil
}

// onionJSON is the RPC-boundary encoding: {pubkey, commit, data} with
// pubkey/commit as lowercase hex and data as an array of hex strings.
type onionJSON struct {
	Pubkey string   `json:"pubkey"`
	Commit string   `json:"commit"`
	Data   []string `json:"data"`
}

func (o Onion) MarshalJSON() ([]byte, error) {
	data := make([]string, len(o.EncPayloads))
	for i, p := range o.EncPayloads {
		data[i] = hex.EncodeToString(p)
	}
	return json.Marshal(onionJSON{
		Pubkey: hex.EncodeToString(o.EphemeralPubkey[:]),
		Commit: hex.EncodeToString(o.Commit[:]),
		Data:   data,
	})
}

func (o *Onion) UnmarshalJSON(b []byte) error {
	var raw onionJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	pub, err := hex.DecodeString(raw.Pubkey)
	if err != nil || len(pub) != PublicKeySize {
		return onionErr(DeserializationError, errors.New("onion: bad pubkey hex"))
	}
	commit, err := hex.DecodeString(raw.Commit)
	if err != nil || len(commit) != CommitmentSize {
		return onionErr(DeserializationError, errors.New("onion: bad commit hex"))
	}

	payloads := make([][]byte, len(raw.Data))
	for i, d := range raw.Data {
		p, err := hex.DecodeString(d)
		if err != nil {
			return onionErr(DeserializationError, errors.New("onion: bad payload hex"))
		}
		payloads[i] = p
	}

	copy(o.EphemeralPubkey[:], pub)
	copy(o.Commit[:], commit)
	o.EncPayloads = payloads
	return nil
}

// streamKey derives a hop's ChaCha20 key from its ECDH shared secret:
// HMAC-SHA256(key="MWIXNET", msg=S[0..32]).
func streamKey(shared SharedSecret) [32]byte {
	return HmacSHA256(mwixnetStreamLabel, shared[:])
}

// blindingFactor computes b = SHA-256(serialize(ephemeralPubkey) || S[0..32])
// as a non-zero in-range secp256k1 scalar.
func blindingFactor(ephemeral PublicKey, shared SharedSecret) (SecretKey, error) {
	h := sha256Hash(ephemeral[:], shared[:])
	s, err := toNonZeroScalar(h[:])
	if err != nil {
		return SecretKey{}, err
	}
	return scalarToSecretKey(s), nil
}

// PeelLayer processes the outermost layer of o with this hop's secret key,
// returning the decrypted Payload for this hop and the Onion to pass along
// (or to persist, on the final hop).
func PeelLayer(o Onion, key SecretKey) (Payload, Onion, error) {
	if len(o.EncPayloads) == 0 {
		return Payload{}, Onion{}, onionErr(DeserializationError, errors.New("onion: no payloads to peel"))
	}

	shared, err := ECDH(o.EphemeralPubkey, key)
	if err != nil {
		return Payload{}, Onion{}, onionErr(CalcCommitError, err)
	}

	cipher, err := NewChaCha20(streamKey(shared), onionNonce)
	if err != nil {
		return Payload{}, Onion{}, onionErr(InvalidKeyLength, err)
	}

	decrypted := make([]byte, len(o.EncPayloads[0]))
	cipher.XORKeyStream(decrypted, o.EncPayloads[0])

	payload, err := DeserializePayload(decrypted)
	if err != nil {
		return Payload{}, Onion{}, onionErr(DeserializationError, err)
	}

	tail := make([][]byte, len(o.EncPayloads)-1)
	for i := 1; i < len(o.EncPayloads); i++ {
		rewritten := make([]byte, len(o.EncPayloads[i]))
		cipher.XORKeyStream(rewritten, o.EncPayloads[i])
		tail[i-1] = rewritten
	}

	blind, err := blindingFactor(o.EphemeralPubkey, shared)
	if err != nil {
		return Payload{}, Onion{}, onionErr(CalcBlindError, err)
	}

	newPubkey, err := MulAssign(o.EphemeralPubkey, blind)
	if err != nil {
		return Payload{}, Onion{}, onionErr(CalcPubKeyError, err)
	}

	withExcess, err := AddExcess(o.Commit, payload.Excess)
	if err != nil {
		return Payload{}, Onion{}, onionErr(CalcCommitError, err)
	}
	newCommit, err := SubValue(withExcess, payload.Fee)
	if err != nil {
		return Payload{}, Onion{}, onionErr(CalcCommitError, err)
	}

	return payload, Onion{
		EphemeralPubkey: newPubkey,
		Commit:          newCommit,
		EncPayloads:     tail,
	}, nil
}

// ConstructOnion builds an onion for the given hop public keys and payloads,
// matching PeelLayer's construction so test vectors can build onions without
// a live sender. commit is the input commitment the first hop will see.
func ConstructOnion(commit Commitment, session SecretKey, hops []PublicKey, payloads []Payload) (Onion, error) {
	if len(hops) == 0 || len(hops) != len(payloads) {
		return Onion{}, onionErr(SerializationError, errors.New("onion: hops and payloads length mismatch"))
	}

	sharedSecrets := make([]SharedSecret, len(hops))
	ephemeralKeys := make([]PublicKey, len(hops))

	x := session
	for i, hop := range hops {
		s, err := ECDH(hop, x)
		if err != nil {
			return Onion{}, onionErr(CalcCommitError, err)
		}
		sharedSecrets[i] = s
		ephemeralKeys[i] = x.PubKey()

		b, err := blindingFactor(ephemeralKeys[i], s)
		if err != nil {
			return Onion{}, onionErr(CalcBlindError, err)
		}
		nextScalar, err := x.scalar()
		if err != nil {
			return Onion{}, err
		}
		bScalar, err := b.scalar()
		if err != nil {
			return Onion{}, err
		}
		nextScalar.Mul(bScalar)
		x = scalarToSecretKey(nextScalar)
	}

	serialized := make([][]byte, len(payloads))
	for i, p := range payloads {
		s, err := p.Serialize()
		if err != nil {
			return Onion{}, onionErr(SerializationError, err)
		}
		serialized[i] = s
	}

	for i := len(hops) - 1; i >= 0; i-- {
		cipher, err := NewChaCha20(streamKey(sharedSecrets[i]), onionNonce)
		if err != nil {
			return Onion{}, onionErr(InvalidKeyLength, err)
		}
		for j := i; j < len(serialized); j++ {
			out := make([]byte, len(serialized[j]))
			cipher.XORKeyStream(out, serialized[j])
			serialized[j] = out
		}
	}

	return Onion{
		EphemeralPubkey: ephemeralKeys[0],
		Commit:          commit,
		EncPayloads:     serialized,
	}, nil
}
