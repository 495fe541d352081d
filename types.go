package mwixnet

import "golang.org/x/crypto/blake2b"

// HashSize is the byte width of a Hash.
const HashSize = 32

// Hash identifies a kernel or block the same way grin_core's Hash does:
// Blake2b-256 over a binary encoding.
type Hash [HashSize]byte

// HashOf Blake2b-256 hashes the given binary-encoded bytes.
func HashOf(b []byte) Hash {
	return Hash(blake2b.Sum256(b))
}

// OutputFeatures distinguishes plain outputs from coinbase outputs, mirroring
// grin_core::core::OutputFeatures. Coinbase outputs never originate from this
// server; the tag exists so Input/Output round-trip the chain's wire format.
type OutputFeatures uint8

const (
	OutputPlain    OutputFeatures = 0
	OutputCoinbase OutputFeatures = 1
)

// Input is a transaction input: the features and commitment of the output
// being spent.
type Input struct {
	Features OutputFeatures `json:"features"`
	Commit   Commitment     `json:"commit"`
}

// Output is a transaction output: its features, commitment and rangeproof.
type Output struct {
	Features OutputFeatures `json:"features"`
	Commit   Commitment     `json:"commit"`
	Proof    RangeProof     `json:"proof"`
}

// Kernel is the signed aggregate object identifying a transaction's excess
// and fee on chain.
type Kernel struct {
	Excess Commitment `json:"excess"`
	Fee    uint64     `json:"fee"`
}

// Hash returns the kernel's identity hash over its binary encoding.
func (k Kernel) Hash() Hash {
	buf := make([]byte, 0, CommitmentSize+8)
	buf = append(buf, k.Excess[:]...)
	buf = appendUint64(buf, k.Fee)
	return HashOf(buf)
}

// Transaction is the aggregate object a round assembles and posts to the
// node: the spent inputs, the new outputs (including the wallet's own
// balancing output) and the kernel(s) completing it.
type Transaction struct {
	Inputs  []Input  `json:"inputs"`
	Outputs []Output `json:"outputs"`
	Kernels []Kernel `json:"kernels"`
	Fee     uint64   `json:"fee"`
}

func appendUint64(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v),
	)
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
