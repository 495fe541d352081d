package mwixnet

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// defaultAcceptFeeBase is the minimum nanogrin-per-weight fee this server
// accepts, mirroring grin's DEFAULT_ACCEPT_FEE_BASE.
const defaultAcceptFeeBase = 500_000

// weightByIOK computes a transaction's fee-weight from its input, output and
// kernel counts. This module doesn't vendor grin_core's weight table, so it
// reproduces just the (1,1,1) case the core swap path needs: outputs carry a
// rangeproof and so weigh the most, kernels carry a signature and weigh
// less, inputs are cheap.
func weightByIOK(numInputs, numOutputs, numKernels int) uint64 {
	const inputWeight, outputWeight, kernelWeight = 1, 21, 3
	w := int64(numInputs)*inputWeight + int64(numOutputs)*outputWeight + int64(numKernels)*kernelWeight
	if w < 1 {
		w = 1
	}
	return uint64(w)
}

// SwapErrorKind discriminates the ways swap admission can fail.
type SwapErrorKind int

const (
	InvalidPayloadLength SwapErrorKind = iota
	InvalidComSignature
	CoinNotFound
	PeelOnionFailure
	FeeTooLow
	MissingRangeproof
	InvalidRangeproof
	AlreadySwapped
	EngineStoreError
	UnknownError
)

func (k SwapErrorKind) String() string {
	switch k {
	case InvalidPayloadLength:
		return "InvalidPayloadLength"
	case InvalidComSignature:
		return "InvalidComSignature"
	case CoinNotFound:
		return "CoinNotFound"
	case PeelOnionFailure:
		return "PeelOnionFailure"
	case FeeTooLow:
		return "FeeTooLow"
	case MissingRangeproof:
		return "MissingRangeproof"
	case InvalidRangeproof:
		return "InvalidRangeproof"
	case AlreadySwapped:
		return "AlreadySwapped"
	case EngineStoreError:
		return "StoreError"
	default:
		return "UnknownError"
	}
}

// SwapError reports why swap() rejected a request, with whichever extra
// fields its kind carries.
type SwapError struct {
	Kind       SwapErrorKind
	Expected   int
	Found      int
	Commit     Commitment
	MinimumFee uint64
	ActualFee  uint64
	Cause      error
}

func (e *SwapError) Error() string {
	switch e.Kind {
	case InvalidPayloadLength:
		return fmt.Sprintf("InvalidPayloadLength: expected %d, found %d", e.Expected, e.Found)
	case FeeTooLow:
		return fmt.Sprintf("FeeTooLow: minimum %d, actual %d", e.MinimumFee, e.ActualFee)
	case CoinNotFound, AlreadySwapped:
		return e.Kind.String() + ": " + hex.EncodeToString(e.Commit[:])
	default:
		if e.Cause != nil {
			return e.Kind.String() + ": " + e.Cause.Error()
		}
		return e.Kind.String()
	}
}

func (e *SwapError) Unwrap() error { return e.Cause }

func swapErr(kind SwapErrorKind, cause error) *SwapError {
	return &SwapError{Kind: kind, Cause: cause}
}

// Server is the engine's external contract: admit a swap request, and run a
// round. Both are consumed by the RPC layer and the round scheduler
// respectively.
type Server interface {
	Swap(ctx context.Context, onion Onion, comsig ComSignature) error
	ExecuteRound(ctx context.Context) (*Transaction, error)
}

// ServerImpl is the concrete SwapEngine: it holds this node's secret key,
// the durable swap store, and the node/wallet collaborators it consults.
// All store access is serialized behind mu, including across the external
// I/O that execute_round performs while holding it — this is intentional,
// so no swap can slip into a round after candidate selection but
// before status updates.
type ServerImpl struct {
	mu      sync.Mutex
	key     SecretKey
	feeBase uint64
	store   *SwapStore
	node    Node
	wallet  Wallet
}

// NewServerImpl builds a ServerImpl with this mix node's secret key.
func NewServerImpl(key SecretKey, store *SwapStore, node Node, wallet Wallet) *ServerImpl {
	return &ServerImpl{key: key, feeBase: defaultAcceptFeeBase, store: store, node: node, wallet: wallet}
}

// Swap admits one swap request through a seven-step pipeline. The
// first failing step aborts without touching the store.
func (s *ServerImpl) Swap(ctx context.Context, onion Onion, comsig ComSignature) error {
	if len(onion.EncPayloads) != 1 {
		return swapErr(InvalidPayloadLength, nil).withLengths(1, len(onion.EncPayloads))
	}

	serialized, err := onion.Serialize()
	if err != nil {
		return swapErr(UnknownError, err)
	}
	if err := comsig.Verify(onion.Commit, serialized); err != nil {
		return swapErr(InvalidComSignature, err)
	}

	utxo, ok, err := s.node.GetUTXO(ctx, onion.Commit)
	if err != nil {
		return swapErr(UnknownError, err)
	}
	if !ok {
		return &SwapError{Kind: CoinNotFound, Commit: onion.Commit}
	}
	input := Input{Features: utxo.Features, Commit: onion.Commit}

	payload, peeled, err := PeelLayer(onion, s.key)
	if err != nil {
		return swapErr(PeelOnionFailure, err)
	}

	minimum := weightByIOK(1, 1, 1) * s.feeBase
	if payload.Fee < minimum {
		return &SwapError{Kind: FeeTooLow, MinimumFee: minimum, ActualFee: payload.Fee}
	}

	if payload.RangeProof == nil {
		return swapErr(MissingRangeproof, nil)
	}
	if err := VerifyRangeProof(peeled.Commit, *payload.RangeProof); err != nil {
		return swapErr(InvalidRangeproof, err)
	}

	record := SwapData{
		Excess:       payload.Excess,
		OutputCommit: peeled.Commit,
		RangeProof:   payload.RangeProof,
		Input:        input,
		Fee:          payload.Fee,
		Onion:        peeled,
		Status:       SwapStatus{Tag: StatusUnprocessed},
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SaveSwap(record, false); err != nil {
		var se *StoreError
		if errors.As(err, &se) && se.Kind == AlreadyExists {
			return &SwapError{Kind: AlreadySwapped, Commit: onion.Commit}
		}
		return swapErr(EngineStoreError, err)
	}
	return nil
}

// withLengths fills in the Expected/Found fields for InvalidPayloadLength,
// returning the receiver for a single-expression construction.
func (e *SwapError) withLengths(expected, found int) *SwapError {
	e.Expected = expected
	e.Found = found
	return e
}

// ExecuteRound aggregates every eligible swap into one transaction and
// posts it. It runs under mu for its entire duration, including
// the node/wallet I/O, so no admitted swap can be missed or double-counted.
func (s *ServerImpl) ExecuteRound(ctx context.Context) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	height, err := s.node.GetChainHeight(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "execute_round: chain height")
	}
	next := height + 1

	all, err := s.store.SwapsIter()
	if err != nil {
		return nil, errors.Wrap(err, "execute_round: list swaps")
	}

	seenOutputs := make(map[Commitment]bool)
	var candidates []SwapData
	for _, record := range all {
		// The output_commit slot is consumed by whichever record sorts
		// first in store key order, win or lose: if that record later
		// fails a filter below, the whole group sits out this round
		// rather than letting a later duplicate take its place.
		if seenOutputs[record.OutputCommit] {
			continue
		}
		seenOutputs[record.OutputCommit] = true

		if record.Status.Tag != StatusUnprocessed {
			continue
		}

		spendable, err := s.node.IsSpendable(ctx, record.Input.Commit, next)
		if err != nil {
			return nil, errors.Wrap(err, "execute_round: is_spendable")
		}
		if !spendable {
			continue
		}

		_, outputExists, err := s.node.GetUTXO(ctx, record.OutputCommit)
		if err != nil {
			return nil, errors.Wrap(err, "execute_round: get_utxo for output")
		}
		if outputExists {
			continue
		}

		candidates = append(candidates, record)
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	var totalFee uint64
	inputs := make([]Input, 0, len(candidates))
	outputs := make([]Output, 0, len(candidates))
	excesses := make([]SecretKey, 0, len(candidates))
	for _, c := range candidates {
		totalFee += c.Fee
		inputs = append(inputs, c.Input)
		proof := RangeProof(nil)
		if c.RangeProof != nil {
			proof = *c.RangeProof
		}
		outputs = append(outputs, Output{Features: OutputPlain, Commit: c.OutputCommit, Proof: proof})
		excesses = append(excesses, c.Excess)
	}

	tx, err := s.wallet.AssembleTx(ctx, inputs, outputs, s.feeBase, totalFee, excesses)
	if err != nil {
		return nil, errors.Wrap(err, "execute_round: assemble_tx")
	}

	if err := s.node.PostTx(ctx, tx); err != nil {
		return nil, errors.Wrap(err, "execute_round: post_tx")
	}

	if len(tx.Kernels) == 0 {
		return nil, errors.New("execute_round: assembled transaction has no kernel")
	}
	kernelHash := tx.Kernels[0].Hash()

	for _, c := range candidates {
		c.Status = SwapStatus{Tag: StatusInProcess, KernelHash: kernelHash}
		if err := s.store.SaveSwap(c, true); err != nil {
			// Inconsistency requiring operator attention: the transaction is
			// already posted but status updates did not all complete.
			return &tx, errors.Wrap(err, "execute_round: fatal: status update after post_tx")
		}
	}

	return &tx, nil
}
