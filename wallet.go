package mwixnet

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

// Wallet is the wallet-owner client used to complete a round's aggregate
// transaction: it contributes a kernel-signing output and balances the
// kernel excess and fee against the swap inputs/outputs/excesses handed to
// it. Like Node, it is a capability contract with a live HTTP implementation
// and an in-memory mock for tests.
type Wallet interface {
	// AssembleTx builds a complete, balanced Transaction from the given
	// swap inputs, outputs and excesses, contributing its own balancing
	// output and kernel signature. feeBase is the chain's minimum
	// fee-per-weight; totalFee is the sum of the swap fees being spent.
	AssembleTx(ctx context.Context, inputs []Input, outputs []Output, feeBase uint64, totalFee uint64, excesses []SecretKey) (Transaction, error)
}

// MockWallet assembles a transaction entirely in-memory, using a fixed
// blinding factor for its own balancing output.
type MockWallet struct {
	ownBlind  SecretKey
	ownAmount uint64
}

// NewMockWallet returns a MockWallet that contributes ownAmount to every
// assembled transaction under blind ownBlind.
func NewMockWallet(ownBlind SecretKey, ownAmount uint64) *MockWallet {
	return &MockWallet{ownBlind: ownBlind, ownAmount: ownAmount}
}

func (w *MockWallet) AssembleTx(_ context.Context, inputs []Input, outputs []Output, _ uint64, totalFee uint64, excesses []SecretKey) (Transaction, error) {
	ownCommit, err := Commit(w.ownAmount, w.ownBlind)
	if err != nil {
		return Transaction{}, errors.Wrap(err, "wallet: own commitment")
	}
	ownProof, err := NewRangeProof(w.ownAmount, w.ownBlind)
	if err != nil {
		return Transaction{}, errors.Wrap(err, "wallet: own rangeproof")
	}

	allOutputs := append(append([]Output(nil), outputs...), Output{
		Features: OutputPlain,
		Commit:   ownCommit,
		Proof:    ownProof,
	})

	// excesses is accepted to match the interface callers expect (and what
	// a real wallet would cross-check), but the kernel excess below is
	// derived directly from the public commitments, which already reflect
	// every swap excess folded into the peeled output.
	_ = excesses

	outCommits := make([]Commitment, len(allOutputs))
	for i, o := range allOutputs {
		outCommits[i] = o.Commit
	}
	inCommits := make([]Commitment, len(inputs))
	for i, in := range inputs {
		inCommits[i] = in.Commit
	}

	// The kernel excess is sum(outputs) + fee*H - sum(inputs). The swap
	// value components cancel (each swap output's value plus its fee equals
	// its input's value), leaving their blinding-factor remainder. The
	// wallet's own output is not matched by any input, so its ownAmount*H
	// term is not cancelled and remains in the kernel excess.
	feeCommit, err := Commit(totalFee, SecretKey{})
	if err != nil {
		return Transaction{}, errors.Wrap(err, "wallet: fee commitment")
	}
	excessCommit, err := CommitSum(append(outCommits, feeCommit), inCommits)
	if err != nil {
		return Transaction{}, errors.Wrap(err, "wallet: kernel excess")
	}
	kernel := Kernel{Excess: excessCommit, Fee: totalFee}

	return Transaction{
		Inputs:  inputs,
		Outputs: allOutputs,
		Kernels: []Kernel{kernel},
		Fee:     totalFee,
	}, nil
}

// HTTPWallet is a Wallet backed by a wallet owner's JSON HTTP API.
type HTTPWallet struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPWallet builds an HTTPWallet targeting baseURL, using
// http.DefaultClient if client is nil.
func NewHTTPWallet(baseURL string, client *http.Client) *HTTPWallet {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPWallet{BaseURL: baseURL, Client: client}
}

type assembleTxRequest struct {
	Inputs   []Input  `json:"inputs"`
	Outputs  []Output `json:"outputs"`
	FeeBase  uint64   `json:"fee_base"`
	TotalFee uint64   `json:"total_fee"`
	Excesses []string `json:"excesses"`
}

func (w *HTTPWallet) AssembleTx(ctx context.Context, inputs []Input, outputs []Output, feeBase uint64, totalFee uint64, excesses []SecretKey) (Transaction, error) {
	hexExcesses := make([]string, len(excesses))
	for i, e := range excesses {
		hexExcesses[i] = hex.EncodeToString(e[:])
	}

	body, err := json.Marshal(assembleTxRequest{
		Inputs:   inputs,
		Outputs:  outputs,
		FeeBase:  feeBase,
		TotalFee: totalFee,
		Excesses: hexExcesses,
	})
	if err != nil {
		return Transaction{}, errors.Wrap(err, "wallet: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.BaseURL+"/v2/owner/assemble_tx", bytes.NewReader(body))
	if err != nil {
		return Transaction{}, errors.Wrap(err, "wallet: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return Transaction{}, errors.Wrap(err, "wallet: request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Transaction{}, errors.Errorf("wallet: assemble_tx returned status %d", resp.StatusCode)
	}

	var tx Transaction
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return Transaction{}, errors.Wrap(err, "wallet: decode response")
	}
	return tx, nil
}
