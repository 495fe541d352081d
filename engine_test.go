package mwixnet

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildSwapRequest constructs a single-hop onion and its ComSig the way a
// real client would, returning everything the engine needs to admit it.
func buildSwapRequest(t *testing.T, serverKey SecretKey, value, fee uint64) (Onion, ComSignature, Commitment, SecretKey) {
	t.Helper()

	blind := RandomSecret()
	commit, err := Commit(value, blind)
	require.NoError(t, err)

	hopExcess := RandomSecret()
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
	hopPub := serverKey.PubKey()
	onion, err := ConstructOnion(commit, session, []PublicKey{hopPub}, []Payload{payload})
	require.NoError(t, err)

	serialized, err := onion.Serialize()
	require.NoError(t, err)
	comsig, err := SignComSig(value, blind, serialized)
	require.NoError(t, err)

	return onion, comsig, commit, outBlind
}

func newTestEngine(t *testing.T) (*ServerImpl, SecretKey, *MockNode, *MockWallet) {
	t.Helper()
	serverKey := RandomSecret()
	store := openTestStore(t)
	node := NewMockNode(100)
	wallet := NewMockWallet(RandomSecret(), 1_000_000)
	server := NewServerImpl(serverKey, store, node, wallet)
	return server, serverKey, node, wallet
}

func TestSwapHappyPath(t *testing.T) {
	server, serverKey, node, _ := newTestEngine(t)

	value := uint64(200_000_000)
	fee := uint64(50_000_000)
	onion, comsig, commit, _ := buildSwapRequest(t, serverKey, value, fee)
	node.AddUTXO(commit, OutputPlain, 10)

	err := server.Swap(context.Background(), onion, comsig)
	require.NoError(t, err)

	exists, err := server.store.SwapExists(commit)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestSwapRejectsMissingUTXO(t *testing.T) {
	server, serverKey, _, _ := newTestEngine(t)

	onion, comsig, _, _ := buildSwapRequest(t, serverKey, 200_000_000, 50_000_000)

	err := server.Swap(context.Background(), onion, comsig)
	require.Error(t, err)
	var se *SwapError
	require.ErrorAs(t, err, &se)
	require.Equal(t, CoinNotFound, se.Kind)
}

func TestSwapRejectsFeeTooLow(t *testing.T) {
	server, serverKey, node, _ := newTestEngine(t)

	value := uint64(200_000_000)
	fee := uint64(1_000_000)
	onion, comsig, commit, _ := buildSwapRequest(t, serverKey, value, fee)
	node.AddUTXO(commit, OutputPlain, 10)

	err := server.Swap(context.Background(), onion, comsig)
	require.Error(t, err)
	var se *SwapError
	require.ErrorAs(t, err, &se)
	require.Equal(t, FeeTooLow, se.Kind)
	require.Equal(t, uint64(12_500_000), se.MinimumFee)
	require.Equal(t, uint64(1_000_000), se.ActualFee)
}

func TestSwapRejectsBadComSig(t *testing.T) {
	server, serverKey, node, _ := newTestEngine(t)

	onion, comsig, commit, _ := buildSwapRequest(t, serverKey, 200_000_000, 50_000_000)
	node.AddUTXO(commit, OutputPlain, 10)

	comsig.S = RandomSecret() // corrupt the signature

	err := server.Swap(context.Background(), onion, comsig)
	require.Error(t, err)
	var se *SwapError
	require.ErrorAs(t, err, &se)
	require.Equal(t, InvalidComSignature, se.Kind)
}

func TestSwapRejectsWrongServerKey(t *testing.T) {
	server, _, node, _ := newTestEngine(t)

	wrongKey := RandomSecret()
	onion, comsig, commit, _ := buildSwapRequest(t, wrongKey, 200_000_000, 50_000_000)
	node.AddUTXO(commit, OutputPlain, 10)

	err := server.Swap(context.Background(), onion, comsig)
	require.Error(t, err)
	var se *SwapError
	require.ErrorAs(t, err, &se)
	require.Equal(t, PeelOnionFailure, se.Kind)
}

func TestSwapRejectsDuplicate(t *testing.T) {
	server, serverKey, node, _ := newTestEngine(t)

	onion, comsig, commit, _ := buildSwapRequest(t, serverKey, 200_000_000, 50_000_000)
	node.AddUTXO(commit, OutputPlain, 10)

	require.NoError(t, server.Swap(context.Background(), onion, comsig))

	err := server.Swap(context.Background(), onion, comsig)
	require.Error(t, err)
	var se *SwapError
	require.ErrorAs(t, err, &se)
	require.Equal(t, AlreadySwapped, se.Kind)
}

func TestExecuteRoundAggregatesAndPosts(t *testing.T) {
	server, serverKey, node, wallet := newTestEngine(t)
	_ = wallet

	value := uint64(200_000_000)
	fee := uint64(50_000_000)
	onion, comsig, commit, outBlind := buildSwapRequest(t, serverKey, value, fee)
	node.AddUTXO(commit, OutputPlain, 10)

	require.NoError(t, server.Swap(context.Background(), onion, comsig))

	tx, err := server.ExecuteRound(context.Background())
	require.NoError(t, err)
	require.NotNil(t, tx)
	require.Len(t, tx.Inputs, 1)
	require.Equal(t, commit, tx.Inputs[0].Commit)

	wantOutput, err := Commit(value-fee, outBlind)
	require.NoError(t, err)

	var found bool
	for _, o := range tx.Outputs {
		if o.Commit == wantOutput {
			found = true
		}
	}
	require.True(t, found)

	posted := node.PostedTxs()
	require.Len(t, posted, 1)

	record, err := server.store.GetSwap(commit)
	require.NoError(t, err)
	require.Equal(t, StatusInProcess, record.Status.Tag)
	require.Equal(t, tx.Kernels[0].Hash(), record.Status.KernelHash)
}

func TestExecuteRoundWithNoCandidatesReturnsNil(t *testing.T) {
	server, _, _, _ := newTestEngine(t)

	tx, err := server.ExecuteRound(context.Background())
	require.NoError(t, err)
	require.Nil(t, tx)
}

// TestExecuteRoundDedupesByOutputCommitBeforeFilters asserts the store-order
// output_commit tie-break: the first record (in ascending input-commitment
// key order) permanently claims that output_commit slot, even if it then
// fails a downstream filter. A later record sharing the same output_commit
// must NOT be picked up in its place.
func TestExecuteRoundDedupesByOutputCommitBeforeFilters(t *testing.T) {
	server, _, node, _ := newTestEngine(t)
	node.SetHeight(100)

	sharedOutput, err := Commit(150_000_000, RandomSecret())
	require.NoError(t, err)

	blocked := SwapData{
		Excess:       RandomSecret(),
		OutputCommit: sharedOutput,
		Input:        Input{Features: OutputCoinbase, Commit: Commitment{0x01}},
		Fee:          50_000_000,
		Onion:        Onion{},
		Status:       SwapStatus{Tag: StatusUnprocessed},
	}
	clear := SwapData{
		Excess:       RandomSecret(),
		OutputCommit: sharedOutput,
		Input:        Input{Features: OutputPlain, Commit: Commitment{0x02}},
		Fee:          50_000_000,
		Onion:        Onion{},
		Status:       SwapStatus{Tag: StatusUnprocessed},
	}
	// blocked.Input.Commit < clear.Input.Commit, so the store iterates
	// blocked first and it claims the shared output_commit slot.
	require.Equal(t, -1, bytes.Compare(blocked.Input.Commit[:], clear.Input.Commit[:]))

	node.AddUTXO(blocked.Input.Commit, OutputCoinbase, 99) // immature at height 101
	node.AddUTXO(clear.Input.Commit, OutputPlain, 10)

	require.NoError(t, server.store.SaveSwap(blocked, false))
	require.NoError(t, server.store.SaveSwap(clear, false))

	tx, err := server.ExecuteRound(context.Background())
	require.NoError(t, err)
	require.Nil(t, tx, "the clear duplicate must not be admitted once blocked consumed the output_commit slot")
}

func TestExecuteRoundSkipsImmatureCoinbase(t *testing.T) {
	server, serverKey, node, _ := newTestEngine(t)

	value := uint64(200_000_000)
	fee := uint64(50_000_000)
	onion, comsig, commit, _ := buildSwapRequest(t, serverKey, value, fee)
	node.AddUTXO(commit, OutputCoinbase, 99) // not yet mature at height 101
	node.SetHeight(100)

	require.NoError(t, server.Swap(context.Background(), onion, comsig))

	tx, err := server.ExecuteRound(context.Background())
	require.NoError(t, err)
	require.Nil(t, tx)
}
