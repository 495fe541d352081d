package mwixnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SwapStore {
	t.Helper()
	store, err := OpenSwapStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleSwapData(t *testing.T) SwapData {
	t.Helper()
	blind := RandomSecret()
	proof, err := NewRangeProof(10, blind)
	require.NoError(t, err)
	commit, err := Commit(10, blind)
	require.NoError(t, err)
	inputCommit, err := Commit(20, RandomSecret())
	require.NoError(t, err)

	return SwapData{
		Excess:       RandomSecret(),
		OutputCommit: commit,
		RangeProof:   &proof,
		Input:        Input{Features: OutputPlain, Commit: inputCommit},
		Fee:          5,
		Onion:        Onion{EphemeralPubkey: RandomSecret().PubKey(), Commit: commit},
		Status:       SwapStatus{Tag: StatusUnprocessed},
	}
}

func TestSwapStoreSaveAndGet(t *testing.T) {
	store := openTestStore(t)
	record := sampleSwapData(t)

	require.NoError(t, store.SaveSwap(record, false))

	got, err := store.GetSwap(record.Input.Commit)
	require.NoError(t, err)
	require.Equal(t, record, got)
}

func TestSwapStoreRejectsDuplicateWithoutOverwrite(t *testing.T) {
	store := openTestStore(t)
	record := sampleSwapData(t)

	require.NoError(t, store.SaveSwap(record, false))
	err := store.SaveSwap(record, false)
	require.Error(t, err)

	var se *StoreError
	require.ErrorAs(t, err, &se)
	require.Equal(t, AlreadyExists, se.Kind)
}

func TestSwapStoreOverwriteUpdatesStatus(t *testing.T) {
	store := openTestStore(t)
	record := sampleSwapData(t)
	require.NoError(t, store.SaveSwap(record, false))

	record.Status = SwapStatus{Tag: StatusInProcess, KernelHash: Hash{1, 2, 3}}
	require.NoError(t, store.SaveSwap(record, true))

	got, err := store.GetSwap(record.Input.Commit)
	require.NoError(t, err)
	require.Equal(t, StatusInProcess, got.Status.Tag)
	require.Equal(t, Hash{1, 2, 3}, got.Status.KernelHash)
}

func TestSwapStoreGetMissingReturnsNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.GetSwap(Commitment{1})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrSwapNotFound)
}

func TestSwapStoreExists(t *testing.T) {
	store := openTestStore(t)
	record := sampleSwapData(t)

	exists, err := store.SwapExists(record.Input.Commit)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, store.SaveSwap(record, false))

	exists, err = store.SwapExists(record.Input.Commit)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestSwapsIterAscendingOrder(t *testing.T) {
	store := openTestStore(t)

	var commits []Commitment
	for i := 0; i < 5; i++ {
		record := sampleSwapData(t)
		require.NoError(t, store.SaveSwap(record, false))
		commits = append(commits, record.Input.Commit)
	}

	records, err := store.SwapsIter()
	require.NoError(t, err)
	require.Len(t, records, 5)

	for i := 1; i < len(records); i++ {
		require.LessOrEqual(t, string(records[i-1].Input.Commit[:]), string(records[i].Input.Commit[:]))
	}
}
