package mwixnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKernelHashIsDeterministic(t *testing.T) {
	commit, err := Commit(100, RandomSecret())
	require.NoError(t, err)
	k := Kernel{Excess: commit, Fee: 5000}

	require.Equal(t, k.Hash(), k.Hash())

	other := Kernel{Excess: commit, Fee: 5001}
	require.NotEqual(t, k.Hash(), other.Hash())
}

func TestHashOfIsDeterministic(t *testing.T) {
	a := HashOf([]byte("abc"))
	b := HashOf([]byte("abc"))
	c := HashOf([]byte("abd"))
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
