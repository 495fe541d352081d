package mwixnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSwapRPCErrorCodeCoversEveryKind(t *testing.T) {
	kinds := []SwapErrorKind{
		InvalidPayloadLength, InvalidComSignature, CoinNotFound, PeelOnionFailure,
		FeeTooLow, MissingRangeproof, InvalidRangeproof, AlreadySwapped, EngineStoreError,
	}
	seen := make(map[string]bool)
	for _, k := range kinds {
		code := swapRPCErrorCode(k)
		require.NotEqual(t, "unknown_error", code)
		require.False(t, seen[code], "duplicate code %q for kind %v", code, k)
		seen[code] = true
	}
}

func TestWrapSwapErrorPreservesCause(t *testing.T) {
	se := &SwapError{Kind: FeeTooLow, MinimumFee: 10, ActualFee: 1}
	wrapped := wrapSwapError(se)
	require.ErrorIs(t, wrapped.(*rpcError).err, error(se))
	require.Contains(t, wrapped.Error(), "fee_too_low")
}
