package mwixnet

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigWriteLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mwixnet-config.yaml")

	secretPath := "/run/secrets/node-api"
	cfg := &ServerConfig{
		Key:            RandomSecret(),
		IntervalS:      20,
		Addr:           "0.0.0.0:3000",
		NodeURL:        "http://127.0.0.1:3413",
		NodeSecretPath: &secretPath,
		WalletOwnerURL: "http://127.0.0.1:3415",
	}

	require.NoError(t, WriteConfig(path, cfg, "correct horse battery staple"))

	loaded, err := LoadConfig(path, "correct horse battery staple")
	require.NoError(t, err)
	require.Equal(t, cfg.Key, loaded.Key)
	require.Equal(t, cfg.IntervalS, loaded.IntervalS)
	require.Equal(t, cfg.Addr, loaded.Addr)
	require.Equal(t, cfg.NodeURL, loaded.NodeURL)
	require.Equal(t, *cfg.NodeSecretPath, *loaded.NodeSecretPath)
	require.Equal(t, cfg.WalletOwnerURL, loaded.WalletOwnerURL)
}

func TestConfigLoadRejectsWrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mwixnet-config.yaml")
	cfg := &ServerConfig{Key: RandomSecret(), IntervalS: DefaultInterval, Addr: "0.0.0.0:3000"}

	require.NoError(t, WriteConfig(path, cfg, "right-password"))

	_, err := LoadConfig(path, "wrong-password")
	require.Error(t, err)
}

func TestDefaultURLsDifferByChainType(t *testing.T) {
	require.NotEqual(t, DefaultNodeURL(Mainnet), DefaultNodeURL(Testnet))
	require.NotEqual(t, DefaultWalletOwnerURL(Mainnet), DefaultWalletOwnerURL(Testnet))
	require.NotEqual(t, DefaultConfigPath(Mainnet), DefaultConfigPath(Testnet))
}
