package mwixnet

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/pkg/errors"
)

// ChainType selects which network's default URLs and data directory this
// process uses, chosen once at startup.
type ChainType int

const (
	Mainnet ChainType = iota
	Testnet
)

// DefaultInterval is the round cadence used when no override is supplied.
const DefaultInterval = 10 // seconds

const configSaltSize = 16

// ServerConfig carries everything a running mix node needs: its mix key,
// round cadence, bind address, and how to reach the node and wallet it
// depends on. The field set mirrors the original's ServerConfig exactly.
type ServerConfig struct {
	Key                   SecretKey `yaml:"key"`
	IntervalS             uint64    `yaml:"interval_s"`
	Addr                  string    `yaml:"addr"`
	NodeURL               string    `yaml:"grin_node_url"`
	NodeSecretPath        *string   `yaml:"grin_node_secret_path"`
	WalletOwnerURL        string    `yaml:"wallet_owner_url"`
	WalletOwnerSecretPath *string   `yaml:"wallet_owner_secret_path"`
}

// onDiskConfig is the encrypted envelope persisted to disk: a random salt
// used to derive the encryption key from the operator's password, plus the
// nonce and ciphertext of the YAML-encoded ServerConfig.
type onDiskConfig struct {
	Salt       []byte `yaml:"salt"`
	Nonce      []byte `yaml:"nonce"`
	Ciphertext []byte `yaml:"ciphertext"`
}

// deriveConfigKey derives a chacha20poly1305 key from a password and salt
// via HKDF-SHA256, so the same password always yields the same key for a
// given config file without storing the password itself anywhere.
func deriveConfigKey(password string, salt []byte) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(password), salt, []byte("mwixnet-config"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, errors.Wrap(err, "derive config key")
	}
	return key, nil
}

// WriteConfig encrypts cfg under a key derived from password and writes it
// to path as YAML.
func WriteConfig(path string, cfg *ServerConfig, password string) error {
	plaintext, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal server config")
	}

	salt := make([]byte, configSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return errors.Wrap(err, "generate config salt")
	}
	key, err := deriveConfigKey(password, salt)
	if err != nil {
		return err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return errors.Wrap(err, "build aead cipher")
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, "generate config nonce")
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	disk := onDiskConfig{Salt: salt, Nonce: nonce, Ciphertext: ciphertext}
	out, err := yaml.Marshal(&disk)
	if err != nil {
		return errors.Wrap(err, "marshal encrypted config")
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return errors.Wrap(err, "write config file")
	}
	return nil
}

// LoadConfig reads and decrypts the ServerConfig stored at path, failing
// with an authentication error if password is wrong.
func LoadConfig(path string, password string) (*ServerConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	var disk onDiskConfig
	if err := yaml.Unmarshal(raw, &disk); err != nil {
		return nil, errors.Wrap(err, "parse encrypted config")
	}

	key, err := deriveConfigKey(password, disk.Salt)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.Wrap(err, "build aead cipher")
	}
	plaintext, err := aead.Open(nil, disk.Nonce, disk.Ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt config: wrong password or corrupt file")
	}

	var cfg ServerConfig
	if err := yaml.Unmarshal(plaintext, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse server config")
	}
	return &cfg, nil
}

// defaultDataDir returns the per-chain data directory mwixnet stores its
// config and swap store under, analogous to the original's grin data path.
func defaultDataDir(chain ChainType) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	switch chain {
	case Testnet:
		return home + "/.mwixnet/testnet"
	default:
		return home + "/.mwixnet/main"
	}
}

// DefaultConfigPath returns the default location of the encrypted config
// file for the given chain type.
func DefaultConfigPath(chain ChainType) string {
	return defaultDataDir(chain) + "/mwixnet-config.yaml"
}

// DefaultNodeURL returns the node owner API URL mwixnet assumes absent an
// explicit override.
func DefaultNodeURL(chain ChainType) string {
	switch chain {
	case Testnet:
		return "http://127.0.0.1:23413"
	default:
		return "http://127.0.0.1:3413"
	}
}

// DefaultWalletOwnerURL returns the wallet owner API URL mwixnet assumes
// absent an explicit override.
func DefaultWalletOwnerURL(chain ChainType) string {
	switch chain {
	case Testnet:
		return "http://127.0.0.1:23415"
	default:
		return "http://127.0.0.1:3415"
	}
}

// PromptPassword reads a single password from the terminal without echo.
func PromptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.Wrap(err, "read password")
	}
	return string(pw), nil
}

// PromptPasswordConfirm reads a password twice and requires both entries to
// match, for init-config.
func PromptPasswordConfirm() (string, error) {
	first, err := PromptPassword("Server password: ")
	if err != nil {
		return "", err
	}
	second, err := PromptPassword("Confirm server password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords did not match")
	}
	return first, nil
}
