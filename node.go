package mwixnet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/pkg/errors"
)

// UTXOInfo is what the node reports about an output: its features and the
// height it was mined at (needed for coinbase maturity checks).
type UTXOInfo struct {
	Features OutputFeatures
	Height   uint64
}

// Node is the blockchain full-node client the engine consults for
// unspent-status, chain height and transaction submission. It is a
// capability contract, not an inheritance hierarchy: tests inject MockNode,
// production wires HTTPNode.
type Node interface {
	// GetUTXO reports the features and mined height of commit if it is
	// currently unspent, or ok=false if it is not.
	GetUTXO(ctx context.Context, commit Commitment) (info UTXOInfo, ok bool, err error)
	// GetChainHeight returns the current chain tip height.
	GetChainHeight(ctx context.Context) (uint64, error)
	// PostTx submits tx for inclusion in a block.
	PostTx(ctx context.Context, tx Transaction) error
	// IsSpendable reports whether commit may be spent in a block at
	// atHeight, accounting for coinbase maturity.
	IsSpendable(ctx context.Context, commit Commitment, atHeight uint64) (bool, error)
}

// coinbaseMaturity is the number of confirmations a coinbase output needs
// before it may be spent, mirroring grin's standard maturity rule.
const coinbaseMaturity = 1440

// MockNode is an in-memory Node keyed by commitment, for tests and local
// development without a live full node.
type MockNode struct {
	mu     sync.Mutex
	height uint64
	utxos  map[Commitment]UTXOInfo
	posted []Transaction
}

// NewMockNode returns a MockNode at the given chain height with no UTXOs.
func NewMockNode(height uint64) *MockNode {
	return &MockNode{height: height, utxos: make(map[Commitment]UTXOInfo)}
}

// AddUTXO registers commit as unspent, for test setup.
func (m *MockNode) AddUTXO(commit Commitment, features OutputFeatures, height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.utxos[commit] = UTXOInfo{Features: features, Height: height}
}

// SpendUTXO removes commit from the unspent set, for test setup.
func (m *MockNode) SpendUTXO(commit Commitment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.utxos, commit)
}

// SetHeight sets the chain height MockNode reports.
func (m *MockNode) SetHeight(h uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height = h
}

// PostedTxs returns every transaction posted so far, for assertions.
func (m *MockNode) PostedTxs() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transaction(nil), m.posted...)
}

func (m *MockNode) GetUTXO(_ context.Context, commit Commitment) (UTXOInfo, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.utxos[commit]
	return info, ok, nil
}

func (m *MockNode) GetChainHeight(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height, nil
}

func (m *MockNode) PostTx(_ context.Context, tx Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range tx.Inputs {
		delete(m.utxos, in.Commit)
	}
	m.posted = append(m.posted, tx)
	return nil
}

func (m *MockNode) IsSpendable(_ context.Context, commit Commitment, atHeight uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.utxos[commit]
	if !ok {
		return false, nil
	}
	if info.Features == OutputCoinbase {
		return atHeight >= info.Height+coinbaseMaturity, nil
	}
	return true, nil
}

// HTTPNode is a Node backed by a full node's JSON HTTP API.
type HTTPNode struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPNode builds an HTTPNode targeting baseURL, using http.DefaultClient
// if client is nil.
func NewHTTPNode(baseURL string, client *http.Client) *HTTPNode {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPNode{BaseURL: baseURL, Client: client}
}

type getUTXOResponse struct {
	Found    bool           `json:"found"`
	Features OutputFeatures `json:"features"`
	Height   uint64         `json:"height"`
}

func (n *HTTPNode) GetUTXO(ctx context.Context, commit Commitment) (UTXOInfo, bool, error) {
	var resp getUTXOResponse
	if err := n.getJSON(ctx, fmt.Sprintf("/v1/chain/outputs/%x", commit[:]), &resp); err != nil {
		return UTXOInfo{}, false, err
	}
	if !resp.Found {
		return UTXOInfo{}, false, nil
	}
	return UTXOInfo{Features: resp.Features, Height: resp.Height}, true, nil
}

func (n *HTTPNode) GetChainHeight(ctx context.Context) (uint64, error) {
	var resp struct {
		Height uint64 `json:"height"`
	}
	if err := n.getJSON(ctx, "/v1/chain", &resp); err != nil {
		return 0, err
	}
	return resp.Height, nil
}

func (n *HTTPNode) PostTx(ctx context.Context, tx Transaction) error {
	return n.postJSON(ctx, "/v1/pool/push_tx", tx, nil)
}

func (n *HTTPNode) IsSpendable(ctx context.Context, commit Commitment, atHeight uint64) (bool, error) {
	var resp struct {
		Spendable bool `json:"spendable"`
	}
	path := fmt.Sprintf("/v1/chain/outputs/%x/spendable?height=%d", commit[:], atHeight)
	if err := n.getJSON(ctx, path, &resp); err != nil {
		return false, err
	}
	return resp.Spendable, nil
}

func (n *HTTPNode) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.BaseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "node: build request")
	}
	resp, err := n.Client.Do(req)
	if err != nil {
		return errors.Wrap(err, "node: request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("node: %s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (n *HTTPNode) postJSON(ctx context.Context, path string, in interface{}, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "node: encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "node: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.Client.Do(req)
	if err != nil {
		return errors.Wrap(err, "node: request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("node: %s returned status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
