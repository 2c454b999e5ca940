package chainrpc

import (
	"context"
	"sync"
)

// Fake is an in-memory Client for SnosWorker and Snos handler tests.
type Fake struct {
	mu           sync.Mutex
	blockNumber  uint64
	stateUpdates map[uint64]StateUpdateStatus
	nonces       map[string]uint64
}

func NewFake() *Fake {
	return &Fake{
		stateUpdates: make(map[uint64]StateUpdateStatus),
		nonces:       make(map[string]uint64),
	}
}

func (f *Fake) GetBlockNumber(_ context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockNumber, nil
}

func (f *Fake) GetStateUpdate(_ context.Context, block uint64) (StateUpdateStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateUpdates[block], nil
}

func (f *Fake) GetNonce(_ context.Context, contractAddress string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[contractAddress], nil
}

// SetBlockNumber drives the chain tip forward, for SnosWorker tests.
func (f *Fake) SetBlockNumber(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockNumber = n
}

// SetStateUpdate drives GetStateUpdate's per-block result.
func (f *Fake) SetStateUpdate(block uint64, status StateUpdateStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateUpdates[block] = status
}

// SetNonce drives GetNonce's per-contract result.
func (f *Fake) SetNonce(contractAddress string, nonce uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonces[contractAddress] = nonce
}
