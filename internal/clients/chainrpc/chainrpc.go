// Package chainrpc is the upstream chain RPC capability from spec.md §6,
// consumed by SnosWorker discovery and the Snos handler.
package chainrpc

import "context"

// StateUpdateStatus is the result of polling a block's settlement state.
type StateUpdateStatus int

const (
	StatePending StateUpdateStatus = iota
	StateUpdated
)

// Client is the upstream chain RPC capability set. GetNonce is part of
// spec.md §6's capability set; no current caller consults it.
type Client interface {
	GetBlockNumber(ctx context.Context) (uint64, error)
	GetStateUpdate(ctx context.Context, block uint64) (StateUpdateStatus, error)
	GetNonce(ctx context.Context, contractAddress string) (uint64, error)
}
